package handler

import "github.com/go-chi/chi/v5"

// Register 掛載所有商店路由
func (h *Handler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{slug}", h.getProductBySlug)
	r.Get("/categories", h.listCategories)
	r.Get("/categories/tree", h.categoryTree)
	r.Get("/categories/{categoryID}/subcategories", h.listSubcategories)

	r.Post("/users", h.registerUser)
	r.Post("/users/authenticate", h.authenticate)
	r.Get("/users/{userID}", h.getUser)

	r.Post("/customers/{customerID}/cart", h.openCart)
	r.Route("/carts/{cartID}", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Delete("/items", h.clearCart)
		r.Post("/items", h.addCartItem)
		r.Patch("/items/{itemID}", h.updateCartItem)
		r.Delete("/items/{itemID}", h.removeCartItem)
		r.Post("/checkout", h.checkoutCart)
	})

	r.Route("/customers/{customerID}/orders", func(r chi.Router) {
		r.Post("/", h.placeOrder)
		r.Get("/", h.listCustomerOrders)
		r.Post("/{orderID}/cancel", h.customerOrderAction(cancelOrder))
		r.Post("/{orderID}/return", h.customerOrderAction(returnOrder))
		r.Post("/{orderID}/items/{itemID}/return", h.customerOrderAction(returnItem))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Get("/orders", h.listOrders)
		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/", h.getOrder)
			r.Post("/accept", h.adminOrderAction(acceptOrder))
			r.Post("/reject", h.adminOrderAction(rejectOrder))
			r.Put("/status", h.adminOrderAction(updateOrderStatus))
			r.Post("/return/approve", h.adminOrderAction(approveReturn))
			r.Post("/return/reject", h.adminOrderAction(rejectReturn))
		})

		r.Post("/products", h.createProduct)
		r.Route("/products/{productID}", func(r chi.Router) {
			r.Get("/", h.getProduct)
			r.Put("/", h.updateProduct)
			r.Delete("/", h.deleteProduct)
			r.Post("/stock", h.adjustStock)
			r.Get("/stock-movements", h.listStockMovements)
			r.Get("/plans", h.listPlans)
			r.Post("/plans", h.savePlan)
			r.Put("/plans/{planID}", h.savePlan)
			r.Delete("/plans/{planID}", h.deletePlan)
		})

		r.Post("/categories", h.saveCategory)
		r.Route("/categories/{categoryID}", func(r chi.Router) {
			r.Get("/", h.getCategory)
			r.Put("/", h.saveCategory)
			r.Delete("/", h.deleteCategory)
		})
	})
}
