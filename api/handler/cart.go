package handler

import (
	"net/http"

	"github.com/stripe/stripe-go/v79"

	"goflare.io/estore"
)

type openCartRequest struct {
	Currency stripe.Currency `json:"currency"`
}

func (h *Handler) openCart(w http.ResponseWriter, r *http.Request) {
	customerID, err := uintParam(r, "customerID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req openCartRequest
	if r.ContentLength > 0 {
		if err = decodeJSON(r, &req); err != nil {
			h.respondError(w, r, err)
			return
		}
	}

	cart, err := h.svc.GetOrCreateActiveCart(r.Context(), customerID, req.Currency)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := uintParam(r, "cartID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	cart, err := h.svc.GetCart(r.Context(), cartID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

type addCartItemRequest struct {
	ProductID     uint64  `json:"product_id"`
	ProductPlanID *uint64 `json:"product_plan_id,omitempty"`
	Quantity      uint64  `json:"quantity"`
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := uintParam(r, "cartID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req addCartItemRequest
	if err = decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	cart, err := h.svc.AddItemToCart(r.Context(), cartID, req.ProductID, req.ProductPlanID, req.Quantity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

type updateCartItemRequest struct {
	Quantity uint64 `json:"quantity"`
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := uintParam(r, "cartID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	itemID, err := uintParam(r, "itemID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req updateCartItemRequest
	if err = decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	cart, err := h.svc.UpdateCartItemQuantity(r.Context(), cartID, itemID, req.Quantity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := uintParam(r, "cartID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	itemID, err := uintParam(r, "itemID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	cart, err := h.svc.RemoveItemFromCart(r.Context(), cartID, itemID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := uintParam(r, "cartID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	cart, err := h.svc.ClearCart(r.Context(), cartID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *Handler) checkoutCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := uintParam(r, "cartID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req estore.CheckoutRequest
	if err = decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	order, err := h.svc.CheckoutCart(r.Context(), cartID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}
