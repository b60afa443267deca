package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"goflare.io/estore"
	"goflare.io/estore/models"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var categoryID *uint64
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.respondError(w, r, fmt.Errorf("invalid category_id %q: %w", raw, errBadRequest))
			return
		}
		categoryID = &id
	}

	products, err := h.svc.ListProducts(r.Context(), categoryID, limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handler) getProductBySlug(w http.ResponseWriter, r *http.Request) {
	product, err := h.svc.GetProductBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uintParam(r, "productID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	product, err := h.svc.GetProduct(r.Context(), productID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req estore.SaveProductRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	req.ID = 0

	product, err := h.svc.SaveProduct(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uintParam(r, "productID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req estore.SaveProductRequest
	if err = decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	req.ID = productID

	product, err := h.svc.SaveProduct(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uintParam(r, "productID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err = h.svc.DeleteProduct(r.Context(), productID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adjustStockRequest struct {
	Delta int64 `json:"delta"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	productID, err := uintParam(r, "productID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req adjustStockRequest
	if err = decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	product, err := h.svc.AdjustProductStock(r.Context(), productID, req.Delta)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handler) listStockMovements(w http.ResponseWriter, r *http.Request) {
	productID, err := uintParam(r, "productID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	movements, err := h.svc.ListStockMovements(r.Context(), productID, limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, movements)
}

func (h *Handler) listPlans(w http.ResponseWriter, r *http.Request) {
	productID, err := uintParam(r, "productID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	plans, err := h.svc.ListProductPlans(r.Context(), productID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, plans)
}

// savePlan 路徑帶 planID 時為更新
func (h *Handler) savePlan(w http.ResponseWriter, r *http.Request) {
	productID, err := uintParam(r, "productID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var plan models.ProductPlan
	if err = decodeJSON(r, &plan); err != nil {
		h.respondError(w, r, err)
		return
	}
	plan.ProductID = productID
	plan.ID = 0

	status := http.StatusCreated
	if chi.URLParam(r, "planID") != "" {
		if plan.ID, err = uintParam(r, "planID"); err != nil {
			h.respondError(w, r, err)
			return
		}
		status = http.StatusOK
	}

	saved, err := h.svc.SaveProductPlan(r.Context(), &plan)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, status, saved)
}

func (h *Handler) deletePlan(w http.ResponseWriter, r *http.Request) {
	planID, err := uintParam(r, "planID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err = h.svc.DeleteProductPlan(r.Context(), planID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
