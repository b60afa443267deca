package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"goflare.io/estore/models"
)

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.ListCategories(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *Handler) categoryTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.svc.GetCategoryTree(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tree)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := uintParam(r, "categoryID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	category, err := h.svc.GetCategory(r.Context(), categoryID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, category)
}

func (h *Handler) listSubcategories(w http.ResponseWriter, r *http.Request) {
	categoryID, err := uintParam(r, "categoryID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	categories, err := h.svc.ListSubcategories(r.Context(), categoryID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *Handler) saveCategory(w http.ResponseWriter, r *http.Request) {
	var category models.Category
	if err := decodeJSON(r, &category); err != nil {
		h.respondError(w, r, err)
		return
	}
	category.ID = 0

	status := http.StatusCreated
	if chi.URLParam(r, "categoryID") != "" {
		id, err := uintParam(r, "categoryID")
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		category.ID = id
		status = http.StatusOK
	}

	saved, err := h.svc.SaveCategory(r.Context(), &category)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, status, saved)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := uintParam(r, "categoryID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err = h.svc.DeleteCategory(r.Context(), categoryID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
