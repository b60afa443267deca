package handler

import (
	"net/http"

	"goflare.io/estore"
	"goflare.io/estore/models"
	"goflare.io/estore/models/enum"
)

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	customerID, err := uintParam(r, "customerID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req estore.PlaceOrderRequest
	if err = decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	req.CustomerID = customerID

	order, err := h.svc.PlaceOrder(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (h *Handler) listCustomerOrders(w http.ResponseWriter, r *http.Request) {
	customerID, err := uintParam(r, "customerID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	orders, err := h.svc.ListCustomerOrders(r.Context(), customerID, limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// customerOrderAction 顧客對自己訂單的操作
func (h *Handler) customerOrderAction(action func(svc estore.Service, r *http.Request, orderID, customerID uint64) (*models.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := uintParam(r, "customerID")
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		orderID, err := uintParam(r, "orderID")
		if err != nil {
			h.respondError(w, r, err)
			return
		}

		order, err := action(h.svc, r, orderID, customerID)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, order)
	}
}

func cancelOrder(svc estore.Service, r *http.Request, orderID, customerID uint64) (*models.Order, error) {
	return svc.CancelOrder(r.Context(), orderID, customerID)
}

func returnOrder(svc estore.Service, r *http.Request, orderID, customerID uint64) (*models.Order, error) {
	return svc.ReturnOrder(r.Context(), orderID, customerID)
}

func returnItem(svc estore.Service, r *http.Request, orderID, customerID uint64) (*models.Order, error) {
	itemID, err := uintParam(r, "itemID")
	if err != nil {
		return nil, err
	}
	return svc.ReturnItem(r.Context(), orderID, itemID, customerID)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var status *enum.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := enum.OrderStatus(raw)
		status = &s
	}

	orders, err := h.svc.ListOrders(r.Context(), status, limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uintParam(r, "orderID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	order, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// adminOrderAction 管理端以訂單 ID 觸發的狀態變更
func (h *Handler) adminOrderAction(action func(svc estore.Service, r *http.Request, orderID uint64) (*models.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uintParam(r, "orderID")
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		order, err := action(h.svc, r, orderID)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, order)
	}
}

func acceptOrder(svc estore.Service, r *http.Request, orderID uint64) (*models.Order, error) {
	return svc.AcceptOrder(r.Context(), orderID)
}

func rejectOrder(svc estore.Service, r *http.Request, orderID uint64) (*models.Order, error) {
	return svc.RejectOrder(r.Context(), orderID)
}

func approveReturn(svc estore.Service, r *http.Request, orderID uint64) (*models.Order, error) {
	return svc.ApproveReturnRequest(r.Context(), orderID)
}

func rejectReturn(svc estore.Service, r *http.Request, orderID uint64) (*models.Order, error) {
	return svc.RejectReturnRequest(r.Context(), orderID)
}

type updateStatusRequest struct {
	Status enum.OrderStatus `json:"status"`
}

func updateOrderStatus(svc estore.Service, r *http.Request, orderID uint64) (*models.Order, error) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return svc.UpdateOrderStatus(r.Context(), orderID, req.Status)
}
