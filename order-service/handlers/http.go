package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/orderflow/fulfillment-system/order-service/application"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"go.uber.org/zap"
)

// OrderHandlers contains order HTTP handlers
type OrderHandlers struct {
	createOrder       *application.CreateOrder
	getOrder          *application.GetOrder
	updateOrderStatus *application.UpdateOrderStatus
	cancelOrder       *application.CancelOrder
	logger            *zap.Logger
}

// NewOrderHandlers creates new order handlers
func NewOrderHandlers(
	createOrder *application.CreateOrder,
	getOrder *application.GetOrder,
	updateOrderStatus *application.UpdateOrderStatus,
	cancelOrder *application.CancelOrder,
	logger *zap.Logger,
) *OrderHandlers {
	return &OrderHandlers{
		createOrder:       createOrder,
		getOrder:          getOrder,
		updateOrderStatus: updateOrderStatus,
		cancelOrder:       cancelOrder,
		logger:            logger,
	}
}

// CreateOrder handles order placement requests
func (h *OrderHandlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var cmd application.CreateOrderCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	response, err := h.createOrder.Execute(r.Context(), &cmd)
	if err != nil {
		h.writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

// GetOrder handles order retrieval requests
func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "order ID is required")
		return
	}

	response, err := h.getOrder.Execute(r.Context(), orderID)
	if err != nil {
		h.writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// UpdateOrderStatus handles status transition requests
func (h *OrderHandlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "order ID is required")
		return
	}

	var cmd application.UpdateOrderStatusCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cmd.OrderID = orderID

	response, err := h.updateOrderStatus.Execute(r.Context(), &cmd)
	if err != nil {
		h.writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// CancelOrder handles order cancellation requests
func (h *OrderHandlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "order ID is required")
		return
	}

	response, err := h.cancelOrder.Execute(r.Context(), orderID)
	if err != nil {
		h.writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// RegisterRoutes registers order routes
func (h *OrderHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Put("/status", h.UpdateOrderStatus)
			r.Post("/cancel", h.CancelOrder)
		})
	})
}

// writeFault maps a fault kind to its HTTP status
func (h *OrderHandlers) writeFault(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch faults.KindOf(err) {
	case faults.KindValidation:
		status = http.StatusBadRequest
	case faults.KindNotFound:
		status = http.StatusNotFound
	case faults.KindConflict:
		status = http.StatusConflict
	case faults.KindUnavailable:
		status = http.StatusServiceUnavailable
	case faults.KindProcessing, faults.KindCompensation:
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
