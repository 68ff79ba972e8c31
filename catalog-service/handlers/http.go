package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/orderflow/fulfillment-system/catalog-service/application"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"go.uber.org/zap"
)

// CatalogHandlers contains catalog HTTP handlers
type CatalogHandlers struct {
	reserveStock       *application.ReserveStock
	confirmReservation *application.ConfirmReservation
	releaseReservation *application.ReleaseReservation
	createProduct      *application.CreateProduct
	getProduct         *application.GetProduct
	adjustStock        *application.AdjustStock
	logger             *zap.Logger
}

// NewCatalogHandlers creates new catalog handlers
func NewCatalogHandlers(
	reserveStock *application.ReserveStock,
	confirmReservation *application.ConfirmReservation,
	releaseReservation *application.ReleaseReservation,
	createProduct *application.CreateProduct,
	getProduct *application.GetProduct,
	adjustStock *application.AdjustStock,
	logger *zap.Logger,
) *CatalogHandlers {
	return &CatalogHandlers{
		reserveStock:       reserveStock,
		confirmReservation: confirmReservation,
		releaseReservation: releaseReservation,
		createProduct:      createProduct,
		getProduct:         getProduct,
		adjustStock:        adjustStock,
		logger:             logger,
	}
}

// ReserveStock handles reservation requests. A rejection for availability
// is a 200 with success=false, not an error status.
func (h *CatalogHandlers) ReserveStock(w http.ResponseWriter, r *http.Request) {
	var cmd application.ReserveStockCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	response, err := h.reserveStock.Execute(r.Context(), &cmd)
	if err != nil {
		h.writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// ConfirmReservation handles reservation confirmation requests
func (h *CatalogHandlers) ConfirmReservation(w http.ResponseWriter, r *http.Request) {
	orderReference := chi.URLParam(r, "orderReference")

	response, err := h.confirmReservation.Execute(r.Context(), orderReference)
	if err != nil {
		h.writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// ReleaseReservation handles reservation release requests
func (h *CatalogHandlers) ReleaseReservation(w http.ResponseWriter, r *http.Request) {
	orderReference := chi.URLParam(r, "orderReference")

	response, err := h.releaseReservation.Execute(r.Context(), orderReference)
	if err != nil {
		h.writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// CreateProduct handles product creation requests
func (h *CatalogHandlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var cmd application.CreateProductCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	response, err := h.createProduct.Execute(r.Context(), &cmd)
	if err != nil {
		h.writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

// GetProduct handles product retrieval requests
func (h *CatalogHandlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	if productID == "" {
		writeError(w, http.StatusBadRequest, "product ID is required")
		return
	}

	response, err := h.getProduct.Execute(r.Context(), productID)
	if err != nil {
		h.writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// AdjustStock handles manual stock adjustment requests
func (h *CatalogHandlers) AdjustStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	if productID == "" {
		writeError(w, http.StatusBadRequest, "product ID is required")
		return
	}

	var cmd application.AdjustStockCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cmd.ProductID = productID

	response, err := h.adjustStock.Execute(r.Context(), &cmd)
	if err != nil {
		h.writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// RegisterRoutes registers catalog routes
func (h *CatalogHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", h.ReserveStock)
			r.Post("/{orderReference}/confirm", h.ConfirmReservation)
			r.Post("/{orderReference}/release", h.ReleaseReservation)
		})
		r.Route("/products", func(r chi.Router) {
			r.Post("/", h.CreateProduct)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetProduct)
				r.Put("/stock", h.AdjustStock)
			})
		})
	})
}

// writeFault maps a fault kind to its HTTP status
func (h *CatalogHandlers) writeFault(w http.ResponseWriter, err error) {
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
