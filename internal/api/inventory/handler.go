package inventory

import (
	"encoding/json"
	"net/http"

	"marimaya/internal/domain"
	apperror "marimaya/internal/errors"
	"marimaya/internal/pkg/logger"
	"marimaya/internal/service/inventoryservice"
)

// Handler groups the inventory and sales endpoints. It consumes the
// engine's public operations and the in-memory mirrors it maintains.
type Handler struct {
	Engine *inventoryservice.Service
	Logger logger.Logger
}

// NewHandler creates the handler, injecting the engine and the logger.
func NewHandler(engine *inventoryservice.Service, log logger.Logger) *Handler {
	return &Handler{Engine: engine, Logger: log}
}

// writeJSON writes a success response body.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.Logger.Error("failed to encode response body", err)
		}
	}
}

// writeError maps a service error onto the standardized error body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= 500 {
		h.Logger.Error("request failed: "+category, err)
	} else {
		h.Logger.Debug("request rejected", map[string]interface{}{
			"path":     r.URL.Path,
			"status":   status,
			"category": category,
		})
	}

	h.writeJSON(w, status, domain.ErrorResponse{
		Code:     status,
		Category: category,
		Message:  message,
	})
}

// ListProducts handles GET /v1/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Engine.Products())
}

// CreateProduct handles POST /v1/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var draft domain.ProductDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.writeError(w, r, apperror.NewValidationError("invalid JSON payload"))
		return
	}

	created, err := h.Engine.CreateProduct(r.Context(), draft)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// BulkCreateProducts handles POST /v1/products/bulk.
func (h *Handler) BulkCreateProducts(w http.ResponseWriter, r *http.Request) {
	var drafts []domain.ProductDraft
	if err := json.NewDecoder(r.Body).Decode(&drafts); err != nil {
		h.writeError(w, r, apperror.NewValidationError("invalid JSON payload, expected an array of product drafts"))
		return
	}
	if len(drafts) == 0 {
		h.writeError(w, r, apperror.NewValidationError("draft array must not be empty"))
		return
	}

	created, err := h.Engine.BulkCreateProducts(r.Context(), drafts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// DeleteProduct handles DELETE /v1/products/{id}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")
	if productID == "" {
		h.writeError(w, r, apperror.NewValidationError("product id is required"))
		return
	}

	if err := h.Engine.DeleteProduct(r.Context(), productID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}

// AdjustStock handles POST /v1/products/{id}/adjust. The delta is signed:
// negative records a sale, non-negative a restock.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")

	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperror.NewValidationError("invalid JSON payload, expected {\"delta\": n}"))
		return
	}

	if err := h.Engine.AdjustStock(r.Context(), productID, req.Delta); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.Engine.Products())
}

// ListSales handles GET /v1/sales.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Engine.Sales())
}

// UndoSale handles POST /v1/sales/{id}/undo.
func (h *Handler) UndoSale(w http.ResponseWriter, r *http.Request) {
	saleID := r.PathValue("id")

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperror.NewValidationError("invalid JSON payload, expected {\"quantity\": n}"))
		return
	}

	if err := h.Engine.UndoSale(r.Context(), saleID, req.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.Engine.Sales())
}

// Dashboard handles GET /v1/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Engine.Dashboard())
}

// SalesSummary handles GET /v1/sales/summary.
func (h *Handler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Engine.SalesSummary())
}

// Refresh handles POST /v1/refresh: the manual reconciliation pass.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Refresh(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"products": h.Engine.Products(),
		"sales":    h.Engine.Sales(),
	})
}

// StatusResponse reports the engine's sync status.
type StatusResponse struct {
	Loaded    bool                       `json:"loaded"`
	Syncing   bool                       `json:"syncing"`
	State     inventoryservice.SyncState `json:"state"`
	LastError *inventoryservice.OpError  `json:"lastError,omitempty"`
}

// Status handles GET /v1/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, StatusResponse{
		Loaded:    h.Engine.Loaded(),
		Syncing:   h.Engine.Syncing(),
		State:     h.Engine.State(),
		LastError: h.Engine.LastError(),
	})
}
