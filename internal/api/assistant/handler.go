package assistant

import (
	"context"
	"encoding/json"
	"net/http"

	"marimaya/internal/domain"
	apperror "marimaya/internal/errors"
	"marimaya/internal/pkg/logger"
	"marimaya/internal/service/assistantservice"
	"marimaya/internal/service/inventoryservice"
)

// Adapter defines the contract the handler expects from the assistant
// boundary.
type Adapter interface {
	ParseShipment(ctx context.Context, text string) ([]domain.ProductDraft, error)
	Answer(ctx context.Context, query string, products []domain.Product, history []domain.ChatMessage) (string, error)
}

// Handler groups the assistant endpoints: shipment import and chat.
type Handler struct {
	Adapter Adapter
	Engine  *inventoryservice.Service
	Logger  logger.Logger
}

// NewHandler creates the handler, injecting the adapter, the engine and
// the logger.
func NewHandler(adapter Adapter, engine *inventoryservice.Service, log logger.Logger) *Handler {
	return &Handler{Adapter: adapter, Engine: engine, Logger: log}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.Logger.Error("failed to encode response body", err)
		}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, category, message := apperror.MapToHTTPStatus(err)
	if status >= 500 {
		h.Logger.Error("request failed: "+category, err)
	}
	h.writeJSON(w, status, domain.ErrorResponse{Code: status, Category: category, Message: message})
}

// ImportShipment handles POST /v1/assistant/import: parse a free-text
// shipment description into drafts and bulk-create them. Unparsable
// text imports nothing; it is not an error.
func (h *Handler) ImportShipment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		h.writeError(w, r, apperror.NewValidationError("invalid JSON payload, expected {\"text\": \"...\"}"))
		return
	}

	drafts, err := h.Adapter.ParseShipment(r.Context(), req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(drafts) == 0 {
		h.writeJSON(w, http.StatusOK, []domain.Product{})
		return
	}

	created, err := h.Engine.BulkCreateProducts(r.Context(), drafts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// ChatResponse is the chat endpoint's reply body.
type ChatResponse struct {
	Answer string `json:"answer"`
}

// Chat handles POST /v1/assistant/chat. A failed generative call yields
// the fixed apology string, never an error state.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query   string               `json:"query"`
		History []domain.ChatMessage `json:"history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		h.writeError(w, r, apperror.NewValidationError("invalid JSON payload, expected {\"query\": \"...\"}"))
		return
	}

	answer, err := h.Adapter.Answer(r.Context(), req.Query, h.Engine.Products(), req.History)
	if err != nil {
		h.Logger.Error("assistant answer failed, substituting fallback", err)
		answer = assistantservice.FallbackAnswer
	}
	h.writeJSON(w, http.StatusOK, ChatResponse{Answer: answer})
}
