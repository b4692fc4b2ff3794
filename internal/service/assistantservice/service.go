package assistantservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"marimaya/internal/domain"
	apperror "marimaya/internal/errors"
	"marimaya/internal/pkg/logger"
)

// FallbackAnswer is returned to the user whenever the generative service
// cannot produce a reply. Chat failures never surface as error states.
const FallbackAnswer = "I apologize, but I am momentarily unable to retrieve the boutique archives. Shall we try again?"

// systemInstruction is the persona and rule set for the inventory
// assistant. The serialized boutique records are appended per request.
const systemInstruction = `You are the exclusive AI Inventory Strategist for 'Marimaya Closet', a high-end luxury fashion boutique in Nairobi, Kenya.
Your tone is ultra-premium, articulate, and strategically minded.

CAPABILITIES:
- Real-time Inventory Insight: You know exactly what is in stock.
- Financial Reasoning: You understand the margin between "cost" (buyingPrice) and "retail" (price). You can discuss profitability if asked.
- Styling & Curation: You can suggest pairings.
- Trend Forecasting: You can provide advice on what to restock based on inventory levels.

RULES:
- All prices are in KES (Kenyan Shillings).
- Refer to garments by their full names.
- If asked about "value", clarify if the user means "Retail Value" or "Asset Cost".
- Never refer to the shop as a warehouse or factory; it is an "Atelier" or "Boutique".

Current Boutique Records: %s`

// shipmentSchema constrains the parser output to a JSON array of product
// drafts so the model cannot reply with free text.
const shipmentSchema = `{
	"type": "ARRAY",
	"items": {
		"type": "OBJECT",
		"properties": {
			"name": {"type": "STRING", "description": "The name of the garment"},
			"category": {"type": "STRING", "description": "e.g., Tops, Bottoms, Outerwear, Accessories"},
			"size": {"type": "STRING", "description": "The size (S, M, L, XL, OS)"},
			"color": {"type": "STRING", "description": "The color or pattern"},
			"price": {"type": "NUMBER", "description": "Selling price as a number in KES"},
			"buyingPrice": {"type": "NUMBER", "description": "Buying price (cost) as a number in KES"},
			"stock": {"type": "NUMBER", "description": "Quantity received"},
			"minStockThreshold": {"type": "NUMBER", "description": "Recommended minimum stock alert level (default to 3)"}
		},
		"required": ["name", "category", "size", "color", "price", "buyingPrice", "stock"]
	}
}`

// --- Wire types for the generateContent endpoint ---

type contentPart struct {
	Text string `json:"text"`
}

type content struct {
	Role  string        `json:"role,omitempty"`
	Parts []contentPart `json:"parts"`
}

type generationConfig struct {
	ResponseMIMEType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
	Temperature      float64         `json:"temperature,omitempty"`
	TopP             float64         `json:"topP,omitempty"`
	TopK             int             `json:"topK,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []contentPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// inventoryEntry is the snapshot shape serialized into the chat context.
type inventoryEntry struct {
	Name     string  `json:"name"`
	Stock    int     `json:"stock"`
	Price    float64 `json:"price"`
	Cost     float64 `json:"cost"`
	Color    string  `json:"color"`
	Size     string  `json:"size"`
	LowStock bool    `json:"lowStock"`
	Category string  `json:"category"`
}

// Service is the boundary to the external generative text service. It is
// purely a translation layer: free text in, structured drafts or a reply
// out. It holds no inventory state of its own.
type Service struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
	logger   logger.Logger
}

// NewService creates the adapter for a Gemini-style generateContent API.
func NewService(endpoint, model, apiKey string, timeout time.Duration, log logger.Logger) *Service {
	return &Service{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		logger:   log,
	}
}

// ParseShipment turns a free-text shipment description into product
// drafts. Output the model produced but that cannot be parsed as the
// expected array yields an empty slice, not an error; only an outright
// call failure returns one.
func (s *Service) ParseShipment(ctx context.Context, text string) ([]domain.ProductDraft, error) {
	prompt := fmt.Sprintf(`Parse this natural language inventory update into a JSON array of items. The prices are in KES (Kenyan Shillings). Extract both the "selling price" (what customers pay) and the "buying price" (the cost to the boutique). If only one price is mentioned, assume it is the selling price and estimate a buying price at 60%% of that value: %q`, text)

	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []contentPart{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   json.RawMessage(shipmentSchema),
		},
	}

	raw, err := s.generate(ctx, req)
	if err != nil {
		return nil, err
	}

	var drafts []domain.ProductDraft
	if err := json.Unmarshal([]byte(raw), &drafts); err != nil {
		s.logger.Warn("shipment parse produced malformed output, treating as empty", map[string]interface{}{"error": err.Error()})
		return []domain.ProductDraft{}, nil
	}
	if drafts == nil {
		drafts = []domain.ProductDraft{}
	}
	return drafts, nil
}

// Answer replies to a free-form inventory question given the current
// product snapshot and the prior conversation turns.
func (s *Service) Answer(ctx context.Context, query string, products []domain.Product, history []domain.ChatMessage) (string, error) {
	entries := make([]inventoryEntry, 0, len(products))
	for _, p := range products {
		entries = append(entries, inventoryEntry{
			Name:     p.Name,
			Stock:    p.Stock,
			Price:    p.Price,
			Cost:     p.BuyingPrice,
			Color:    p.Color,
			Size:     p.Size,
			LowStock: p.LowStock(),
			Category: p.Category,
		})
	}
	inventoryContext, err := json.Marshal(entries)
	if err != nil {
		return "", apperror.NewInternalError("failed to serialize inventory snapshot", err)
	}

	contents := historyContents(history)
	contents = append(contents, content{Role: "user", Parts: []contentPart{{Text: query}}})

	req := generateRequest{
		Contents: contents,
		SystemInstruction: &content{
			Parts: []contentPart{{Text: fmt.Sprintf(systemInstruction, inventoryContext)}},
		},
		GenerationConfig: &generationConfig{
			Temperature: 0.65,
			TopP:        0.95,
			TopK:        40,
		},
	}

	raw, err := s.generate(ctx, req)
	if err != nil {
		return "", err
	}
	if raw == "" {
		return FallbackAnswer, nil
	}
	return raw, nil
}

// historyContents maps chat turns to wire contents, dropping anything
// before the first user turn: the API rejects histories opening with a
// model reply.
func historyContents(history []domain.ChatMessage) []content {
	contents := []content{}
	started := false
	for _, msg := range history {
		role := "model"
		if msg.Role == domain.ChatRoleUser {
			role = "user"
			started = true
		}
		if !started {
			continue
		}
		contents = append(contents, content{Role: role, Parts: []contentPart{{Text: msg.Content}}})
	}
	return contents
}

// generate performs one generateContent call and returns the first
// candidate's text.
func (s *Service) generate(ctx context.Context, payload generateRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperror.NewInternalError("failed to encode assistant request", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", s.endpoint, s.model, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", apperror.NewInternalError("failed to build assistant request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperror.NewUnavailableError("generative service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.logger.Error("generative service rejected request", fmt.Errorf("status %d: %s", resp.StatusCode, data))
		return "", apperror.NewUnavailableError(fmt.Sprintf("generative service returned status %d", resp.StatusCode), nil)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", apperror.NewUnavailableError("generative service returned an unreadable body", err)
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}
