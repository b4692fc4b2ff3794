package assistantservice_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marimaya/internal/domain"
	"marimaya/internal/pkg/logger"
	"marimaya/internal/service/assistantservice"
)

// fakeGenerateServer fakes the generateContent endpoint, replying with
// the given candidate text and capturing the request body.
func fakeGenerateServer(t *testing.T, status int, candidateText string, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"boom"}}`))
			return
		}
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": candidateText}},
				}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newService(endpoint string) *assistantservice.Service {
	return assistantservice.NewService(endpoint, "test-model", "test-key", 5*time.Second, logger.NewLogger("error"))
}

func TestParseShipment_ReturnsDrafts(t *testing.T) {
	payload := `[{"name":"Silk Wrap","category":"Outerwear","size":"OS","color":"Ivory","price":8500,"buyingPrice":4500,"stock":10,"minStockThreshold":3}]`
	var captured map[string]interface{}
	srv := fakeGenerateServer(t, http.StatusOK, payload, &captured)
	defer srv.Close()

	drafts, err := newService(srv.URL).ParseShipment(context.Background(), "Received 10 ivory silk wraps at 8500, cost 4500")

	assert.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Silk Wrap", drafts[0].Name)
	assert.Equal(t, 8500.0, drafts[0].Price)
	assert.Equal(t, 4500.0, drafts[0].BuyingPrice)
	assert.Equal(t, 10, drafts[0].Stock)

	// The request constrains the output to the product draft schema.
	cfg, ok := captured["generationConfig"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	assert.NotNil(t, cfg["responseSchema"])
}

func TestParseShipment_MalformedOutputYieldsEmptySlice(t *testing.T) {
	srv := fakeGenerateServer(t, http.StatusOK, "sorry, I could not parse that", nil)
	defer srv.Close()

	drafts, err := newService(srv.URL).ParseShipment(context.Background(), "gibberish")

	// Treated as "nothing to import", never an error.
	assert.NoError(t, err)
	assert.NotNil(t, drafts)
	assert.Empty(t, drafts)
}

func TestParseShipment_CallFailurePropagates(t *testing.T) {
	srv := fakeGenerateServer(t, http.StatusInternalServerError, "", nil)
	defer srv.Close()

	_, err := newService(srv.URL).ParseShipment(context.Background(), "anything")

	assert.Error(t, err)
}

func TestAnswer_SendsInventorySnapshotAndHistory(t *testing.T) {
	var captured map[string]interface{}
	srv := fakeGenerateServer(t, http.StatusOK, "The Silk Wrap is nearly sold out.", &captured)
	defer srv.Close()

	products := []domain.Product{{
		Name: "Silk Wrap", Category: "Outerwear", Size: "OS", Color: "Ivory",
		Price: 8500, BuyingPrice: 4500, Stock: 2, MinStockThreshold: 3,
	}}
	history := []domain.ChatMessage{
		{Role: domain.ChatRoleAssistant, Content: "Welcome back."},
		{Role: domain.ChatRoleUser, Content: "How are the wraps doing?"},
		{Role: domain.ChatRoleAssistant, Content: "Selling fast."},
	}

	answer, err := newService(srv.URL).Answer(context.Background(), "What should I restock?", products, history)

	assert.NoError(t, err)
	assert.Equal(t, "The Silk Wrap is nearly sold out.", answer)

	// The snapshot travels in the system instruction, with low-stock
	// flags derived from the thresholds.
	sys, ok := captured["systemInstruction"].(map[string]interface{})
	require.True(t, ok)
	sysText := sys["parts"].([]interface{})[0].(map[string]interface{})["text"].(string)
	assert.Contains(t, sysText, `"name":"Silk Wrap"`)
	assert.Contains(t, sysText, `"lowStock":true`)

	// History is trimmed to start at the first user turn.
	contents, ok := captured["contents"].([]interface{})
	require.True(t, ok)
	require.Len(t, contents, 3)
	first := contents[0].(map[string]interface{})
	assert.Equal(t, "user", first["role"])
	last := contents[2].(map[string]interface{})
	assert.Equal(t, "user", last["role"])
}

func TestAnswer_EmptyCandidateYieldsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
	}))
	defer srv.Close()

	answer, err := newService(srv.URL).Answer(context.Background(), "Anyone there?", nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, assistantservice.FallbackAnswer, answer)
}

func TestAnswer_CallFailureReturnsError(t *testing.T) {
	srv := fakeGenerateServer(t, http.StatusBadGateway, "", nil)
	defer srv.Close()

	_, err := newService(srv.URL).Answer(context.Background(), "hello", nil, nil)

	// The handler substitutes the fixed apology; the adapter itself
	// reports the failure.
	assert.Error(t, err)
}
