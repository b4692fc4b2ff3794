package router

import (
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"marimaya/internal/api/assistant"
	"marimaya/internal/api/inventory"
	"marimaya/internal/pkg/cache"
	"marimaya/internal/pkg/middleware"
)

// NewRouter configures and returns the HTTP router. Handlers arrive
// already wired by dependency injection in main.
func NewRouter(
	inventoryHandler *inventory.Handler,
	assistantHandler *assistant.Handler,
	cacheClient cache.Client,
	rateLimit int,
	ratePeriod time.Duration,
) http.Handler {

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /ping", PingHandler)

	// Products
	mux.HandleFunc("GET /v1/products", inventoryHandler.ListProducts)
	mux.HandleFunc("POST /v1/products", inventoryHandler.CreateProduct)
	mux.HandleFunc("POST /v1/products/bulk", inventoryHandler.BulkCreateProducts)
	mux.HandleFunc("DELETE /v1/products/{id}", inventoryHandler.DeleteProduct)
	mux.HandleFunc("POST /v1/products/{id}/adjust", inventoryHandler.AdjustStock)

	// Sales ledger
	mux.HandleFunc("GET /v1/sales", inventoryHandler.ListSales)
	mux.HandleFunc("GET /v1/sales/summary", inventoryHandler.SalesSummary)
	mux.HandleFunc("POST /v1/sales/{id}/undo", inventoryHandler.UndoSale)

	// Dashboard and sync state
	mux.HandleFunc("GET /v1/dashboard", inventoryHandler.Dashboard)
	mux.HandleFunc("GET /v1/status", inventoryHandler.Status)
	mux.HandleFunc("POST /v1/refresh", inventoryHandler.Refresh)

	// Assistant
	mux.HandleFunc("POST /v1/assistant/import", assistantHandler.ImportShipment)
	mux.HandleFunc("POST /v1/assistant/chat", assistantHandler.Chat)

	// API documentation
	mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return middleware.RateLimiter(cacheClient, rateLimit, ratePeriod)(mux)
}

// PingHandler answers the health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
