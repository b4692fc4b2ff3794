package inventoryservice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"marimaya/internal/domain"
	apperror "marimaya/internal/errors"
	"marimaya/internal/pkg/logger"
)

// StoreGateway defines the contract the engine expects from the record
// store. Operation granularity matters: ProcessSale and UndoSaleEntry are
// single atomic store calls, so a sale can never be half-applied.
type StoreGateway interface {
	FetchCollection(ctx context.Context) ([]domain.Product, error)
	FetchLedger(ctx context.Context) ([]domain.Sale, error)
	Insert(ctx context.Context, p domain.Product) error
	InsertBatch(ctx context.Context, products []domain.Product) error
	Update(ctx context.Context, p domain.Product) error
	Delete(ctx context.Context, productID string) error
	ProcessSale(ctx context.Context, productID string, sale domain.Sale, newStock int) error
	UndoSaleEntry(ctx context.Context, saleID, productID string, newQty, addedStock int) error
}

// SyncState tracks how the in-memory mirrors relate to the record store.
type SyncState string

const (
	// StateClean means local state matches what the store last confirmed.
	StateClean SyncState = "clean"
	// StatePendingWrite means a remote write is in flight.
	StatePendingWrite SyncState = "pending-write"
	// StateWriteFailed means an optimistic local mutation was applied but
	// its remote write failed; Refresh reconciles back to clean.
	StateWriteFailed SyncState = "write-failed"
)

// OpError is the last surfaced error, keyed by the operation class that
// produced it. Only the most recent error is retained.
type OpError struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}

// Service is the reconciliation engine: the single owner of the in-memory
// product collection and sales ledger, and of the rules that keep them
// consistent with the record store.
//
// All mutating operations are serialized by opMu, so two stock
// adjustments against the same product can never both read the same
// starting stock. stateMu guards the mirrors and flags for readers.
type Service struct {
	store  StoreGateway
	logger logger.Logger

	opMu    sync.Mutex
	stateMu sync.RWMutex

	products []domain.Product
	sales    []domain.Sale // most-recent-first

	loaded    bool
	syncing   bool
	syncState SyncState
	lastErr   *OpError
}

// NewService creates the engine. One instance is constructed per
// application session.
func NewService(store StoreGateway, log logger.Logger) *Service {
	return &Service{
		store:     store,
		logger:    log,
		products:  []domain.Product{},
		sales:     []domain.Sale{},
		syncState: StateClean,
	}
}

// --- Loading and reconciliation ---

// Load fetches both collections from the store in parallel. Both fetches
// must succeed; otherwise the engine records a load error and stays
// unloaded with empty state.
func (s *Service) Load(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.reload(ctx, "load", "Connection to Marimaya database failed.")
}

// Refresh re-fetches both collections wholesale and replaces the mirrors.
// This is the reconciliation pass: any write-failed divergence is healed
// and the engine returns to clean.
func (s *Service) Refresh(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.reload(ctx, "refresh", "Refresh failed.")
}

// reload performs the parallel double fetch. Callers hold opMu.
func (s *Service) reload(ctx context.Context, op, failMsg string) error {
	s.beginSync()

	var (
		wg       sync.WaitGroup
		products []domain.Product
		sales    []domain.Sale
		pErr     error
		sErr     error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		products, pErr = s.store.FetchCollection(ctx)
	}()
	go func() {
		defer wg.Done()
		sales, sErr = s.store.FetchLedger(ctx)
	}()
	wg.Wait()

	if pErr != nil || sErr != nil {
		err := pErr
		if err == nil {
			err = sErr
		}
		s.logger.Error("failed to load collections from store", err)
		// A failed read is not a failed write: the mirrors are stale, not
		// diverged. Record the error but keep the sync state as it was;
		// an earlier write-failed stays sticky, a clean engine stays clean.
		s.stateMu.Lock()
		s.syncing = false
		if s.syncState == StatePendingWrite {
			s.syncState = StateClean
		}
		s.lastErr = &OpError{Op: op, Message: failMsg}
		s.stateMu.Unlock()
		return apperror.NewUnavailableError(failMsg, err)
	}

	// The wholesale re-fetch is the reconciliation pass: local state now
	// matches the store again, so write-failed returns to clean.
	s.stateMu.Lock()
	s.products = products
	s.sales = sales
	s.loaded = true
	s.syncState = StateClean
	s.lastErr = nil
	s.stateMu.Unlock()

	s.endSync(op, "", nil)
	s.logger.Info("collections loaded from store", map[string]interface{}{
		"products": len(products),
		"sales":    len(sales),
	})
	return nil
}

// --- Product lifecycle ---

// CreateProduct assigns identity to the draft, appends it to the local
// collection immediately and persists it asynchronously from the caller's
// point of view: a failed write keeps the local mutation and surfaces a
// sync error instead of rolling back.
func (s *Service) CreateProduct(ctx context.Context, draft domain.ProductDraft) (domain.Product, error) {
	if err := validateDraft(draft); err != nil {
		return domain.Product{}, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	p := materializeDraft(draft)

	s.stateMu.Lock()
	s.products = append(s.products, p)
	s.stateMu.Unlock()

	s.beginSync()
	err := s.store.Insert(ctx, p)
	s.endSync("create", "Sync failed. Refresh to reconcile.", err)
	if err != nil {
		s.logger.Error("product insert failed to sync", err)
		return p, apperror.NewUnavailableError("Sync failed. Refresh to reconcile.", err)
	}

	return p, nil
}

// BulkCreateProducts assigns fresh identities to every draft, appends
// them as a batch in input order and persists them through a single
// all-or-nothing batch insert.
func (s *Service) BulkCreateProducts(ctx context.Context, drafts []domain.ProductDraft) ([]domain.Product, error) {
	for _, d := range drafts {
		if err := validateDraft(d); err != nil {
			return nil, err
		}
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	batch := make([]domain.Product, 0, len(drafts))
	for _, d := range drafts {
		batch = append(batch, materializeDraft(d))
	}

	s.stateMu.Lock()
	s.products = append(s.products, batch...)
	s.stateMu.Unlock()

	s.beginSync()
	err := s.store.InsertBatch(ctx, batch)
	s.endSync("bulk_create", "Bulk sync failed.", err)
	if err != nil {
		s.logger.Error("product batch failed to sync", err)
		return batch, apperror.NewUnavailableError("Bulk sync failed.", err)
	}

	return batch, nil
}

// DeleteProduct removes the product from the local collection immediately
// and persists the delete. Sales referencing the product stay in the
// ledger with their denormalized name.
func (s *Service) DeleteProduct(ctx context.Context, productID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stateMu.Lock()
	kept := s.products[:0:0]
	for _, p := range s.products {
		if p.ID != productID {
			kept = append(kept, p)
		}
	}
	s.products = kept
	s.stateMu.Unlock()

	s.beginSync()
	err := s.store.Delete(ctx, productID)
	s.endSync("delete", "Deletion failed to sync.", err)
	if err != nil {
		s.logger.Error("product delete failed to sync", err)
		return apperror.NewUnavailableError("Deletion failed to sync.", err)
	}

	return nil
}

// --- Stock and sales ---

// AdjustStock applies a signed delta to a product's on-hand quantity.
// A negative delta is a sale: the engine snapshots the product's current
// prices into a new ledger entry with quantity |delta| and persists stock
// update plus sale insert as one store call. A non-negative delta is a
// restock: the full product record is updated.
//
// Stock is clamped at zero; the sale quantity is recorded as requested,
// not clamped, which is the ledger's view of what was asked for.
// An unknown product id is a silent no-op. In both branches the local
// stock becomes the clamped value whether or not the remote write
// succeeded; a failure surfaces a sync error and Refresh reconciles.
func (s *Service) AdjustStock(ctx context.Context, productID string, delta int) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stateMu.RLock()
	target, idx := findProduct(s.products, productID)
	s.stateMu.RUnlock()
	if idx < 0 {
		return nil
	}

	newStock := target.Stock + delta
	if newStock < 0 {
		newStock = 0
	}
	now := time.Now().UTC()

	s.beginSync()
	var err error
	var sale domain.Sale
	isSale := delta < 0

	if isSale {
		qty := -delta
		sale = domain.Sale{
			ID:          uuid.New().String(),
			ProductID:   target.ID,
			ProductName: target.Name,
			Quantity:    qty,
			UnitPrice:   target.Price,
			BuyingPrice: target.BuyingPrice,
			TotalPrice:  float64(qty) * target.Price,
			Timestamp:   now,
		}
		err = s.store.ProcessSale(ctx, productID, sale, newStock)
	} else {
		updated := target
		updated.Stock = newStock
		updated.LastUpdated = now
		err = s.store.Update(ctx, updated)
	}

	// Optimistic policy: the local stock reflects the adjustment even
	// when the remote write failed, until a refresh reconciles.
	s.stateMu.Lock()
	if _, i := findProduct(s.products, productID); i >= 0 {
		s.products[i].Stock = newStock
		s.products[i].LastUpdated = now
	}
	if isSale && err == nil {
		s.sales = append([]domain.Sale{sale}, s.sales...)
	}
	s.stateMu.Unlock()

	s.endSync("adjust", "Update failed to sync.", err)
	if err != nil {
		s.logger.Error("stock adjustment failed to sync", err)
		return apperror.NewUnavailableError("Update failed to sync.", err)
	}

	s.logger.Debug("stock adjusted", map[string]interface{}{
		"product_id": productID,
		"delta":      delta,
		"new_stock":  newStock,
		"sale":       isSale,
	})
	return nil
}

// UndoSale returns quantityToUndo units of a sale to stock. A remaining
// quantity of zero or less deletes the sale record outright. After the
// store call the engine re-fetches both collections wholesale: the undo
// is the operation that self-heals any earlier divergence, so it never
// trusts a locally merged result.
//
// quantityToUndo above the sale's recorded quantity restocks the full
// requested amount; bounding it is the caller's responsibility.
func (s *Service) UndoSale(ctx context.Context, saleID string, quantityToUndo int) error {
	if quantityToUndo <= 0 {
		return apperror.NewValidationError("quantity to undo must be a positive integer")
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stateMu.RLock()
	var sale *domain.Sale
	for i := range s.sales {
		if s.sales[i].ID == saleID {
			sale = &s.sales[i]
			break
		}
	}
	s.stateMu.RUnlock()
	if sale == nil {
		return nil
	}

	newQty := sale.Quantity - quantityToUndo

	s.beginSync()
	err := s.store.UndoSaleEntry(ctx, saleID, sale.ProductID, newQty, quantityToUndo)
	if err != nil {
		s.endSync("undo", "Undo failed.", err)
		s.logger.Error("sale undo failed to sync", err)
		return apperror.NewUnavailableError("Undo failed.", err)
	}
	s.endSync("undo", "", nil)

	return s.reload(ctx, "undo", "Undo failed.")
}

// --- Snapshots and aggregates ---

// Products returns a copy of the in-memory product collection.
func (s *Service) Products() []domain.Product {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Sales returns a copy of the in-memory sales ledger, most recent first.
func (s *Service) Sales() []domain.Sale {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	out := make([]domain.Sale, len(s.sales))
	copy(out, s.sales)
	return out
}

// Loaded reports whether the initial double fetch has succeeded.
func (s *Service) Loaded() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.loaded
}

// Syncing reports whether a remote write or fetch is in flight.
func (s *Service) Syncing() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.syncing
}

// State returns the current reconciliation state.
func (s *Service) State() SyncState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.syncState
}

// LastError returns the most recent surfaced error, or nil.
func (s *Service) LastError() *OpError {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.lastErr == nil {
		return nil
	}
	e := *s.lastErr
	return &e
}

// Dashboard aggregates the current inventory state.
func (s *Service) Dashboard() domain.DashboardSummary {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	summary := domain.DashboardSummary{
		ProductCount:  len(s.products),
		LowStockItems: []domain.Product{},
	}
	for _, p := range s.products {
		summary.InventoryValue += p.Price * float64(p.Stock)
		summary.TotalItems += p.Stock
		if p.LowStock() {
			summary.LowStockItems = append(summary.LowStockItems, p)
		}
	}
	return summary
}

// SalesSummary aggregates the sales ledger.
func (s *Service) SalesSummary() domain.SalesSummary {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	summary := domain.SalesSummary{
		TotalTransactions: len(s.sales),
	}
	for _, sale := range s.sales {
		summary.TotalRevenue += sale.TotalPrice
		summary.TotalCost += sale.BuyingPrice * float64(sale.Quantity)
		summary.TotalUnitsSold += sale.Quantity
	}
	summary.TotalProfit = summary.TotalRevenue - summary.TotalCost
	return summary
}

// --- Internal helpers ---

// beginSync raises the syncing flag for the duration of a remote call.
func (s *Service) beginSync() {
	s.stateMu.Lock()
	s.syncing = true
	if s.syncState == StateClean {
		s.syncState = StatePendingWrite
	}
	s.stateMu.Unlock()
}

// endSync clears the syncing flag on every path and records the outcome.
// A failure moves the engine to write-failed and overwrites the last
// error slot; write-failed is sticky until a reload reconciles it.
func (s *Service) endSync(op, failMsg string, err error) {
	s.stateMu.Lock()
	s.syncing = false
	if err != nil {
		s.syncState = StateWriteFailed
		s.lastErr = &OpError{Op: op, Message: failMsg}
	} else if s.syncState == StatePendingWrite {
		s.syncState = StateClean
	}
	s.stateMu.Unlock()
}

func findProduct(products []domain.Product, id string) (domain.Product, int) {
	for i, p := range products {
		if p.ID == id {
			return p, i
		}
	}
	return domain.Product{}, -1
}

func materializeDraft(d domain.ProductDraft) domain.Product {
	return domain.Product{
		ID:                uuid.New().String(),
		Name:              d.Name,
		Category:          d.Category,
		Size:              d.Size,
		Color:             d.Color,
		Price:             d.Price,
		BuyingPrice:       d.BuyingPrice,
		Stock:             d.Stock,
		MinStockThreshold: d.MinStockThreshold,
		ImageURL:          d.ImageURL,
		LastUpdated:       time.Now().UTC(),
	}
}

func validateDraft(d domain.ProductDraft) error {
	if d.Name == "" {
		return apperror.NewValidationError("product name is required")
	}
	if d.Price < 0 {
		return apperror.NewValidationError(fmt.Sprintf("selling price must not be negative (got %v)", d.Price))
	}
	if d.BuyingPrice < 0 {
		return apperror.NewValidationError(fmt.Sprintf("buying price must not be negative (got %v)", d.BuyingPrice))
	}
	if d.Stock < 0 {
		return apperror.NewValidationError("stock must not be negative")
	}
	if d.MinStockThreshold < 0 {
		return apperror.NewValidationError("minimum stock threshold must not be negative")
	}
	return nil
}
