package storerepo

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"marimaya/internal/domain"
	"marimaya/internal/errors"
	"marimaya/internal/pkg/cache"
	"marimaya/internal/pkg/logger"
)

// Cache key for the full product collection. The collection is small for
// a single boutique, so it is cached wholesale rather than per row.
const collectionCacheKey = "products:collection"

// StoreRepository is the gateway to the persistent record store. It owns
// the two collections (products and sales) and hides their SQL shape from
// the engine.
type StoreRepository struct {
	DB        *sql.DB
	Cache     cache.Client
	DBTimeout time.Duration
	CacheTTL  time.Duration
	logger    logger.Logger
}

// NewStoreRepository creates the gateway, injecting the infrastructure
// connections.
func NewStoreRepository(db *sql.DB, cacheClient cache.Client, dbTimeout, cacheTTL time.Duration, log logger.Logger) *StoreRepository {
	return &StoreRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		CacheTTL:  cacheTTL,
		logger:    log,
	}
}

const productColumns = `id, name, category, size, color, price, buying_price, stock, min_stock_threshold, image_url, last_updated`

const saleColumns = `id, product_id, product_name, quantity, unit_price, buying_price, total_price, sold_at`

// FetchCollection returns every product ordered by last_updated
// descending, using a cache-aside read on the whole collection.
func (r *StoreRepository) FetchCollection(ctx context.Context) ([]domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	// Cache-aside read. A corrupt or failed cache entry falls through to
	// the database.
	if cached, err := r.Cache.Get(ctxTimeout, collectionCacheKey); err == nil {
		var products []domain.Product
		if json.Unmarshal([]byte(cached), &products) == nil {
			return products, nil
		}
	} else if err != cache.ErrCacheMiss {
		r.logger.Warn("cache read for product collection failed, falling back to store", map[string]interface{}{"error": err.Error()})
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY last_updated DESC`

	rows, err := r.DB.QueryContext(ctxTimeout, query)
	if err != nil {
		return nil, errors.NewDBError("failed to fetch product collection", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		var imageURL sql.NullString
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Category, &p.Size, &p.Color,
			&p.Price, &p.BuyingPrice, &p.Stock, &p.MinStockThreshold,
			&imageURL, &p.LastUpdated,
		); err != nil {
			return nil, errors.NewDBError("failed to scan product row", err)
		}
		p.ImageURL = imageURL.String
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("failed to iterate product rows", err)
	}

	r.cacheCollection(ctxTimeout, products)
	return products, nil
}

// FetchLedger returns every sale ordered by sale timestamp descending.
func (r *StoreRepository) FetchLedger(ctx context.Context) ([]domain.Sale, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
		SELECT ` + saleColumns + `
		FROM sales
		ORDER BY sold_at DESC`

	rows, err := r.DB.QueryContext(ctxTimeout, query)
	if err != nil {
		return nil, errors.NewDBError("failed to fetch sales ledger", err)
	}
	defer rows.Close()

	sales := []domain.Sale{}
	for rows.Next() {
		var s domain.Sale
		if err := rows.Scan(
			&s.ID, &s.ProductID, &s.ProductName, &s.Quantity,
			&s.UnitPrice, &s.BuyingPrice, &s.TotalPrice, &s.Timestamp,
		); err != nil {
			return nil, errors.NewDBError("failed to scan sale row", err)
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("failed to iterate sale rows", err)
	}

	return sales, nil
}

const insertProductSQL = `
	INSERT INTO products (` + productColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// Insert persists a single new product.
func (r *StoreRepository) Insert(ctx context.Context, p domain.Product) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	_, err := r.DB.ExecContext(ctxTimeout, insertProductSQL,
		p.ID, p.Name, p.Category, p.Size, p.Color,
		p.Price, p.BuyingPrice, p.Stock, p.MinStockThreshold,
		nullableString(p.ImageURL), p.LastUpdated,
	)
	if err != nil {
		return errors.NewDBError("failed to insert product", err)
	}

	r.invalidateCollection(ctxTimeout)
	return nil
}

// InsertBatch persists a batch of new products in a single transaction,
// so the batch is accepted or rejected as a whole.
func (r *StoreRepository) InsertBatch(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return errors.NewDBError("failed to start batch insert tx", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, p := range products {
		if _, err = tx.ExecContext(ctxTimeout, insertProductSQL,
			p.ID, p.Name, p.Category, p.Size, p.Color,
			p.Price, p.BuyingPrice, p.Stock, p.MinStockThreshold,
			nullableString(p.ImageURL), p.LastUpdated,
		); err != nil {
			return errors.NewDBError("failed to insert product batch", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.NewDBError("failed to commit product batch", err)
	}

	r.invalidateCollection(ctxTimeout)
	return nil
}

// Update overwrites the full product record.
func (r *StoreRepository) Update(ctx context.Context, p domain.Product) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
		UPDATE products
		SET name = $2, category = $3, size = $4, color = $5, price = $6,
		    buying_price = $7, stock = $8, min_stock_threshold = $9,
		    image_url = $10, last_updated = $11
		WHERE id = $1`

	res, err := r.DB.ExecContext(ctxTimeout, query,
		p.ID, p.Name, p.Category, p.Size, p.Color,
		p.Price, p.BuyingPrice, p.Stock, p.MinStockThreshold,
		nullableString(p.ImageURL), p.LastUpdated,
	)
	if err != nil {
		return errors.NewDBError("failed to update product", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("product %s does not exist in the store", p.ID))
	}

	r.invalidateCollection(ctxTimeout)
	return nil
}

// Delete removes a product record. Sales referencing it are left in
// place; the ledger keeps its denormalized product name.
func (r *StoreRepository) Delete(ctx context.Context, productID string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	_, err := r.DB.ExecContext(ctxTimeout, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return errors.NewDBError("failed to delete product", err)
	}

	r.invalidateCollection(ctxTimeout)
	return nil
}

// ProcessSale decrements the product stock and logs the sale record in a
// single transaction, so stock can never end up decremented without a
// matching ledger entry.
func (r *StoreRepository) ProcessSale(ctx context.Context, productID string, sale domain.Sale, newStock int) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return errors.NewDBError("failed to start sale tx", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctxTimeout,
		`UPDATE products SET stock = $2, last_updated = $3 WHERE id = $1`,
		productID, newStock, sale.Timestamp,
	)
	if err != nil {
		return errors.NewDBError("failed to update stock for sale", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		err = errors.NewNotFoundError(fmt.Sprintf("product %s does not exist in the store", productID))
		return err
	}

	if _, err = tx.ExecContext(ctxTimeout,
		`INSERT INTO sales (`+saleColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sale.ID, sale.ProductID, sale.ProductName, sale.Quantity,
		sale.UnitPrice, sale.BuyingPrice, sale.TotalPrice, sale.Timestamp,
	); err != nil {
		return errors.NewDBError("failed to insert sale record", err)
	}

	if err = tx.Commit(); err != nil {
		return txCommitError("failed to commit sale", err)
	}

	r.invalidateCollection(ctxTimeout)
	return nil
}

// UndoSaleEntry returns addedStock units to the product and shrinks or
// deletes the sale record, in a single transaction. The stock increment
// happens in SQL (stock = stock + n) rather than through a read-modify-
// write, so concurrent writers cannot lose the update.
func (r *StoreRepository) UndoSaleEntry(ctx context.Context, saleID, productID string, newQty, addedStock int) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return errors.NewDBError("failed to start undo tx", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// The referenced product may have been deleted since the sale was
	// made; the undo still applies to the ledger in that case.
	if _, err = tx.ExecContext(ctxTimeout,
		`UPDATE products SET stock = stock + $2, last_updated = $3 WHERE id = $1`,
		productID, addedStock, time.Now().UTC(),
	); err != nil {
		return errors.NewDBError("failed to restock for undo", err)
	}

	if newQty <= 0 {
		_, err = tx.ExecContext(ctxTimeout, `DELETE FROM sales WHERE id = $1`, saleID)
	} else {
		_, err = tx.ExecContext(ctxTimeout, `UPDATE sales SET quantity = $2 WHERE id = $1`, saleID, newQty)
	}
	if err != nil {
		return errors.NewDBError("failed to amend sale record for undo", err)
	}

	if err = tx.Commit(); err != nil {
		return txCommitError("failed to commit undo", err)
	}

	r.invalidateCollection(ctxTimeout)
	return nil
}

// cacheCollection stores the serialized collection; failures only warn,
// the cache is an optimization.
func (r *StoreRepository) cacheCollection(ctx context.Context, products []domain.Product) {
	data, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, collectionCacheKey, string(data), r.CacheTTL); err != nil {
		r.logger.Warn("failed to cache product collection", map[string]interface{}{"error": err.Error()})
	}
}

// invalidateCollection drops the cached collection after any write.
func (r *StoreRepository) invalidateCollection(ctx context.Context) {
	if err := r.Cache.Delete(ctx, collectionCacheKey); err != nil {
		r.logger.Warn("failed to invalidate product collection cache", map[string]interface{}{"error": err.Error()})
	}
}

// Postgres class 40 codes: the transaction was rolled back because of a
// concurrent writer and can be retried.
const (
	pqSerializationFailure pq.ErrorCode = "40001"
	pqDeadlockDetected     pq.ErrorCode = "40P01"
)

// txCommitError maps a rejected-concurrent-write commit failure to a
// conflict; everything else stays an internal store error.
func txCommitError(msg string, err error) error {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		if pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected {
			return errors.NewConflictError(msg + ": concurrent write rejected by the store")
		}
	}
	return errors.NewDBError(msg, err)
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
