package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const stockItemColumns = `id, branch_id, name, sku, category, quantity, unit, unit_cost,
	reorder_level, expiry_date, created_at, updated_at`

func scanStockItem(row pgx.Row) (StockItem, error) {
	var s StockItem
	err := row.Scan(&s.ID, &s.BranchID, &s.Name, &s.Sku, &s.Category, &s.Quantity, &s.Unit, &s.UnitCost,
		&s.ReorderLevel, &s.ExpiryDate, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const stockTransactionColumns = `id, stock_item_id, branch_id, type, quantity, quantity_before,
	quantity_after, unit_cost, reference, reason, performed_by, created_at`

func scanStockTransaction(row pgx.Row) (StockTransaction, error) {
	var t StockTransaction
	err := row.Scan(&t.ID, &t.StockItemID, &t.BranchID, &t.Type, &t.Quantity, &t.QuantityBefore,
		&t.QuantityAfter, &t.UnitCost, &t.Reference, &t.Reason, &t.PerformedBy, &t.CreatedAt)
	return t, err
}

type CreateStockItemParams struct {
	BranchID     uuid.UUID
	Name         string
	Sku          string
	Category     string
	Quantity     pgtype.Numeric
	Unit         string
	UnitCost     pgtype.Numeric
	ReorderLevel pgtype.Numeric
	ExpiryDate   pgtype.Date
}

func (q *Queries) CreateStockItem(ctx context.Context, arg CreateStockItemParams) (StockItem, error) {
	const sql = `
		INSERT INTO stock_items (branch_id, name, sku, category, quantity, unit, unit_cost, reorder_level, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + stockItemColumns
	return scanStockItem(q.db.QueryRow(ctx, sql,
		arg.BranchID, arg.Name, arg.Sku, arg.Category, arg.Quantity, arg.Unit, arg.UnitCost, arg.ReorderLevel, arg.ExpiryDate))
}

type GetStockItemParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) GetStockItem(ctx context.Context, arg GetStockItemParams) (StockItem, error) {
	const sql = `SELECT ` + stockItemColumns + ` FROM stock_items WHERE id = $1 AND branch_id = $2`
	return scanStockItem(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID))
}

// GetStockItemForUpdate row-locks the item so quantity mutations are atomic
// read-modify-writes. Must run inside a transaction.
func (q *Queries) GetStockItemForUpdate(ctx context.Context, arg GetStockItemParams) (StockItem, error) {
	const sql = `SELECT ` + stockItemColumns + ` FROM stock_items WHERE id = $1 AND branch_id = $2 FOR UPDATE`
	return scanStockItem(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID))
}

type FindStockItemBySkuOrNameParams struct {
	BranchID uuid.UUID
	Sku      string
	Name     string
}

// FindStockItemBySkuOrName matches an existing item by SKU or
// case-insensitive name within the branch, locking the row.
func (q *Queries) FindStockItemBySkuOrName(ctx context.Context, arg FindStockItemBySkuOrNameParams) (StockItem, error) {
	const sql = `
		SELECT ` + stockItemColumns + ` FROM stock_items
		WHERE branch_id = $1 AND (sku = $2 OR lower(name) = lower($3))
		LIMIT 1 FOR UPDATE`
	return scanStockItem(q.db.QueryRow(ctx, sql, arg.BranchID, arg.Sku, arg.Name))
}

type SetStockItemQuantityParams struct {
	ID       uuid.UUID
	Quantity pgtype.Numeric
	UnitCost pgtype.Numeric
}

// SetStockItemQuantity is only called by the ledger helpers in the service
// layer, paired with a transaction row in the same DB transaction.
func (q *Queries) SetStockItemQuantity(ctx context.Context, arg SetStockItemQuantityParams) (StockItem, error) {
	const sql = `
		UPDATE stock_items SET quantity = $2, unit_cost = $3, updated_at = now()
		WHERE id = $1
		RETURNING ` + stockItemColumns
	return scanStockItem(q.db.QueryRow(ctx, sql, arg.ID, arg.Quantity, arg.UnitCost))
}

type CreateStockTransactionParams struct {
	StockItemID    uuid.UUID
	BranchID       uuid.UUID
	Type           StockTransactionType
	Quantity       pgtype.Numeric
	QuantityBefore pgtype.Numeric
	QuantityAfter  pgtype.Numeric
	UnitCost       pgtype.Numeric
	Reference      pgtype.Text
	Reason         pgtype.Text
	PerformedBy    uuid.UUID
}

func (q *Queries) CreateStockTransaction(ctx context.Context, arg CreateStockTransactionParams) (StockTransaction, error) {
	const sql = `
		INSERT INTO stock_transactions (stock_item_id, branch_id, type, quantity, quantity_before,
			quantity_after, unit_cost, reference, reason, performed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + stockTransactionColumns
	return scanStockTransaction(q.db.QueryRow(ctx, sql,
		arg.StockItemID, arg.BranchID, arg.Type, arg.Quantity, arg.QuantityBefore,
		arg.QuantityAfter, arg.UnitCost, arg.Reference, arg.Reason, arg.PerformedBy))
}

type ListStockItemsParams struct {
	BranchID uuid.UUID
	Category string // empty = all
}

func (q *Queries) ListStockItems(ctx context.Context, arg ListStockItemsParams) ([]StockItem, error) {
	sql := `SELECT ` + stockItemColumns + ` FROM stock_items WHERE branch_id = $1`
	args := []any{arg.BranchID}
	if arg.Category != "" {
		args = append(args, arg.Category)
		sql += ` AND category = $2`
	}
	sql += ` ORDER BY category, name`
	return q.queryStockItems(ctx, sql, args...)
}

// ListLowStockItems returns items at or below their reorder level.
func (q *Queries) ListLowStockItems(ctx context.Context, branchID uuid.UUID) ([]StockItem, error) {
	const sql = `
		SELECT ` + stockItemColumns + ` FROM stock_items
		WHERE branch_id = $1 AND quantity <= reorder_level
		ORDER BY quantity / NULLIF(reorder_level, 0) ASC NULLS FIRST, name`
	return q.queryStockItems(ctx, sql, branchID)
}

type ListExpiringStockItemsParams struct {
	BranchID uuid.UUID
	Before   time.Time
}

func (q *Queries) ListExpiringStockItems(ctx context.Context, arg ListExpiringStockItemsParams) ([]StockItem, error) {
	const sql = `
		SELECT ` + stockItemColumns + ` FROM stock_items
		WHERE branch_id = $1 AND expiry_date IS NOT NULL AND expiry_date <= $2
		ORDER BY expiry_date ASC`
	return q.queryStockItems(ctx, sql, arg.BranchID, arg.Before)
}

func (q *Queries) queryStockItems(ctx context.Context, sql string, args ...any) ([]StockItem, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []StockItem
	for rows.Next() {
		s, err := scanStockItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (q *Queries) ListStockTransactionsByItem(ctx context.Context, stockItemID uuid.UUID) ([]StockTransaction, error) {
	const sql = `
		SELECT ` + stockTransactionColumns + ` FROM stock_transactions
		WHERE stock_item_id = $1 ORDER BY created_at ASC`
	return q.queryStockTransactions(ctx, sql, stockItemID)
}

type ListStockTransactionsByReferenceParams struct {
	BranchID  uuid.UUID
	Reference string
	Type      StockTransactionType
}

// ListStockTransactionsByReference finds ledger rows linked to an order
// number, used when cancellation has to compensate prior OUT movements.
func (q *Queries) ListStockTransactionsByReference(ctx context.Context, arg ListStockTransactionsByReferenceParams) ([]StockTransaction, error) {
	const sql = `
		SELECT ` + stockTransactionColumns + ` FROM stock_transactions
		WHERE branch_id = $1 AND reference = $2 AND type = $3
		ORDER BY created_at ASC`
	return q.queryStockTransactions(ctx, sql, arg.BranchID, arg.Reference, arg.Type)
}

func (q *Queries) queryStockTransactions(ctx context.Context, sql string, args ...any) ([]StockTransaction, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []StockTransaction
	for rows.Next() {
		t, err := scanStockTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
