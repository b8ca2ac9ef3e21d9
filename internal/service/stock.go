package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/serai-hms/api/internal/database"
	"github.com/serai-hms/api/internal/enum"
	"github.com/serai-hms/api/internal/notify"
	"github.com/shopspring/decimal"
)

// Errors returned by the stock ledger.
var (
	ErrStockNameRequired    = errors.New("name is required")
	ErrStockSkuRequired     = errors.New("sku is required")
	ErrStockUnitRequired    = errors.New("unit is required")
	ErrInvalidStockCategory = errors.New("invalid category")
	ErrInvalidStockAmount   = errors.New("quantity must be > 0")
	ErrNegativeStockAmount  = errors.New("quantity must be >= 0")
	ErrStockItemNotFound    = errors.New("stock item not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
)

// LedgerStore is the minimal surface for a quantity mutation: lock, set,
// record. The four ledger operations plus the order engine's
// consume/reverse paths are the only callers; nothing else writes quantity.
type LedgerStore interface {
	GetStockItemForUpdate(ctx context.Context, arg database.GetStockItemParams) (database.StockItem, error)
	SetStockItemQuantity(ctx context.Context, arg database.SetStockItemQuantityParams) (database.StockItem, error)
	CreateStockTransaction(ctx context.Context, arg database.CreateStockTransactionParams) (database.StockTransaction, error)
}

// StockStore adds item creation and lookups on top of the ledger surface.
type StockStore interface {
	LedgerStore
	FindStockItemBySkuOrName(ctx context.Context, arg database.FindStockItemBySkuOrNameParams) (database.StockItem, error)
	CreateStockItem(ctx context.Context, arg database.CreateStockItemParams) (database.StockItem, error)
}

// NewStockStore creates a StockStore from a DBTX (pool or tx).
type NewStockStore func(db database.DBTX) StockStore

// StockStatusFor derives the display status. Never persisted, so it can
// never go stale against quantity.
func StockStatusFor(quantity, reorderLevel decimal.Decimal) database.StockStatus {
	switch {
	case quantity.IsZero():
		return database.StockStatusOUTOFSTOCK
	case quantity.LessThanOrEqual(reorderLevel):
		return database.StockStatusLOWSTOCK
	default:
		return database.StockStatusINSTOCK
	}
}

// StockAlert is the payload of a low-stock notification.
type StockAlert struct {
	StockItemID uuid.UUID            `json:"stock_item_id"`
	Name        string               `json:"name"`
	Sku         string               `json:"sku"`
	Quantity    string               `json:"quantity"`
	Status      database.StockStatus `json:"status"`
}

// stockDraw is a request to decrement a locked-on-demand stock item.
type stockDraw struct {
	StockItemID uuid.UUID
	BranchID    uuid.UUID
	Quantity    decimal.Decimal
	Type        database.StockTransactionType
	Reference   string
	Reason      string
	PerformedBy uuid.UUID
}

type stockDrawResult struct {
	Item        database.StockItem
	Transaction database.StockTransaction
	// Crossed is true when this draw moved the item out of IN_STOCK
	// (or LOW_STOCK into OUT_OF_STOCK). Alerts are edge-triggered on it.
	Crossed bool
	Alert   StockAlert
}

// drawDownStock is the single decrement path shared by UseStock, Waste and
// the order engine's PREPARING edge. Must run inside a transaction.
// WASTAGE floors at zero; everything else rejects over-draw.
func drawDownStock(ctx context.Context, store LedgerStore, draw stockDraw) (stockDrawResult, error) {
	if !draw.Quantity.IsPositive() {
		return stockDrawResult{}, ErrInvalidStockAmount
	}

	item, err := store.GetStockItemForUpdate(ctx, database.GetStockItemParams{
		ID:       draw.StockItemID,
		BranchID: draw.BranchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stockDrawResult{}, ErrStockItemNotFound
		}
		return stockDrawResult{}, fmt.Errorf("get stock item: %w", err)
	}

	before := numericToDecimal(item.Quantity)
	taken := draw.Quantity
	if taken.GreaterThan(before) {
		if draw.Type != database.StockTransactionTypeWASTAGE {
			return stockDrawResult{}, fmt.Errorf("%w: %s requested %s %s, available %s",
				ErrInsufficientStock, item.Name, draw.Quantity, item.Unit, before)
		}
		// Record only what was actually wasted so replaying the ledger
		// still reproduces the quantity exactly.
		taken = before
	}
	after := before.Sub(taken)

	return recordMovement(ctx, store, item, movement{
		branchID:    draw.BranchID,
		txType:      draw.Type,
		quantity:    taken,
		before:      before,
		after:       after,
		reference:   draw.Reference,
		reason:      draw.Reason,
		performedBy: draw.PerformedBy,
	})
}

// stockRestore is a compensating or receiving increment.
type stockRestore struct {
	StockItemID uuid.UUID
	BranchID    uuid.UUID
	Quantity    decimal.Decimal
	Reference   string
	Reason      string
	PerformedBy uuid.UUID
}

// restoreStock increments a stock item with an IN movement. Must run
// inside a transaction.
func restoreStock(ctx context.Context, store LedgerStore, restore stockRestore) error {
	if !restore.Quantity.IsPositive() {
		return ErrInvalidStockAmount
	}

	item, err := store.GetStockItemForUpdate(ctx, database.GetStockItemParams{
		ID:       restore.StockItemID,
		BranchID: restore.BranchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStockItemNotFound
		}
		return fmt.Errorf("get stock item: %w", err)
	}

	before := numericToDecimal(item.Quantity)
	_, err = recordMovement(ctx, store, item, movement{
		branchID:    restore.BranchID,
		txType:      database.StockTransactionTypeIN,
		quantity:    restore.Quantity,
		before:      before,
		after:       before.Add(restore.Quantity),
		reference:   restore.Reference,
		reason:      restore.Reason,
		performedBy: restore.PerformedBy,
	})
	return err
}

type movement struct {
	branchID    uuid.UUID
	txType      database.StockTransactionType
	quantity    decimal.Decimal // signed only for ADJUSTMENT
	before      decimal.Decimal
	after       decimal.Decimal
	reference   string
	reason      string
	performedBy uuid.UUID
}

// recordMovement writes the new quantity and its ledger row together.
func recordMovement(ctx context.Context, store LedgerStore, item database.StockItem, m movement) (stockDrawResult, error) {
	updated, err := store.SetStockItemQuantity(ctx, database.SetStockItemQuantityParams{
		ID:       item.ID,
		Quantity: decimalToNumeric(m.after),
		UnitCost: item.UnitCost,
	})
	if err != nil {
		return stockDrawResult{}, fmt.Errorf("set stock quantity: %w", err)
	}

	reference := pgtype.Text{}
	if m.reference != "" {
		reference = pgtype.Text{String: m.reference, Valid: true}
	}
	reason := pgtype.Text{}
	if m.reason != "" {
		reason = pgtype.Text{String: m.reason, Valid: true}
	}

	txRow, err := store.CreateStockTransaction(ctx, database.CreateStockTransactionParams{
		StockItemID:    item.ID,
		BranchID:       m.branchID,
		Type:           m.txType,
		Quantity:       decimalToNumeric(m.quantity),
		QuantityBefore: decimalToNumeric(m.before),
		QuantityAfter:  decimalToNumeric(m.after),
		UnitCost:       item.UnitCost,
		Reference:      reference,
		Reason:         reason,
		PerformedBy:    m.performedBy,
	})
	if err != nil {
		return stockDrawResult{}, fmt.Errorf("record stock transaction: %w", err)
	}

	reorder := numericToDecimal(item.ReorderLevel)
	statusBefore := StockStatusFor(m.before, reorder)
	statusAfter := StockStatusFor(m.after, reorder)
	crossed := statusAfter != statusBefore && statusAfter != database.StockStatusINSTOCK

	return stockDrawResult{
		Item:        updated,
		Transaction: txRow,
		Crossed:     crossed,
		Alert: StockAlert{
			StockItemID: item.ID,
			Name:        item.Name,
			Sku:         item.Sku,
			Quantity:    m.after.String(),
			Status:      statusAfter,
		},
	}, nil
}

// --- StockService ---

// AddStockRequest receives goods into the ledger. Matches an existing item
// by SKU or case-insensitive name; creates the item otherwise.
type AddStockRequest struct {
	BranchID     uuid.UUID
	Name         string
	Sku          string
	Category     string
	Quantity     string
	Unit         string
	UnitCost     string
	ReorderLevel string
	ExpiryDate   string // YYYY-MM-DD, optional
	PerformedBy  uuid.UUID
}

type UseStockRequest struct {
	BranchID    uuid.UUID
	StockItemID uuid.UUID
	Quantity    string
	Reference   string // e.g. linked order number
	PerformedBy uuid.UUID
}

type WasteStockRequest struct {
	BranchID    uuid.UUID
	StockItemID uuid.UUID
	Quantity    string
	Reason      string
	PerformedBy uuid.UUID
}

type AdjustStockRequest struct {
	BranchID    uuid.UUID
	StockItemID uuid.UUID
	NewQuantity string
	Reason      string
	PerformedBy uuid.UUID
}

// StockResult is a mutated item with the ledger row that mutated it.
type StockResult struct {
	Item        database.StockItem
	Transaction database.StockTransaction
	Status      database.StockStatus
}

// StockService owns the four ledger mutators. They are the only legal
// writers of stock quantity; replaying an item's transactions in order
// reproduces its current quantity exactly.
type StockService struct {
	pool     TxBeginner
	newStore NewStockStore
	notifier notify.Notifier
}

func NewStockService(pool TxBeginner, newStore NewStockStore, notifier notify.Notifier) *StockService {
	return &StockService{pool: pool, newStore: newStore, notifier: notifier}
}

// AddStock records an IN movement, creating the item on first receipt.
func (s *StockService) AddStock(ctx context.Context, req AddStockRequest) (*StockResult, error) {
	if req.Name == "" {
		return nil, ErrStockNameRequired
	}
	if req.Sku == "" {
		return nil, ErrStockSkuRequired
	}
	if req.Unit == "" {
		return nil, ErrStockUnitRequired
	}
	if !isValidStockCategory(req.Category) {
		return nil, ErrInvalidStockCategory
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil || !quantity.IsPositive() {
		return nil, ErrInvalidStockAmount
	}
	unitCost := decimal.Zero
	if req.UnitCost != "" {
		if unitCost, err = decimal.NewFromString(req.UnitCost); err != nil || unitCost.IsNegative() {
			return nil, fmt.Errorf("invalid unit_cost")
		}
	}
	reorderLevel := decimal.Zero
	if req.ReorderLevel != "" {
		if reorderLevel, err = decimal.NewFromString(req.ReorderLevel); err != nil || reorderLevel.IsNegative() {
			return nil, fmt.Errorf("invalid reorder_level")
		}
	}
	expiryDate := pgtype.Date{}
	if req.ExpiryDate != "" {
		t, err := time.Parse("2006-01-02", req.ExpiryDate)
		if err != nil {
			return nil, fmt.Errorf("invalid expiry_date, use YYYY-MM-DD")
		}
		expiryDate = pgtype.Date{Time: t, Valid: true}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	item, err := store.FindStockItemBySkuOrName(ctx, database.FindStockItemBySkuOrNameParams{
		BranchID: req.BranchID,
		Sku:      req.Sku,
		Name:     req.Name,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		item, err = store.CreateStockItem(ctx, database.CreateStockItemParams{
			BranchID:     req.BranchID,
			Name:         req.Name,
			Sku:          req.Sku,
			Category:     req.Category,
			Quantity:     decimalToNumeric(decimal.Zero),
			Unit:         req.Unit,
			UnitCost:     decimalToNumeric(unitCost),
			ReorderLevel: decimalToNumeric(reorderLevel),
			ExpiryDate:   expiryDate,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("resolve stock item: %w", err)
	}

	before := numericToDecimal(item.Quantity)
	// An omitted unit_cost keeps the stored cost on restock; zero is only
	// the default for a brand-new item.
	if req.UnitCost != "" {
		item.UnitCost = decimalToNumeric(unitCost)
	}
	res, err := recordMovement(ctx, store, item, movement{
		branchID:    req.BranchID,
		txType:      database.StockTransactionTypeIN,
		quantity:    quantity,
		before:      before,
		after:       before.Add(quantity),
		reason:      "stock received",
		performedBy: req.PerformedBy,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.toResult(res), nil
}

// UseStock decrements quantity for consumption. Rejects over-draw without
// mutating; fires a low-stock notification only on the status crossing.
func (s *StockService) UseStock(ctx context.Context, req UseStockRequest) (*StockResult, error) {
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil || !quantity.IsPositive() {
		return nil, ErrInvalidStockAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	res, err := drawDownStock(ctx, s.newStore(tx), stockDraw{
		StockItemID: req.StockItemID,
		BranchID:    req.BranchID,
		Quantity:    quantity,
		Type:        database.StockTransactionTypeOUT,
		Reference:   req.Reference,
		PerformedBy: req.PerformedBy,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if res.Crossed {
		kind := notify.KindStockLow
		if res.Alert.Status == database.StockStatusOUTOFSTOCK {
			kind = notify.KindStockOut
		}
		s.notifier.Notify(req.BranchID, kind, res.Alert)
	}

	return s.toResult(res), nil
}

// Waste records spoilage or breakage, flooring at zero.
func (s *StockService) Waste(ctx context.Context, req WasteStockRequest) (*StockResult, error) {
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil || !quantity.IsPositive() {
		return nil, ErrInvalidStockAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	res, err := drawDownStock(ctx, s.newStore(tx), stockDraw{
		StockItemID: req.StockItemID,
		BranchID:    req.BranchID,
		Quantity:    quantity,
		Type:        database.StockTransactionTypeWASTAGE,
		Reason:      req.Reason,
		PerformedBy: req.PerformedBy,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.toResult(res), nil
}

// Adjust sets quantity to an explicit value for reconciliation, recording
// the signed delta so the ledger replay invariant holds.
func (s *StockService) Adjust(ctx context.Context, req AdjustStockRequest) (*StockResult, error) {
	newQuantity, err := decimal.NewFromString(req.NewQuantity)
	if err != nil || newQuantity.IsNegative() {
		return nil, ErrNegativeStockAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	item, err := store.GetStockItemForUpdate(ctx, database.GetStockItemParams{
		ID:       req.StockItemID,
		BranchID: req.BranchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStockItemNotFound
		}
		return nil, fmt.Errorf("get stock item: %w", err)
	}

	before := numericToDecimal(item.Quantity)
	res, err := recordMovement(ctx, store, item, movement{
		branchID:    req.BranchID,
		txType:      database.StockTransactionTypeADJUSTMENT,
		quantity:    newQuantity.Sub(before),
		before:      before,
		after:       newQuantity,
		reason:      req.Reason,
		performedBy: req.PerformedBy,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.toResult(res), nil
}

func isValidStockCategory(s string) bool {
	switch s {
	case enum.StockCategoryProduce, enum.StockCategoryMeat,
		enum.StockCategorySeafood, enum.StockCategoryDairy,
		enum.StockCategoryDryGoods, enum.StockCategoryBeverage,
		enum.StockCategoryCleaning:
		return true
	}
	return false
}

func (s *StockService) toResult(res stockDrawResult) *StockResult {
	return &StockResult{
		Item:        res.Item,
		Transaction: res.Transaction,
		Status: StockStatusFor(
			numericToDecimal(res.Item.Quantity),
			numericToDecimal(res.Item.ReorderLevel),
		),
	}
}
