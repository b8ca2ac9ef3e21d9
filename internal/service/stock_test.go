package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/serai-hms/api/internal/database"
	"github.com/shopspring/decimal"
)

// mockStockStore implements StockStore with configurable behavior.
type mockStockStore struct {
	getStockForUpdateFn func(ctx context.Context, arg database.GetStockItemParams) (database.StockItem, error)
	setStockQuantityFn  func(ctx context.Context, arg database.SetStockItemQuantityParams) (database.StockItem, error)
	createStockTxFn     func(ctx context.Context, arg database.CreateStockTransactionParams) (database.StockTransaction, error)
	findBySkuOrNameFn   func(ctx context.Context, arg database.FindStockItemBySkuOrNameParams) (database.StockItem, error)
	createStockItemFn   func(ctx context.Context, arg database.CreateStockItemParams) (database.StockItem, error)
}

func (m *mockStockStore) GetStockItemForUpdate(ctx context.Context, arg database.GetStockItemParams) (database.StockItem, error) {
	return m.getStockForUpdateFn(ctx, arg)
}
func (m *mockStockStore) SetStockItemQuantity(ctx context.Context, arg database.SetStockItemQuantityParams) (database.StockItem, error) {
	return m.setStockQuantityFn(ctx, arg)
}
func (m *mockStockStore) CreateStockTransaction(ctx context.Context, arg database.CreateStockTransactionParams) (database.StockTransaction, error) {
	return m.createStockTxFn(ctx, arg)
}
func (m *mockStockStore) FindStockItemBySkuOrName(ctx context.Context, arg database.FindStockItemBySkuOrNameParams) (database.StockItem, error) {
	return m.findBySkuOrNameFn(ctx, arg)
}
func (m *mockStockStore) CreateStockItem(ctx context.Context, arg database.CreateStockItemParams) (database.StockItem, error) {
	return m.createStockItemFn(ctx, arg)
}

// ledgerRecorder tracks every quantity write and ledger row.
type ledgerRecorder struct {
	quantities []string
	rows       []database.CreateStockTransactionParams
}

// newTestStockService builds a StockService over a single in-memory item.
// The item's quantity follows SetStockItemQuantity calls so sequential
// operations see each other's effects.
func newTestStockService(item *database.StockItem, rec *ledgerRecorder) (*StockService, *recordingNotifier) {
	store := &mockStockStore{
		getStockForUpdateFn: func(ctx context.Context, arg database.GetStockItemParams) (database.StockItem, error) {
			if arg.ID != item.ID {
				return database.StockItem{}, pgx.ErrNoRows
			}
			return *item, nil
		},
		setStockQuantityFn: func(ctx context.Context, arg database.SetStockItemQuantityParams) (database.StockItem, error) {
			item.Quantity = arg.Quantity
			item.UnitCost = arg.UnitCost
			rec.quantities = append(rec.quantities, numericToDecimal(arg.Quantity).String())
			return *item, nil
		},
		createStockTxFn: func(ctx context.Context, arg database.CreateStockTransactionParams) (database.StockTransaction, error) {
			rec.rows = append(rec.rows, arg)
			return database.StockTransaction{
				ID:             uuid.New(),
				StockItemID:    arg.StockItemID,
				BranchID:       arg.BranchID,
				Type:           arg.Type,
				Quantity:       arg.Quantity,
				QuantityBefore: arg.QuantityBefore,
				QuantityAfter:  arg.QuantityAfter,
				Reference:      arg.Reference,
				Reason:         arg.Reason,
			}, nil
		},
		findBySkuOrNameFn: func(ctx context.Context, arg database.FindStockItemBySkuOrNameParams) (database.StockItem, error) {
			if arg.Sku == item.Sku || strings.EqualFold(arg.Name, item.Name) {
				return *item, nil
			}
			return database.StockItem{}, pgx.ErrNoRows
		},
		createStockItemFn: func(ctx context.Context, arg database.CreateStockItemParams) (database.StockItem, error) {
			return database.StockItem{
				ID:           uuid.New(),
				BranchID:     arg.BranchID,
				Name:         arg.Name,
				Sku:          arg.Sku,
				Category:     arg.Category,
				Quantity:     arg.Quantity,
				Unit:         arg.Unit,
				UnitCost:     arg.UnitCost,
				ReorderLevel: arg.ReorderLevel,
				ExpiryDate:   arg.ExpiryDate,
			}, nil
		},
	}

	notifier := &recordingNotifier{}
	pool := &mockTxBeginner{tx: &mockTx{}}
	newStore := func(db database.DBTX) StockStore { return store }
	return NewStockService(pool, newStore, notifier), notifier
}

func testStockItem(branchID uuid.UUID, quantity, reorderLevel string) *database.StockItem {
	return &database.StockItem{
		ID:           uuid.New(),
		BranchID:     branchID,
		Name:         "Jasmine Rice",
		Sku:          "DRY-RICE-01",
		Category:     "DRY_GOODS",
		Quantity:     makeNumeric(quantity),
		Unit:         "kg",
		UnitCost:     makeNumeric("12000"),
		ReorderLevel: makeNumeric(reorderLevel),
	}
}

// --- Derived status ---

func TestStockStatusFor(t *testing.T) {
	tests := []struct {
		quantity string
		reorder  string
		want     database.StockStatus
	}{
		{"10", "5", database.StockStatusINSTOCK},
		{"5", "5", database.StockStatusLOWSTOCK},
		{"4.9", "5", database.StockStatusLOWSTOCK},
		{"0", "5", database.StockStatusOUTOFSTOCK},
		{"0", "0", database.StockStatusOUTOFSTOCK},
		{"1", "0", database.StockStatusINSTOCK},
	}
	for _, tt := range tests {
		q, _ := decimal.NewFromString(tt.quantity)
		r, _ := decimal.NewFromString(tt.reorder)
		if got := StockStatusFor(q, r); got != tt.want {
			t.Errorf("StockStatusFor(%s, %s) = %s, want %s", tt.quantity, tt.reorder, got, tt.want)
		}
	}
}

// --- UseStock ---

func TestUseStockAlertFiresOnlyOnCrossing(t *testing.T) {
	branchID := uuid.New()
	item := testStockItem(branchID, "10", "5")
	rec := &ledgerRecorder{}
	svc, notifier := newTestStockService(item, rec)

	// 10 -> 4: crosses into LOW_STOCK, alert fires.
	if _, err := svc.UseStock(context.Background(), UseStockRequest{
		BranchID:    branchID,
		StockItemID: item.ID,
		Quantity:    "6",
		PerformedBy: uuid.New(),
	}); err != nil {
		t.Fatalf("UseStock: %v", err)
	}
	if kinds := notifier.kinds(); len(kinds) != 1 || kinds[0] != "stock.low" {
		t.Fatalf("notifications = %v, want [stock.low]", kinds)
	}

	// 4 -> 3: still LOW_STOCK, no new crossing, no new alert.
	if _, err := svc.UseStock(context.Background(), UseStockRequest{
		BranchID:    branchID,
		StockItemID: item.ID,
		Quantity:    "1",
		PerformedBy: uuid.New(),
	}); err != nil {
		t.Fatalf("UseStock: %v", err)
	}
	if kinds := notifier.kinds(); len(kinds) != 1 {
		t.Errorf("repeated low state must not re-alert, got %v", kinds)
	}

	// 3 -> 0: crossing into OUT_OF_STOCK fires again.
	if _, err := svc.UseStock(context.Background(), UseStockRequest{
		BranchID:    branchID,
		StockItemID: item.ID,
		Quantity:    "3",
		PerformedBy: uuid.New(),
	}); err != nil {
		t.Fatalf("UseStock: %v", err)
	}
	kinds := notifier.kinds()
	if len(kinds) != 2 || kinds[1] != "stock.out" {
		t.Errorf("notifications = %v, want [stock.low stock.out]", kinds)
	}
}

func TestUseStockRejectsOverdraw(t *testing.T) {
	branchID := uuid.New()
	item := testStockItem(branchID, "2", "5")
	rec := &ledgerRecorder{}
	svc, notifier := newTestStockService(item, rec)

	_, err := svc.UseStock(context.Background(), UseStockRequest{
		BranchID:    branchID,
		StockItemID: item.ID,
		Quantity:    "3",
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if !strings.Contains(err.Error(), "requested 3") || !strings.Contains(err.Error(), "available 2") {
		t.Errorf("error should state shortfall: %v", err)
	}
	if len(rec.quantities) != 0 || len(rec.rows) != 0 {
		t.Error("rejected draw must not mutate anything")
	}
	if len(notifier.kinds()) != 0 {
		t.Error("rejected draw must not notify")
	}
}

func TestUseStockRejectsNonPositiveQuantity(t *testing.T) {
	branchID := uuid.New()
	item := testStockItem(branchID, "10", "5")
	svc, _ := newTestStockService(item, &ledgerRecorder{})

	for _, q := range []string{"0", "-1", "abc", ""} {
		if _, err := svc.UseStock(context.Background(), UseStockRequest{
			BranchID:    branchID,
			StockItemID: item.ID,
			Quantity:    q,
		}); !errors.Is(err, ErrInvalidStockAmount) {
			t.Errorf("quantity %q: err = %v, want ErrInvalidStockAmount", q, err)
		}
	}
}

func TestUseStockUnknownItem(t *testing.T) {
	branchID := uuid.New()
	item := testStockItem(branchID, "10", "5")
	svc, _ := newTestStockService(item, &ledgerRecorder{})

	_, err := svc.UseStock(context.Background(), UseStockRequest{
		BranchID:    branchID,
		StockItemID: uuid.New(),
		Quantity:    "1",
	})
	if !errors.Is(err, ErrStockItemNotFound) {
		t.Fatalf("err = %v, want ErrStockItemNotFound", err)
	}
}

// --- Waste ---

func TestWasteFloorsAtZeroAndRecordsActual(t *testing.T) {
	branchID := uuid.New()
	item := testStockItem(branchID, "4", "5")
	rec := &ledgerRecorder{}
	svc, _ := newTestStockService(item, rec)

	result, err := svc.Waste(context.Background(), WasteStockRequest{
		BranchID:    branchID,
		StockItemID: item.ID,
		Quantity:    "10",
		Reason:      "flood damage",
		PerformedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Waste: %v", err)
	}

	if len(rec.quantities) != 1 || rec.quantities[0] != "0" {
		t.Errorf("quantity writes = %v, want [0]", rec.quantities)
	}
	// Only the 4 actually on hand were wasted; the ledger must replay.
	row := rec.rows[0]
	if row.Type != database.StockTransactionTypeWASTAGE {
		t.Errorf("type = %s, want WASTAGE", row.Type)
	}
	if !numericEquals(row.Quantity, "4") {
		t.Errorf("recorded quantity = %v, want 4", numericToDecimal(row.Quantity))
	}
	if !numericEquals(row.QuantityBefore, "4") || !numericEquals(row.QuantityAfter, "0") {
		t.Errorf("before/after = %v/%v, want 4/0",
			numericToDecimal(row.QuantityBefore), numericToDecimal(row.QuantityAfter))
	}
	if result.Status != database.StockStatusOUTOFSTOCK {
		t.Errorf("status = %s, want OUT_OF_STOCK", result.Status)
	}
}

// --- Adjust ---

func TestAdjustRecordsSignedDelta(t *testing.T) {
	branchID := uuid.New()
	item := testStockItem(branchID, "10", "5")
	rec := &ledgerRecorder{}
	svc, _ := newTestStockService(item, rec)

	if _, err := svc.Adjust(context.Background(), AdjustStockRequest{
		BranchID:    branchID,
		StockItemID: item.ID,
		NewQuantity: "7.5",
		Reason:      "monthly stocktake",
		PerformedBy: uuid.New(),
	}); err != nil {
		t.Fatalf("Adjust: %v", err)
	}

	row := rec.rows[0]
	if row.Type != database.StockTransactionTypeADJUSTMENT {
		t.Errorf("type = %s, want ADJUSTMENT", row.Type)
	}
	if !numericEquals(row.Quantity, "-2.5") {
		t.Errorf("delta = %v, want -2.5", numericToDecimal(row.Quantity))
	}
	if rec.quantities[0] != "7.5" {
		t.Errorf("quantity = %s, want 7.5", rec.quantities[0])
	}
}

func TestAdjustRejectsNegativeTarget(t *testing.T) {
	branchID := uuid.New()
	item := testStockItem(branchID, "10", "5")
	svc, _ := newTestStockService(item, &ledgerRecorder{})

	if _, err := svc.Adjust(context.Background(), AdjustStockRequest{
		BranchID:    branchID,
		StockItemID: item.ID,
		NewQuantity: "-1",
	}); !errors.Is(err, ErrNegativeStockAmount) {
		t.Fatalf("err = %v, want ErrNegativeStockAmount", err)
	}
}

// --- AddStock ---

func TestAddStockIncrementsExistingItemBySku(t *testing.T) {
	branchID := uuid.New()
	item := testStockItem(branchID, "10", "5")
	rec := &ledgerRecorder{}
	svc, _ := newTestStockService(item, rec)

	result, err := svc.AddStock(context.Background(), AddStockRequest{
		BranchID:    branchID,
		Name:        "Jasmine Rice",
		Sku:         "DRY-RICE-01",
		Category:    "DRY_GOODS",
		Quantity:    "25",
		Unit:        "kg",
		UnitCost:    "11500",
		PerformedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("AddStock: %v", err)
	}

	if len(rec.quantities) != 1 || rec.quantities[0] != "35" {
		t.Errorf("quantity writes = %v, want [35]", rec.quantities)
	}
	row := rec.rows[0]
	if row.Type != database.StockTransactionTypeIN {
		t.Errorf("type = %s, want IN", row.Type)
	}
	if !numericEquals(row.QuantityBefore, "10") || !numericEquals(row.QuantityAfter, "35") {
		t.Errorf("before/after = %v/%v, want 10/35",
			numericToDecimal(row.QuantityBefore), numericToDecimal(row.QuantityAfter))
	}
	if !numericEquals(row.UnitCost, "11500") {
		t.Errorf("unit cost = %v, want 11500", numericToDecimal(row.UnitCost))
	}
	if result.Status != database.StockStatusINSTOCK {
		t.Errorf("status = %s, want IN_STOCK", result.Status)
	}
}

func TestAddStockKeepsStoredCostWhenOmitted(t *testing.T) {
	branchID := uuid.New()
	item := testStockItem(branchID, "10", "5")
	rec := &ledgerRecorder{}
	svc, _ := newTestStockService(item, rec)

	// A delivery docket without a price must not wipe the item's cost.
	result, err := svc.AddStock(context.Background(), AddStockRequest{
		BranchID:    branchID,
		Name:        "Jasmine Rice",
		Sku:         "DRY-RICE-01",
		Category:    "DRY_GOODS",
		Quantity:    "25",
		Unit:        "kg",
		PerformedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("AddStock: %v", err)
	}

	if !numericEquals(result.Item.UnitCost, "12000") {
		t.Errorf("stored unit cost = %v, want 12000 unchanged", numericToDecimal(result.Item.UnitCost))
	}
	if !numericEquals(rec.rows[0].UnitCost, "12000") {
		t.Errorf("ledger unit cost = %v, want 12000", numericToDecimal(rec.rows[0].UnitCost))
	}
}

func TestAddStockCreatesItemOnFirstReceipt(t *testing.T) {
	branchID := uuid.New()
	item := testStockItem(branchID, "10", "5")
	rec := &ledgerRecorder{}
	svc, _ := newTestStockService(item, rec)

	_, err := svc.AddStock(context.Background(), AddStockRequest{
		BranchID:     branchID,
		Name:         "Kaffir Lime Leaves",
		Sku:          "PRO-KLL-01",
		Category:     "PRODUCE",
		Quantity:     "2",
		Unit:         "kg",
		ReorderLevel: "0.5",
		PerformedBy:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("AddStock: %v", err)
	}

	// New item starts at zero; the IN movement carries it to 2.
	row := rec.rows[0]
	if !numericEquals(row.QuantityBefore, "0") || !numericEquals(row.QuantityAfter, "2") {
		t.Errorf("before/after = %v/%v, want 0/2",
			numericToDecimal(row.QuantityBefore), numericToDecimal(row.QuantityAfter))
	}
}

func TestAddStockValidation(t *testing.T) {
	branchID := uuid.New()
	item := testStockItem(branchID, "10", "5")
	svc, _ := newTestStockService(item, &ledgerRecorder{})

	tests := []struct {
		name    string
		mutate  func(*AddStockRequest)
		wantErr error
	}{
		{"missing name", func(r *AddStockRequest) { r.Name = "" }, ErrStockNameRequired},
		{"missing sku", func(r *AddStockRequest) { r.Sku = "" }, ErrStockSkuRequired},
		{"missing unit", func(r *AddStockRequest) { r.Unit = "" }, ErrStockUnitRequired},
		{"missing category", func(r *AddStockRequest) { r.Category = "" }, ErrInvalidStockCategory},
		{"unknown category", func(r *AddStockRequest) { r.Category = "ANTIQUES" }, ErrInvalidStockCategory},
		{"zero quantity", func(r *AddStockRequest) { r.Quantity = "0" }, ErrInvalidStockAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := AddStockRequest{
				BranchID: branchID,
				Name:     "Jasmine Rice",
				Sku:      "DRY-RICE-01",
				Category: "DRY_GOODS",
				Quantity: "5",
				Unit:     "kg",
			}
			tt.mutate(&req)
			if _, err := svc.AddStock(context.Background(), req); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// --- Ledger replay invariant ---

func TestLedgerReplayReproducesQuantity(t *testing.T) {
	branchID := uuid.New()
	item := testStockItem(branchID, "10", "2")
	rec := &ledgerRecorder{}
	svc, _ := newTestStockService(item, rec)

	ctx := context.Background()
	steps := []func() error{
		func() error {
			_, err := svc.AddStock(ctx, AddStockRequest{BranchID: branchID, Name: "Jasmine Rice", Sku: "DRY-RICE-01", Category: "DRY_GOODS", Quantity: "5", Unit: "kg", UnitCost: "12000"})
			return err
		},
		func() error {
			_, err := svc.UseStock(ctx, UseStockRequest{BranchID: branchID, StockItemID: item.ID, Quantity: "8"})
			return err
		},
		func() error {
			_, err := svc.Waste(ctx, WasteStockRequest{BranchID: branchID, StockItemID: item.ID, Quantity: "1", Reason: "spoiled"})
			return err
		},
		func() error {
			_, err := svc.Adjust(ctx, AdjustStockRequest{BranchID: branchID, StockItemID: item.ID, NewQuantity: "5", Reason: "stocktake"})
			return err
		},
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	// Replay every movement from zero against the signed deltas.
	replayed := decimal.Zero
	for _, row := range rec.rows {
		q := numericToDecimal(row.Quantity)
		switch row.Type {
		case database.StockTransactionTypeIN, database.StockTransactionTypeADJUSTMENT:
			replayed = replayed.Add(q)
		case database.StockTransactionTypeOUT, database.StockTransactionTypeWASTAGE:
			replayed = replayed.Sub(q)
		}
	}
	// Opening balance was 10 with no ledger row in this fixture.
	replayed = replayed.Add(decimal.NewFromInt(10))

	final := numericToDecimal(item.Quantity)
	if !replayed.Equal(final) {
		t.Errorf("replayed = %s, stored = %s", replayed, final)
	}

	// Every row chains: quantity_after of row n == quantity_before of n+1.
	for i := 1; i < len(rec.rows); i++ {
		prev := numericToDecimal(rec.rows[i-1].QuantityAfter)
		next := numericToDecimal(rec.rows[i].QuantityBefore)
		if !prev.Equal(next) {
			t.Errorf("row %d: before %s does not chain from previous after %s", i, next, prev)
		}
	}
}
