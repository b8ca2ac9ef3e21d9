package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/serai-hms/api/internal/database"
	"github.com/serai-hms/api/internal/enum"
	"github.com/serai-hms/api/internal/notify"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems           = errors.New("items are required")
	ErrCustomerNameRequired = errors.New("customer_name is required")
	ErrInvalidOrderType     = errors.New("invalid order_type")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrTableNumberRequired  = errors.New("table_number is required for DINE_IN orders")
	ErrRoomNumberRequired   = errors.New("room_number is required for ROOM_SERVICE orders")
	ErrInvalidMenuItemID    = errors.New("invalid menu_item_id")
	ErrMenuItemNotFound     = errors.New("menu item not found in branch")
	ErrMenuItemUnavailable  = errors.New("menu item is not available")

	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStatusConflict    = errors.New("order status changed, please retry")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order engine.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	LedgerStore
	GetNextOrderNumber(ctx context.Context, branchID uuid.UUID) (int32, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateOrderItemStatuses(ctx context.Context, arg database.UpdateOrderItemStatusesParams) error
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListIngredientsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemIngredient, error)
	ListStockTransactionsByReference(ctx context.Context, arg database.ListStockTransactionsByReferenceParams) ([]database.StockTransaction, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// allowedTransitions is the authoritative transition table. One step at a
// time, no skipping; SERVED and CANCELLED are terminal.
var allowedTransitions = map[database.OrderStatus][]database.OrderStatus{
	database.OrderStatusPENDING:   {database.OrderStatusCONFIRMED, database.OrderStatusCANCELLED},
	database.OrderStatusCONFIRMED: {database.OrderStatusPREPARING, database.OrderStatusCANCELLED},
	database.OrderStatusPREPARING: {database.OrderStatusREADY, database.OrderStatusCANCELLED},
	database.OrderStatusREADY:     {database.OrderStatusSERVED, database.OrderStatusCANCELLED},
}

// kitchenNextAction is the single forward successor shown on the kitchen
// board. READY has none: "served" is confirmed by a waiter, a separate
// action path from the cooking pipeline.
var kitchenNextAction = map[database.OrderStatus]database.OrderStatus{
	database.OrderStatusPENDING:   database.OrderStatusCONFIRMED,
	database.OrderStatusCONFIRMED: database.OrderStatusPREPARING,
	database.OrderStatusPREPARING: database.OrderStatusREADY,
}

// ValidateTransition checks the transition table, distinguishing terminal
// states from skip attempts so callers can surface a precise reason.
func ValidateTransition(current, next database.OrderStatus) error {
	if current.IsTerminal() {
		return fmt.Errorf("%w: order is already %s", ErrInvalidTransition, current)
	}
	for _, s := range allowedTransitions[current] {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot skip from %s to %s", ErrInvalidTransition, current, next)
}

// NextAction returns the kitchen board affordance for a status, if any.
func NextAction(current database.OrderStatus) (database.OrderStatus, bool) {
	next, ok := kitchenNextAction[current]
	return next, ok
}

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	BranchID      uuid.UUID
	CreatedBy     uuid.UUID
	CustomerName  string
	OrderType     string
	TableNumber   string
	RoomNumber    string
	PaymentMethod string
	Items         []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line in the order.
type CreateOrderItemRequest struct {
	MenuItemID string
	Quantity   int32
}

// CreateOrderResult is the full created order with its snapshotted lines.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// AdvanceOrderStatusRequest advances one order a single legal step.
type AdvanceOrderStatusRequest struct {
	BranchID    uuid.UUID
	OrderID     uuid.UUID
	Status      string
	PerformedBy uuid.UUID
}

// AdvanceOrderStatusResult carries the updated order. NoOp is true when the
// order was already in the requested status (duplicate click or retry);
// no side effects fired in that case.
type AdvanceOrderStatusResult struct {
	Order database.Order
	Items []database.OrderItem
	NoOp  bool
}

// OrderService handles the order lifecycle.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	notifier notify.Notifier
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, notifier notify.Notifier) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, notifier: notifier}
}

// orderEvent is the payload broadcast on order lifecycle changes.
type orderEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
}

// CreateOrder validates, snapshots catalog prices, and creates an order
// atomically in PENDING. Stock is untouched at creation time; it is only
// consumed on the transition into PREPARING.
//
// Retries on order_number unique violations (concurrent transactions can
// read the same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	orderType, err := validateOrderType(req.OrderType)
	if err != nil {
		return nil, err
	}
	if req.CustomerName == "" {
		return nil, ErrCustomerNameRequired
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if !isValidPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}
	if orderType == database.OrderTypeDINEIN && req.TableNumber == "" {
		return nil, ErrTableNumberRequired
	}
	if orderType == database.OrderTypeROOMSERVICE && req.RoomNumber == "" {
		return nil, ErrRoomNumberRequired
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
	}

	var result *CreateOrderResult
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err = s.createOrderTx(ctx, req, orderType)
		if err == nil {
			break
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	if result == nil {
		return nil, lastErr
	}

	s.notifier.Notify(req.BranchID, notify.KindOrderCreated, orderEvent{
		OrderID:     result.Order.ID,
		OrderNumber: result.Order.OrderNumber,
		Status:      string(result.Order.Status),
	})
	return result, nil
}

// isOrderNumberConflict checks for a unique constraint violation on the
// per-branch order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_branch_id_order_number_key"
	}
	return false
}

func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest, orderType database.OrderType) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	nextNum, err := store.GetNextOrderNumber(ctx, req.BranchID)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("ORD-%06d", nextNum)

	// Resolve each line against the catalog and snapshot name + price.
	// Later menu edits must never alter this order's lines or total.
	grandTotal := decimal.Zero
	type line struct {
		menuItemID uuid.UUID
		name       string
		unitPrice  decimal.Decimal
		quantity   int32
	}
	lines := make([]line, 0, len(req.Items))
	for i, item := range req.Items {
		menuItemID, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidMenuItemID)
		}
		menuItem, err := store.GetMenuItem(ctx, database.GetMenuItemParams{
			ID:       menuItemID,
			BranchID: req.BranchID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("items[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, fmt.Errorf("items[%d]: get menu item: %w", i, err)
		}
		if !menuItem.IsAvailable {
			return nil, fmt.Errorf("items[%d] (%s): %w", i, menuItem.Name, ErrMenuItemUnavailable)
		}

		unitPrice := numericToDecimal(menuItem.Price)
		grandTotal = grandTotal.Add(unitPrice.Mul(decimal.NewFromInt32(item.Quantity)))
		lines = append(lines, line{
			menuItemID: menuItemID,
			name:       menuItem.Name,
			unitPrice:  unitPrice,
			quantity:   item.Quantity,
		})
	}

	tableNumber := pgtype.Text{}
	if req.TableNumber != "" {
		tableNumber = pgtype.Text{String: req.TableNumber, Valid: true}
	}
	roomNumber := pgtype.Text{}
	if req.RoomNumber != "" {
		roomNumber = pgtype.Text{String: req.RoomNumber, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		BranchID:      req.BranchID,
		OrderNumber:   orderNumber,
		CustomerName:  req.CustomerName,
		OrderType:     orderType,
		TableNumber:   tableNumber,
		RoomNumber:    roomNumber,
		PaymentMethod: req.PaymentMethod,
		GrandTotal:    decimalToNumeric(grandTotal),
		CreatedBy:     req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]database.OrderItem, 0, len(lines))
	for _, l := range lines {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:    order.ID,
			MenuItemID: l.menuItemID,
			Name:       l.name,
			UnitPrice:  decimalToNumeric(l.unitPrice),
			Quantity:   l.quantity,
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: items}, nil
}

// AdvanceStatus moves an order one legal step forward, or cancels it.
//
// The CONFIRMED→PREPARING edge consumes stock for every line's ingredient
// mapping inside the same transaction as the status update, so the
// decrement happens at most once per order: a concurrent duplicate either
// sees PREPARING already (no-op) or loses the row lock race and its whole
// transaction, decrement included, rolls back.
//
// Cancelling an order that already consumed stock writes compensating IN
// movements referencing the original OUT rows. The OUTs stay in the
// ledger; replay still reproduces current quantity.
func (s *OrderService) AdvanceStatus(ctx context.Context, req AdvanceOrderStatusRequest) (*AdvanceOrderStatusResult, error) {
	next := database.OrderStatus(req.Status)
	if !isValidOrderStatus(next) {
		return nil, ErrInvalidStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{
		ID:       req.OrderID,
		BranchID: req.BranchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	// Duplicate click or retry: success, no side effects.
	if order.Status == next {
		items, err := store.ListOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("list order items: %w", err)
		}
		return &AdvanceOrderStatusResult{Order: order, Items: items, NoOp: true}, nil
	}

	if err := ValidateTransition(order.Status, next); err != nil {
		return nil, err
	}

	var alerts []StockAlert
	if next == database.OrderStatusPREPARING {
		alerts, err = s.consumeStockForOrder(ctx, store, order, req.PerformedBy)
		if err != nil {
			return nil, err
		}
	}
	if next == database.OrderStatusCANCELLED && stockWasConsumed(order.Status) {
		if err := s.reverseStockForOrder(ctx, store, order, req.PerformedBy); err != nil {
			return nil, err
		}
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:         order.ID,
		BranchID:   order.BranchID,
		Status:     next,
		FromStatus: order.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if itemStatus, ok := itemStatusFor(next); ok {
		if err := store.UpdateOrderItemStatuses(ctx, database.UpdateOrderItemStatusesParams{
			OrderID: order.ID,
			Status:  itemStatus,
		}); err != nil {
			return nil, fmt.Errorf("update order item statuses: %w", err)
		}
	}

	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	kind := notify.KindOrderStatusUpdated
	if next == database.OrderStatusCANCELLED {
		kind = notify.KindOrderCancelled
	}
	s.notifier.Notify(order.BranchID, kind, orderEvent{
		OrderID:     updated.ID,
		OrderNumber: updated.OrderNumber,
		Status:      string(updated.Status),
	})
	for _, alert := range alerts {
		s.notifyStockAlert(order.BranchID, alert)
	}

	return &AdvanceOrderStatusResult{Order: updated, Items: items}, nil
}

// stockWasConsumed reports whether an order in this status already passed
// the PREPARING edge and therefore needs compensation on cancel.
func stockWasConsumed(status database.OrderStatus) bool {
	return status == database.OrderStatusPREPARING || status == database.OrderStatusREADY
}

// consumeStockForOrder decrements every ingredient of every line, scaled
// by line quantity, recording OUT movements referencing the order number.
func (s *OrderService) consumeStockForOrder(ctx context.Context, store OrderStore, order database.Order, performedBy uuid.UUID) ([]StockAlert, error) {
	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	var alerts []StockAlert
	for _, item := range items {
		ingredients, err := store.ListIngredientsByMenuItem(ctx, item.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("list ingredients for %s: %w", item.Name, err)
		}
		for _, ing := range ingredients {
			need := numericToDecimal(ing.Quantity).Mul(decimal.NewFromInt32(item.Quantity))
			res, err := drawDownStock(ctx, store, stockDraw{
				StockItemID: ing.StockItemID,
				BranchID:    order.BranchID,
				Quantity:    need,
				Type:        database.StockTransactionTypeOUT,
				Reference:   order.OrderNumber,
				Reason:      fmt.Sprintf("consumed by %s (%s)", order.OrderNumber, item.Name),
				PerformedBy: performedBy,
			})
			if err != nil {
				if errors.Is(err, ErrInsufficientStock) {
					return nil, fmt.Errorf("%s: %w", item.Name, err)
				}
				return nil, err
			}
			if res.Crossed {
				alerts = append(alerts, res.Alert)
			}
		}
	}
	return alerts, nil
}

// reverseStockForOrder writes a compensating IN for each OUT previously
// recorded against the order. Not a rollback: the OUT rows are durable.
func (s *OrderService) reverseStockForOrder(ctx context.Context, store OrderStore, order database.Order, performedBy uuid.UUID) error {
	outs, err := store.ListStockTransactionsByReference(ctx, database.ListStockTransactionsByReferenceParams{
		BranchID:  order.BranchID,
		Reference: order.OrderNumber,
		Type:      database.StockTransactionTypeOUT,
	})
	if err != nil {
		return fmt.Errorf("list stock movements for %s: %w", order.OrderNumber, err)
	}

	for _, out := range outs {
		if err := restoreStock(ctx, store, stockRestore{
			StockItemID: out.StockItemID,
			BranchID:    order.BranchID,
			Quantity:    numericToDecimal(out.Quantity),
			Reference:   order.OrderNumber,
			Reason:      fmt.Sprintf("reversal of OUT %s (order cancelled)", out.ID),
			PerformedBy: performedBy,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *OrderService) notifyStockAlert(branchID uuid.UUID, alert StockAlert) {
	kind := notify.KindStockLow
	if alert.Status == database.StockStatusOUTOFSTOCK {
		kind = notify.KindStockOut
	}
	s.notifier.Notify(branchID, kind, alert)
}

// itemStatusFor maps an order status to the coarse item-level status.
func itemStatusFor(status database.OrderStatus) (database.OrderItemStatus, bool) {
	switch status {
	case database.OrderStatusPREPARING:
		return database.OrderItemStatusPREPARING, true
	case database.OrderStatusREADY:
		return database.OrderItemStatusREADY, true
	}
	return "", false
}

// --- Helpers ---

func validateOrderType(s string) (database.OrderType, error) {
	switch t := database.OrderType(s); t {
	case database.OrderTypeDINEIN, database.OrderTypeROOMSERVICE,
		database.OrderTypeTAKEAWAY, database.OrderTypeDELIVERY:
		return t, nil
	}
	return "", ErrInvalidOrderType
}

func isValidOrderStatus(s database.OrderStatus) bool {
	switch s {
	case database.OrderStatusPENDING, database.OrderStatusCONFIRMED,
		database.OrderStatusPREPARING, database.OrderStatusREADY,
		database.OrderStatusSERVED, database.OrderStatusCANCELLED:
		return true
	}
	return false
}

func isValidPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodCard,
		enum.PaymentMethodRoomCharge, enum.PaymentMethodQRIS:
		return true
	}
	return false
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}
