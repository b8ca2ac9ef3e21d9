package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, branch_id, order_number, customer_name, order_type, table_number,
	room_number, status, payment_method, grand_total, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.BranchID, &o.OrderNumber, &o.CustomerName, &o.OrderType, &o.TableNumber,
		&o.RoomNumber, &o.Status, &o.PaymentMethod, &o.GrandTotal, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// GetNextOrderNumber returns the next per-branch sequence number.
// Concurrent transactions can read the same MAX; the unique constraint on
// (branch_id, order_number) catches the race and the caller retries.
func (q *Queries) GetNextOrderNumber(ctx context.Context, branchID uuid.UUID) (int32, error) {
	const sql = `
		SELECT COALESCE(MAX(CAST(SUBSTRING(order_number FROM 5) AS INT)), 0) + 1
		FROM orders WHERE branch_id = $1`
	var next int32
	err := q.db.QueryRow(ctx, sql, branchID).Scan(&next)
	return next, err
}

type CreateOrderParams struct {
	BranchID      uuid.UUID
	OrderNumber   string
	CustomerName  string
	OrderType     OrderType
	TableNumber   pgtype.Text
	RoomNumber    pgtype.Text
	PaymentMethod string
	GrandTotal    pgtype.Numeric
	CreatedBy     uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	const sql = `
		INSERT INTO orders (branch_id, order_number, customer_name, order_type, table_number,
			room_number, status, payment_method, grand_total, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, 'PENDING', $7, $8, $9)
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql,
		arg.BranchID, arg.OrderNumber, arg.CustomerName, arg.OrderType, arg.TableNumber,
		arg.RoomNumber, arg.PaymentMethod, arg.GrandTotal, arg.CreatedBy))
}

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	UnitPrice  pgtype.Numeric
	Quantity   int32
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	const sql = `
		INSERT INTO order_items (order_id, menu_item_id, name, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, order_id, menu_item_id, name, unit_price, quantity, status`
	var it OrderItem
	err := q.db.QueryRow(ctx, sql, arg.OrderID, arg.MenuItemID, arg.Name, arg.UnitPrice, arg.Quantity).
		Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.UnitPrice, &it.Quantity, &it.Status)
	return it, err
}

type GetOrderParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	const sql = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND branch_id = $2`
	return scanOrder(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID))
}

// GetOrderForUpdate row-locks the order so a status transition is a single
// atomic read-modify-write within its transaction.
func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderParams) (Order, error) {
	const sql = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND branch_id = $2 FOR UPDATE`
	return scanOrder(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID))
}

type ListOrdersParams struct {
	BranchID  uuid.UUID
	Status    OrderStatus // empty = all
	OrderType OrderType   // empty = all
	StartDate time.Time   // zero = no lower bound
	EndDate   time.Time   // zero = no upper bound
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE branch_id = $1`
	args := []any{arg.BranchID}
	if arg.Status != "" {
		args = append(args, arg.Status)
		sql += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if arg.OrderType != "" {
		args = append(args, arg.OrderType)
		sql += fmt.Sprintf(` AND order_type = $%d`, len(args))
	}
	if !arg.StartDate.IsZero() {
		args = append(args, arg.StartDate)
		sql += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if !arg.EndDate.IsZero() {
		args = append(args, arg.EndDate)
		sql += fmt.Sprintf(` AND created_at < $%d`, len(args))
	}
	args = append(args, arg.Limit, arg.Offset)
	sql += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return q.queryOrders(ctx, sql, args...)
}

type ListActiveOrdersParams struct {
	BranchID uuid.UUID
	Status   OrderStatus // empty = every non-terminal status
}

// ListActiveOrders returns the branch's non-terminal orders, oldest first.
// The board re-derives priority per call, so there is no priority column.
func (q *Queries) ListActiveOrders(ctx context.Context, arg ListActiveOrdersParams) ([]Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders
		WHERE branch_id = $1 AND status NOT IN ('SERVED', 'CANCELLED')`
	args := []any{arg.BranchID}
	if arg.Status != "" {
		args = append(args, arg.Status)
		sql += ` AND status = $2`
	}
	sql += ` ORDER BY created_at ASC`

	return q.queryOrders(ctx, sql, args...)
}

func (q *Queries) queryOrders(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	const sql = `
		SELECT id, order_id, menu_item_id, name, unit_price, quantity, status
		FROM order_items WHERE order_id = $1 ORDER BY name`
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.UnitPrice, &it.Quantity, &it.Status); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	BranchID   uuid.UUID
	Status     OrderStatus
	FromStatus OrderStatus
}

// UpdateOrderStatus is a compare-and-swap: it only applies when the stored
// status still equals FromStatus. pgx.ErrNoRows means another actor won the
// race and the caller must re-read.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	const sql = `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND branch_id = $2 AND status = $4
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID, arg.Status, arg.FromStatus))
}

type UpdateOrderItemStatusesParams struct {
	OrderID uuid.UUID
	Status  OrderItemStatus
}

func (q *Queries) UpdateOrderItemStatuses(ctx context.Context, arg UpdateOrderItemStatusesParams) error {
	const sql = `UPDATE order_items SET status = $2 WHERE order_id = $1`
	_, err := q.db.Exec(ctx, sql, arg.OrderID, arg.Status)
	return err
}
