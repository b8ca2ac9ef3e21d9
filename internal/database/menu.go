package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, branch_id, name, category, price, is_available, dietary_flags, created_at, updated_at`

func scanMenuItem(row pgx.Row) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(&m.ID, &m.BranchID, &m.Name, &m.Category, &m.Price, &m.IsAvailable, &m.DietaryFlags, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

type CreateMenuItemParams struct {
	BranchID     uuid.UUID
	Name         string
	Category     string
	Price        pgtype.Numeric
	IsAvailable  bool
	DietaryFlags []string
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	const sql = `
		INSERT INTO menu_items (branch_id, name, category, price, is_available, dietary_flags)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + menuItemColumns
	return scanMenuItem(q.db.QueryRow(ctx, sql,
		arg.BranchID, arg.Name, arg.Category, arg.Price, arg.IsAvailable, arg.DietaryFlags))
}

type GetMenuItemParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) GetMenuItem(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	const sql = `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = $1 AND branch_id = $2`
	return scanMenuItem(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID))
}

type ListMenuItemsParams struct {
	BranchID      uuid.UUID
	Category      string // empty = all
	AvailableOnly bool
}

func (q *Queries) ListMenuItems(ctx context.Context, arg ListMenuItemsParams) ([]MenuItem, error) {
	sql := `SELECT ` + menuItemColumns + ` FROM menu_items WHERE branch_id = $1`
	args := []any{arg.BranchID}
	if arg.Category != "" {
		args = append(args, arg.Category)
		sql += ` AND category = $2`
	}
	if arg.AvailableOnly {
		sql += ` AND is_available = true`
	}
	sql += ` ORDER BY category, name`

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

type SetMenuItemAvailabilityParams struct {
	ID          uuid.UUID
	BranchID    uuid.UUID
	IsAvailable bool
}

func (q *Queries) SetMenuItemAvailability(ctx context.Context, arg SetMenuItemAvailabilityParams) (MenuItem, error) {
	const sql = `
		UPDATE menu_items SET is_available = $3, updated_at = now()
		WHERE id = $1 AND branch_id = $2
		RETURNING ` + menuItemColumns
	return scanMenuItem(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID, arg.IsAvailable))
}

type UpdateMenuItemPriceParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
	Price    pgtype.Numeric
}

func (q *Queries) UpdateMenuItemPrice(ctx context.Context, arg UpdateMenuItemPriceParams) (MenuItem, error) {
	const sql = `
		UPDATE menu_items SET price = $3, updated_at = now()
		WHERE id = $1 AND branch_id = $2
		RETURNING ` + menuItemColumns
	return scanMenuItem(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID, arg.Price))
}

type CreateMenuItemIngredientParams struct {
	MenuItemID  uuid.UUID
	StockItemID uuid.UUID
	Quantity    pgtype.Numeric
}

func (q *Queries) CreateMenuItemIngredient(ctx context.Context, arg CreateMenuItemIngredientParams) (MenuItemIngredient, error) {
	const sql = `
		INSERT INTO menu_item_ingredients (menu_item_id, stock_item_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING id, menu_item_id, stock_item_id, quantity`
	var mi MenuItemIngredient
	err := q.db.QueryRow(ctx, sql, arg.MenuItemID, arg.StockItemID, arg.Quantity).
		Scan(&mi.ID, &mi.MenuItemID, &mi.StockItemID, &mi.Quantity)
	return mi, err
}

func (q *Queries) ListIngredientsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]MenuItemIngredient, error) {
	const sql = `
		SELECT id, menu_item_id, stock_item_id, quantity
		FROM menu_item_ingredients WHERE menu_item_id = $1`
	rows, err := q.db.Query(ctx, sql, menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ingredients []MenuItemIngredient
	for rows.Next() {
		var mi MenuItemIngredient
		if err := rows.Scan(&mi.ID, &mi.MenuItemID, &mi.StockItemID, &mi.Quantity); err != nil {
			return nil, err
		}
		ingredients = append(ingredients, mi)
	}
	return ingredients, rows.Err()
}
