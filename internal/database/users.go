package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, branch_id, email, hashed_password, full_name, role, pin, is_active, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.BranchID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.Pin, &u.IsActive, &u.CreatedAt)
	return u, err
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_active = true`
	return scanUser(q.db.QueryRow(ctx, sql, email))
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_active = true`
	return scanUser(q.db.QueryRow(ctx, sql, id))
}

type GetUserByBranchAndPinParams struct {
	BranchID uuid.UUID
	Pin      pgtype.Text
}

func (q *Queries) GetUserByBranchAndPin(ctx context.Context, arg GetUserByBranchAndPinParams) (User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users WHERE branch_id = $1 AND pin = $2 AND is_active = true`
	return scanUser(q.db.QueryRow(ctx, sql, arg.BranchID, arg.Pin))
}
