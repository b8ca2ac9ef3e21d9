package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const serviceRequestColumns = `id, branch_id, guest_name, room_number, type, description,
	priority, status, assigned_to, created_at, updated_at`

func scanServiceRequest(row pgx.Row) (ServiceRequest, error) {
	var sr ServiceRequest
	err := row.Scan(&sr.ID, &sr.BranchID, &sr.GuestName, &sr.RoomNumber, &sr.Type, &sr.Description,
		&sr.Priority, &sr.Status, &sr.AssignedTo, &sr.CreatedAt, &sr.UpdatedAt)
	return sr, err
}

type CreateServiceRequestParams struct {
	BranchID    uuid.UUID
	GuestName   string
	RoomNumber  string
	Type        RequestType
	Description string
	Priority    RequestPriority
}

func (q *Queries) CreateServiceRequest(ctx context.Context, arg CreateServiceRequestParams) (ServiceRequest, error) {
	const sql = `
		INSERT INTO service_requests (branch_id, guest_name, room_number, type, description, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + serviceRequestColumns
	return scanServiceRequest(q.db.QueryRow(ctx, sql,
		arg.BranchID, arg.GuestName, arg.RoomNumber, arg.Type, arg.Description, arg.Priority))
}

type GetServiceRequestParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) GetServiceRequest(ctx context.Context, arg GetServiceRequestParams) (ServiceRequest, error) {
	const sql = `SELECT ` + serviceRequestColumns + ` FROM service_requests WHERE id = $1 AND branch_id = $2`
	return scanServiceRequest(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID))
}

type ListServiceRequestsParams struct {
	BranchID uuid.UUID
	Status   RequestStatus // empty = all
	Limit    int32
	Offset   int32
}

func (q *Queries) ListServiceRequests(ctx context.Context, arg ListServiceRequestsParams) ([]ServiceRequest, error) {
	sql := `SELECT ` + serviceRequestColumns + ` FROM service_requests WHERE branch_id = $1`
	args := []any{arg.BranchID}
	if arg.Status != "" {
		args = append(args, arg.Status)
		sql += ` AND status = $2`
	}
	args = append(args, arg.Limit, arg.Offset)
	sql += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []ServiceRequest
	for rows.Next() {
		sr, err := scanServiceRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, sr)
	}
	return requests, rows.Err()
}

type UpdateServiceRequestStatusParams struct {
	ID         uuid.UUID
	BranchID   uuid.UUID
	Status     RequestStatus
	FromStatus RequestStatus
}

// UpdateServiceRequestStatus is a compare-and-swap like the order variant.
func (q *Queries) UpdateServiceRequestStatus(ctx context.Context, arg UpdateServiceRequestStatusParams) (ServiceRequest, error) {
	const sql = `
		UPDATE service_requests SET status = $3, updated_at = now()
		WHERE id = $1 AND branch_id = $2 AND status = $4
		RETURNING ` + serviceRequestColumns
	return scanServiceRequest(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID, arg.Status, arg.FromStatus))
}

type AssignServiceRequestParams struct {
	ID         uuid.UUID
	BranchID   uuid.UUID
	AssignedTo pgtype.UUID
}

func (q *Queries) AssignServiceRequest(ctx context.Context, arg AssignServiceRequestParams) (ServiceRequest, error) {
	const sql = `
		UPDATE service_requests SET assigned_to = $3, updated_at = now()
		WHERE id = $1 AND branch_id = $2
		RETURNING ` + serviceRequestColumns
	return scanServiceRequest(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID, arg.AssignedTo))
}
