package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/serai-hms/api/internal/database"
	"github.com/serai-hms/api/internal/notify"
)

var (
	ErrGuestNameRequired      = errors.New("guest_name is required")
	ErrDescriptionRequired    = errors.New("description is required")
	ErrInvalidRequestType     = errors.New("invalid request type")
	ErrInvalidRequestPriority = errors.New("invalid priority")
	ErrRequestNotFound        = errors.New("service request not found")
	ErrInvalidRequestStatus   = errors.New("invalid request status")
	ErrInvalidAssignee        = errors.New("invalid assignee id")
)

// RequestStore is the persistence surface of the request tracker. It needs
// no transactions: every mutation is a single CAS statement.
type RequestStore interface {
	CreateServiceRequest(ctx context.Context, arg database.CreateServiceRequestParams) (database.ServiceRequest, error)
	GetServiceRequest(ctx context.Context, arg database.GetServiceRequestParams) (database.ServiceRequest, error)
	ListServiceRequests(ctx context.Context, arg database.ListServiceRequestsParams) ([]database.ServiceRequest, error)
	UpdateServiceRequestStatus(ctx context.Context, arg database.UpdateServiceRequestStatusParams) (database.ServiceRequest, error)
	AssignServiceRequest(ctx context.Context, arg database.AssignServiceRequestParams) (database.ServiceRequest, error)
}

// allowedRequestTransitions mirrors the order table but with a flat
// two-step lifecycle. Completed and cancelled requests are immutable.
var allowedRequestTransitions = map[database.RequestStatus][]database.RequestStatus{
	database.RequestStatusPENDING:    {database.RequestStatusINPROGRESS, database.RequestStatusCANCELLED},
	database.RequestStatusINPROGRESS: {database.RequestStatusCOMPLETED, database.RequestStatusCANCELLED},
}

// ValidateRequestTransition rejects skips and writes to terminal requests.
func ValidateRequestTransition(current, next database.RequestStatus) error {
	if current.IsTerminal() {
		return fmt.Errorf("%w: request is already %s", ErrInvalidTransition, current)
	}
	for _, allowed := range allowedRequestTransitions[current] {
		if next == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidTransition, current, next)
}

type CreateRequestParams struct {
	BranchID    uuid.UUID
	GuestName   string
	RoomNumber  string
	Type        string
	Description string
	Priority    string // optional, defaults to NORMAL
}

type AdvanceRequestParams struct {
	RequestID uuid.UUID
	BranchID  uuid.UUID
	Status    string
}

// RequestService tracks guest service requests through their lifecycle.
type RequestService struct {
	store    RequestStore
	notifier notify.Notifier
}

func NewRequestService(store RequestStore, notifier notify.Notifier) *RequestService {
	return &RequestService{store: store, notifier: notifier}
}

type requestEvent struct {
	RequestID  uuid.UUID                `json:"request_id"`
	GuestName  string                   `json:"guest_name"`
	RoomNumber string                   `json:"room_number"`
	Type       database.RequestType     `json:"type"`
	Priority   database.RequestPriority `json:"priority"`
	Status     database.RequestStatus   `json:"status"`
}

// Create records a new request. Priority is fixed at creation; it reflects
// the guest's stated urgency, not elapsed time.
func (s *RequestService) Create(ctx context.Context, params CreateRequestParams) (database.ServiceRequest, error) {
	if params.GuestName == "" {
		return database.ServiceRequest{}, ErrGuestNameRequired
	}
	if params.Description == "" {
		return database.ServiceRequest{}, ErrDescriptionRequired
	}
	reqType := database.RequestType(params.Type)
	if !isValidRequestType(reqType) {
		return database.ServiceRequest{}, ErrInvalidRequestType
	}
	priority := database.RequestPriorityNORMAL
	if params.Priority != "" {
		priority = database.RequestPriority(params.Priority)
		if !isValidRequestPriority(priority) {
			return database.ServiceRequest{}, ErrInvalidRequestPriority
		}
	}

	sr, err := s.store.CreateServiceRequest(ctx, database.CreateServiceRequestParams{
		BranchID:    params.BranchID,
		GuestName:   params.GuestName,
		RoomNumber:  params.RoomNumber,
		Type:        reqType,
		Description: params.Description,
		Priority:    priority,
	})
	if err != nil {
		return database.ServiceRequest{}, fmt.Errorf("create service request: %w", err)
	}

	s.notifier.Notify(params.BranchID, notify.KindRequestCreated, requestEvent{
		RequestID:  sr.ID,
		GuestName:  sr.GuestName,
		RoomNumber: sr.RoomNumber,
		Type:       sr.Type,
		Priority:   sr.Priority,
		Status:     sr.Status,
	})
	return sr, nil
}

func (s *RequestService) Get(ctx context.Context, id, branchID uuid.UUID) (database.ServiceRequest, error) {
	sr, err := s.store.GetServiceRequest(ctx, database.GetServiceRequestParams{ID: id, BranchID: branchID})
	if errors.Is(err, pgx.ErrNoRows) {
		return database.ServiceRequest{}, ErrRequestNotFound
	}
	return sr, err
}

func (s *RequestService) List(ctx context.Context, arg database.ListServiceRequestsParams) ([]database.ServiceRequest, error) {
	return s.store.ListServiceRequests(ctx, arg)
}

// Advance moves a request along its lifecycle. The update is a CAS against
// the status we validated, so a concurrent staff member's write surfaces
// as ErrStatusConflict instead of silently double-applying.
func (s *RequestService) Advance(ctx context.Context, params AdvanceRequestParams) (database.ServiceRequest, error) {
	next := database.RequestStatus(params.Status)
	if !isValidRequestStatus(next) {
		return database.ServiceRequest{}, ErrInvalidRequestStatus
	}

	sr, err := s.store.GetServiceRequest(ctx, database.GetServiceRequestParams{
		ID:       params.RequestID,
		BranchID: params.BranchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ServiceRequest{}, ErrRequestNotFound
		}
		return database.ServiceRequest{}, fmt.Errorf("get service request: %w", err)
	}

	// Repeating the current status is a no-op, not an error.
	if sr.Status == next {
		return sr, nil
	}
	if err := ValidateRequestTransition(sr.Status, next); err != nil {
		return database.ServiceRequest{}, err
	}

	updated, err := s.store.UpdateServiceRequestStatus(ctx, database.UpdateServiceRequestStatusParams{
		ID:         params.RequestID,
		BranchID:   params.BranchID,
		Status:     next,
		FromStatus: sr.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ServiceRequest{}, ErrStatusConflict
		}
		return database.ServiceRequest{}, fmt.Errorf("update request status: %w", err)
	}

	s.notifier.Notify(params.BranchID, notify.KindRequestUpdated, requestEvent{
		RequestID:  updated.ID,
		GuestName:  updated.GuestName,
		RoomNumber: updated.RoomNumber,
		Type:       updated.Type,
		Priority:   updated.Priority,
		Status:     updated.Status,
	})
	return updated, nil
}

// Assign sets or clears the staff member responsible for a request.
func (s *RequestService) Assign(ctx context.Context, requestID, branchID uuid.UUID, assignee *uuid.UUID) (database.ServiceRequest, error) {
	assignedTo := pgtype.UUID{}
	if assignee != nil {
		assignedTo = pgtype.UUID{Bytes: *assignee, Valid: true}
	}
	sr, err := s.store.AssignServiceRequest(ctx, database.AssignServiceRequestParams{
		ID:         requestID,
		BranchID:   branchID,
		AssignedTo: assignedTo,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return database.ServiceRequest{}, ErrRequestNotFound
	}
	return sr, err
}

func isValidRequestType(t database.RequestType) bool {
	switch t {
	case database.RequestTypeROOMSERVICE, database.RequestTypeMAINTENANCE,
		database.RequestTypeHOUSEKEEPING, database.RequestTypeCONCIERGE,
		database.RequestTypeLAUNDRY, database.RequestTypeWAKEUP:
		return true
	}
	return false
}

func isValidRequestPriority(p database.RequestPriority) bool {
	switch p {
	case database.RequestPriorityLOW, database.RequestPriorityNORMAL,
		database.RequestPriorityHIGH, database.RequestPriorityURGENT:
		return true
	}
	return false
}

func isValidRequestStatus(s database.RequestStatus) bool {
	switch s {
	case database.RequestStatusPENDING, database.RequestStatusINPROGRESS,
		database.RequestStatusCOMPLETED, database.RequestStatusCANCELLED:
		return true
	}
	return false
}
