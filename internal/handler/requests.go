package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/serai-hms/api/internal/database"
	"github.com/serai-hms/api/internal/service"
)

// RequestServicer defines the service methods needed by request handlers.
// Satisfied by *service.RequestService.
type RequestServicer interface {
	Create(ctx context.Context, params service.CreateRequestParams) (database.ServiceRequest, error)
	Get(ctx context.Context, id, branchID uuid.UUID) (database.ServiceRequest, error)
	List(ctx context.Context, arg database.ListServiceRequestsParams) ([]database.ServiceRequest, error)
	Advance(ctx context.Context, params service.AdvanceRequestParams) (database.ServiceRequest, error)
	Assign(ctx context.Context, requestID, branchID uuid.UUID, assignee *uuid.UUID) (database.ServiceRequest, error)
}

// RequestHandler handles guest service request endpoints.
type RequestHandler struct {
	svc RequestServicer
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(svc RequestServicer) *RequestHandler {
	return &RequestHandler{svc: svc}
}

// RegisterRoutes registers request endpoints on the given Chi router.
// Expected to be mounted inside a branch-scoped subrouter: /branches/{bid}/requests
func (h *RequestHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Patch("/{id}/assign", h.Assign)
}

// --- Request / Response types ---

type createServiceRequestRequest struct {
	GuestName   string `json:"guest_name"`
	RoomNumber  string `json:"room_number"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type updateRequestStatusRequest struct {
	Status string `json:"status"`
}

type assignRequestRequest struct {
	AssignedTo string `json:"assigned_to"` // empty clears the assignment
}

type serviceRequestResponse struct {
	ID          uuid.UUID `json:"id"`
	BranchID    uuid.UUID `json:"branch_id"`
	GuestName   string    `json:"guest_name"`
	RoomNumber  string    `json:"room_number"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	AssignedTo  *string   `json:"assigned_to"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// --- Handlers ---

// Create handles POST /branches/{bid}/requests.
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	var req createServiceRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sr, err := h.svc.Create(r.Context(), service.CreateRequestParams{
		BranchID:    branchID,
		GuestName:   req.GuestName,
		RoomNumber:  req.RoomNumber,
		Type:        req.Type,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		if isRequestValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: create service request: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toServiceRequestResponse(sr))
}

// List handles GET /branches/{bid}/requests.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	requests, err := h.svc.List(r.Context(), database.ListServiceRequestsParams{
		BranchID: branchID,
		Status:   database.RequestStatus(r.URL.Query().Get("status")),
		Limit:    int32(limit),
		Offset:   int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list service requests: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]serviceRequestResponse, len(requests))
	for i, sr := range requests {
		resp[i] = toServiceRequestResponse(sr)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requests": resp,
		"limit":    limit,
		"offset":   offset,
	})
}

// Get handles GET /branches/{bid}/requests/{id}.
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	branchID, requestID, ok := parseBranchAndID(w, r)
	if !ok {
		return
	}

	sr, err := h.svc.Get(r.Context(), requestID, branchID)
	if err != nil {
		if errors.Is(err, service.ErrRequestNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: get service request: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toServiceRequestResponse(sr))
}

// UpdateStatus handles PATCH /branches/{bid}/requests/{id}/status.
func (h *RequestHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	branchID, requestID, ok := parseBranchAndID(w, r)
	if !ok {
		return
	}

	var req updateRequestStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	sr, err := h.svc.Advance(r.Context(), service.AdvanceRequestParams{
		RequestID: requestID,
		BranchID:  branchID,
		Status:    req.Status,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRequestNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidRequestStatus):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrStatusConflict):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: update request status: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toServiceRequestResponse(sr))
}

// Assign handles PATCH /branches/{bid}/requests/{id}/assign.
func (h *RequestHandler) Assign(w http.ResponseWriter, r *http.Request) {
	branchID, requestID, ok := parseBranchAndID(w, r)
	if !ok {
		return
	}

	var req assignRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var assignee *uuid.UUID
	if req.AssignedTo != "" {
		id, err := uuid.Parse(req.AssignedTo)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid assigned_to"})
			return
		}
		assignee = &id
	}

	sr, err := h.svc.Assign(r.Context(), requestID, branchID, assignee)
	if err != nil {
		if errors.Is(err, service.ErrRequestNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: assign service request: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toServiceRequestResponse(sr))
}

// --- Helpers ---

func isRequestValidationError(err error) bool {
	return errors.Is(err, service.ErrGuestNameRequired) ||
		errors.Is(err, service.ErrDescriptionRequired) ||
		errors.Is(err, service.ErrInvalidRequestType) ||
		errors.Is(err, service.ErrInvalidRequestPriority)
}

func toServiceRequestResponse(sr database.ServiceRequest) serviceRequestResponse {
	resp := serviceRequestResponse{
		ID:          sr.ID,
		BranchID:    sr.BranchID,
		GuestName:   sr.GuestName,
		RoomNumber:  sr.RoomNumber,
		Type:        string(sr.Type),
		Description: sr.Description,
		Priority:    string(sr.Priority),
		Status:      string(sr.Status),
		CreatedAt:   sr.CreatedAt,
		UpdatedAt:   sr.UpdatedAt,
	}
	if sr.AssignedTo.Valid {
		s := uuid.UUID(sr.AssignedTo.Bytes).String()
		resp.AssignedTo = &s
	}
	return resp
}
