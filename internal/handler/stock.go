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
	"github.com/jackc/pgx/v5"
	"github.com/serai-hms/api/internal/auth"
	"github.com/serai-hms/api/internal/database"
	"github.com/serai-hms/api/internal/middleware"
	"github.com/serai-hms/api/internal/service"
	"github.com/shopspring/decimal"
)

// StockServicer defines the service methods needed by stock handlers.
// Satisfied by *service.StockService.
type StockServicer interface {
	AddStock(ctx context.Context, req service.AddStockRequest) (*service.StockResult, error)
	UseStock(ctx context.Context, req service.UseStockRequest) (*service.StockResult, error)
	Waste(ctx context.Context, req service.WasteStockRequest) (*service.StockResult, error)
	Adjust(ctx context.Context, req service.AdjustStockRequest) (*service.StockResult, error)
}

// StockReadStore defines the database methods needed by stock read handlers.
// Satisfied by *database.Queries.
type StockReadStore interface {
	GetStockItem(ctx context.Context, arg database.GetStockItemParams) (database.StockItem, error)
	ListStockItems(ctx context.Context, arg database.ListStockItemsParams) ([]database.StockItem, error)
	ListLowStockItems(ctx context.Context, branchID uuid.UUID) ([]database.StockItem, error)
	ListExpiringStockItems(ctx context.Context, arg database.ListExpiringStockItemsParams) ([]database.StockItem, error)
	ListStockTransactionsByItem(ctx context.Context, stockItemID uuid.UUID) ([]database.StockTransaction, error)
}

// StockHandler handles stock ledger endpoints.
type StockHandler struct {
	svc   StockServicer
	store StockReadStore
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(svc StockServicer, store StockReadStore) *StockHandler {
	return &StockHandler{svc: svc, store: store}
}

// RegisterReadRoutes registers stock read endpoints. Expected to be mounted
// inside a branch-scoped subrouter: /branches/{bid}/stock
func (h *StockHandler) RegisterReadRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/alerts", h.Alerts)
	r.Get("/expiring", h.Expiring)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/transactions", h.Transactions)
}

// RegisterMutationRoutes registers ledger mutation endpoints; the router
// gates these to stock, kitchen and manager roles.
func (h *StockHandler) RegisterMutationRoutes(r chi.Router) {
	r.Post("/", h.Add)
	r.Post("/{id}/use", h.Use)
	r.Post("/{id}/waste", h.Waste)
	r.Post("/{id}/adjust", h.Adjust)
}

// --- Request / Response types ---

type addStockRequest struct {
	Name         string `json:"name"`
	Sku          string `json:"sku"`
	Category     string `json:"category"`
	Quantity     string `json:"quantity"`
	Unit         string `json:"unit"`
	UnitCost     string `json:"unit_cost"`
	ReorderLevel string `json:"reorder_level"`
	ExpiryDate   string `json:"expiry_date"`
}

type useStockRequest struct {
	Quantity  string `json:"quantity"`
	Reference string `json:"reference"`
}

type wasteStockRequest struct {
	Quantity string `json:"quantity"`
	Reason   string `json:"reason"`
}

type adjustStockRequest struct {
	NewQuantity string `json:"new_quantity"`
	Reason      string `json:"reason"`
}

type stockItemResponse struct {
	ID           uuid.UUID  `json:"id"`
	BranchID     uuid.UUID  `json:"branch_id"`
	Name         string     `json:"name"`
	Sku          string     `json:"sku"`
	Category     string     `json:"category"`
	Quantity     string     `json:"quantity"`
	Unit         string     `json:"unit"`
	UnitCost     string     `json:"unit_cost"`
	ReorderLevel string     `json:"reorder_level"`
	Status       string     `json:"status"`
	ExpiryDate   *time.Time `json:"expiry_date"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type stockTransactionResponse struct {
	ID             uuid.UUID `json:"id"`
	StockItemID    uuid.UUID `json:"stock_item_id"`
	Type           string    `json:"type"`
	Quantity       string    `json:"quantity"`
	QuantityBefore string    `json:"quantity_before"`
	QuantityAfter  string    `json:"quantity_after"`
	UnitCost       string    `json:"unit_cost"`
	Reference      *string   `json:"reference"`
	Reason         *string   `json:"reason"`
	PerformedBy    uuid.UUID `json:"performed_by"`
	CreatedAt      time.Time `json:"created_at"`
}

type stockMutationResponse struct {
	Item        stockItemResponse        `json:"item"`
	Transaction stockTransactionResponse `json:"transaction"`
}

// --- Handlers ---

// Add handles POST /branches/{bid}/stock (receiving goods).
func (h *StockHandler) Add(w http.ResponseWriter, r *http.Request) {
	branchID, claims, ok := branchAndClaims(w, r)
	if !ok {
		return
	}

	var req addStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.AddStock(r.Context(), service.AddStockRequest{
		BranchID:     branchID,
		Name:         req.Name,
		Sku:          req.Sku,
		Category:     req.Category,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		UnitCost:     req.UnitCost,
		ReorderLevel: req.ReorderLevel,
		ExpiryDate:   req.ExpiryDate,
		PerformedBy:  claims.UserID,
	})
	if err != nil {
		h.writeStockError(w, "add stock", err)
		return
	}

	writeJSON(w, http.StatusCreated, toStockMutationResponse(result))
}

// Use handles POST /branches/{bid}/stock/{id}/use.
func (h *StockHandler) Use(w http.ResponseWriter, r *http.Request) {
	branchID, claims, ok := branchAndClaims(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stock item ID"})
		return
	}

	var req useStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.UseStock(r.Context(), service.UseStockRequest{
		BranchID:    branchID,
		StockItemID: itemID,
		Quantity:    req.Quantity,
		Reference:   req.Reference,
		PerformedBy: claims.UserID,
	})
	if err != nil {
		h.writeStockError(w, "use stock", err)
		return
	}

	writeJSON(w, http.StatusOK, toStockMutationResponse(result))
}

// Waste handles POST /branches/{bid}/stock/{id}/waste.
func (h *StockHandler) Waste(w http.ResponseWriter, r *http.Request) {
	branchID, claims, ok := branchAndClaims(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stock item ID"})
		return
	}

	var req wasteStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.Waste(r.Context(), service.WasteStockRequest{
		BranchID:    branchID,
		StockItemID: itemID,
		Quantity:    req.Quantity,
		Reason:      req.Reason,
		PerformedBy: claims.UserID,
	})
	if err != nil {
		h.writeStockError(w, "waste stock", err)
		return
	}

	writeJSON(w, http.StatusOK, toStockMutationResponse(result))
}

// Adjust handles POST /branches/{bid}/stock/{id}/adjust.
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	branchID, claims, ok := branchAndClaims(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stock item ID"})
		return
	}

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.Adjust(r.Context(), service.AdjustStockRequest{
		BranchID:    branchID,
		StockItemID: itemID,
		NewQuantity: req.NewQuantity,
		Reason:      req.Reason,
		PerformedBy: claims.UserID,
	})
	if err != nil {
		h.writeStockError(w, "adjust stock", err)
		return
	}

	writeJSON(w, http.StatusOK, toStockMutationResponse(result))
}

// List handles GET /branches/{bid}/stock.
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	items, err := h.store.ListStockItems(r.Context(), database.ListStockItemsParams{
		BranchID: branchID,
		Category: r.URL.Query().Get("category"),
	})
	if err != nil {
		log.Printf("ERROR: list stock items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": toStockItemResponses(items)})
}

// Alerts handles GET /branches/{bid}/stock/alerts -- items at or below
// their reorder level.
func (h *StockHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	items, err := h.store.ListLowStockItems(r.Context(), branchID)
	if err != nil {
		log.Printf("ERROR: list low stock items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": toStockItemResponses(items)})
}

// Expiring handles GET /branches/{bid}/stock/expiring?days=N (default 7).
func (h *StockHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	days := 7
	if s := r.URL.Query().Get("days"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid days"})
			return
		}
		days = v
	}

	items, err := h.store.ListExpiringStockItems(r.Context(), database.ListExpiringStockItemsParams{
		BranchID: branchID,
		Before:   time.Now().AddDate(0, 0, days),
	})
	if err != nil {
		log.Printf("ERROR: list expiring stock items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": toStockItemResponses(items)})
}

// Get handles GET /branches/{bid}/stock/{id}.
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stock item ID"})
		return
	}

	item, err := h.store.GetStockItem(r.Context(), database.GetStockItemParams{
		ID:       itemID,
		BranchID: branchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "stock item not found"})
			return
		}
		log.Printf("ERROR: get stock item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toStockItemResponse(item))
}

// Transactions handles GET /branches/{bid}/stock/{id}/transactions --
// the item's full ledger, oldest first.
func (h *StockHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stock item ID"})
		return
	}

	// Verify the item belongs to this branch before exposing its ledger.
	if _, err := h.store.GetStockItem(r.Context(), database.GetStockItemParams{
		ID:       itemID,
		BranchID: branchID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "stock item not found"})
			return
		}
		log.Printf("ERROR: get stock item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	txs, err := h.store.ListStockTransactionsByItem(r.Context(), itemID)
	if err != nil {
		log.Printf("ERROR: list stock transactions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]stockTransactionResponse, len(txs))
	for i, t := range txs {
		resp[i] = toStockTransactionResponse(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": resp})
}

// --- Helpers ---

func branchAndClaims(w http.ResponseWriter, r *http.Request) (uuid.UUID, *auth.Claims, bool) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return uuid.Nil, nil, false
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return uuid.Nil, nil, false
	}
	return branchID, claims, true
}

func (h *StockHandler) writeStockError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrStockItemNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInsufficientStock):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case isStockValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func isStockValidationError(err error) bool {
	return errors.Is(err, service.ErrStockNameRequired) ||
		errors.Is(err, service.ErrStockSkuRequired) ||
		errors.Is(err, service.ErrStockUnitRequired) ||
		errors.Is(err, service.ErrInvalidStockCategory) ||
		errors.Is(err, service.ErrInvalidStockAmount) ||
		errors.Is(err, service.ErrNegativeStockAmount)
}

func toStockMutationResponse(result *service.StockResult) stockMutationResponse {
	item := toStockItemResponse(result.Item)
	item.Status = string(result.Status)
	return stockMutationResponse{
		Item:        item,
		Transaction: toStockTransactionResponse(result.Transaction),
	}
}

func toStockItemResponses(items []database.StockItem) []stockItemResponse {
	resp := make([]stockItemResponse, len(items))
	for i, item := range items {
		resp[i] = toStockItemResponse(item)
	}
	return resp
}

func toStockItemResponse(item database.StockItem) stockItemResponse {
	resp := stockItemResponse{
		ID:           item.ID,
		BranchID:     item.BranchID,
		Name:         item.Name,
		Sku:          item.Sku,
		Category:     item.Category,
		Quantity:     numericToString(item.Quantity),
		Unit:         item.Unit,
		UnitCost:     numericToString(item.UnitCost),
		ReorderLevel: numericToString(item.ReorderLevel),
		Status:       string(stockStatusOf(item)),
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
	if item.ExpiryDate.Valid {
		resp.ExpiryDate = &item.ExpiryDate.Time
	}
	return resp
}

func stockStatusOf(item database.StockItem) database.StockStatus {
	q, err := decimal.NewFromString(numericToString(item.Quantity))
	if err != nil {
		q = decimal.Zero
	}
	rl, err := decimal.NewFromString(numericToString(item.ReorderLevel))
	if err != nil {
		rl = decimal.Zero
	}
	return service.StockStatusFor(q, rl)
}

func toStockTransactionResponse(t database.StockTransaction) stockTransactionResponse {
	resp := stockTransactionResponse{
		ID:             t.ID,
		StockItemID:    t.StockItemID,
		Type:           string(t.Type),
		Quantity:       numericToString(t.Quantity),
		QuantityBefore: numericToString(t.QuantityBefore),
		QuantityAfter:  numericToString(t.QuantityAfter),
		UnitCost:       numericToString(t.UnitCost),
		PerformedBy:    t.PerformedBy,
		CreatedAt:      t.CreatedAt,
	}
	if t.Reference.Valid {
		resp.Reference = &t.Reference.String
	}
	if t.Reason.Valid {
		resp.Reason = &t.Reason.String
	}
	return resp
}
