package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/serai-hms/api/internal/board"
	"github.com/serai-hms/api/internal/database"
	"github.com/serai-hms/api/internal/service"
)

// BoardStore defines the database methods needed by the board handler.
// Satisfied by *database.Queries.
type BoardStore interface {
	ListActiveOrders(ctx context.Context, arg database.ListActiveOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

// BoardHandler serves the kitchen and service display.
type BoardHandler struct {
	store BoardStore
	now   func() time.Time
}

// NewBoardHandler creates a new BoardHandler.
func NewBoardHandler(store BoardStore) *BoardHandler {
	return &BoardHandler{store: store, now: time.Now}
}

// RegisterRoutes registers board endpoints on the given Chi router.
// Expected to be mounted inside a branch-scoped subrouter: /branches/{bid}/board
func (h *BoardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
}

type boardResponse struct {
	Entries     []board.Entry `json:"entries"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Get handles GET /branches/{bid}/board.
// Query params: status (optional single-status filter), sort (priority|time).
// Priority and the next-action affordance are derived per call, so stale
// clients can never pin an order to an outdated urgency.
func (h *BoardHandler) Get(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	params := database.ListActiveOrdersParams{BranchID: branchID}
	if s := r.URL.Query().Get("status"); s != "" {
		status := database.OrderStatus(s)
		if status.IsTerminal() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "board only shows active orders"})
			return
		}
		params.Status = status
	}

	orders, err := h.store.ListActiveOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list active orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	now := h.now()
	entries := make([]board.Entry, 0, len(orders))
	for _, o := range orders {
		items, err := h.store.ListOrderItemsByOrder(r.Context(), o.ID)
		if err != nil {
			log.Printf("ERROR: list order items for board: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		entries = append(entries, buildEntry(o, items, now))
	}

	board.Sort(entries, r.URL.Query().Get("sort"))

	writeJSON(w, http.StatusOK, boardResponse{
		Entries:     entries,
		GeneratedAt: now,
	})
}

func buildEntry(o database.Order, items []database.OrderItem, now time.Time) board.Entry {
	entry := board.Entry{
		OrderID:      o.ID,
		OrderNumber:  o.OrderNumber,
		Type:         o.OrderType,
		Status:       o.Status,
		CustomerName: o.CustomerName,
		Priority:     board.PriorityFor(o.Status, o.OrderType, o.CreatedAt, now),
		WaitingFor:   formatElapsed(now.Sub(o.CreatedAt)),
		CreatedAt:    o.CreatedAt,
	}
	if o.TableNumber.Valid {
		entry.TableNumber = o.TableNumber.String
	}
	if o.RoomNumber.Valid {
		entry.RoomNumber = o.RoomNumber.String
	}
	if next, ok := service.NextAction(o.Status); ok {
		entry.NextAction = string(next)
	}

	entry.Items = make([]board.EntryItem, len(items))
	for i, it := range items {
		entry.Items[i] = board.EntryItem{
			Name:     it.Name,
			Quantity: it.Quantity,
			Status:   it.Status,
		}
	}
	return entry
}

// formatElapsed renders a wait duration the way kitchen staff read it:
// whole minutes below an hour, h:mm above.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d.Minutes())
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
}
