package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/serai-hms/api/internal/database"
	"github.com/serai-hms/api/internal/handler"
	"github.com/serai-hms/api/internal/middleware"
)

type mockBoardStore struct {
	listActiveOrdersFn func(ctx context.Context, arg database.ListActiveOrdersParams) ([]database.Order, error)
	listOrderItemsFn   func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

func (m *mockBoardStore) ListActiveOrders(ctx context.Context, arg database.ListActiveOrdersParams) ([]database.Order, error) {
	if m.listActiveOrdersFn != nil {
		return m.listActiveOrdersFn(ctx, arg)
	}
	return []database.Order{}, nil
}

func (m *mockBoardStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	if m.listOrderItemsFn != nil {
		return m.listOrderItemsFn(ctx, orderID)
	}
	return []database.OrderItem{}, nil
}

func setupBoardRouter(store *mockBoardStore) *chi.Mux {
	h := handler.NewBoardHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/branches/{bid}/board", h.RegisterRoutes)
	return r
}

func activeOrder(branchID uuid.UUID, number string, status database.OrderStatus, age time.Duration) database.Order {
	created := time.Now().Add(-age)
	return database.Order{
		ID:            uuid.New(),
		BranchID:      branchID,
		OrderNumber:   number,
		CustomerName:  "Ibu Sari",
		OrderType:     database.OrderTypeDINEIN,
		TableNumber:   pgtype.Text{String: "4", Valid: true},
		Status:        status,
		PaymentMethod: "CASH",
		GrandTotal:    testNumeric("42000"),
		CreatedBy:     uuid.New(),
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestBoardGet_SortsOverdueOrdersFirst(t *testing.T) {
	branchID := uuid.New()
	claims := testClaims(branchID, "KITCHEN")

	fresh := activeOrder(branchID, "ORD-000002", database.OrderStatusPENDING, 5*time.Minute)
	overdue := activeOrder(branchID, "ORD-000001", database.OrderStatusPREPARING, 35*time.Minute)

	store := &mockBoardStore{
		listActiveOrdersFn: func(ctx context.Context, arg database.ListActiveOrdersParams) ([]database.Order, error) {
			if arg.BranchID != branchID {
				t.Errorf("branch_id: got %v, want %v", arg.BranchID, branchID)
			}
			return []database.Order{fresh, overdue}, nil
		},
		listOrderItemsFn: func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
			return []database.OrderItem{testDBOrderItem(orderID)}, nil
		},
	}

	router := setupBoardRouter(store)
	rr := doAuthRequest(t, router, "GET", "/branches/"+branchID.String()+"/board", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	entries, ok := resp["entries"].([]interface{})
	if !ok || len(entries) != 2 {
		t.Fatalf("entries: got %v, want 2", resp["entries"])
	}

	first := entries[0].(map[string]interface{})
	if first["order_number"] != "ORD-000001" {
		t.Errorf("first entry: got %v, want the overdue ORD-000001", first["order_number"])
	}
	if first["priority"] != "URGENT" {
		t.Errorf("priority: got %v, want URGENT", first["priority"])
	}
	if first["next_action"] != "READY" {
		t.Errorf("next_action: got %v, want READY", first["next_action"])
	}

	second := entries[1].(map[string]interface{})
	if second["priority"] != "NORMAL" {
		t.Errorf("priority: got %v, want NORMAL", second["priority"])
	}
	if second["next_action"] != "CONFIRMED" {
		t.Errorf("next_action: got %v, want CONFIRMED", second["next_action"])
	}
}

func TestBoardGet_TimeSort(t *testing.T) {
	branchID := uuid.New()
	claims := testClaims(branchID, "KITCHEN")

	older := activeOrder(branchID, "ORD-000001", database.OrderStatusPENDING, 10*time.Minute)
	newer := activeOrder(branchID, "ORD-000002", database.OrderStatusPREPARING, 35*time.Minute)
	// Swap ages so urgency and age disagree.
	older.CreatedAt = time.Now().Add(-40 * time.Minute)
	older.Status = database.OrderStatusREADY

	store := &mockBoardStore{
		listActiveOrdersFn: func(ctx context.Context, arg database.ListActiveOrdersParams) ([]database.Order, error) {
			return []database.Order{newer, older}, nil
		},
	}

	router := setupBoardRouter(store)
	rr := doAuthRequest(t, router, "GET", "/branches/"+branchID.String()+"/board?sort=time", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	entries := resp["entries"].([]interface{})
	first := entries[0].(map[string]interface{})
	if first["order_number"] != "ORD-000001" {
		t.Errorf("first entry: got %v, want oldest ORD-000001", first["order_number"])
	}
}

func TestBoardGet_StatusFilterPassedThrough(t *testing.T) {
	branchID := uuid.New()
	claims := testClaims(branchID, "KITCHEN")

	store := &mockBoardStore{
		listActiveOrdersFn: func(ctx context.Context, arg database.ListActiveOrdersParams) ([]database.Order, error) {
			if arg.Status != database.OrderStatusPREPARING {
				t.Errorf("status filter: got %v, want PREPARING", arg.Status)
			}
			return []database.Order{}, nil
		},
	}

	router := setupBoardRouter(store)
	rr := doAuthRequest(t, router, "GET", "/branches/"+branchID.String()+"/board?status=PREPARING", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestBoardGet_RejectsTerminalStatusFilter(t *testing.T) {
	branchID := uuid.New()
	claims := testClaims(branchID, "KITCHEN")

	router := setupBoardRouter(&mockBoardStore{})
	rr := doAuthRequest(t, router, "GET", "/branches/"+branchID.String()+"/board?status=SERVED", nil, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "board only shows active orders" {
		t.Errorf("error: got %v, want 'board only shows active orders'", resp["error"])
	}
}

func TestBoardGet_EntryShape(t *testing.T) {
	branchID := uuid.New()
	claims := testClaims(branchID, "KITCHEN")

	order := activeOrder(branchID, "ORD-000009", database.OrderStatusCONFIRMED, 12*time.Minute)

	store := &mockBoardStore{
		listActiveOrdersFn: func(ctx context.Context, arg database.ListActiveOrdersParams) ([]database.Order, error) {
			return []database.Order{order}, nil
		},
		listOrderItemsFn: func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
			item := testDBOrderItem(orderID)
			item.Name = "Nasi Uduk Komplit"
			return []database.OrderItem{item}, nil
		},
	}

	router := setupBoardRouter(store)
	rr := doAuthRequest(t, router, "GET", "/branches/"+branchID.String()+"/board", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["generated_at"] == nil {
		t.Error("generated_at missing")
	}
	entries := resp["entries"].([]interface{})
	entry := entries[0].(map[string]interface{})

	if entry["table_number"] != "4" {
		t.Errorf("table_number: got %v, want 4", entry["table_number"])
	}
	if entry["waiting_for"] != "12m" {
		t.Errorf("waiting_for: got %v, want 12m", entry["waiting_for"])
	}
	items := entry["items"].([]interface{})
	item := items[0].(map[string]interface{})
	if item["name"] != "Nasi Uduk Komplit" {
		t.Errorf("item name: got %v, want Nasi Uduk Komplit", item["name"])
	}
	if item["quantity"] != float64(2) {
		t.Errorf("item quantity: got %v, want 2", item["quantity"])
	}
}

func TestBoardGet_Empty(t *testing.T) {
	branchID := uuid.New()
	claims := testClaims(branchID, "KITCHEN")

	router := setupBoardRouter(&mockBoardStore{})
	rr := doAuthRequest(t, router, "GET", "/branches/"+branchID.String()+"/board", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	entries, ok := resp["entries"].([]interface{})
	if !ok {
		t.Fatal("entries should be an empty array, not null")
	}
	if len(entries) != 0 {
		t.Errorf("entries count: got %d, want 0", len(entries))
	}
}
