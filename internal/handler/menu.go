package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/serai-hms/api/internal/database"
	"github.com/shopspring/decimal"
)

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries.
type MenuStore interface {
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	ListMenuItems(ctx context.Context, arg database.ListMenuItemsParams) ([]database.MenuItem, error)
	SetMenuItemAvailability(ctx context.Context, arg database.SetMenuItemAvailabilityParams) (database.MenuItem, error)
	UpdateMenuItemPrice(ctx context.Context, arg database.UpdateMenuItemPriceParams) (database.MenuItem, error)
	CreateMenuItemIngredient(ctx context.Context, arg database.CreateMenuItemIngredientParams) (database.MenuItemIngredient, error)
	ListIngredientsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemIngredient, error)
	GetStockItem(ctx context.Context, arg database.GetStockItemParams) (database.StockItem, error)
}

// MenuHandler handles menu catalog endpoints. The catalog is read-mostly:
// order lines snapshot name and price at creation, so edits here never
// rewrite history.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterReadRoutes registers menu read endpoints. Expected to be mounted
// inside a branch-scoped subrouter: /branches/{bid}/menu
func (h *MenuHandler) RegisterReadRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/ingredients", h.ListIngredients)
}

// RegisterAdminRoutes registers catalog mutation endpoints; the router
// gates these to managers.
func (h *MenuHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Patch("/{id}/availability", h.SetAvailability)
	r.Patch("/{id}/price", h.UpdatePrice)
	r.Post("/{id}/ingredients", h.AddIngredient)
}

// --- Request / Response types ---

type createMenuItemRequest struct {
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Price        string   `json:"price"`
	IsAvailable  *bool    `json:"is_available"`
	DietaryFlags []string `json:"dietary_flags"`
}

type setAvailabilityRequest struct {
	IsAvailable bool `json:"is_available"`
}

type updatePriceRequest struct {
	Price string `json:"price"`
}

type addIngredientRequest struct {
	StockItemID string `json:"stock_item_id"`
	Quantity    string `json:"quantity"`
}

type menuItemResponse struct {
	ID           uuid.UUID `json:"id"`
	BranchID     uuid.UUID `json:"branch_id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Price        string    `json:"price"`
	IsAvailable  bool      `json:"is_available"`
	DietaryFlags []string  `json:"dietary_flags"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ingredientResponse struct {
	ID          uuid.UUID `json:"id"`
	StockItemID uuid.UUID `json:"stock_item_id"`
	Quantity    string    `json:"quantity"`
}

// --- Handlers ---

// Create handles POST /branches/{bid}/menu.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	var req createMenuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.Category == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category is required"})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	item, err := h.store.CreateMenuItem(r.Context(), database.CreateMenuItemParams{
		BranchID:     branchID,
		Name:         req.Name,
		Category:     req.Category,
		Price:        decimalToNumeric(price),
		IsAvailable:  available,
		DietaryFlags: req.DietaryFlags,
	})
	if err != nil {
		log.Printf("ERROR: create menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toMenuItemResponse(item))
}

// List handles GET /branches/{bid}/menu.
// Query params: category, available=true (hide 86'd items).
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	items, err := h.store.ListMenuItems(r.Context(), database.ListMenuItemsParams{
		BranchID:      branchID,
		Category:      r.URL.Query().Get("category"),
		AvailableOnly: r.URL.Query().Get("available") == "true",
	})
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, item := range items {
		resp[i] = toMenuItemResponse(item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": resp})
}

// Get handles GET /branches/{bid}/menu/{id}.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	branchID, itemID, ok := parseBranchAndID(w, r)
	if !ok {
		return
	}

	item, err := h.store.GetMenuItem(r.Context(), database.GetMenuItemParams{
		ID:       itemID,
		BranchID: branchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// SetAvailability handles PATCH /branches/{bid}/menu/{id}/availability.
// Flipping availability takes effect for new orders only.
func (h *MenuHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	branchID, itemID, ok := parseBranchAndID(w, r)
	if !ok {
		return
	}

	var req setAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	item, err := h.store.SetMenuItemAvailability(r.Context(), database.SetMenuItemAvailabilityParams{
		ID:          itemID,
		BranchID:    branchID,
		IsAvailable: req.IsAvailable,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: set menu item availability: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// UpdatePrice handles PATCH /branches/{bid}/menu/{id}/price.
// Existing order lines keep their snapshotted price.
func (h *MenuHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	branchID, itemID, ok := parseBranchAndID(w, r)
	if !ok {
		return
	}

	var req updatePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}

	item, err := h.store.UpdateMenuItemPrice(r.Context(), database.UpdateMenuItemPriceParams{
		ID:       itemID,
		BranchID: branchID,
		Price:    decimalToNumeric(price),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: update menu item price: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// AddIngredient handles POST /branches/{bid}/menu/{id}/ingredients.
// Links a stock item with the quantity consumed per serving; the order
// engine multiplies this by line quantity when it draws down stock.
func (h *MenuHandler) AddIngredient(w http.ResponseWriter, r *http.Request) {
	branchID, itemID, ok := parseBranchAndID(w, r)
	if !ok {
		return
	}

	var req addIngredientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	stockItemID, err := uuid.Parse(req.StockItemID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stock_item_id"})
		return
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil || !quantity.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be > 0"})
		return
	}

	// Both sides must exist in this branch.
	if _, err := h.store.GetMenuItem(r.Context(), database.GetMenuItemParams{ID: itemID, BranchID: branchID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if _, err := h.store.GetStockItem(r.Context(), database.GetStockItemParams{ID: stockItemID, BranchID: branchID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "stock item not found"})
			return
		}
		log.Printf("ERROR: get stock item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	ing, err := h.store.CreateMenuItemIngredient(r.Context(), database.CreateMenuItemIngredientParams{
		MenuItemID:  itemID,
		StockItemID: stockItemID,
		Quantity:    decimalToNumeric(quantity),
	})
	if err != nil {
		log.Printf("ERROR: create menu item ingredient: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toIngredientResponse(ing))
}

// ListIngredients handles GET /branches/{bid}/menu/{id}/ingredients.
func (h *MenuHandler) ListIngredients(w http.ResponseWriter, r *http.Request) {
	branchID, itemID, ok := parseBranchAndID(w, r)
	if !ok {
		return
	}

	if _, err := h.store.GetMenuItem(r.Context(), database.GetMenuItemParams{ID: itemID, BranchID: branchID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	ingredients, err := h.store.ListIngredientsByMenuItem(r.Context(), itemID)
	if err != nil {
		log.Printf("ERROR: list ingredients: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]ingredientResponse, len(ingredients))
	for i, ing := range ingredients {
		resp[i] = toIngredientResponse(ing)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ingredients": resp})
}

// --- Helpers ---

func parseBranchAndID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return branchID, id, true
}

func toMenuItemResponse(item database.MenuItem) menuItemResponse {
	flags := item.DietaryFlags
	if flags == nil {
		flags = []string{}
	}
	return menuItemResponse{
		ID:           item.ID,
		BranchID:     item.BranchID,
		Name:         item.Name,
		Category:     item.Category,
		Price:        numericToString(item.Price),
		IsAvailable:  item.IsAvailable,
		DietaryFlags: flags,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

func toIngredientResponse(ing database.MenuItemIngredient) ingredientResponse {
	return ingredientResponse{
		ID:          ing.ID,
		StockItemID: ing.StockItemID,
		Quantity:    numericToString(ing.Quantity),
	}
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}
	}
	return n
}
