package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderStatus is the order lifecycle state machine, CHECK constrained in DB.
type OrderStatus string

const (
	OrderStatusPENDING   OrderStatus = "PENDING"
	OrderStatusCONFIRMED OrderStatus = "CONFIRMED"
	OrderStatusPREPARING OrderStatus = "PREPARING"
	OrderStatusREADY     OrderStatus = "READY"
	OrderStatusSERVED    OrderStatus = "SERVED"
	OrderStatusCANCELLED OrderStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusSERVED || s == OrderStatusCANCELLED
}

type OrderType string

const (
	OrderTypeDINEIN      OrderType = "DINE_IN"
	OrderTypeROOMSERVICE OrderType = "ROOM_SERVICE"
	OrderTypeTAKEAWAY    OrderType = "TAKEAWAY"
	OrderTypeDELIVERY    OrderType = "DELIVERY"
)

// OrderItemStatus mirrors the order status coarsely for kitchen checklists.
// Informational only; the order-level status is authoritative.
type OrderItemStatus string

const (
	OrderItemStatusPENDING   OrderItemStatus = "PENDING"
	OrderItemStatusPREPARING OrderItemStatus = "PREPARING"
	OrderItemStatusREADY     OrderItemStatus = "READY"
)

// StockTransactionType is the append-only ledger movement type.
type StockTransactionType string

const (
	StockTransactionTypeIN         StockTransactionType = "IN"
	StockTransactionTypeOUT        StockTransactionType = "OUT"
	StockTransactionTypeWASTAGE    StockTransactionType = "WASTAGE"
	StockTransactionTypeADJUSTMENT StockTransactionType = "ADJUSTMENT"
)

// StockStatus is derived from quantity vs reorder level. Never stored.
type StockStatus string

const (
	StockStatusINSTOCK    StockStatus = "IN_STOCK"
	StockStatusLOWSTOCK   StockStatus = "LOW_STOCK"
	StockStatusOUTOFSTOCK StockStatus = "OUT_OF_STOCK"
)

type RequestStatus string

const (
	RequestStatusPENDING    RequestStatus = "PENDING"
	RequestStatusINPROGRESS RequestStatus = "IN_PROGRESS"
	RequestStatusCOMPLETED  RequestStatus = "COMPLETED"
	RequestStatusCANCELLED  RequestStatus = "CANCELLED"
)

func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusCOMPLETED || s == RequestStatusCANCELLED
}

type RequestType string

const (
	RequestTypeROOMSERVICE  RequestType = "ROOM_SERVICE"
	RequestTypeMAINTENANCE  RequestType = "MAINTENANCE"
	RequestTypeHOUSEKEEPING RequestType = "HOUSEKEEPING"
	RequestTypeCONCIERGE    RequestType = "CONCIERGE"
	RequestTypeLAUNDRY      RequestType = "LAUNDRY"
	RequestTypeWAKEUP       RequestType = "WAKE_UP"
)

// RequestPriority is assigned at creation and never recomputed, unlike
// order priority which is derived from age at read time.
type RequestPriority string

const (
	RequestPriorityLOW    RequestPriority = "LOW"
	RequestPriorityNORMAL RequestPriority = "NORMAL"
	RequestPriorityHIGH   RequestPriority = "HIGH"
	RequestPriorityURGENT RequestPriority = "URGENT"
)

type Branch struct {
	ID        uuid.UUID
	Name      string
	Address   string
	Phone     string
	IsActive  bool
	CreatedAt time.Time
}

type User struct {
	ID             uuid.UUID
	BranchID       uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	Pin            pgtype.Text
	IsActive       bool
	CreatedAt      time.Time
}

type MenuItem struct {
	ID           uuid.UUID
	BranchID     uuid.UUID
	Name         string
	Category     string
	Price        pgtype.Numeric
	IsAvailable  bool
	DietaryFlags []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type MenuItemIngredient struct {
	ID          uuid.UUID
	MenuItemID  uuid.UUID
	StockItemID uuid.UUID
	Quantity    pgtype.Numeric
}

type Order struct {
	ID            uuid.UUID
	BranchID      uuid.UUID
	OrderNumber   string
	CustomerName  string
	OrderType     OrderType
	TableNumber   pgtype.Text
	RoomNumber    pgtype.Text
	Status        OrderStatus
	PaymentMethod string
	GrandTotal    pgtype.Numeric
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	UnitPrice  pgtype.Numeric
	Quantity   int32
	Status     OrderItemStatus
}

type StockItem struct {
	ID           uuid.UUID
	BranchID     uuid.UUID
	Name         string
	Sku          string
	Category     string
	Quantity     pgtype.Numeric
	Unit         string
	UnitCost     pgtype.Numeric
	ReorderLevel pgtype.Numeric
	ExpiryDate   pgtype.Date
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type StockTransaction struct {
	ID             uuid.UUID
	StockItemID    uuid.UUID
	BranchID       uuid.UUID
	Type           StockTransactionType
	Quantity       pgtype.Numeric
	QuantityBefore pgtype.Numeric
	QuantityAfter  pgtype.Numeric
	UnitCost       pgtype.Numeric
	Reference      pgtype.Text
	Reason         pgtype.Text
	PerformedBy    uuid.UUID
	CreatedAt      time.Time
}

type ServiceRequest struct {
	ID          uuid.UUID
	BranchID    uuid.UUID
	GuestName   string
	RoomNumber  string
	Type        RequestType
	Description string
	Priority    RequestPriority
	Status      RequestStatus
	AssignedTo  pgtype.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
