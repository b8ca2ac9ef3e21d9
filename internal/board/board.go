// Package board derives the kitchen and service display from active
// orders. Priority is computed from order age at read time and never
// stored, so a board refresh can promote an order without any write.
package board

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/serai-hms/api/internal/database"
)

// Priority buckets, highest first.
type Priority string

const (
	PriorityNone   Priority = "NONE"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Age thresholds for escalation.
const (
	highAfter   = 20 * time.Minute
	urgentAfter = 30 * time.Minute
)

// PriorityFor derives the display priority of an order. READY orders and
// terminal orders carry no priority: the kitchen's work on them is done.
// DELIVERY orders start at HIGH because a courier may already be waiting.
func PriorityFor(status database.OrderStatus, orderType database.OrderType, createdAt, now time.Time) Priority {
	if status.IsTerminal() || status == database.OrderStatusREADY {
		return PriorityNone
	}

	age := now.Sub(createdAt)
	switch {
	case age > urgentAfter:
		return PriorityUrgent
	case age > highAfter:
		return PriorityHigh
	case orderType == database.OrderTypeDELIVERY:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

func rank(p Priority) int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// Entry is one card on the board.
type Entry struct {
	OrderID      uuid.UUID            `json:"order_id"`
	OrderNumber  string               `json:"order_number"`
	Type         database.OrderType   `json:"type"`
	Status       database.OrderStatus `json:"status"`
	TableNumber  string               `json:"table_number,omitempty"`
	RoomNumber   string               `json:"room_number,omitempty"`
	CustomerName string               `json:"customer_name"`
	Items        []EntryItem          `json:"items"`
	Priority     Priority             `json:"priority"`
	WaitingFor   string               `json:"waiting_for"` // elapsed since creation
	NextAction   string               `json:"next_action,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

type EntryItem struct {
	Name     string                   `json:"name"`
	Quantity int32                    `json:"quantity"`
	Status   database.OrderItemStatus `json:"status"`
}

// Sort orders supported by the board endpoint.
const (
	SortByPriority = "priority"
	SortByTime     = "time"
)

// Sort arranges entries for display. "priority" puts the most urgent
// first, oldest first within a bucket; "time" is plain oldest-first.
// The sort is stable so equal entries keep their arrival order.
func Sort(entries []Entry, by string) {
	switch by {
	case SortByTime:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		})
	default:
		sort.SliceStable(entries, func(i, j int) bool {
			ri, rj := rank(entries[i].Priority), rank(entries[j].Priority)
			if ri != rj {
				return ri > rj
			}
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		})
	}
}
