package notify

import (
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/serai-hms/api/internal/ws"
)

// Notification kinds pushed to branch dashboards.
const (
	KindOrderCreated       = "order.created"
	KindOrderStatusUpdated = "order.status_updated"
	KindOrderCancelled     = "order.cancelled"
	KindStockLow           = "stock.low"
	KindStockOut           = "stock.out"
	KindRequestCreated     = "request.created"
	KindRequestUpdated     = "request.status_updated"
)

// Notifier is the fire-and-forget notification sink. Delivery failure must
// never block or fail the state transition that triggered it.
type Notifier interface {
	Notify(branchID uuid.UUID, kind string, payload any)
}

// HubNotifier broadcasts notifications to the branch's websocket room.
type HubNotifier struct {
	hub *ws.Hub
}

func NewHubNotifier(hub *ws.Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) Notify(branchID uuid.UUID, kind string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s notification: %v", kind, err)
		return
	}
	n.hub.BroadcastToBranch(branchID, ws.Event{Type: kind, Payload: raw})
}

// Nop discards notifications. Used in tests and the seed command.
type Nop struct{}

func (Nop) Notify(branchID uuid.UUID, kind string, payload any) {}
