package model

const (
	EventPurchaseCreated   = "purchase_created"
	EventPurchaseConfirmed = "purchase_confirmed"
	EventPurchaseRejected  = "purchase_rejected"
	EventWinnerDrawn       = "winner_drawn"
)

// Event is what the external notifier consumes. Delivery is someone else's
// problem; the allocator only emits.
type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}
