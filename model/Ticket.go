package model

import "time"

const (
	TicketStateAvailable = "available"
	TicketStateHeld      = "held"
	TicketStateSold      = "sold"
)

type Ticket struct {
	Id         int64      `json:"id"`
	RaffleId   string     `json:"raffle_id"`
	Number     string     `json:"number"`
	State      string     `json:"state"`
	HoldExpiry *time.Time `json:"hold_expiry,omitempty"`
	PurchaseId *string    `json:"purchase_id,omitempty"`
}
