package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RaffleStatusDraft     = "draft"
	RaffleStatusActive    = "active"
	RaffleStatusFinished  = "finished"
	RaffleStatusCancelled = "cancelled"
	RaffleStatusPostponed = "postponed"
)

// TicketSpaceSize is fixed: every raffle sells numbers 0000..9999.
const TicketSpaceSize = 10000

type Raffle struct {
	Id              string          `json:"id"`
	Title           string          `json:"title"`
	PricePerTicket  decimal.Decimal `json:"price_per_ticket"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	TicketSpaceSize int             `json:"ticket_space_size"`
	MinimumTickets  int             `json:"minimum_tickets"`
	DrawDeadline    *time.Time      `json:"draw_deadline"`
	WinnerTicketId  *int64          `json:"winner_ticket_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Counters        *TicketCounters `json:"counters,omitempty"`
}

type TicketCounters struct {
	Available int `json:"available"`
	Held      int `json:"held"`
	Sold      int `json:"sold"`
}

// Sellable reports whether tickets may be materialized and reserved.
func (r *Raffle) Sellable() bool {
	return r.Status == RaffleStatusActive
}
