package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusConfirmed = "confirmed"
	PurchaseStatusRejected  = "rejected"
)

const (
	RejectionInvalidPayment = "invalid_payment"
	RejectionMalicious      = "malicious"
)

type Purchase struct {
	Id               string          `json:"id"`
	RaffleId         string          `json:"raffle_id"`
	BuyerNames       string          `json:"buyer_names"`
	BuyerEmail       string          `json:"buyer_email"`
	BuyerPhone       string          `json:"buyer_phone"`
	BuyerLocale      string          `json:"buyer_locale"`
	RequestedCount   int             `json:"requested_count"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentReference string          `json:"payment_reference"`
	ProofReference   string          `json:"proof_reference,omitempty"`
	Status           string          `json:"status"`
	RejectionReason  *string         `json:"rejection_reason,omitempty"`
	RejectionComment *string         `json:"rejection_comment,omitempty"`
	TicketNumbers    []string        `json:"ticket_numbers,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	DecidedAt        *time.Time      `json:"decided_at,omitempty"`
}
