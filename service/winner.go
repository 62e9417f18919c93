package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"raffle-service/model"
	"raffle-service/monitoring"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var drawnNumberPattern = regexp.MustCompile(`^[0-9]{4}$`)

// ResolveWinner looks the drawn number up among the raffle's tickets. Only a
// sold ticket can win; the winner is recorded once and never changes. When
// the number was never sold the raffle is left untouched and ErrNotSold is
// returned so the workflow can postpone instead.
func ResolveWinner(ctx context.Context, db *pgxpool.Pool, notifier Notifier, raffleID string, drawnNumber string) (*model.Ticket, error) {
	if !drawnNumberPattern.MatchString(drawnNumber) {
		return nil, fmt.Errorf("%w: drawn number must be four digits", ErrValidation)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ResolveWinner: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	var winnerTicketId *int64
	err = tx.QueryRow(ctx,
		`select status, winner_ticket_id from raffles where id = $1 for update`,
		raffleID).Scan(&status, &winnerTicketId)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRaffleNotFound
		}
		return nil, fmt.Errorf("ResolveWinner: raffle: %w", err)
	}
	if status != model.RaffleStatusFinished {
		return nil, ErrRaffleNotFinished
	}
	if winnerTicketId != nil {
		return nil, ErrWinnerAlreadyDrawn
	}

	ticket := &model.Ticket{RaffleId: raffleID, Number: drawnNumber}
	err = tx.QueryRow(ctx,
		`select id, state, purchase_id, hold_expiry from tickets
		 where raffle_id = $1 and number = $2`,
		raffleID, drawnNumber).Scan(&ticket.Id, &ticket.State, &ticket.PurchaseId, &ticket.HoldExpiry)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ResolveWinner: ticket: %w", err)
	}
	if errors.Is(err, pgx.ErrNoRows) || ticket.State != model.TicketStateSold {
		return nil, ErrNotSold
	}

	// The null guard keeps the winner immutable even if two draws race past
	// the row lock somehow.
	tag, err := tx.Exec(ctx,
		`update raffles set winner_ticket_id = $2 where id = $1 and winner_ticket_id is null`,
		raffleID, ticket.Id)
	if err != nil {
		return nil, fmt.Errorf("ResolveWinner: record winner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrWinnerAlreadyDrawn
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ResolveWinner: commit: %w", err)
	}

	monitoring.TrackPurchase("draw", "winner")
	notifier.Publish(ctx, model.Event{
		Type: model.EventWinnerDrawn,
		Payload: map[string]any{
			"raffle_id":     raffleID,
			"ticket_number": ticket.Number,
			"purchase_id":   ticket.PurchaseId,
			"message":       notifier.Message("es", model.EventWinnerDrawn, map[string]any{"Number": ticket.Number}),
		},
	})
	return ticket, nil
}

// Postpone reopens a finished raffle whose drawn number was never sold. All
// ticket states stay exactly as they were; only the raffle status and
// deadline move.
func Postpone(ctx context.Context, db *pgxpool.Pool, raffleID string, newDeadline time.Time) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("Postpone: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	var winnerTicketId *int64
	err = tx.QueryRow(ctx,
		`select status, winner_ticket_id from raffles where id = $1 for update`,
		raffleID).Scan(&status, &winnerTicketId)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRaffleNotFound
		}
		return fmt.Errorf("Postpone: raffle: %w", err)
	}
	if status != model.RaffleStatusFinished {
		return ErrRaffleNotFinished
	}
	if winnerTicketId != nil {
		return ErrWinnerAlreadyDrawn
	}
	if _, err := tx.Exec(ctx,
		`update raffles set status = 'active', draw_deadline = $2 where id = $1`,
		raffleID, newDeadline); err != nil {
		return fmt.Errorf("Postpone: update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("Postpone: commit: %w", err)
	}
	return nil
}
