package service

import (
	"context"
	"errors"
	"fmt"

	"raffle-service/model"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// raffleRow is the slice of the raffle the allocator cares about.
type raffleRow struct {
	id       string
	price    decimal.Decimal
	currency string
	status   string
	space    int
}

func fetchRaffle(ctx context.Context, tx pgx.Tx, raffleID string) (*raffleRow, error) {
	r := &raffleRow{}
	var price string
	err := tx.QueryRow(ctx,
		`select id, price_per_ticket::text, currency, status, ticket_space_size from raffles where id = $1`,
		raffleID).Scan(&r.id, &price, &r.currency, &r.status, &r.space)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRaffleNotFound
		}
		return nil, fmt.Errorf("fetchRaffle: %w", err)
	}
	r.price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("fetchRaffle: bad price %q: %w", price, err)
	}
	return r, nil
}

// sellableRaffle fetches the raffle and enforces the active-status
// precondition shared by pool materialization, reservation and purchase.
func sellableRaffle(ctx context.Context, tx pgx.Tx, raffleID string) (*raffleRow, error) {
	r, err := fetchRaffle(ctx, tx, raffleID)
	if err != nil {
		return nil, err
	}
	if r.status != model.RaffleStatusActive {
		return nil, ErrRaffleNotSellable
	}
	return r, nil
}
