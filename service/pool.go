package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Inserts happen in slices of the number space so no single statement has to
// build 10k rows at once.
const poolInsertBatch = 1000

// EnsurePool materializes the raffle's numbered ticket rows if they do not
// exist yet. Safe to call concurrently and safe to call again later: the
// (raffle_id, number) unique constraint turns replays into no-ops.
func EnsurePool(ctx context.Context, db *pgxpool.Pool, raffleID string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("EnsurePool: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	raffle, err := sellableRaffle(ctx, tx, raffleID)
	if err != nil {
		return err
	}
	if err := materializeTickets(ctx, tx, raffleID, raffle.space); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("EnsurePool: commit: %w", err)
	}
	return nil
}

func materializeTickets(ctx context.Context, tx pgx.Tx, raffleID string, space int) error {
	var exists bool
	err := tx.QueryRow(ctx,
		`select exists (select 1 from tickets where raffle_id = $1)`, raffleID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("materializeTickets: existence check: %w", err)
	}
	if exists {
		return nil
	}
	for start := 0; start < space; start += poolInsertBatch {
		end := start + poolInsertBatch - 1
		if end >= space {
			end = space - 1
		}
		_, err := tx.Exec(ctx,
			`insert into tickets (raffle_id, number, state)
			 select $1, lpad(i::text, 4, '0'), 'available'
			 from generate_series($2::int, $3::int) as i
			 on conflict (raffle_id, number) do nothing`,
			raffleID, start, end)
		if err != nil {
			return fmt.Errorf("materializeTickets: batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}
