package service

import (
	"context"
	"fmt"
	"time"

	"raffle-service/config"
	"raffle-service/monitoring"
	"raffle-service/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reserve grants an exclusive, time-boxed hold on count tickets of the
// raffle. The whole grant happens in one transaction: expired unbound holds
// are swept first, then count available rows are claimed with
// FOR UPDATE SKIP LOCKED so concurrent reservations never block each other,
// they just see a smaller pool. Either all count tickets are held or none.
func Reserve(ctx context.Context, db *pgxpool.Pool, raffleID string, count int) ([]string, time.Time, error) {
	if count <= 0 {
		return nil, time.Time{}, fmt.Errorf("%w: count must be positive", ErrValidation)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("Reserve: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	raffle, err := sellableRaffle(ctx, tx, raffleID)
	if err != nil {
		monitoring.TrackReservation("rejected")
		return nil, time.Time{}, err
	}
	if count > raffle.space {
		monitoring.TrackReservation("insufficient")
		return nil, time.Time{}, ErrInsufficientInventory
	}
	if err := materializeTickets(ctx, tx, raffleID, raffle.space); err != nil {
		return nil, time.Time{}, err
	}
	if err := sweepExpiredHolds(ctx, tx, raffleID); err != nil {
		return nil, time.Time{}, err
	}

	rows, err := tx.Query(ctx,
		`select id, number from tickets
		 where raffle_id = $1 and state = 'available'
		 order by random()
		 limit $2
		 for update skip locked`,
		raffleID, count)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("Reserve: select: %w", err)
	}
	var ids []int64
	var numbers []string
	for rows.Next() {
		var id int64
		var number string
		if err := rows.Scan(&id, &number); err != nil {
			rows.Close()
			return nil, time.Time{}, fmt.Errorf("Reserve: scan: %w", err)
		}
		ids = append(ids, id)
		numbers = append(numbers, number)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("Reserve: rows: %w", err)
	}

	if len(ids) < count {
		// No partial holds: the rollback releases whatever we locked.
		monitoring.TrackReservation("insufficient")
		return nil, time.Time{}, ErrInsufficientInventory
	}

	holdExpiry := time.Now().Add(config.HoldDuration)
	if _, err := tx.Exec(ctx,
		`update tickets set state = 'held', hold_expiry = $1 where id = any($2)`,
		holdExpiry, ids); err != nil {
		return nil, time.Time{}, fmt.Errorf("Reserve: hold update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, time.Time{}, fmt.Errorf("Reserve: commit: %w", err)
	}
	monitoring.TrackReservation("held")
	return numbers, holdExpiry, nil
}

// sweepExpiredHolds lazily frees lapsed holds for one raffle. Tickets bound
// to a pending purchase keep their hold until an admin decides, so only
// unbound holds are released.
func sweepExpiredHolds(ctx context.Context, tx pgx.Tx, raffleID string) error {
	tag, err := tx.Exec(ctx,
		`update tickets set state = 'available', hold_expiry = null
		 where raffle_id = $1 and state = 'held' and purchase_id is null and hold_expiry < now()`,
		raffleID)
	if err != nil {
		return fmt.Errorf("sweepExpiredHolds: %w", err)
	}
	monitoring.TrackSweptHolds(tag.RowsAffected())
	return nil
}

// StartHoldSweeper runs the supplementary periodic sweep across all raffles.
// Not needed for correctness (Reserve sweeps lazily), just hygiene so stale
// holds do not sit around on quiet raffles.
func StartHoldSweeper(ctx context.Context, db *pgxpool.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tag, err := db.Exec(ctx,
				`update tickets set state = 'available', hold_expiry = null
				 where state = 'held' and purchase_id is null and hold_expiry < now()`)
			if err != nil {
				utils.LogMessage(utils.ERROR, fmt.Sprintf("holdSweeper: sweep failed: %v", err), config.ServiceName)
				continue
			}
			monitoring.TrackSweptHolds(tag.RowsAffected())
		}
	}
}
