package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"raffle-service/config"
	"raffle-service/model"
	"raffle-service/monitoring"
	"raffle-service/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PurchaseInput struct {
	RaffleID         string
	TicketNumbers    []string
	BuyerNames       string
	BuyerEmail       string
	BuyerPhone       string
	BuyerLocale      string
	PaymentMethod    string
	PaymentReference string
	ProofReference   string
}

// CreatePurchase converts a live reservation into a purchase record. The
// purchase row is created pending and the tickets are bound to it inside one
// transaction; only after that commits does the verification policy run, so
// a slow or failing gateway can never disturb the reservation. When the
// gateway affirms the payment, a second transaction flips the purchase to
// confirmed and the tickets to sold.
func CreatePurchase(ctx context.Context, db *pgxpool.Pool, verifier *Verifier, notifier Notifier, in PurchaseInput) (*model.Purchase, error) {
	numbers := dedupe(in.TicketNumbers)
	if len(numbers) == 0 {
		return nil, fmt.Errorf("%w: at least one ticket number is required", ErrValidation)
	}
	if in.BuyerLocale == "" {
		in.BuyerLocale = "es"
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("CreatePurchase: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	raffle, err := sellableRaffle(ctx, tx, in.RaffleID)
	if err != nil {
		return nil, err
	}

	ids, err := lockHeldTickets(ctx, tx, in.RaffleID, numbers)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	amount := raffle.price.Mul(decimal.NewFromInt(int64(len(numbers))))
	purchase := &model.Purchase{
		Id:               uuid.NewString(),
		RaffleId:         in.RaffleID,
		BuyerNames:       in.BuyerNames,
		BuyerEmail:       in.BuyerEmail,
		BuyerPhone:       in.BuyerPhone,
		BuyerLocale:      in.BuyerLocale,
		RequestedCount:   len(numbers),
		Amount:           amount,
		Currency:         raffle.currency,
		PaymentMethod:    in.PaymentMethod,
		PaymentReference: in.PaymentReference,
		ProofReference:   in.ProofReference,
		Status:           model.PurchaseStatusPending,
		TicketNumbers:    numbers,
		CreatedAt:        now,
	}

	_, err = tx.Exec(ctx,
		`insert into purchases
		 (id, raffle_id, buyer_names, buyer_email, buyer_phone, buyer_locale, requested_count,
		  amount, currency, payment_method, payment_reference, proof_reference, status, created_at)
		 values ($1,$2,$3,$4,$5,$6,$7,$8::numeric,$9,$10,$11,$12,'pending',$13)`,
		purchase.Id, purchase.RaffleId, purchase.BuyerNames, purchase.BuyerEmail, purchase.BuyerPhone,
		purchase.BuyerLocale, purchase.RequestedCount, amount.String(), purchase.Currency,
		purchase.PaymentMethod, purchase.PaymentReference, purchase.ProofReference, now)
	if err != nil {
		return nil, fmt.Errorf("CreatePurchase: insert: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`update tickets set purchase_id = $1 where id = any($2)`,
		purchase.Id, ids); err != nil {
		return nil, fmt.Errorf("CreatePurchase: bind tickets: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("CreatePurchase: commit: %w", err)
	}

	// Tickets are safely held and bound; now ask the gateway. Failure here
	// only means the purchase stays pending for manual review.
	status := verifier.Decide(ctx, in.PaymentMethod, amount, in.PaymentReference)
	if status == model.PurchaseStatusConfirmed {
		if err := confirmPurchaseTx(ctx, db, purchase.Id); err != nil {
			utils.LogMessage(utils.CRITICAL, fmt.Sprintf("CreatePurchase: auto-confirm of %s failed, left pending: %v", purchase.Id, err), config.ServiceName)
			status = model.PurchaseStatusPending
		}
	}
	purchase.Status = status
	if status == model.PurchaseStatusConfirmed {
		decidedAt := time.Now()
		purchase.DecidedAt = &decidedAt
	}

	monitoring.TrackPurchase("create", status)
	notifier.Publish(ctx, purchaseEvent(model.EventPurchaseCreated, purchase, notifier))
	return purchase, nil
}

// Decide is the admin path of the state machine: pending may move to
// confirmed or rejected exactly once. The second caller gets
// ErrAlreadyProcessed and no state changes.
func Decide(ctx context.Context, db *pgxpool.Pool, notifier Notifier, purchaseID string, decision string, rejectionReason string, rejectionComment string) (*model.Purchase, error) {
	switch decision {
	case "confirm", "reject":
	default:
		return nil, fmt.Errorf("%w: decision must be confirm or reject", ErrValidation)
	}
	if decision == "reject" {
		if rejectionReason != model.RejectionInvalidPayment && rejectionReason != model.RejectionMalicious {
			return nil, fmt.Errorf("%w: a rejection reason is required", ErrValidation)
		}
		if rejectionReason == model.RejectionMalicious && strings.TrimSpace(rejectionComment) == "" {
			return nil, fmt.Errorf("%w: a rejection comment is required when the reason is malicious", ErrValidation)
		}
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("Decide: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	purchase, err := purchaseForUpdate(ctx, tx, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.Status != model.PurchaseStatusPending {
		return nil, ErrAlreadyProcessed
	}

	decidedAt := time.Now()
	purchase.DecidedAt = &decidedAt
	if decision == "confirm" {
		purchase.Status = model.PurchaseStatusConfirmed
		if _, err := tx.Exec(ctx,
			`update purchases set status = 'confirmed', decided_at = $2 where id = $1`,
			purchaseID, decidedAt); err != nil {
			return nil, fmt.Errorf("Decide: confirm purchase: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`update tickets set state = 'sold', hold_expiry = null
			 where purchase_id = $1 and state = 'held'`,
			purchaseID); err != nil {
			return nil, fmt.Errorf("Decide: sell tickets: %w", err)
		}
	} else {
		purchase.Status = model.PurchaseStatusRejected
		purchase.RejectionReason = &rejectionReason
		if rejectionComment != "" {
			purchase.RejectionComment = &rejectionComment
		}
		if _, err := tx.Exec(ctx,
			`update purchases set status = 'rejected', rejection_reason = $2,
			 rejection_comment = nullif($3, ''), decided_at = $4 where id = $1`,
			purchaseID, rejectionReason, rejectionComment, decidedAt); err != nil {
			return nil, fmt.Errorf("Decide: reject purchase: %w", err)
		}
		// Rejected tickets go straight back to the sellable pool.
		if _, err := tx.Exec(ctx,
			`update tickets set state = 'available', hold_expiry = null, purchase_id = null
			 where purchase_id = $1 and state = 'held'`,
			purchaseID); err != nil {
			return nil, fmt.Errorf("Decide: release tickets: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("Decide: commit: %w", err)
	}

	monitoring.TrackPurchase("decide", purchase.Status)
	eventType := model.EventPurchaseConfirmed
	if purchase.Status == model.PurchaseStatusRejected {
		eventType = model.EventPurchaseRejected
	}
	notifier.Publish(ctx, purchaseEvent(eventType, purchase, notifier))
	return purchase, nil
}

// confirmPurchaseTx flips a pending purchase and its tickets to
// confirmed/sold. Shared by the auto-confirmation path and nothing else;
// the admin path repeats the statements inside its own transaction.
func confirmPurchaseTx(ctx context.Context, db *pgxpool.Pool, purchaseID string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("confirmPurchaseTx: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	purchase, err := purchaseForUpdate(ctx, tx, purchaseID)
	if err != nil {
		return err
	}
	if purchase.Status != model.PurchaseStatusPending {
		return ErrAlreadyProcessed
	}
	if _, err := tx.Exec(ctx,
		`update purchases set status = 'confirmed', decided_at = now() where id = $1`,
		purchaseID); err != nil {
		return fmt.Errorf("confirmPurchaseTx: confirm purchase: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`update tickets set state = 'sold', hold_expiry = null
		 where purchase_id = $1 and state = 'held'`,
		purchaseID); err != nil {
		return fmt.Errorf("confirmPurchaseTx: sell tickets: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("confirmPurchaseTx: commit: %w", err)
	}
	return nil
}

// lockHeldTickets locks the named tickets and checks the purchase
// precondition: every one of them must still be held, unexpired and not
// bound to another purchase. A lapsed or missing hold aborts the whole
// attempt so the caller can re-reserve.
func lockHeldTickets(ctx context.Context, tx pgx.Tx, raffleID string, numbers []string) ([]int64, error) {
	rows, err := tx.Query(ctx,
		`select id, state, purchase_id, hold_expiry from tickets
		 where raffle_id = $1 and number = any($2)
		 for update`,
		raffleID, numbers)
	if err != nil {
		return nil, fmt.Errorf("lockHeldTickets: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var ids []int64
	for rows.Next() {
		var id int64
		var state string
		var purchaseID *string
		var holdExpiry *time.Time
		if err := rows.Scan(&id, &state, &purchaseID, &holdExpiry); err != nil {
			return nil, fmt.Errorf("lockHeldTickets: scan: %w", err)
		}
		if state != model.TicketStateHeld || purchaseID != nil {
			return nil, ErrReservationExpired
		}
		if holdExpiry == nil || holdExpiry.Before(now) {
			return nil, ErrReservationExpired
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lockHeldTickets: rows: %w", err)
	}
	if len(ids) != len(numbers) {
		// Some numbers do not exist for this raffle at all.
		return nil, fmt.Errorf("%w: unknown ticket numbers in request", ErrValidation)
	}
	return ids, nil
}

func purchaseForUpdate(ctx context.Context, tx pgx.Tx, purchaseID string) (*model.Purchase, error) {
	p := &model.Purchase{}
	var amount string
	err := tx.QueryRow(ctx,
		`select id, raffle_id, buyer_names, buyer_email, buyer_phone, buyer_locale, requested_count,
		        amount::text, currency, payment_method, payment_reference, coalesce(proof_reference, ''),
		        status, rejection_reason, rejection_comment, created_at, decided_at
		 from purchases where id = $1 for update`,
		purchaseID).Scan(
		&p.Id, &p.RaffleId, &p.BuyerNames, &p.BuyerEmail, &p.BuyerPhone, &p.BuyerLocale, &p.RequestedCount,
		&amount, &p.Currency, &p.PaymentMethod, &p.PaymentReference, &p.ProofReference,
		&p.Status, &p.RejectionReason, &p.RejectionComment, &p.CreatedAt, &p.DecidedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("purchaseForUpdate: %w", err)
	}
	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("purchaseForUpdate: bad amount %q: %w", amount, err)
	}
	rows, err := tx.Query(ctx, `select number from tickets where purchase_id = $1 order by number`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("purchaseForUpdate: ticket numbers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, fmt.Errorf("purchaseForUpdate: scan number: %w", err)
		}
		p.TicketNumbers = append(p.TicketNumbers, number)
	}
	return p, rows.Err()
}

func purchaseEvent(eventType string, p *model.Purchase, notifier Notifier) model.Event {
	messageID := eventType
	data := map[string]any{
		"Buyer":  p.BuyerNames,
		"Count":  p.RequestedCount,
		"Amount": p.Amount.StringFixed(2) + " " + p.Currency,
	}
	return model.Event{
		Type: eventType,
		Payload: map[string]any{
			"purchase_id":    p.Id,
			"raffle_id":      p.RaffleId,
			"status":         p.Status,
			"buyer_email":    p.BuyerEmail,
			"buyer_phone":    p.BuyerPhone,
			"ticket_numbers": p.TicketNumbers,
			"message":        notifier.Message(p.BuyerLocale, messageID, data),
		},
	}
}

func dedupe(numbers []string) []string {
	seen := make(map[string]struct{}, len(numbers))
	out := make([]string, 0, len(numbers))
	for _, n := range numbers {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
