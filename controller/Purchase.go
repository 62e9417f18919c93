package controller

import (
	"errors"
	"fmt"

	"raffle-service/config"
	"raffle-service/model"
	"raffle-service/service"
	"raffle-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

func CreatePurchase(c *fiber.Ctx) error {
	raffleId, err := raffleIdParam(c)
	if err != nil {
		return err
	}
	type FormData struct {
		TicketNumbers    []string `json:"ticket_numbers" binding:"required" validate:"required,min=1,max=100,dive,len=4,number"`
		BuyerNames       string   `json:"buyer_names" binding:"required" validate:"required,min=3,max=120"`
		BuyerEmail       string   `json:"buyer_email" binding:"required" validate:"required,email"`
		BuyerPhone       string   `json:"buyer_phone" binding:"required" validate:"required,min=7,max=20"`
		BuyerLocale      string   `json:"buyer_locale" validate:"omitempty,oneof=en es"`
		PaymentMethod    string   `json:"payment_method" binding:"required" validate:"required,oneof=pago_movil transfer zelle binance cash"`
		PaymentReference string   `json:"payment_reference" binding:"required" validate:"required,min=4,max=64"`
		ProofReference   string   `json:"proof_reference" validate:"omitempty,max=255"`
	}
	formData := new(FormData)
	if err := c.BodyParser(formData); err != nil || len(formData.TicketNumbers) == 0 {
		c.SendStatus(400)
		return c.JSON(fiber.Map{"status": 400, "message": "Please provide all required data", "details": err})
	}
	if err := Validate.Struct(formData); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, "Provided data are not valid")
	}

	purchase, err := service.CreatePurchase(ctx, config.DB, Verifier, Notifier, service.PurchaseInput{
		RaffleID:         raffleId,
		TicketNumbers:    formData.TicketNumbers,
		BuyerNames:       formData.BuyerNames,
		BuyerEmail:       formData.BuyerEmail,
		BuyerPhone:       formData.BuyerPhone,
		BuyerLocale:      formData.BuyerLocale,
		PaymentMethod:    formData.PaymentMethod,
		PaymentReference: formData.PaymentReference,
		ProofReference:   formData.ProofReference,
	})
	if err != nil {
		return handleServiceError(c, err, "CreatePurchase")
	}
	message := "Purchase received and under review"
	if purchase.Status == model.PurchaseStatusConfirmed {
		message = "Payment verified, purchase confirmed"
	}
	return c.JSON(fiber.Map{"status": 200, "message": message, "data": fiber.Map{
		"purchase_id":     purchase.Id,
		"purchase_status": purchase.Status,
		"amount":          purchase.Amount.StringFixed(2),
		"currency":        purchase.Currency,
		"ticket_numbers":  purchase.TicketNumbers,
	}})
}

func DecidePurchase(c *fiber.Ctx) error {
	purchaseId := c.Params("purchaseId")
	if _, err := uuid.Parse(purchaseId); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide a valid purchase id")
	}
	type FormData struct {
		Decision         string `json:"decision" binding:"required" validate:"required,oneof=confirm reject"`
		RejectionReason  string `json:"rejection_reason" validate:"omitempty,oneof=invalid_payment malicious"`
		RejectionComment string `json:"rejection_comment" validate:"omitempty,max=500"`
	}
	formData := new(FormData)
	if err := c.BodyParser(formData); err != nil || formData.Decision == "" {
		c.SendStatus(400)
		return c.JSON(fiber.Map{"status": 400, "message": "Please provide all required data", "details": err})
	}
	if err := Validate.Struct(formData); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, "Provided data are not valid")
	}

	purchase, err := service.Decide(ctx, config.DB, Notifier, purchaseId, formData.Decision, formData.RejectionReason, formData.RejectionComment)
	if err != nil {
		// Idempotency signal, not a failure: the decision already happened.
		if errors.Is(err, service.ErrAlreadyProcessed) {
			return c.JSON(fiber.Map{"status": 200, "message": "Purchase was already processed, nothing to do"})
		}
		return handleServiceError(c, err, "DecidePurchase")
	}
	return c.JSON(fiber.Map{"status": 200, "message": "Decision recorded", "data": fiber.Map{
		"purchase_id":     purchase.Id,
		"purchase_status": purchase.Status,
	}})
}

func GetPurchase(c *fiber.Ctx) error {
	purchaseId := c.Params("purchaseId")
	if _, err := uuid.Parse(purchaseId); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide a valid purchase id")
	}
	purchase, err := scanPurchaseRow(purchaseId)
	if err != nil {
		return handleServiceError(c, err, "GetPurchase")
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": purchase})
}

func scanPurchaseRow(purchaseId string) (*model.Purchase, error) {
	p := &model.Purchase{}
	var amount string
	err := config.DB.QueryRow(ctx,
		`select p.id, p.raffle_id, p.buyer_names, p.buyer_email, p.buyer_phone, p.buyer_locale,
		        p.requested_count, p.amount::text, p.currency, p.payment_method, p.payment_reference,
		        coalesce(p.proof_reference, ''), p.status, p.rejection_reason, p.rejection_comment,
		        p.created_at, p.decided_at,
		        coalesce(array_agg(t.number order by t.number) filter (where t.number is not null), '{}')
		 from purchases p
		 left join tickets t on t.purchase_id = p.id
		 where p.id = $1
		 group by p.id`, purchaseId).
		Scan(&p.Id, &p.RaffleId, &p.BuyerNames, &p.BuyerEmail, &p.BuyerPhone, &p.BuyerLocale,
			&p.RequestedCount, &amount, &p.Currency, &p.PaymentMethod, &p.PaymentReference,
			&p.ProofReference, &p.Status, &p.RejectionReason, &p.RejectionComment,
			&p.CreatedAt, &p.DecidedAt, &p.TicketNumbers)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("scanPurchaseRow: %w", err)
	}
	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("scanPurchaseRow: bad amount %q: %w", amount, err)
	}
	return p, nil
}

// GetRafflePurchases lists a raffle's purchases with the manual-review queue
// (pending) first.
func GetRafflePurchases(c *fiber.Ctx) error {
	raffleId, err := raffleIdParam(c)
	if err != nil {
		return err
	}
	purchases := []model.Purchase{}
	rows, err := config.DB.Query(ctx,
		`select id, buyer_names, buyer_email, buyer_phone, requested_count, amount::text, currency,
		        payment_method, payment_reference, status, rejection_reason, created_at, decided_at
		 from purchases where raffle_id = $1
		 order by (status = 'pending') desc, created_at desc`, raffleId)
	if err != nil {
		return handleServiceError(c, fmt.Errorf("GetRafflePurchases: %w", err), "GetRafflePurchases")
	}
	defer rows.Close()
	for rows.Next() {
		p := model.Purchase{RaffleId: raffleId}
		var amount string
		err = rows.Scan(&p.Id, &p.BuyerNames, &p.BuyerEmail, &p.BuyerPhone, &p.RequestedCount,
			&amount, &p.Currency, &p.PaymentMethod, &p.PaymentReference, &p.Status,
			&p.RejectionReason, &p.CreatedAt, &p.DecidedAt)
		if err != nil {
			return handleServiceError(c, fmt.Errorf("GetRafflePurchases: scan: %w", err), "GetRafflePurchases")
		}
		p.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return handleServiceError(c, fmt.Errorf("GetRafflePurchases: bad amount %q: %w", amount, err), "GetRafflePurchases")
		}
		purchases = append(purchases, p)
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": purchases})
}

func DrawWinner(c *fiber.Ctx) error {
	raffleId, err := raffleIdParam(c)
	if err != nil {
		return err
	}
	type FormData struct {
		Number string `json:"number" binding:"required" validate:"required,len=4,number"`
	}
	formData := new(FormData)
	if err := c.BodyParser(formData); err != nil || formData.Number == "" {
		c.SendStatus(400)
		return c.JSON(fiber.Map{"status": 400, "message": "Please provide all required data", "details": err})
	}
	if err := Validate.Struct(formData); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, "Provided data are not valid")
	}
	ticket, err := service.ResolveWinner(ctx, config.DB, Notifier, raffleId, formData.Number)
	if err != nil {
		if errors.Is(err, service.ErrNotSold) {
			c.SendStatus(fiber.StatusConflict)
			return c.JSON(fiber.Map{"status": fiber.StatusConflict,
				"message": "Drawn number was never sold, postpone the raffle or draw again",
				"data":    fiber.Map{"not_sold": true}})
		}
		return handleServiceError(c, err, "DrawWinner")
	}
	return c.JSON(fiber.Map{"status": 200, "message": "Winner recorded", "data": fiber.Map{
		"ticket_number": ticket.Number,
		"purchase_id":   ticket.PurchaseId,
	}})
}
