package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raffle-service/config"
	"raffle-service/model"
	"raffle-service/service"
	"raffle-service/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var Validate = validator.New()
var ctx = context.Background()

// Wired from main. Tests swap these for fakes.
var Verifier *service.Verifier
var Notifier service.Notifier = service.NoopNotifier{}

func Setup(verifier *service.Verifier, notifier service.Notifier) {
	Verifier = verifier
	if notifier != nil {
		Notifier = notifier
	}
}

func Index(c *fiber.Ctx) error {
	c.Accepts("text/plain", "application/json")
	return c.JSON(fiber.Map{"status": 200,
		"message": "Welcome to the raffle ticket API service",
	})
}

func ServiceStatusCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": 200, "message": "This API service is running!"})
}

func HealthCheck(c *fiber.Ctx) error {
	if err := config.DB.Ping(ctx); err != nil {
		c.SendStatus(fiber.StatusServiceUnavailable)
		return c.JSON(fiber.Map{"status": 503, "message": "database unreachable"})
	}
	if err := utils.RedisHealthCheck(config.Redis); err != nil {
		c.SendStatus(fiber.StatusServiceUnavailable)
		return c.JSON(fiber.Map{"status": 503, "message": "redis unreachable"})
	}
	return c.JSON(fiber.Map{"status": 200, "message": "healthy"})
}

// handleServiceError maps allocator sentinels onto HTTP statuses. Anything
// unrecognized is a system error and gets logged with a trace id.
func handleServiceError(c *fiber.Ctx, err error, operation string) error {
	switch {
	case errors.Is(err, service.ErrRaffleNotFound), errors.Is(err, service.ErrPurchaseNotFound):
		return utils.JsonErrorResponse(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrValidation):
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, err.Error())
	case errors.Is(err, service.ErrRaffleNotSellable),
		errors.Is(err, service.ErrRaffleNotFinished),
		errors.Is(err, service.ErrWinnerAlreadyDrawn),
		errors.Is(err, service.ErrInsufficientInventory):
		return utils.JsonErrorResponse(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrReservationExpired):
		return utils.JsonErrorResponse(c, fiber.StatusGone, "Your reservation expired, please pick tickets again")
	}
	return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "System error. please try again later", utils.Logger{
		LogLevel:    utils.CRITICAL,
		Message:     fmt.Sprintf("%s: %v", operation, err),
		ServiceName: config.ServiceName,
	})
}

func raffleIdParam(c *fiber.Ctx) (string, error) {
	raffleId := c.Params("raffleId")
	if _, err := uuid.Parse(raffleId); err != nil {
		return "", utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide a valid raffle id")
	}
	return raffleId, nil
}

func CreateRaffle(c *fiber.Ctx) error {
	type FormData struct {
		Title          string `json:"title" binding:"required" validate:"required,min=3,max=120"`
		PricePerTicket string `json:"price_per_ticket" binding:"required" validate:"required"`
		Currency       string `json:"currency" binding:"required" validate:"required,oneof=USD VES"`
		MinimumTickets int    `json:"minimum_tickets" validate:"gte=0"`
		DrawDeadline   string `json:"draw_deadline"`
	}
	formData := new(FormData)
	if err := c.BodyParser(formData); err != nil || formData.Title == "" {
		c.SendStatus(400)
		return c.JSON(fiber.Map{"status": 400, "message": "Please provide all required data", "details": err})
	}
	if err := Validate.Struct(formData); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, "Provided data are not valid")
	}
	price, err := decimal.NewFromString(formData.PricePerTicket)
	if err != nil || price.IsNegative() || price.IsZero() {
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, "Ticket price is not valid")
	}
	var drawDeadline *time.Time
	if formData.DrawDeadline != "" {
		deadline, err := time.Parse(time.RFC3339, formData.DrawDeadline)
		if err != nil {
			return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, "Draw deadline is not valid")
		}
		if deadline.Before(time.Now()) {
			return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, "Draw deadline is already past")
		}
		drawDeadline = &deadline
	}

	raffleId := uuid.NewString()
	_, err = config.DB.Exec(ctx,
		`insert into raffles (id, title, price_per_ticket, currency, status, ticket_space_size, minimum_tickets, draw_deadline)
		 values ($1, $2, $3::numeric, $4, 'draft', $5, $6, $7)`,
		raffleId, formData.Title, price.String(), formData.Currency, model.TicketSpaceSize, formData.MinimumTickets, drawDeadline)
	if err != nil {
		if ok, key := utils.IsErrDuplicate(err); ok {
			return utils.JsonErrorResponse(c, fiber.StatusConflict, fmt.Sprintf("Unable to save data, %s already exists", key))
		}
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Unable to save data, system error. please try again later", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     fmt.Sprintf("CreateRaffle: Unable to save data, Title:%s, err:%v", formData.Title, err),
			ServiceName: config.ServiceName,
		})
	}
	return c.JSON(fiber.Map{"status": 200, "message": "Raffle created successfully", "data": fiber.Map{"id": raffleId}})
}

func GetRaffles(c *fiber.Ctx) error {
	raffles := []model.Raffle{}
	rows, err := config.DB.Query(ctx,
		`select id, title, price_per_ticket::text, currency, status, ticket_space_size, minimum_tickets, draw_deadline, winner_ticket_id, created_at
		 from raffles order by created_at desc`)
	if err != nil {
		return handleServiceError(c, fmt.Errorf("GetRaffles: %w", err), "GetRaffles")
	}
	defer rows.Close()
	for rows.Next() {
		raffle, err := scanRaffle(rows)
		if err != nil {
			return handleServiceError(c, err, "GetRaffles")
		}
		raffles = append(raffles, *raffle)
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": raffles})
}

func GetRaffle(c *fiber.Ctx) error {
	raffleId, err := raffleIdParam(c)
	if err != nil {
		return err
	}
	row := config.DB.QueryRow(ctx,
		`select id, title, price_per_ticket::text, currency, status, ticket_space_size, minimum_tickets, draw_deadline, winner_ticket_id, created_at
		 from raffles where id = $1`, raffleId)
	raffle, err := scanRaffle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return utils.JsonErrorResponse(c, fiber.StatusNotFound, "raffle not found")
		}
		return handleServiceError(c, err, "GetRaffle")
	}
	counters := model.TicketCounters{}
	err = config.DB.QueryRow(ctx,
		`select count(*) filter (where state = 'available'),
		        count(*) filter (where state = 'held'),
		        count(*) filter (where state = 'sold')
		 from tickets where raffle_id = $1`, raffleId).
		Scan(&counters.Available, &counters.Held, &counters.Sold)
	if err != nil {
		return handleServiceError(c, fmt.Errorf("GetRaffle: counters: %w", err), "GetRaffle")
	}
	raffle.Counters = &counters
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": raffle})
}

func scanRaffle(row pgx.Row) (*model.Raffle, error) {
	raffle := &model.Raffle{}
	var price string
	err := row.Scan(&raffle.Id, &raffle.Title, &price, &raffle.Currency, &raffle.Status,
		&raffle.TicketSpaceSize, &raffle.MinimumTickets, &raffle.DrawDeadline, &raffle.WinnerTicketId, &raffle.CreatedAt)
	if err != nil {
		return nil, err
	}
	raffle.PricePerTicket, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("scanRaffle: bad price %q: %w", price, err)
	}
	return raffle, nil
}

// changeRaffleStatus guards the allowed lifecycle edges with a predicate on
// the current status, so stale admin clicks are harmless.
func changeRaffleStatus(c *fiber.Ctx, raffleId string, newStatus string, allowedFrom []string) error {
	tag, err := config.DB.Exec(ctx,
		`update raffles set status = $2 where id = $1 and status = any($3)`,
		raffleId, newStatus, allowedFrom)
	if err != nil {
		return handleServiceError(c, fmt.Errorf("changeRaffleStatus: %w", err), "changeRaffleStatus")
	}
	if tag.RowsAffected() == 0 {
		return utils.JsonErrorResponse(c, fiber.StatusConflict, "Raffle is not in a state that allows this transition")
	}
	return c.JSON(fiber.Map{"status": 200, "message": "Raffle is now " + newStatus})
}

func ActivateRaffle(c *fiber.Ctx) error {
	raffleId, err := raffleIdParam(c)
	if err != nil {
		return err
	}
	return changeRaffleStatus(c, raffleId, model.RaffleStatusActive,
		[]string{model.RaffleStatusDraft, model.RaffleStatusPostponed})
}

func FinishRaffle(c *fiber.Ctx) error {
	raffleId, err := raffleIdParam(c)
	if err != nil {
		return err
	}
	return changeRaffleStatus(c, raffleId, model.RaffleStatusFinished,
		[]string{model.RaffleStatusActive})
}

func PostponeRaffle(c *fiber.Ctx) error {
	raffleId, err := raffleIdParam(c)
	if err != nil {
		return err
	}
	type FormData struct {
		DrawDeadline string `json:"draw_deadline" binding:"required" validate:"required"`
	}
	formData := new(FormData)
	if err := c.BodyParser(formData); err != nil || formData.DrawDeadline == "" {
		c.SendStatus(400)
		return c.JSON(fiber.Map{"status": 400, "message": "Please provide all required data", "details": err})
	}
	deadline, err := time.Parse(time.RFC3339, formData.DrawDeadline)
	if err != nil || deadline.Before(time.Now()) {
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, "Draw deadline is not valid")
	}
	if err := service.Postpone(ctx, config.DB, raffleId, deadline); err != nil {
		return handleServiceError(c, err, "PostponeRaffle")
	}
	return c.JSON(fiber.Map{"status": 200, "message": "Raffle postponed and reopened"})
}

func EnsurePool(c *fiber.Ctx) error {
	raffleId, err := raffleIdParam(c)
	if err != nil {
		return err
	}
	if err := service.EnsurePool(ctx, config.DB, raffleId); err != nil {
		return handleServiceError(c, err, "EnsurePool")
	}
	return c.JSON(fiber.Map{"status": 200, "message": "Ticket pool is ready"})
}

func ReserveTickets(c *fiber.Ctx) error {
	raffleId, err := raffleIdParam(c)
	if err != nil {
		return err
	}
	type FormData struct {
		Count int `json:"count" binding:"required" validate:"required,gte=1,lte=100"`
	}
	formData := new(FormData)
	if err := c.BodyParser(formData); err != nil || formData.Count == 0 {
		c.SendStatus(400)
		return c.JSON(fiber.Map{"status": 400, "message": "Please provide all required data", "details": err})
	}
	if err := Validate.Struct(formData); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusNotAcceptable, "Provided data are not valid")
	}
	numbers, holdExpiry, err := service.Reserve(ctx, config.DB, raffleId, formData.Count)
	if err != nil {
		if errors.Is(err, service.ErrInsufficientInventory) {
			return utils.JsonErrorResponse(c, fiber.StatusConflict, "Not enough tickets left, try a smaller amount")
		}
		return handleServiceError(c, err, "ReserveTickets")
	}
	return c.JSON(fiber.Map{"status": 200, "message": "Tickets held", "data": fiber.Map{
		"ticket_numbers": numbers,
		"hold_expiry":    holdExpiry,
	}})
}

func GetLogs(c *fiber.Ctx) error {
	lines, err := utils.RecentLogs(200)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Unable to fetch logs")
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": lines})
}
