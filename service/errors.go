package service

import "errors"

// Domain failures surfaced to callers. Controllers translate these to HTTP
// statuses; everything else is an internal error.
var (
	ErrRaffleNotFound        = errors.New("raffle not found")
	ErrRaffleNotSellable     = errors.New("raffle is not open for ticket sales")
	ErrRaffleNotFinished     = errors.New("raffle is not finished")
	ErrInsufficientInventory = errors.New("not enough available tickets")
	ErrReservationExpired    = errors.New("ticket hold has expired")
	ErrPurchaseNotFound      = errors.New("purchase not found")
	ErrAlreadyProcessed      = errors.New("purchase already processed")
	ErrNotSold               = errors.New("drawn ticket was never sold")
	ErrWinnerAlreadyDrawn    = errors.New("raffle already has a winner")
	ErrValidation            = errors.New("validation failed")
)
