package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"raffle-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func init() {
	utils.IsTestMode = true
}

func TestIndex(t *testing.T) {
	app := fiber.New()
	app.Get("/", Index)

	resp, _ := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	assert.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Welcome to the raffle ticket API service")
}

func TestCreateRaffleValidation(t *testing.T) {
	app := fiber.New()
	app.Post("/raffle", CreateRaffle)

	tests := []struct {
		description  string
		payload      map[string]any
		expectedCode int
		expectedBody string
	}{
		{
			description:  "missing fields",
			payload:      map[string]any{},
			expectedCode: 400,
			expectedBody: "Please provide all required data",
		},
		{
			description: "unsupported currency",
			payload: map[string]any{
				"title":            "Moto 0KM",
				"price_per_ticket": "10.00",
				"currency":         "EUR",
			},
			expectedCode: 406,
			expectedBody: "Provided data are not valid",
		},
		{
			description: "price is not a number",
			payload: map[string]any{
				"title":            "Moto 0KM",
				"price_per_ticket": "ten dollars",
				"currency":         "USD",
			},
			expectedCode: 406,
			expectedBody: "Ticket price is not valid",
		},
		{
			description: "zero price",
			payload: map[string]any{
				"title":            "Moto 0KM",
				"price_per_ticket": "0",
				"currency":         "USD",
			},
			expectedCode: 406,
			expectedBody: "Ticket price is not valid",
		},
		{
			description: "deadline already past",
			payload: map[string]any{
				"title":            "Moto 0KM",
				"price_per_ticket": "10.00",
				"currency":         "USD",
				"draw_deadline":    "2020-01-01T00:00:00Z",
			},
			expectedCode: 406,
			expectedBody: "Draw deadline is already past",
		},
		{
			description: "malformed deadline",
			payload: map[string]any{
				"title":            "Moto 0KM",
				"price_per_ticket": "10.00",
				"currency":         "USD",
				"draw_deadline":    "tomorrow",
			},
			expectedCode: 406,
			expectedBody: "Draw deadline is not valid",
		},
	}

	a := assert.New(t)
	for _, test := range tests {
		reqBody, _ := json.Marshal(test.payload)
		req := httptest.NewRequest("POST", "/raffle", bytes.NewReader(reqBody))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req, -1)
		a.Equal(test.expectedCode, resp.StatusCode, test.description)
		body, _ := io.ReadAll(resp.Body)
		a.Contains(string(body), test.expectedBody, test.description)
	}
}

func TestRaffleIdValidation(t *testing.T) {
	app := fiber.New()
	app.Post("/raffle/:raffleId/activate", ActivateRaffle)
	app.Post("/raffle/:raffleId/reserve", ReserveTickets)

	a := assert.New(t)
	for _, path := range []string{"/raffle/not-a-uuid/activate", "/raffle/123/reserve"} {
		req := httptest.NewRequest("POST", path, bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req, -1)
		a.Equal(400, resp.StatusCode, path)
		body, _ := io.ReadAll(resp.Body)
		a.Contains(string(body), "Please provide a valid raffle id", path)
	}
}

func TestReserveTicketsValidation(t *testing.T) {
	app := fiber.New()
	app.Post("/raffle/:raffleId/reserve", ReserveTickets)

	tests := []struct {
		description  string
		payload      map[string]any
		expectedCode int
		expectedBody string
	}{
		{
			description:  "missing count",
			payload:      map[string]any{},
			expectedCode: 400,
			expectedBody: "Please provide all required data",
		},
		{
			description:  "negative count",
			payload:      map[string]any{"count": -2},
			expectedCode: 406,
			expectedBody: "Provided data are not valid",
		},
		{
			description:  "count above the per-request cap",
			payload:      map[string]any{"count": 500},
			expectedCode: 406,
			expectedBody: "Provided data are not valid",
		},
	}

	a := assert.New(t)
	for _, test := range tests {
		reqBody, _ := json.Marshal(test.payload)
		req := httptest.NewRequest("POST", "/raffle/6f1e6e32-7e6e-4d59-bb9a-12f0b40ab001/reserve", bytes.NewReader(reqBody))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req, -1)
		a.Equal(test.expectedCode, resp.StatusCode, test.description)
		body, _ := io.ReadAll(resp.Body)
		a.Contains(string(body), test.expectedBody, test.description)
	}
}

func TestPostponeRaffleValidation(t *testing.T) {
	app := fiber.New()
	app.Post("/raffle/:raffleId/postpone", PostponeRaffle)

	a := assert.New(t)
	reqBody, _ := json.Marshal(map[string]any{"draw_deadline": "2020-01-01T00:00:00Z"})
	req := httptest.NewRequest("POST", "/raffle/6f1e6e32-7e6e-4d59-bb9a-12f0b40ab001/postpone", bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	a.Equal(406, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	a.Contains(string(body), "Draw deadline is not valid")
}
