package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func validPurchasePayload() map[string]any {
	return map[string]any{
		"ticket_numbers":    []string{"0042", "0043"},
		"buyer_names":       "Maria Perez",
		"buyer_email":       "maria@example.com",
		"buyer_phone":       "+584121234567",
		"payment_method":    "pago_movil",
		"payment_reference": "00112233445566",
	}
}

func TestCreatePurchaseValidation(t *testing.T) {
	app := fiber.New()
	app.Post("/raffle/:raffleId/purchase", CreatePurchase)

	tests := []struct {
		description  string
		mutate       func(p map[string]any)
		expectedCode int
		expectedBody string
	}{
		{
			description:  "missing ticket numbers",
			mutate:       func(p map[string]any) { delete(p, "ticket_numbers") },
			expectedCode: 400,
			expectedBody: "Please provide all required data",
		},
		{
			description:  "ticket number with wrong length",
			mutate:       func(p map[string]any) { p["ticket_numbers"] = []string{"42"} },
			expectedCode: 406,
			expectedBody: "Provided data are not valid",
		},
		{
			description:  "ticket number with letters",
			mutate:       func(p map[string]any) { p["ticket_numbers"] = []string{"00AB"} },
			expectedCode: 406,
			expectedBody: "Provided data are not valid",
		},
		{
			description:  "bad email",
			mutate:       func(p map[string]any) { p["buyer_email"] = "not-an-email" },
			expectedCode: 406,
			expectedBody: "Provided data are not valid",
		},
		{
			description:  "unknown payment method",
			mutate:       func(p map[string]any) { p["payment_method"] = "paypal" },
			expectedCode: 406,
			expectedBody: "Provided data are not valid",
		},
		{
			description:  "unknown locale",
			mutate:       func(p map[string]any) { p["buyer_locale"] = "pt" },
			expectedCode: 406,
			expectedBody: "Provided data are not valid",
		},
	}

	a := assert.New(t)
	for _, test := range tests {
		payload := validPurchasePayload()
		test.mutate(payload)
		reqBody, _ := json.Marshal(payload)
		req := httptest.NewRequest("POST", "/raffle/6f1e6e32-7e6e-4d59-bb9a-12f0b40ab001/purchase", bytes.NewReader(reqBody))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req, -1)
		a.Equal(test.expectedCode, resp.StatusCode, test.description)
		body, _ := io.ReadAll(resp.Body)
		a.Contains(string(body), test.expectedBody, test.description)
	}
}

func TestDecidePurchaseValidation(t *testing.T) {
	app := fiber.New()
	app.Post("/purchase/:purchaseId/decision", DecidePurchase)

	tests := []struct {
		description  string
		purchaseId   string
		payload      map[string]any
		expectedCode int
		expectedBody string
	}{
		{
			description:  "bad purchase id",
			purchaseId:   "not-a-uuid",
			payload:      map[string]any{"decision": "confirm"},
			expectedCode: 400,
			expectedBody: "Please provide a valid purchase id",
		},
		{
			description:  "missing decision",
			purchaseId:   "6f1e6e32-7e6e-4d59-bb9a-12f0b40ab001",
			payload:      map[string]any{},
			expectedCode: 400,
			expectedBody: "Please provide all required data",
		},
		{
			description:  "unknown decision",
			purchaseId:   "6f1e6e32-7e6e-4d59-bb9a-12f0b40ab001",
			payload:      map[string]any{"decision": "maybe"},
			expectedCode: 406,
			expectedBody: "Provided data are not valid",
		},
		{
			description:  "unknown rejection reason",
			purchaseId:   "6f1e6e32-7e6e-4d59-bb9a-12f0b40ab001",
			payload:      map[string]any{"decision": "reject", "rejection_reason": "just because"},
			expectedCode: 406,
			expectedBody: "Provided data are not valid",
		},
		{
			description:  "reject without a reason",
			purchaseId:   "6f1e6e32-7e6e-4d59-bb9a-12f0b40ab001",
			payload:      map[string]any{"decision": "reject"},
			expectedCode: 406,
			expectedBody: "a rejection reason is required",
		},
		{
			description:  "malicious rejection without a comment",
			purchaseId:   "6f1e6e32-7e6e-4d59-bb9a-12f0b40ab001",
			payload:      map[string]any{"decision": "reject", "rejection_reason": "malicious"},
			expectedCode: 406,
			expectedBody: "a rejection comment is required",
		},
	}

	a := assert.New(t)
	for _, test := range tests {
		reqBody, _ := json.Marshal(test.payload)
		req := httptest.NewRequest("POST", "/purchase/"+test.purchaseId+"/decision", bytes.NewReader(reqBody))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req, -1)
		a.Equal(test.expectedCode, resp.StatusCode, test.description)
		body, _ := io.ReadAll(resp.Body)
		a.Contains(string(body), test.expectedBody, test.description)
	}
}

func TestDrawWinnerValidation(t *testing.T) {
	app := fiber.New()
	app.Post("/raffle/:raffleId/draw", DrawWinner)

	tests := []struct {
		description  string
		payload      map[string]any
		expectedCode int
		expectedBody string
	}{
		{
			description:  "missing number",
			payload:      map[string]any{},
			expectedCode: 400,
			expectedBody: "Please provide all required data",
		},
		{
			description:  "number too short",
			payload:      map[string]any{"number": "42"},
			expectedCode: 406,
			expectedBody: "Provided data are not valid",
		},
		{
			description:  "number with letters",
			payload:      map[string]any{"number": "12a4"},
			expectedCode: 406,
			expectedBody: "Provided data are not valid",
		},
	}

	a := assert.New(t)
	for _, test := range tests {
		reqBody, _ := json.Marshal(test.payload)
		req := httptest.NewRequest("POST", "/raffle/6f1e6e32-7e6e-4d59-bb9a-12f0b40ab001/draw", bytes.NewReader(reqBody))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req, -1)
		a.Equal(test.expectedCode, resp.StatusCode, test.description)
		body, _ := io.ReadAll(resp.Body)
		a.Contains(string(body), test.expectedBody, test.description)
	}
}
