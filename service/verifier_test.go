package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"raffle-service/model"
	"raffle-service/utils"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func init() {
	utils.IsTestMode = true
}

func gatewayConfig(url string) VerifierConfig {
	return VerifierConfig{
		Enabled: true,
		URL:     url,
		APIKey:  "test-key",
		Methods: []string{"pago_movil", "transfer"},
		Timeout: 2 * time.Second,
	}
}

func TestVerifierDecide(t *testing.T) {
	a := assert.New(t)

	var gotBody map[string]any
	var gotAuth string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		json.NewEncoder(w).Encode(map[string]string{"status": "paid"})
	}))
	defer gateway.Close()

	v := NewVerifier(gatewayConfig(gateway.URL))
	status := v.Decide(context.Background(), "pago_movil", decimal.RequireFromString("25.50"), "REF-00112233")

	a.Equal(model.PurchaseStatusConfirmed, status)
	a.Equal("Bearer test-key", gotAuth)
	// Minor units on the wire, reference trimmed to its suffix.
	a.Equal(float64(2550), gotBody["amount"])
	a.Equal("112233", gotBody["referenceSuffix"])
}

func TestVerifierDecideNonAffirmative(t *testing.T) {
	tests := []struct {
		description string
		handler     http.HandlerFunc
	}{
		{
			description: "gateway does not recognize the payment",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"status": "not_found"})
			},
		},
		{
			description: "gateway reports a partial match",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"status": "amount_mismatch"})
			},
		},
		{
			description: "gateway errors out",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			description: "gateway replies with garbage",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
	}
	a := assert.New(t)
	for _, test := range tests {
		gateway := httptest.NewServer(test.handler)
		v := NewVerifier(gatewayConfig(gateway.URL))
		status := v.Decide(context.Background(), "transfer", decimal.RequireFromString("10.00"), "REF-1")
		a.Equal(model.PurchaseStatusPending, status, test.description)
		gateway.Close()
	}
}

func TestVerifierDecideTimeout(t *testing.T) {
	a := assert.New(t)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]string{"status": "paid"})
	}))
	defer gateway.Close()

	cfg := gatewayConfig(gateway.URL)
	cfg.Timeout = 50 * time.Millisecond
	v := NewVerifier(cfg)
	status := v.Decide(context.Background(), "pago_movil", decimal.RequireFromString("10.00"), "REF-1")
	a.Equal(model.PurchaseStatusPending, status, "a slow gateway must not block the purchase")
}

func TestVerifierSkipsManualMethods(t *testing.T) {
	a := assert.New(t)
	called := false
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		json.NewEncoder(w).Encode(map[string]string{"status": "paid"})
	}))
	defer gateway.Close()

	v := NewVerifier(gatewayConfig(gateway.URL))
	a.Equal(model.PurchaseStatusPending, v.Decide(context.Background(), "cash", decimal.RequireFromString("10.00"), "REF-1"))
	a.False(called, "cash payments have no automatic verification")

	disabled := gatewayConfig(gateway.URL)
	disabled.Enabled = false
	v = NewVerifier(disabled)
	a.Equal(model.PurchaseStatusPending, v.Decide(context.Background(), "pago_movil", decimal.RequireFromString("10.00"), "REF-1"))
	a.False(called, "disabled verifier never calls out")
}

func TestReferenceSuffix(t *testing.T) {
	a := assert.New(t)
	a.Equal("445566", ReferenceSuffix("00112233445566"))
	a.Equal("1234", ReferenceSuffix("1234"))
	a.Equal("123456", ReferenceSuffix("123456"))
	a.Equal("", ReferenceSuffix(""))
}
