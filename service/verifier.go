package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"raffle-service/config"
	"raffle-service/model"
	"raffle-service/monitoring"
	"raffle-service/utils"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// referenceSuffixLen is how many trailing characters of the buyer's payment
// reference the gateway matches against.
const referenceSuffixLen = 6

// VerifierConfig carries the gateway credentials explicitly instead of
// reading them from ambient process state, so the policy stays testable
// without network access.
type VerifierConfig struct {
	Enabled bool
	URL     string
	APIKey  string
	// Methods lists the payment methods with automatic verification; any
	// other method goes straight to manual review.
	Methods []string
	Timeout time.Duration
}

func LoadVerifierConfig() VerifierConfig {
	return VerifierConfig{
		Enabled: viper.GetBool("verification.enabled"),
		URL:     viper.GetString("verification.url"),
		APIKey:  viper.GetString("verification.api_key"),
		Methods: viper.GetStringSlice("verification.methods"),
		Timeout: config.VerificationTimeout,
	}
}

type Verifier struct {
	cfg VerifierConfig
	hc  *http.Client
}

func NewVerifier(cfg VerifierConfig) *Verifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.VerificationTimeout
	}
	return &Verifier{cfg: cfg, hc: &http.Client{Timeout: cfg.Timeout}}
}

// Decide computes the initial purchase status. Gateway timeouts, network
// failures and non-affirmative replies all downgrade to pending; the buyer
// never sees a hard failure from here.
func (v *Verifier) Decide(ctx context.Context, paymentMethod string, amount decimal.Decimal, paymentReference string) string {
	if !v.automatic(paymentMethod) {
		return model.PurchaseStatusPending
	}
	start := time.Now()
	paid, err := v.checkPayment(ctx, amount, ReferenceSuffix(paymentReference))
	if err != nil {
		monitoring.TrackVerification("error", time.Since(start))
		utils.LogMessage(utils.ERROR, fmt.Sprintf("verifier: gateway check failed, deferring to manual review: %v", err), config.ServiceName)
		return model.PurchaseStatusPending
	}
	if !paid {
		monitoring.TrackVerification("unmatched", time.Since(start))
		return model.PurchaseStatusPending
	}
	monitoring.TrackVerification("paid", time.Since(start))
	return model.PurchaseStatusConfirmed
}

func (v *Verifier) automatic(paymentMethod string) bool {
	if !v.cfg.Enabled || v.cfg.URL == "" {
		return false
	}
	for _, m := range v.cfg.Methods {
		if m == paymentMethod {
			return true
		}
	}
	return false
}

func (v *Verifier) checkPayment(ctx context.Context, amount decimal.Decimal, referenceSuffix string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	// The gateway wire format takes an integer amount; send minor units so
	// decimal prices survive.
	b, err := json.Marshal(map[string]any{
		"amount":          amount.Shift(2).IntPart(),
		"referenceSuffix": referenceSuffix,
	})
	if err != nil {
		return false, fmt.Errorf("checkPayment: json.Marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.URL, bytes.NewBuffer(b))
	if err != nil {
		return false, fmt.Errorf("checkPayment: http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.cfg.APIKey)
	}

	resp, err := v.hc.Do(req)
	if err != nil {
		return false, fmt.Errorf("checkPayment: http.Client.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		rbody, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("checkPayment: resp.StatusCode: %d, resp.Body: %s", resp.StatusCode, rbody)
	}

	var reply struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return false, fmt.Errorf("checkPayment: json.Decode: %w", err)
	}
	// Only an exact "paid" is affirmative.
	return reply.Status == "paid", nil
}

// ReferenceSuffix returns the trailing characters of a payment reference the
// gateway matches on.
func ReferenceSuffix(reference string) string {
	if len(reference) <= referenceSuffixLen {
		return reference
	}
	return reference[len(reference)-referenceSuffixLen:]
}
