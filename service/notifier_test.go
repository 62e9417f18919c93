package service

import (
	"context"
	"errors"
	"testing"

	"raffle-service/model"
	"raffle-service/utils"

	"github.com/go-redis/redismock/v8"
	"github.com/goccy/go-json"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func testNotifier(t *testing.T) (*RedisNotifier, redismock.ClientMock) {
	t.Helper()
	utils.IsTestMode = true
	viper.Set("locales_dir", "../locales")
	client, mock := redismock.NewClientMock()
	return NewRedisNotifier(client, "raffle-events"), mock
}

func TestRedisNotifierPublish(t *testing.T) {
	a := assert.New(t)
	notifier, mock := testNotifier(t)

	event := model.Event{
		Type:    model.EventPurchaseConfirmed,
		Payload: map[string]any{"purchase_id": "p-1", "status": "confirmed"},
	}
	payload, err := json.Marshal(event)
	a.NoError(err)
	mock.ExpectPublish("raffle-events", payload).SetVal(1)

	notifier.Publish(context.Background(), event)
	a.NoError(mock.ExpectationsWereMet())
}

func TestRedisNotifierPublishFailureIsSwallowed(t *testing.T) {
	a := assert.New(t)
	notifier, mock := testNotifier(t)

	event := model.Event{Type: model.EventPurchaseCreated, Payload: map[string]any{"purchase_id": "p-2"}}
	payload, _ := json.Marshal(event)
	mock.ExpectPublish("raffle-events", payload).SetErr(errors.New("connection refused"))

	// Must not panic or propagate; delivery is fire and forget.
	notifier.Publish(context.Background(), event)
	a.NoError(mock.ExpectationsWereMet())
}

func TestRedisNotifierMessageLocalization(t *testing.T) {
	a := assert.New(t)
	notifier, _ := testNotifier(t)

	data := map[string]any{"Buyer": "Maria", "Count": 3, "Amount": "30.00 USD"}

	es := notifier.Message("es", model.EventPurchaseConfirmed, data)
	a.Contains(es, "Maria")
	a.Contains(es, "boleto")

	en := notifier.Message("en", model.EventPurchaseConfirmed, data)
	a.Contains(en, "Maria")
	a.Contains(en, "ticket")

	// Unknown languages fall back to English.
	fr := notifier.Message("fr", model.EventPurchaseCreated, data)
	a.Contains(fr, "ticket")

	a.Equal("", notifier.Message("en", "no_such_message", nil))
}

func TestNoopNotifier(t *testing.T) {
	a := assert.New(t)
	n := NoopNotifier{}
	n.Publish(context.Background(), model.Event{Type: model.EventWinnerDrawn})
	a.Equal("", n.Message("en", model.EventWinnerDrawn, nil))
}
