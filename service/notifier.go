package service

import (
	"context"
	"fmt"
	"path/filepath"

	"raffle-service/config"
	"raffle-service/model"
	"raffle-service/utils"

	"github.com/BurntSushi/toml"
	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// Notifier receives allocator domain events. Implementations must be fire
// and forget: a delivery failure may be logged but never propagates back
// into ticket or purchase state.
type Notifier interface {
	Publish(ctx context.Context, event model.Event)
	Message(lang string, messageID string, data map[string]any) string
}

// RedisNotifier publishes events on a pub/sub channel that the delivery
// workers (email/WhatsApp) subscribe to.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	bundle  *i18n.Bundle
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = "raffle-events"
	}
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	localesDir := viper.GetString("locales_dir")
	if localesDir == "" {
		localesDir = "locales"
	}
	for _, file := range []string{"notifier.en.toml", "notifier.es.toml"} {
		if _, err := bundle.LoadMessageFile(filepath.Join(localesDir, file)); err != nil {
			utils.LogMessage(utils.ERROR, "notifier: unable to load translations from "+file+": "+err.Error(), config.ServiceName)
		}
	}
	return &RedisNotifier{client: client, channel: channel, bundle: bundle}
}

func (n *RedisNotifier) Publish(ctx context.Context, event model.Event) {
	defer utils.PanicRecover()
	payload, err := json.Marshal(event)
	if err != nil {
		utils.LogMessage(utils.ERROR, fmt.Sprintf("notifier: unable to marshal %s event: %v", event.Type, err), config.ServiceName)
		return
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		utils.LogMessage(utils.ERROR, fmt.Sprintf("notifier: publish %s failed: %v", event.Type, err), config.ServiceName)
	}
}

// Message renders the localized buyer-facing text embedded in event
// payloads. Unknown languages fall back to English.
func (n *RedisNotifier) Message(lang string, messageID string, data map[string]any) string {
	localizer := i18n.NewLocalizer(n.bundle, lang, "en")
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID, TemplateData: data})
	if err != nil {
		utils.LogMessage(utils.ERROR, fmt.Sprintf("notifier: localize %s (%s) failed: %v", messageID, lang, err), config.ServiceName)
		return ""
	}
	return msg
}

// NoopNotifier drops every event. Used where no notifier is wired.
type NoopNotifier struct{}

func (NoopNotifier) Publish(ctx context.Context, event model.Event) {}

func (NoopNotifier) Message(lang string, messageID string, data map[string]any) string { return "" }
