package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/phrazzld/miniminder/internal/config"
	"github.com/phrazzld/miniminder/internal/domain"
	"github.com/phrazzld/miniminder/internal/platform/logger"
	"github.com/phrazzld/miniminder/internal/redact"
)

// maxErrorBody bounds how much of a failed response is read for logging.
const maxErrorBody = 512

// WebPushDispatcher delivers notifications with webpush-go.
type WebPushDispatcher struct {
	publicKey  string
	privateKey string
	subscriber string
	ttl        int
	client     webpush.HTTPClient
	logger     *slog.Logger
}

var _ Dispatcher = (*WebPushDispatcher)(nil)

// NewWebPushDispatcher returns ErrNotConfigured unless both VAPID keys are
// set. A nil client gets an http.Client bounded by cfg.Timeout.
func NewWebPushDispatcher(cfg config.PushConfig, client webpush.HTTPClient, logger *slog.Logger) (*WebPushDispatcher, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &WebPushDispatcher{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		// webpush-go prefixes mailto: itself unless given an https URL.
		subscriber: strings.TrimPrefix(cfg.Subscriber, "mailto:"),
		ttl:        cfg.TTLSeconds,
		client:     client,
		logger:     logger.With(slog.String("component", "webpush_dispatcher")),
	}, nil
}

// PublicKey returns the VAPID application server key for clients.
func (d *WebPushDispatcher) PublicKey() string {
	return d.publicKey
}

// Deliver sends one encrypted push message. It does not retry.
func (d *WebPushDispatcher) Deliver(ctx context.Context, sub domain.Subscription, n Notification) error {
	log := logger.FromContextOrDefault(ctx, d.logger)

	payload, err := json.Marshal(n)
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("failed to encode payload: %w", err)}
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      d.client,
		Subscriber:      d.subscriber,
		VAPIDPublicKey:  d.publicKey,
		VAPIDPrivateKey: d.privateKey,
		TTL:             d.ttl,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		log.Warn("push send failed",
			slog.String("endpoint", redact.Endpoint(sub.Endpoint)),
			slog.String("error", redact.Error(err)))
		return &DeliveryError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		log.Debug("push delivered",
			slog.String("endpoint", redact.Endpoint(sub.Endpoint)),
			slog.Int("status", resp.StatusCode))
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &DeliveryError{
		StatusCode: resp.StatusCode,
		Permanent:  resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone,
		Err:        fmt.Errorf("push service responded %s: %s", resp.Status, strings.TrimSpace(string(body))),
	}
}
