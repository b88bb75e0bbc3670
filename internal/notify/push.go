package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stockalert/internal/config"

	webpush "github.com/SherClockHolmes/webpush-go"
	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// ErrNoSubscription reports a subscriber without a stored subscription.
var ErrNoSubscription = errors.New("no push subscription")

// pushPayload is the JSON body delivered to browsers.
type pushPayload struct {
	Title string          `json:"title"`
	Body  string          `json:"body"`
	Icon  string          `json:"icon,omitempty"`
	Badge string          `json:"badge,omitempty"`
	Data  pushPayloadData `json:"data"`
}

type pushPayloadData struct {
	URL       string `json:"url"`
	ProductID string `json:"productId"`
	Type      string `json:"type"`
}

// PushSender delivers alerts to web push and telegram subscriptions.
// Params: subscriber store, VAPID options, optional telegram bot, and link base URL.
// Returns: PushNotifier implementation that drops subscriptions on permanent failures.
type PushSender struct {
	subscribers SubscriberStore
	linkURL     string
	timeout     time.Duration
	logger      *slog.Logger

	vapid      webpush.Options
	vapidReady bool

	telegram    *tgbot.Bot
	telegramErr error
}

// NewPushSender builds push sender from config.
// Params: push config after defaults, subscriber store, and logger.
// Returns: sender; missing transports fail per send instead of at startup.
func NewPushSender(cfg config.PushConfig, subscribers SubscriberStore, logger *slog.Logger) *PushSender {
	if logger == nil {
		logger = slog.Default()
	}
	sender := &PushSender{
		subscribers: subscribers,
		linkURL:     strings.TrimRight(strings.TrimSpace(cfg.LinkURL), "/"),
		timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
		logger:      logger,
	}
	if sender.timeout <= 0 {
		sender.timeout = 10 * time.Second
	}

	if cfg.WebPush.Enabled() {
		sender.vapidReady = true
		sender.vapid = webpush.Options{
			HTTPClient:      &http.Client{Timeout: sender.timeout},
			Subscriber:      cfg.WebPush.Subscriber,
			VAPIDPublicKey:  strings.TrimSpace(cfg.WebPush.VAPIDPublicKey),
			VAPIDPrivateKey: strings.TrimSpace(cfg.WebPush.VAPIDPrivateKey),
			TTL:             cfg.WebPush.TTLSec,
			Urgency:         webpush.Urgency(strings.ToLower(strings.TrimSpace(cfg.WebPush.Urgency))),
		}
	}

	if cfg.Telegram.Enabled() {
		botClient, err := tgbot.New(cfg.Telegram.BotToken,
			tgbot.WithSkipGetMe(),
			tgbot.WithServerURL(strings.TrimRight(cfg.Telegram.APIBase, "/")),
		)
		if err != nil {
			sender.telegramErr = fmt.Errorf("init telegram bot: %w", err)
		} else {
			sender.telegram = botClient
		}
	} else {
		sender.telegramErr = errors.New("telegram transport is not configured")
	}
	return sender
}

// VAPIDPublicKey returns key browsers need to subscribe; empty when web push is off.
func (s *PushSender) VAPIDPublicKey() string {
	if !s.vapidReady {
		return ""
	}
	return s.vapid.VAPIDPublicKey
}

// Subscribe validates and stores subscription of subscriber.
// Params: subscriber ID and subscription.
// Returns: validation error or unsupported transport error.
func (s *PushSender) Subscribe(subscriberID string, subscription Subscription) error {
	subscriberID = strings.TrimSpace(subscriberID)
	if subscriberID == "" {
		return errors.New("subscriber id is required")
	}
	subscription = subscription.Normalize()
	if err := subscription.Validate(); err != nil {
		return err
	}
	switch subscription.Kind {
	case SubscriptionWebPush:
		if !s.vapidReady {
			return errors.New("web push is not configured")
		}
	case SubscriptionTelegram:
		if s.telegram == nil {
			return s.telegramErr
		}
	}
	s.subscribers.Put(subscriberID, subscription)
	return nil
}

// SendPush delivers alert to the subscription of subscriberID.
// Params: context, subscriber ID, and alert.
// Returns: ErrNoSubscription, transport error, or permanent error after dropping the subscription.
func (s *PushSender) SendPush(ctx context.Context, subscriberID string, alert Alert) error {
	subscription, ok := s.subscribers.Get(subscriberID)
	if !ok {
		return fmt.Errorf("%w for subscriber %q", ErrNoSubscription, subscriberID)
	}

	var err error
	switch subscription.Kind {
	case SubscriptionTelegram:
		err = s.sendTelegram(ctx, subscription, alert)
	default:
		err = s.sendWebPush(ctx, subscription, alert)
	}
	if IsPermanent(err) {
		s.subscribers.Delete(subscriberID)
		s.logger.Info("push subscription removed", "subscriber", subscriberID, "kind", subscription.Kind, "error", err)
	}
	return err
}

// buildPayload renders browser notification payload.
func (s *PushSender) buildPayload(alert Alert) pushPayload {
	productID := alert.Notification.ProductID
	return pushPayload{
		Title: alert.Notification.Title,
		Body:  alert.Notification.Message,
		Icon:  "/icon-192x192.png",
		Badge: "/badge-72x72.png",
		Data: pushPayloadData{
			URL:       s.linkURL + "/products/" + productID,
			ProductID: productID,
			Type:      strings.ToUpper(string(alert.Notification.Kind)),
		},
	}
}

func (s *PushSender) sendWebPush(ctx context.Context, subscription Subscription, alert Alert) error {
	if !s.vapidReady {
		return errors.New("web push is not configured")
	}
	body, err := json.Marshal(s.buildPayload(alert))
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	options := s.vapid
	response, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: subscription.Endpoint,
		Keys: webpush.Keys{
			Auth:   subscription.Keys.Auth,
			P256dh: subscription.Keys.P256dh,
		},
	}, &options)
	if err != nil {
		return fmt.Errorf("webpush send: %w", err)
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode >= 200 && response.StatusCode < 300:
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	case response.StatusCode == http.StatusNotFound || response.StatusCode == http.StatusGone:
		return MarkPermanent(unexpectedStatusError("webpush subscription expired", response))
	default:
		return unexpectedStatusError("webpush send", response)
	}
}

func (s *PushSender) sendTelegram(ctx context.Context, subscription Subscription, alert Alert) error {
	if s.telegram == nil {
		return s.telegramErr
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text := "<b>" + escapeHTML(alert.Notification.Title) + "</b>\n" + escapeHTML(alert.Notification.Message)
	sent, err := s.telegram.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    normalizeChatID(subscription.ChatID),
		Text:      text,
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		if errors.Is(err, tgbot.ErrorForbidden) {
			return MarkPermanent(fmt.Errorf("telegram send: %w", err))
		}
		return fmt.Errorf("telegram send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return errors.New("telegram send returned empty message id")
	}
	return nil
}

// unexpectedStatusError formats status with trimmed response body.
func unexpectedStatusError(prefix string, response *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(response.Body, 4<<10))
	if err != nil {
		return fmt.Errorf("%s status=%d (read body error: %w)", prefix, response.StatusCode, err)
	}
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return fmt.Errorf("%s status=%d", prefix, response.StatusCode)
	}
	return fmt.Errorf("%s status=%d body=%s", prefix, response.StatusCode, body)
}

// normalizeChatID converts numeric chat IDs to int64 and keeps @channel names as string.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(value string) string {
	return htmlEscaper.Replace(value)
}
