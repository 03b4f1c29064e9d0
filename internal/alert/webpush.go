package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	log "github.com/sirupsen/logrus"

	"park-timer-backend/internal/model"
	"park-timer-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// pushPayload is what front-desk browsers receive. The service worker
// speaks "speech" payloads and plays "chime" payloads through an
// oscillator.
type pushPayload struct {
	Kind      string     `json:"kind"`
	VisitorID string     `json:"visitor_id"`
	Name      string     `json:"name"`
	Text      string     `json:"text,omitempty"`
	Lang      string     `json:"lang,omitempty"`
	Tones     []pushTone `json:"tones,omitempty"`
}

type pushTone struct {
	FrequencyHz int    `json:"frequency_hz"`
	DurationMs  int64  `json:"duration_ms"`
	OffsetMs    int64  `json:"offset_ms"`
	Waveform    string `json:"waveform"`
}

// WebPushBroadcaster delivers both alert channels to every subscribed
// front-desk browser.
type WebPushBroadcaster struct {
	subs    store.SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWebPushBroadcaster creates a broadcaster backed by the subscription store.
func NewWebPushBroadcaster(subs store.SubscriptionStore, options *webpush.Options) *WebPushBroadcaster {
	return &WebPushBroadcaster{
		subs:    subs,
		webpush: options,
		sender:  &WebPushSender{},
	}
}

// SetSender replaces the push transport.
func (b *WebPushBroadcaster) SetSender(sender NotificationSender) {
	b.sender = sender
}

// Speak pushes the spoken announcement.
func (b *WebPushBroadcaster) Speak(ctx context.Context, a Alert) error {
	return b.broadcast(ctx, pushPayload{
		Kind:      "speech",
		VisitorID: a.VisitorID,
		Name:      a.Name,
		Text:      a.Announcement,
		Lang:      SpeechLang,
	})
}

// Chime pushes the tone sequence.
func (b *WebPushBroadcaster) Chime(ctx context.Context, a Alert) error {
	tones := make([]pushTone, 0, len(a.Tones))
	for _, t := range a.Tones {
		tones = append(tones, pushTone{
			FrequencyHz: t.FrequencyHz,
			DurationMs:  t.Duration.Milliseconds(),
			OffsetMs:    t.Offset.Milliseconds(),
			Waveform:    t.Waveform,
		})
	}
	return b.broadcast(ctx, pushPayload{
		Kind:      "chime",
		VisitorID: a.VisitorID,
		Name:      a.Name,
		Tones:     tones,
	})
}

func (b *WebPushBroadcaster) broadcast(ctx context.Context, payload pushPayload) error {
	if b.webpush == nil || b.webpush.VAPIDPrivateKey == "" {
		return fmt.Errorf("%w: vapid keys are not configured", ErrChannelUnavailable)
	}

	subscriptions, err := b.subs.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	if len(subscriptions) == 0 {
		return fmt.Errorf("%w: no front-desk subscriptions", ErrChannelUnavailable)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", payload.Kind, err)
	}

	delivered := 0
	for _, sub := range subscriptions {
		if b.send(ctx, sub, body) {
			delivered++
		}
	}
	if delivered == 0 {
		return fmt.Errorf("%s push reached none of %d subscriptions", payload.Kind, len(subscriptions))
	}
	return nil
}

// send delivers one push and reports whether the browser accepted it.
func (b *WebPushBroadcaster) send(ctx context.Context, sub model.PushSubscription, payload []byte) bool {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := b.sender.Send(payload, wpSub, b.webpush)
	if err != nil {
		log.Printf("Error sending alert to %s: %v", sub.Endpoint, err)
		return false
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := b.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
		return false
	}
	return resp.StatusCode < 300
}
