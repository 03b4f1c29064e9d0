package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"park-timer-backend/internal/model"
	"park-timer-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// memorySubscriptions is an in-memory SubscriptionStore.
type memorySubscriptions struct {
	mu      sync.Mutex
	subs    map[string]model.PushSubscription
	listErr error
}

func newMemorySubscriptions(subs ...model.PushSubscription) *memorySubscriptions {
	m := &memorySubscriptions{subs: make(map[string]model.PushSubscription)}
	for _, s := range subs {
		m.subs[s.Endpoint] = s
	}
	return m
}

func (m *memorySubscriptions) ListSubscriptions(context.Context) ([]model.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]model.PushSubscription, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out, nil
}

func (m *memorySubscriptions) GetSubscription(_ context.Context, endpoint string) (*model.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[endpoint]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (m *memorySubscriptions) PutSubscription(_ context.Context, sub *model.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.Endpoint] = *sub
	return nil
}

func (m *memorySubscriptions) DeleteSubscription(_ context.Context, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, endpoint)
	return nil
}

func respond(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

var testOptions = &webpush.Options{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv", TTL: 60}

func TestWebPushBroadcaster_Speak(t *testing.T) {
	subs := newMemorySubscriptions(model.PushSubscription{Endpoint: "https://example.com/push", P256DH: "p256dh", Auth: "auth"})
	b := NewWebPushBroadcaster(subs, testOptions)

	var got pushPayload
	b.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			assert.Equal(t, "https://example.com/push", sub.Endpoint)
			assert.Equal(t, "p256dh", sub.Keys.P256dh)
			require.NoError(t, json.Unmarshal(payload, &got))
			return respond(http.StatusCreated), nil
		},
	}

	err := b.Speak(context.Background(), NewExpiredAlert("v-1", "Sofia", time.Now()))
	require.NoError(t, err)

	assert.Equal(t, "speech", got.Kind)
	assert.Equal(t, "v-1", got.VisitorID)
	assert.Equal(t, Announcement("Sofia"), got.Text)
	assert.Equal(t, SpeechLang, got.Lang)
}

func TestWebPushBroadcaster_Chime(t *testing.T) {
	subs := newMemorySubscriptions(model.PushSubscription{Endpoint: "https://example.com/push"})
	b := NewWebPushBroadcaster(subs, testOptions)

	var got pushPayload
	b.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			require.NoError(t, json.Unmarshal(payload, &got))
			return respond(http.StatusCreated), nil
		},
	}

	require.NoError(t, b.Chime(context.Background(), NewExpiredAlert("v-1", "Sofia", time.Now())))

	assert.Equal(t, "chime", got.Kind)
	assert.Equal(t, []pushTone{
		{FrequencyHz: 880, DurationMs: 1000, OffsetMs: 0, Waveform: "sine"},
		{FrequencyHz: 1100, DurationMs: 800, OffsetMs: 300, Waveform: "sine"},
	}, got.Tones)
}

func TestWebPushBroadcaster_DeletesExpiredSubscription(t *testing.T) {
	subs := newMemorySubscriptions(model.PushSubscription{Endpoint: "https://example.com/expired"})
	b := NewWebPushBroadcaster(subs, testOptions)
	b.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			return respond(http.StatusGone), nil
		},
	}

	err := b.Speak(context.Background(), NewExpiredAlert("v-1", "Sofia", time.Now()))
	assert.Error(t, err)

	_, err = subs.GetSubscription(context.Background(), "https://example.com/expired")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWebPushBroadcaster_PartialDeliveryIsSuccess(t *testing.T) {
	subs := newMemorySubscriptions(
		model.PushSubscription{Endpoint: "https://example.com/ok"},
		model.PushSubscription{Endpoint: "https://example.com/broken"},
	)
	b := NewWebPushBroadcaster(subs, testOptions)
	b.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			if sub.Endpoint == "https://example.com/broken" {
				return nil, errors.New("connection refused")
			}
			return respond(http.StatusCreated), nil
		},
	}

	assert.NoError(t, b.Chime(context.Background(), NewExpiredAlert("v-1", "Sofia", time.Now())))
}

func TestWebPushBroadcaster_Unavailable(t *testing.T) {
	a := NewExpiredAlert("v-1", "Sofia", time.Now())

	t.Run("no subscriptions", func(t *testing.T) {
		b := NewWebPushBroadcaster(newMemorySubscriptions(), testOptions)
		assert.ErrorIs(t, b.Speak(context.Background(), a), ErrChannelUnavailable)
	})

	t.Run("no vapid keys", func(t *testing.T) {
		subs := newMemorySubscriptions(model.PushSubscription{Endpoint: "https://example.com/push"})
		b := NewWebPushBroadcaster(subs, &webpush.Options{})
		assert.ErrorIs(t, b.Chime(context.Background(), a), ErrChannelUnavailable)

		b = NewWebPushBroadcaster(subs, nil)
		assert.ErrorIs(t, b.Speak(context.Background(), a), ErrChannelUnavailable)
	})

	t.Run("subscription lookup fails", func(t *testing.T) {
		subs := newMemorySubscriptions()
		subs.listErr = errors.New("database is down")
		b := NewWebPushBroadcaster(subs, testOptions)
		assert.ErrorIs(t, b.Speak(context.Background(), a), ErrChannelUnavailable)
	})
}
