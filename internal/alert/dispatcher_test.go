package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingChannel records every alert it receives and can be told to fail.
type recordingChannel struct {
	mu       sync.Mutex
	received []Alert
	err      error
	done     chan struct{}
}

func newRecordingChannel(err error) *recordingChannel {
	return &recordingChannel{err: err, done: make(chan struct{}, 8)}
}

func (c *recordingChannel) record(a Alert) error {
	c.mu.Lock()
	c.received = append(c.received, a)
	c.mu.Unlock()
	c.done <- struct{}{}
	return c.err
}

func (c *recordingChannel) Speak(_ context.Context, a Alert) error { return c.record(a) }
func (c *recordingChannel) Chime(_ context.Context, a Alert) error { return c.record(a) }

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

func TestAnnouncement(t *testing.T) {
	assert.Equal(t,
		"Sofia ha acabado su tiempo. Sofia ha acabado su tiempo. Sofia ha acabado su tiempo.",
		Announcement("Sofia"))
	assert.Equal(t, Announcement("Mateo"), Announcement("  Mateo "))
}

func TestNewExpiredAlert(t *testing.T) {
	at := time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC)
	a := NewExpiredAlert("v-1", "Sofia", at)

	assert.Equal(t, "v-1", a.VisitorID)
	assert.Equal(t, Announcement("Sofia"), a.Announcement)
	assert.Equal(t, at, a.At)
	require.Len(t, a.Tones, 2)
	assert.Equal(t, 880, a.Tones[0].FrequencyHz)
	assert.Equal(t, time.Second, a.Tones[0].Duration)
	assert.Equal(t, 1100, a.Tones[1].FrequencyHz)
	assert.Equal(t, 800*time.Millisecond, a.Tones[1].Duration)
	assert.Equal(t, 300*time.Millisecond, a.Tones[1].Offset)

	// The alert owns its copy of the chime.
	a.Tones[0].FrequencyHz = 1
	assert.Equal(t, 880, ExpirationChime[0].FrequencyHz)
}

func TestDispatcher_Dispatch(t *testing.T) {
	d := NewDispatcher(1, nil, nil)

	d.Dispatch(Alert{VisitorID: "v-1"})

	select {
	case job := <-d.Jobs():
		assert.Equal(t, "v-1", job.VisitorID)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for alert to be queued")
	}
}

func TestDispatcher_DispatchNeverBlocks(t *testing.T) {
	d := NewDispatcher(1, nil, nil)

	finished := make(chan struct{})
	go func() {
		for i := 0; i < queueDepth*3; i++ {
			d.Dispatch(Alert{VisitorID: "v"})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(1 * time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}
	assert.Len(t, d.Jobs(), queueDepth)
}

func TestDispatcher_Muted(t *testing.T) {
	speaker := newRecordingChannel(nil)
	d := NewDispatcher(1, speaker, nil)

	d.SetMuted(true)
	assert.True(t, d.Muted())
	d.Dispatch(Alert{VisitorID: "v-1"})
	assert.Empty(t, d.Jobs())

	d.Deliver(context.Background(), Alert{VisitorID: "v-1"})
	assert.Equal(t, 0, speaker.count())

	d.SetMuted(false)
	d.Deliver(context.Background(), Alert{VisitorID: "v-1"})
	assert.Equal(t, 1, speaker.count())
}

func TestDispatcher_ChannelFailuresAreIndependent(t *testing.T) {
	speaker := newRecordingChannel(ErrChannelUnavailable)
	chimer := newRecordingChannel(errors.New("audio device busy"))
	d := NewDispatcher(1, speaker, chimer)

	assert.NotPanics(t, func() {
		d.Deliver(context.Background(), NewExpiredAlert("v-1", "Sofia", time.Now()))
	})
	assert.Equal(t, 1, speaker.count())
	assert.Equal(t, 1, chimer.count(), "chime runs even though speech failed")
}

func TestDispatcher_WorkersDeliver(t *testing.T) {
	speaker := newRecordingChannel(nil)
	chimer := newRecordingChannel(nil)
	d := NewDispatcher(2, speaker, chimer)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	d.Dispatch(NewExpiredAlert("v-1", "Sofia", time.Now()))

	for _, ch := range []*recordingChannel{speaker, chimer} {
		select {
		case <-ch.done:
		case <-time.After(1 * time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
	assert.Equal(t, "Sofia", speaker.received[0].Name)

	cancel()
	d.Wait()
}
