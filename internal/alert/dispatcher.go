package alert

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// queueDepth is how many pending alerts each worker may have queued
// before new alerts are dropped.
const queueDepth = 16

// Speaker delivers the spoken announcement of an alert.
type Speaker interface {
	Speak(ctx context.Context, a Alert) error
}

// Chimer plays the audible tone sequence of an alert.
type Chimer interface {
	Chime(ctx context.Context, a Alert) error
}

// Dispatcher fans expiration alerts out to a pool of workers so the
// timer engine never waits on a delivery channel.
type Dispatcher struct {
	size    int
	jobs    chan Alert
	speaker Speaker
	chimer  Chimer
	muted   atomic.Bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a new dispatcher. Either channel may be nil.
func NewDispatcher(size int, speaker Speaker, chimer Chimer) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		size:    size,
		jobs:    make(chan Alert, size*queueDepth),
		speaker: speaker,
		chimer:  chimer,
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.size; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Wait blocks until every worker has exited after ctx was cancelled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	log.Debugf("Alert worker %d started", id)
	for {
		select {
		case a := <-d.jobs:
			d.Deliver(ctx, a)
		case <-ctx.Done():
			log.Debugf("Alert worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an alert without blocking. When muted, or when the
// queue is full, the alert is discarded.
func (d *Dispatcher) Dispatch(a Alert) {
	if d.Muted() {
		log.WithField("visitor_id", a.VisitorID).Debug("alerts muted; skipping expiration alert")
		return
	}
	select {
	case d.jobs <- a:
	default:
		log.WithField("visitor_id", a.VisitorID).Warn("alert queue full; dropping expiration alert")
	}
}

// Jobs returns the jobs channel for testing.
func (d *Dispatcher) Jobs() chan Alert {
	return d.jobs
}

// SetMuted toggles the global mute. The timer engine is unaffected.
func (d *Dispatcher) SetMuted(muted bool) {
	d.muted.Store(muted)
}

// Muted reports whether alerts are currently suppressed.
func (d *Dispatcher) Muted() bool {
	return d.muted.Load()
}

// Deliver runs both channels for one alert. Failures are logged and
// swallowed; one channel failing does not stop the other.
func (d *Dispatcher) Deliver(ctx context.Context, a Alert) {
	if d.Muted() {
		return
	}
	entry := log.WithField("visitor_id", a.VisitorID)

	if d.speaker != nil {
		if err := d.speaker.Speak(ctx, a); err != nil {
			logChannelError(entry, "speech", err)
		}
	}
	if d.chimer != nil {
		if err := d.chimer.Chime(ctx, a); err != nil {
			logChannelError(entry, "chime", err)
		}
	}
}

func logChannelError(entry *log.Entry, channel string, err error) {
	entry = entry.WithField("channel", channel).WithError(err)
	if errors.Is(err, ErrChannelUnavailable) {
		entry.Debug("alert channel unavailable")
		return
	}
	entry.Warn("alert channel failed")
}
