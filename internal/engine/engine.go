package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"park-timer-backend/internal/alert"
	"park-timer-backend/internal/model"
	"park-timer-backend/internal/parse"
	"park-timer-backend/internal/store"
)

var (
	// ErrNotFound is returned when an operation names an unknown visitor.
	ErrNotFound = fmt.Errorf("visitor %w", store.ErrNotFound)
	// ErrInvalidArgument is returned before any state is touched.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCompleted is returned when an operation would move a completed
	// visitor out of its terminal state.
	ErrCompleted = errors.New("visitor already completed")
)

// AlertDispatcher receives expiration alerts. Dispatch must not block.
type AlertDispatcher interface {
	Dispatch(a alert.Alert)
}

// Engine owns the visitor timer state machine. Every operation and every
// tick runs under one lock, so a user action is always visible to the
// tick that follows it.
type Engine struct {
	store    store.VisitorStore
	alerts   AlertDispatcher
	loc      *time.Location
	now      func() time.Time
	interval time.Duration
	metrics  *Metrics

	mu sync.Mutex
	// alerted holds the ids whose current expiration has been announced.
	// It lives only as long as this engine.
	alerted map[string]struct{}

	ticking sync.Mutex

	pollMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithInterval overrides TickInterval for the polling loop.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine over the visitor store. loc decides which
// calendar day is "today" for the park.
func New(s store.VisitorStore, alerts AlertDispatcher, loc *time.Location, opts ...Option) *Engine {
	if loc == nil {
		loc = time.Local
	}
	e := &Engine{
		store:    s,
		alerts:   alerts,
		loc:      loc,
		now:      time.Now,
		interval: TickInterval,
		alerted:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Today returns the current operating day.
func (e *Engine) Today() string {
	return parse.Day(e.now(), e.loc)
}

// Start begins a pending visitor's countdown. Calling it on a visitor whose
// timer is already running returns the visitor unchanged.
func (e *Engine) Start(ctx context.Context, id string) (*model.Visitor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch v.Status {
	case model.StatusCompleted:
		return v, ErrCompleted
	case model.StatusPending:
	default:
		return v, nil
	}

	now := e.now()
	status := model.StatusActive
	remaining := v.AllotmentSeconds()
	updated, err := e.store.UpdateVisitor(ctx, id, store.VisitorPatch{
		StartTime:        &now,
		Status:           &status,
		RemainingSeconds: &remaining,
	})
	if err != nil {
		return nil, e.storeError(id, err)
	}

	e.metrics.transition(status)
	log.WithFields(log.Fields{"visitor_id": id, "minutes": v.TimeMinutes}).Info("timer started")
	return updated, nil
}

// Renew adds extraMinutes to a visitor's allotment and cached remaining
// time. A running visitor's status is re-derived from the new remaining
// time, so an expired visitor becomes active (or warning for very short
// renewals) and its next expiration is announced again. A pending visitor
// only gets a larger allotment.
//
// The new status is derived from the stored remaining seconds, not from
// the clock, so a renewal always grants the full extra time on screen.
// If ticks stopped for a while that value is stale, and the next tick
// recomputes from the start time and may expire the visitor again.
//
// The total allotment may not exceed model.MaxAllotmentMinutes.
func (e *Engine) Renew(ctx context.Context, id string, extraMinutes int) (*model.Visitor, error) {
	if extraMinutes <= 0 {
		return nil, fmt.Errorf("%w: extra minutes must be positive, got %d", ErrInvalidArgument, extraMinutes)
	}
	if extraMinutes > model.MaxAllotmentMinutes {
		return nil, fmt.Errorf("%w: extra minutes must be at most %d, got %d", ErrInvalidArgument, model.MaxAllotmentMinutes, extraMinutes)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status == model.StatusCompleted {
		return v, ErrCompleted
	}

	minutes := v.TimeMinutes + extraMinutes
	if minutes > model.MaxAllotmentMinutes {
		return v, fmt.Errorf("%w: renewal would raise the allotment to %d minutes, limit is %d",
			ErrInvalidArgument, minutes, model.MaxAllotmentMinutes)
	}
	remaining := v.RemainingSeconds + extraMinutes*60
	patch := store.VisitorPatch{
		TimeMinutes:      &minutes,
		RemainingSeconds: &remaining,
	}
	status := v.Status
	if running(v.Status) {
		status = DeriveStatus(remaining)
		patch.Status = &status
	}

	updated, err := e.store.UpdateVisitor(ctx, id, patch)
	if err != nil {
		return nil, e.storeError(id, err)
	}
	delete(e.alerted, id)

	if status != v.Status {
		e.metrics.transition(status)
	}
	log.WithFields(log.Fields{
		"visitor_id": id,
		"extra":      extraMinutes,
		"minutes":    minutes,
		"status":     status,
	}).Info("timer renewed")
	return updated, nil
}

// Complete moves a visitor to the terminal completed state. Completing an
// already completed visitor is a no-op; the first end time is kept.
func (e *Engine) Complete(ctx context.Context, id string) (*model.Visitor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status == model.StatusCompleted {
		return v, nil
	}

	now := e.now()
	status := model.StatusCompleted
	updated, err := e.store.UpdateVisitor(ctx, id, store.VisitorPatch{
		EndTime: &now,
		Status:  &status,
	})
	if err != nil {
		return nil, e.storeError(id, err)
	}
	delete(e.alerted, id)

	e.metrics.transition(status)
	log.WithField("visitor_id", id).Info("visitor completed")
	return updated, nil
}

// Tick recomputes every running timer of the current operating day. A Tick
// that starts while another is still in progress returns immediately.
func (e *Engine) Tick(ctx context.Context) error {
	if !e.ticking.TryLock() {
		return nil
	}
	defer e.ticking.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	started := time.Now()
	now := e.now()
	visitors, err := e.store.GetVisitorsByDate(ctx, parse.Day(now, e.loc))
	if err != nil {
		return fmt.Errorf("failed to load visitors: %w", err)
	}

	for i := range visitors {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.evaluate(ctx, &visitors[i], now)
	}

	e.metrics.tick(started)
	return nil
}

// evaluate applies one tick to one visitor: it either fully updates the
// visitor or leaves it for the next tick.
func (e *Engine) evaluate(ctx context.Context, v *model.Visitor, now time.Time) {
	if !running(v.Status) || v.StartTime == nil {
		return
	}

	remaining := Remaining(*v.StartTime, v.TimeMinutes, now)
	status := DeriveStatus(remaining)

	if remaining != v.RemainingSeconds || status != v.Status {
		if _, err := e.store.UpdateVisitor(ctx, v.ID, store.VisitorPatch{
			RemainingSeconds: &remaining,
			Status:           &status,
		}); err != nil {
			e.metrics.persistFailure()
			log.WithError(err).WithField("visitor_id", v.ID).Warn("failed to persist timer; retrying next tick")
			return
		}
		if status != v.Status {
			e.metrics.transition(status)
			log.WithFields(log.Fields{"visitor_id": v.ID, "from": v.Status, "to": status}).Info("timer status changed")
		}
	}

	if status != model.StatusExpired {
		delete(e.alerted, v.ID)
		return
	}
	if _, done := e.alerted[v.ID]; done {
		return
	}
	e.alerted[v.ID] = struct{}{}
	e.metrics.alert()
	if e.alerts != nil {
		e.alerts.Dispatch(alert.NewExpiredAlert(v.ID, v.Name, now))
	}
}

// Run ticks every interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	log.Println("Starting visitor timer engine...")
	e.tickOnce(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Visitor timer engine shutting down.")
			return
		case <-ticker.C:
			e.tickOnce(ctx)
		}
	}
}

func (e *Engine) tickOnce(ctx context.Context) {
	if err := e.Tick(ctx); err != nil && ctx.Err() == nil {
		log.Printf("Error running timer tick: %v", err)
	}
}

// StartPolling runs the polling loop in the background. It reports false
// if the loop is already running.
func (e *Engine) StartPolling(ctx context.Context) bool {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()
	if e.cancel != nil {
		return false
	}

	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done

	go func() {
		defer close(done)
		e.Run(pollCtx)
	}()
	return true
}

// StopPolling stops the polling loop and waits for an in-flight tick to
// finish. It is safe to call when polling is not running.
func (e *Engine) StopPolling() {
	e.pollMu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.pollMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (e *Engine) load(ctx context.Context, id string) (*model.Visitor, error) {
	v, err := e.store.GetVisitor(ctx, id)
	if err != nil {
		return nil, e.storeError(id, err)
	}
	return v, nil
}

func (e *Engine) storeError(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		log.WithField("visitor_id", id).Warn("operation on unknown visitor")
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return fmt.Errorf("visitor %s: %w", id, err)
}
