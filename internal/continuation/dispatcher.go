// Package continuation nudges an idle agent session back to work while beads
// remain in progress.
//
// The Dispatcher consumes host lifecycle events. When a session goes idle and
// bd reports in-progress beads it shows a short countdown toast and then
// injects a continuation prompt. Any sign of activity (a user or assistant
// message, a tool call, an error) cancels the countdown.
package continuation

import (
	"context"
	"sync"
	"time"

	"github.com/kingrea/beads-continuation/internal/eventbridge"
	"github.com/kingrea/beads-continuation/internal/host"
	"github.com/kingrea/beads-continuation/internal/tracker"
)

const (
	// CountdownSeconds is how long the warning toast counts down before the
	// continuation prompt is injected.
	CountdownSeconds = 2
	// ToastDuration keeps each countdown toast visible just under one tick.
	ToastDuration = 900 * time.Millisecond
	// ErrorCooldown suppresses continuation right after a session error.
	ErrorCooldown = 3000 * time.Millisecond
	// ToastTitle labels every countdown toast.
	ToastTitle = "Beads Continuation"

	tickInterval = time.Second
)

// Tracker is the subset of the bd client the dispatcher needs.
type Tracker interface {
	IsInitialized(ctx context.Context) bool
	ListInProgress(ctx context.Context) ([]tracker.WorkItem, error)
	ListReady(ctx context.Context, epicID string) ([]tracker.WorkItem, error)
}

// BranchResolver yields the epic encoded in the current branch, or "".
type BranchResolver interface {
	EpicID(ctx context.Context) string
}

// Host delivers toasts and prompts back into the agent host.
type Host interface {
	ShowToast(ctx context.Context, toast host.Toast) error
	Prompt(ctx context.Context, sessionID string, parts []host.Part) error
}

// Logger matches logging.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Option customizes Dispatcher construction.
type Option func(*Dispatcher)

// WithScheduler replaces the runtime timers.
func WithScheduler(s Scheduler) Option {
	return func(d *Dispatcher) {
		if s != nil {
			d.scheduler = s
		}
	}
}

// WithClock allows tests to control the error cooldown.
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithLogger records degraded failures.
func WithLogger(l Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithContext sets the parent context for bd, git and host calls.
func WithContext(ctx context.Context) Option {
	return func(d *Dispatcher) {
		if ctx != nil {
			d.ctx = ctx
		}
	}
}

// WithSpawner controls how idle checks run. The default starts a goroutine so
// a slow bd never holds up other sessions; tests run them inline.
func WithSpawner(spawn func(func())) Option {
	return func(d *Dispatcher) {
		if spawn != nil {
			d.spawn = spawn
		}
	}
}

// Dispatcher routes host events to per-session state and countdowns.
type Dispatcher struct {
	tracker   Tracker
	branch    BranchResolver
	host      Host
	scheduler Scheduler
	clock     func() time.Time
	logger    Logger
	ctx       context.Context
	spawn     func(func())
	inflight  sync.WaitGroup

	mu    sync.Mutex
	store *Store
}

// New wires a Dispatcher around its collaborators.
func New(tr Tracker, branch BranchResolver, h Host, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		tracker:   tr,
		branch:    branch,
		host:      h,
		scheduler: SystemScheduler{},
		clock:     time.Now,
		logger:    nopLogger{},
		ctx:       context.Background(),
		store:     NewStore(),
	}
	d.spawn = func(fn func()) {
		d.inflight.Add(1)
		go func() {
			defer d.inflight.Done()
			fn()
		}()
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// HandleEvent implements eventbridge.EventProcessor. It never fails: every
// problem degrades to doing nothing for this event.
func (d *Dispatcher) HandleEvent(evt eventbridge.Event) error {
	sessionID := evt.SessionID()
	if sessionID == "" {
		return nil
	}
	switch evt.Type {
	case eventbridge.TypeSessionError:
		d.recordError(sessionID)
	case eventbridge.TypeSessionIdle:
		d.idle(sessionID)
	case eventbridge.TypeMessageUpdated:
		switch evt.Role() {
		case eventbridge.RoleUser:
			d.userResumed(sessionID)
		case eventbridge.RoleAssistant:
			d.Cancel(sessionID)
		}
	case eventbridge.TypeMessagePartUpdated:
		// Parts rarely carry a role; only the assistant streams them.
		if role := evt.Role(); role == "" || role == eventbridge.RoleAssistant {
			d.Cancel(sessionID)
		}
	case eventbridge.TypeToolExecuteBefore, eventbridge.TypeToolExecuteAfter:
		d.Cancel(sessionID)
	case eventbridge.TypeSessionDeleted:
		d.forget(sessionID)
	}
	return nil
}

// Cancel stops any countdown for sessionID.
func (d *Dispatcher) Cancel(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if state, ok := d.store.Lookup(sessionID); ok {
		cancelLocked(state)
	}
}

// Sessions returns a snapshot of every tracked session.
func (d *Dispatcher) Sessions() []SessionStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.Snapshot()
}

// Close cancels every countdown and waits for in-flight idle checks.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	for _, state := range d.store.sessions {
		cancelLocked(state)
	}
	d.mu.Unlock()
	d.inflight.Wait()
}

func (d *Dispatcher) recordError(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	state := d.store.GetOrCreate(sessionID)
	state.lastErrorAt = d.clock()
	cancelLocked(state)
}

func (d *Dispatcher) userResumed(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.store.Lookup(sessionID)
	if !ok {
		return
	}
	state.lastErrorAt = time.Time{}
	cancelLocked(state)
}

func (d *Dispatcher) forget(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if state, ok := d.store.Lookup(sessionID); ok {
		cancelLocked(state)
		d.store.Remove(sessionID)
	}
}

// idle pins the session entry and its epoch on the event goroutine, so any
// event handled after this one invalidates the check even if the spawned
// goroutine has not started yet.
func (d *Dispatcher) idle(sessionID string) {
	d.mu.Lock()
	state := d.store.GetOrCreate(sessionID)
	epoch := state.epoch
	d.mu.Unlock()
	d.spawn(func() { d.checkIdle(sessionID, state, epoch) })
}

// checkIdle decides whether an idle session should get a countdown.
func (d *Dispatcher) checkIdle(sessionID string, state *sessionState, epoch uint64) {
	d.mu.Lock()
	current := d.isCurrentLocked(sessionID, state, epoch)
	d.mu.Unlock()
	if !current {
		return
	}

	if !d.tracker.IsInitialized(d.ctx) {
		return
	}

	d.mu.Lock()
	if !d.isCurrentLocked(sessionID, state, epoch) || state.isRecovering || d.inCooldownLocked(state) {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	items := d.inProgress()
	if len(items) == 0 {
		return
	}

	d.mu.Lock()
	if !d.isCurrentLocked(sessionID, state, epoch) {
		d.mu.Unlock()
		return
	}
	d.startCountdownLocked(sessionID, state, len(items))
	d.mu.Unlock()

	d.showCountdown(CountdownSeconds, len(items))
}

func (d *Dispatcher) inCooldownLocked(state *sessionState) bool {
	if state.lastErrorAt.IsZero() {
		return false
	}
	return d.clock().Sub(state.lastErrorAt) < ErrorCooldown
}

// isCurrentLocked reports whether state is still the live entry for
// sessionID and nothing cancelled it since epoch was read.
func (d *Dispatcher) isCurrentLocked(sessionID string, state *sessionState, epoch uint64) bool {
	live, ok := d.store.Lookup(sessionID)
	return ok && live == state && state.epoch == epoch
}

func (d *Dispatcher) inProgress() []tracker.WorkItem {
	items, err := d.tracker.ListInProgress(d.ctx)
	if err != nil {
		d.logger.Printf("continuation: %v", err)
		return nil
	}
	return items
}

func (d *Dispatcher) ready(epicID string) []tracker.WorkItem {
	items, err := d.tracker.ListReady(d.ctx, epicID)
	if err != nil {
		d.logger.Printf("continuation: %v", err)
		return nil
	}
	return items
}
