package continuation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kingrea/beads-continuation/internal/eventbridge"
	"github.com/kingrea/beads-continuation/internal/host"
	"github.com/kingrea/beads-continuation/internal/tracker"
)

// manualScheduler fires timers only when Advance moves its clock.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	s        *manualScheduler
	seq      int
	due      time.Time
	interval time.Duration
	fn       func()
	stopped  bool
}

func (t *manualTimer) Stop() {
	t.s.mu.Lock()
	t.stopped = true
	t.s.mu.Unlock()
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{now: time.Unix(1730000000, 0)}
}

func (s *manualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return s.add(d, 0, fn)
}

func (s *manualScheduler) Every(interval time.Duration, fn func()) Timer {
	return s.add(interval, interval, fn)
}

func (s *manualScheduler) add(d, interval time.Duration, fn func()) *manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTimer{s: s, seq: s.seq, due: s.now.Add(d), interval: interval, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, t := range s.timers {
		if !t.stopped {
			count++
		}
	}
	return count
}

// Advance runs every due callback in order, outside the scheduler lock.
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()
	for {
		s.mu.Lock()
		var next *manualTimer
		for _, t := range s.timers {
			if t.stopped || t.due.After(target) {
				continue
			}
			if next == nil || t.due.Before(next.due) || (t.due.Equal(next.due) && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = next.due
		if next.interval > 0 {
			next.due = next.due.Add(next.interval)
		} else {
			next.stopped = true
		}
		fn := next.fn
		s.mu.Unlock()
		fn()
	}
}

type fakeTracker struct {
	initialized bool
	inProgress  []tracker.WorkItem
	ready       []tracker.WorkItem
	listErr     error
	onList      func()
	readyEpics  []string
	// gate, when set, holds IsInitialized until closed.
	gate chan struct{}
}

func (f *fakeTracker) IsInitialized(context.Context) bool {
	if f.gate != nil {
		<-f.gate
	}
	return f.initialized
}

func (f *fakeTracker) ListInProgress(context.Context) ([]tracker.WorkItem, error) {
	if f.onList != nil {
		f.onList()
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.inProgress, nil
}

func (f *fakeTracker) ListReady(_ context.Context, epicID string) ([]tracker.WorkItem, error) {
	f.readyEpics = append(f.readyEpics, epicID)
	return f.ready, nil
}

type fakeBranch struct{ epic string }

func (f fakeBranch) EpicID(context.Context) string { return f.epic }

type promptCall struct {
	sessionID string
	text      string
}

type fakeHost struct {
	mu       sync.Mutex
	toasts   []host.Toast
	prompts  []promptCall
	toastErr error
}

func (f *fakeHost) ShowToast(_ context.Context, toast host.Toast) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, toast)
	return f.toastErr
}

func (f *fakeHost) Prompt(_ context.Context, sessionID string, parts []host.Part) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	text := ""
	for _, part := range parts {
		text += part.Text
	}
	f.prompts = append(f.prompts, promptCall{sessionID: sessionID, text: text})
	return nil
}

func (f *fakeHost) toastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.toasts)
}

func (f *fakeHost) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type harness struct {
	sched   *manualScheduler
	tracker *fakeTracker
	host    *fakeHost
	d       *Dispatcher
}

// newHarness runs idle checks inline.
func newHarness(t *testing.T, items ...tracker.WorkItem) *harness {
	t.Helper()
	return newHarnessWith(t, []Option{WithSpawner(func(fn func()) { fn() })}, items...)
}

// newHarnessWith keeps the production goroutine spawner unless opts replace it.
func newHarnessWith(t *testing.T, opts []Option, items ...tracker.WorkItem) *harness {
	t.Helper()
	h := &harness{
		sched:   newManualScheduler(),
		tracker: &fakeTracker{initialized: true, inProgress: items},
		host:    &fakeHost{},
	}
	all := append([]Option{WithScheduler(h.sched), WithClock(h.sched.Now)}, opts...)
	h.d = New(h.tracker, fakeBranch{}, h.host, all...)
	return h
}

func (h *harness) send(t *testing.T, eventType string, props any) {
	t.Helper()
	raw, err := json.Marshal(props)
	if err != nil {
		t.Fatalf("marshal properties: %v", err)
	}
	if err := h.d.HandleEvent(eventbridge.Event{Type: eventType, Properties: raw}); err != nil {
		t.Fatalf("HandleEvent(%s) returned error: %v", eventType, err)
	}
}

func (h *harness) idle(t *testing.T, sessionID string) {
	t.Helper()
	h.send(t, eventbridge.TypeSessionIdle, map[string]any{"sessionID": sessionID})
}

func (h *harness) sessionError(t *testing.T, sessionID string) {
	t.Helper()
	h.send(t, eventbridge.TypeSessionError, map[string]any{"sessionID": sessionID, "error": map[string]any{"name": "APIError"}})
}

func (h *harness) message(t *testing.T, sessionID, role string) {
	t.Helper()
	h.send(t, eventbridge.TypeMessageUpdated, map[string]any{"info": map[string]any{"id": "msg-1", "sessionID": sessionID, "role": role}})
}

func (h *harness) deleted(t *testing.T, sessionID string) {
	t.Helper()
	h.send(t, eventbridge.TypeSessionDeleted, map[string]any{"info": map[string]any{"id": sessionID}})
}

var errBoom = errors.New("boom")

func bead(id, title string) tracker.WorkItem {
	return tracker.WorkItem{ID: id, Title: title, Status: tracker.StatusInProgress}
}
