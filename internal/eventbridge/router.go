package eventbridge

import (
	"sync"
)

const (
	defaultSubscriberCapacity = 100
	defaultBacklogLimit       = 50
	defaultDedupeWindow       = 1024
)

// RouterOption customizes Router construction.
type RouterOption func(*Router)

// Router hands bridge events to subscribers with buffering, deduplication,
// and bounded channel semantics. A single subscriber turns concurrent HTTP
// deliveries into one ordered event stream.
type Router struct {
	mu           sync.Mutex
	subscribers  map[*subscriber]struct{}
	backlog      []Event
	recentIDs    map[string]struct{}
	recentOrder  []string
	channelSize  int
	backlogLimit int
	dedupeWindow int
	logger       Logger
}

// Subscription represents an active subscription.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

// Close terminates the subscription.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewRouter constructs a router with sane defaults.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		subscribers:  map[*subscriber]struct{}{},
		recentIDs:    map[string]struct{}{},
		recentOrder:  make([]string, 0, defaultDedupeWindow),
		channelSize:  defaultSubscriberCapacity,
		backlogLimit: defaultBacklogLimit,
		dedupeWindow: defaultDedupeWindow,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// RouterWithLogger injects a logger for drop/diagnostic messages.
func RouterWithLogger(logger Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// RouterWithSubscriberCapacity overrides the buffered channel size per subscriber.
func RouterWithSubscriberCapacity(cap int) RouterOption {
	return func(r *Router) {
		if cap > 0 {
			r.channelSize = cap
		}
	}
}

// RouterWithBacklogLimit overrides the backlog size for pre-subscription buffering.
func RouterWithBacklogLimit(limit int) RouterOption {
	return func(r *Router) {
		if limit > 0 {
			r.backlogLimit = limit
		}
	}
}

// RouterWithDedupeWindow controls how many recent event IDs are retained.
func RouterWithDedupeWindow(size int) RouterOption {
	return func(r *Router) {
		if size > 0 {
			r.dedupeWindow = size
		}
	}
}

// Subscribe registers a consumer. Events buffered before the first
// subscriber arrived are replayed to it.
func (r *Router) Subscribe() Subscription {
	r.mu.Lock()
	backlog := r.backlog
	r.backlog = nil
	// Room for the whole backlog, which may hold critical events past its limit.
	sub := newSubscriber(max(r.channelSize, len(backlog)), r.logger)
	r.subscribers[sub] = struct{}{}
	// Replay before releasing the lock so live events queue behind the backlog.
	for _, event := range backlog {
		sub.deliver(event)
	}
	r.mu.Unlock()
	return Subscription{
		Events: sub.channel(),
		cancel: func() {
			r.removeSubscriber(sub)
		},
	}
}

// HandleEvent satisfies the EventProcessor interface.
func (r *Router) HandleEvent(event Event) error {
	r.Route(event)
	return nil
}

// Route delivers the event to subscribers or buffers it when no subscriber exists.
func (r *Router) Route(event Event) {
	if event.EventID != "" && r.isDuplicate(event.EventID) {
		return
	}
	r.mu.Lock()
	subs := r.snapshotSubscribers()
	if len(subs) == 0 {
		r.bufferLocked(event)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	for _, sub := range subs {
		sub.deliver(event)
	}
}

// Run drains a fresh subscription into processor until done is closed.
// Processor errors are logged, never fatal.
func (r *Router) Run(done <-chan struct{}, processor EventProcessor) {
	sub := r.Subscribe()
	defer sub.Close()
	for {
		select {
		case <-done:
			return
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := processor.HandleEvent(event); err != nil && r.logger != nil {
				r.logger.Printf("eventbridge: process %s: %v", event.Type, err)
			}
		}
	}
}

func (r *Router) snapshotSubscribers() []*subscriber {
	if len(r.subscribers) == 0 {
		return nil
	}
	items := make([]*subscriber, 0, len(r.subscribers))
	for sub := range r.subscribers {
		items = append(items, sub)
	}
	return items
}

func (r *Router) removeSubscriber(sub *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers, sub)
	sub.close()
}

// bufferLocked holds events until the first subscriber arrives. Critical
// events are kept even past the limit. Callers hold r.mu.
func (r *Router) bufferLocked(event Event) {
	r.backlog = append(r.backlog, event)
	if len(r.backlog) <= r.backlogLimit {
		return
	}
	idx := dropCandidate(r.backlog)
	if idx < 0 {
		return
	}
	dropped := r.backlog[idx]
	r.backlog = append(r.backlog[:idx], r.backlog[idx+1:]...)
	if r.logger != nil {
		r.logger.Printf("eventbridge: backlog drop %s (limit %d)", dropped.Type, r.backlogLimit)
	}
}

func (r *Router) isDuplicate(eventID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recentIDs[eventID]; ok {
		return true
	}
	r.recentIDs[eventID] = struct{}{}
	r.recentOrder = append(r.recentOrder, eventID)
	if len(r.recentOrder) > r.dedupeWindow {
		oldest := r.recentOrder[0]
		r.recentOrder = r.recentOrder[1:]
		delete(r.recentIDs, oldest)
	}
	return false
}

type subscriber struct {
	ch      chan Event
	logger  Logger
	stop    chan struct{}
	stopped sync.Once
	closed  bool
	closeMu sync.Mutex
}

func newSubscriber(capacity int, logger Logger) *subscriber {
	if capacity <= 0 {
		capacity = defaultSubscriberCapacity
	}
	return &subscriber{
		ch:     make(chan Event, capacity),
		logger: logger,
		stop:   make(chan struct{}),
	}
}

func (s *subscriber) channel() <-chan Event {
	return s.ch
}

// deliver enqueues in arrival order. On overflow the queue is drained and
// rebuilt without its least important event, so FIFO order survives the drop.
// When every queued event is critical the caller waits for the consumer.
// closeMu makes deliver the only sender.
func (s *subscriber) deliver(event Event) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- event:
		return
	default:
	}

	queued := make([]Event, 0, cap(s.ch)+1)
	for drained := false; !drained; {
		select {
		case e := <-s.ch:
			queued = append(queued, e)
		default:
			drained = true
		}
	}
	queued = append(queued, event)
	if len(queued) > cap(s.ch) {
		if idx := dropCandidate(queued); idx >= 0 {
			s.logDrop(queued[idx], "queue overflow")
			queued = append(queued[:idx], queued[idx+1:]...)
		}
	}
	for _, e := range queued {
		select {
		case s.ch <- e:
		case <-s.stop:
			return
		}
	}
}

func (s *subscriber) logDrop(event Event, reason string) {
	if s.logger == nil {
		return
	}
	s.logger.Printf("eventbridge: dropped %s (%s)", event.Type, reason)
}

// close releases a deliver blocked on a full queue before taking closeMu.
func (s *subscriber) close() {
	s.stopped.Do(func() { close(s.stop) })
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// dropCandidate picks the event to shed from an over-full queue: the oldest
// part update, else the oldest non-critical event. -1 means every event is
// critical.
func dropCandidate(events []Event) int {
	fallback := -1
	for i, e := range events {
		if isCriticalEvent(e.Type) {
			continue
		}
		if isPreferredDrop(e.Type) {
			return i
		}
		if fallback < 0 {
			fallback = i
		}
	}
	return fallback
}

// Deletions and errors are never dropped.
func isCriticalEvent(kind string) bool {
	return kind == TypeSessionDeleted || kind == TypeSessionError
}

// Part updates are high-volume and interchangeable for cancellation.
func isPreferredDrop(kind string) bool {
	return kind == TypeMessagePartUpdated
}
