package terminal

import (
	"sync"

	"github.com/GriffinCanCode/termhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termhost/internal/shared/id"
	"go.uber.org/zap"
)

// Router fans session output out to subscribers.
//
// Each session has its own topic. Chunks are delivered synchronously, in pty
// order, to the subscribers registered when the chunk arrives. Topics never
// share a lock, so a slow subscriber only delays its own session.
type Router struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu     sync.RWMutex
	topics map[id.SessionID]*topic
}

// NewRouter creates an empty router.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		logger: logger,
		topics: make(map[id.SessionID]*topic),
	}
}

// WithMetrics adds metrics tracking to the router
func (r *Router) WithMetrics(metrics *monitoring.Metrics) *Router {
	r.metrics = metrics
	return r
}

// topic is the subscriber set and scrollback of one session.
type topic struct {
	sessionID id.SessionID

	// deliver serializes publish, replay and close so that no chunk is
	// delivered after close returns and replays never interleave with
	// live output.
	deliver    sync.Mutex
	scrollback *Scrollback

	// subsMu guards the subscriber list only, so a subscriber may dispose
	// itself from inside its callback.
	subsMu sync.Mutex
	subs   []*Subscription
	closed bool
	nextID uint64
}

// Subscription is returned by Subscribe. A subscription to an unknown or
// exited session is inert: it never receives data and Dispose does nothing.
type Subscription struct {
	router *Router
	topic  *topic
	fn     func([]byte)
	id     uint64
	once   sync.Once
}

// Dispose removes the subscription. It is safe to call more than once and
// after the session has exited.
func (s *Subscription) Dispose() {
	if s == nil || s.topic == nil {
		return
	}
	s.once.Do(func() {
		t := s.topic
		t.subsMu.Lock()
		defer t.subsMu.Unlock()
		for i, sub := range t.subs {
			if sub == s {
				// Copy on write: publish may hold the old slice.
				next := make([]*Subscription, 0, len(t.subs)-1)
				next = append(next, t.subs[:i]...)
				t.subs = append(next, t.subs[i+1:]...)
				break
			}
		}
	})
}

// Active reports whether the subscription can still receive data.
func (s *Subscription) Active() bool {
	if s == nil || s.topic == nil {
		return false
	}
	s.topic.subsMu.Lock()
	defer s.topic.subsMu.Unlock()
	if s.topic.closed {
		return false
	}
	for _, sub := range s.topic.subs {
		if sub == s {
			return true
		}
	}
	return false
}

// open creates the topic for a new session.
func (r *Router) open(sessionID id.SessionID, scrollbackBytes int) *topic {
	t := &topic{
		sessionID:  sessionID,
		scrollback: NewScrollback(scrollbackBytes),
	}
	r.mu.Lock()
	r.topics[sessionID] = t
	r.mu.Unlock()
	return t
}

func (r *Router) lookup(sessionID id.SessionID) *topic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.topics[sessionID]
}

// Subscribe registers fn for the session's output. The slice passed to fn is
// shared between subscribers and must not be modified.
func (r *Router) Subscribe(sessionID id.SessionID, fn func(data []byte)) *Subscription {
	t := r.lookup(sessionID)
	if t == nil {
		return &Subscription{router: r}
	}
	return r.subscribe(t, fn)
}

func (r *Router) subscribe(t *topic, fn func([]byte)) *Subscription {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	if t.closed {
		return &Subscription{router: r}
	}

	t.nextID++
	sub := &Subscription{router: r, topic: t, fn: fn, id: t.nextID}
	next := make([]*Subscription, 0, len(t.subs)+1)
	next = append(next, t.subs...)
	t.subs = append(next, sub)
	return sub
}

// Unsubscribe is equivalent to sub.Dispose().
func (r *Router) Unsubscribe(sub *Subscription) {
	sub.Dispose()
}

// Replay delivers the session's scrollback to fn in one call, ordered with
// respect to live output: nothing published before the call is missing from
// the snapshot and nothing published after it is included. It reports
// whether the session is known.
func (r *Router) Replay(sessionID id.SessionID, fn func(data []byte)) bool {
	t := r.lookup(sessionID)
	if t == nil {
		return false
	}

	t.deliver.Lock()
	defer t.deliver.Unlock()

	t.subsMu.Lock()
	closed := t.closed
	t.subsMu.Unlock()
	if closed {
		return false
	}

	if data := t.scrollback.Bytes(); len(data) > 0 {
		r.call(t, fn, data)
	}
	return true
}

// publish delivers one chunk to the current subscribers.
func (r *Router) publish(t *topic, data []byte) {
	if len(data) == 0 {
		return
	}

	t.deliver.Lock()
	defer t.deliver.Unlock()

	t.subsMu.Lock()
	if t.closed {
		t.subsMu.Unlock()
		return
	}
	subs := t.subs
	t.subsMu.Unlock()

	// The reader reuses its buffer; copy once for all subscribers.
	chunk := make([]byte, len(data))
	copy(chunk, data)
	t.scrollback.Write(chunk)
	r.metrics.AddOutputBytes(len(chunk))

	for _, sub := range subs {
		r.call(t, sub.fn, chunk)
	}
}

// call runs one subscriber callback, containing any panic.
func (r *Router) call(t *topic, fn func([]byte), data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.IncSubscriberFaults()
			r.logger.Warn("Output subscriber panicked",
				zap.String("session_id", t.sessionID.String()),
				zap.Any("panic", rec),
			)
		}
	}()
	fn(data)
}

// close drops every subscriber and the topic itself. It waits for an
// in-flight delivery to finish, so no chunk is delivered after it returns.
func (r *Router) close(t *topic) {
	t.deliver.Lock()
	t.subsMu.Lock()
	t.closed = true
	t.subs = nil
	t.subsMu.Unlock()
	t.scrollback = nil
	t.deliver.Unlock()

	r.mu.Lock()
	if r.topics[t.sessionID] == t {
		delete(r.topics, t.sessionID)
	}
	r.mu.Unlock()
}

// subscriberCount returns the number of live subscribers for a session.
func (r *Router) subscriberCount(sessionID id.SessionID) int {
	t := r.lookup(sessionID)
	if t == nil {
		return 0
	}
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	return len(t.subs)
}
