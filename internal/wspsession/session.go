// Package wspsession implements the per-session WSP state machine:
// connection establishment, method invocation, and teardown, driven by
// a FIFO event queue with at most one handler goroutine active per
// session at a time (§4, §5).
package wspsession

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mellowdrifter/wspd/internal/headers"
	"github.com/mellowdrifter/wspd/internal/wspcaps"
	"github.com/mellowdrifter/wspd/internal/wsphttp"
	"github.com/mellowdrifter/wspd/internal/wtp"
)

// Metrics is the optional observability hook a Session reports into.
// A nil Metrics is valid; every method must be safe to call on the
// zero value of an implementer.
type Metrics interface {
	IncMalformedPDU()
	IncCapabilityClamp()
}

// Deps are the collaborators and shared state every session in a
// registry is built with (§6: WTP, HTTP fetch, header codec are all
// external to this core).
type Deps struct {
	Requester wtp.Requester
	Fetcher   wsphttp.Fetcher
	Headers   headers.Codec
	Limits    wspcaps.Limits
	IDs       *IDGenerator
	Logger    *zap.SugaredLogger
	Metrics   Metrics

	// OnDestroy is invoked exactly once, with the session's mutex
	// already released, when a session transitions to its terminal
	// NULL state after a Disconnect or an unrecoverable abort. It is
	// the registry's chance to unlink the session so it can be
	// garbage collected — fixing the original's machine-destroy leak
	// rather than just marking a field dead. The session itself is
	// passed through so the registry can confirm it still owns the
	// peer slot before unlinking: a Connect may have already replaced
	// this session with a fresher one for the same peer (§4.5), and a
	// late destroy from the superseded session must not evict it.
	OnDestroy func(PeerKey, *Session)
}

// Session is one WSP connection-mode session: its negotiated
// capabilities, current state, and serialized event queue.
type Session struct {
	Peer PeerKey
	deps *Deps

	// handlerMu is the "session mutex": at most one goroutine may be
	// running handle() for this session at a time. It is distinct
	// from queueMu, which only ever guards the queue slice itself
	// (§4.4, §5: "a separate mutex ... from the session handler
	// lock").
	handlerMu sync.Mutex
	queueMu   sync.Mutex
	queue     []Event

	// mu guards the fields below, which may be read by callers (e.g.
	// the registry, for logging/metrics) concurrently with dispatch.
	mu     sync.Mutex
	state  State
	id     uint64
	caps   wspcaps.Set
	hdrs   []headers.Header
	closed bool
}

// New creates a NULL-state session for peer, owned by deps.
func New(peer PeerKey, deps *Deps) *Session {
	return &Session{
		Peer:  peer,
		deps:  deps,
		state: StateNull,
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ID returns the session's negotiated session identifier, or 0 if the
// session has not yet completed Connect.
func (s *Session) ID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Caps returns the session's negotiated capability set.
func (s *Session) Caps() wspcaps.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// Closed reports whether the session has reached its terminal state
// and is ready to be unlinked from the registry.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Dispatch delivers ev to the session. If another goroutine is already
// running this session's handler, ev is appended to the event queue
// and Dispatch returns immediately — the goroutine holding the handler
// lock will drain it. This is the "try-lock-or-enqueue" actor dispatch
// described in §4.4/§5: it guarantees FIFO order and at most one
// handler active per session without blocking the caller's goroutine.
func (s *Session) Dispatch(ctx context.Context, ev Event) {
	s.enqueue(ev)
	for s.handlerMu.TryLock() {
		for {
			next, ok := s.dequeue()
			if !ok {
				break
			}
			s.handle(ctx, next)
		}
		s.handlerMu.Unlock()

		// An event enqueued after the last empty dequeue but before the
		// Unlock above saw the lock held and returned; drain it here.
		s.queueMu.Lock()
		pending := len(s.queue) > 0
		s.queueMu.Unlock()
		if !pending {
			return
		}
	}
}

func (s *Session) enqueue(ev Event) {
	s.queueMu.Lock()
	s.queue = append(s.queue, ev)
	s.queueMu.Unlock()
}

func (s *Session) dequeue() (Event, bool) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	ev := s.queue[0]
	s.queue = s.queue[1:]
	return ev, true
}

func (s *Session) log() *zap.SugaredLogger {
	if s.deps != nil && s.deps.Logger != nil {
		return s.deps.Logger
	}
	return zap.NewNop().Sugar()
}

// handle runs the transition table against the session's current
// state and ev, applying the first matching rule. It is only ever
// called by the goroutine holding handlerMu.
func (s *Session) handle(ctx context.Context, ev Event) {
	s.mu.Lock()
	cur := s.state
	s.mu.Unlock()

	for _, r := range transitionTable {
		if r.state != StateAny && r.state != cur {
			continue
		}
		if r.kind != ev.Kind() {
			continue
		}
		if r.guard != nil && !r.guard(s, ev) {
			continue
		}
		next, err := r.action(ctx, s, ev)
		if err != nil {
			s.log().Warnf("wsp: session %v: transition %s/%s failed: %v", s.Peer, cur, ev.Kind(), err)
			s.abortAndDestroy(wtp.AbortReasonProto)
			return
		}
		s.setState(next)
		return
	}

	// No rule matched this (state, event) pair.
	if ev.Kind() == KindTRInvokeIndication {
		s.log().Warnf("wsp: session %v: unexpected %s in state %s, aborting", s.Peer, ev.Kind(), cur)
		s.abortAndDestroy(wtp.AbortReasonProto)
		return
	}
	s.log().Debugf("wsp: session %v: dropping unmatched event %s in state %s", s.Peer, ev.Kind(), cur)
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// abortAndDestroy sends a TR-Abort.req with reason and unlinks the
// session from its registry. Destruction always actually happens here,
// unlike the leak this core's predecessor carried.
func (s *Session) abortAndDestroy(reason int) {
	if s.deps != nil && s.deps.Requester != nil {
		m := wtp.Machine{
			ClientAddr: s.Peer.ClientAddr,
			ClientPort: s.Peer.ClientPort,
			ServerAddr: s.Peer.ServerAddr,
			ServerPort: s.Peer.ServerPort,
		}
		if err := s.deps.Requester.Abort(m, wtp.AbortTypeUser, reason); err != nil {
			s.log().Warnf("wsp: session %v: TR-Abort.req failed: %v", s.Peer, err)
		}
	}
	s.destroy()
}

func (s *Session) destroy() {
	s.mu.Lock()
	alreadyClosed := s.closed
	s.closed = true
	s.state = StateNull
	s.mu.Unlock()

	if alreadyClosed {
		return
	}
	if s.deps != nil && s.deps.OnDestroy != nil {
		s.deps.OnDestroy(s.Peer, s)
	}
}
