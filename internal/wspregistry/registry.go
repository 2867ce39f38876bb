// Package wspregistry tracks the set of live WSP sessions, keyed by
// peer 4-tuple, and dispatches incoming WTP events to the right one
// (§3 "session registry", §4.4).
package wspregistry

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mellowdrifter/wspd/internal/wsppdu"
	"github.com/mellowdrifter/wspd/internal/wspsession"
	"github.com/mellowdrifter/wspd/internal/wtp"
)

// Registry is a map[PeerKey]*Session behind a single mutex, held only
// across the scan-and-maybe-insert step — never across event handling,
// so a slow session can't stall lookups for every other peer (§3, §5).
type Registry struct {
	mu       sync.Mutex
	sessions map[wspsession.PeerKey]*wspsession.Session

	newDeps func(wspsession.PeerKey) *wspsession.Deps
	logger  *zap.SugaredLogger
}

// New creates an empty registry. newDeps is called once per session,
// at creation time, to build that session's collaborator set; it must
// return a Deps whose OnDestroy is nil — the registry installs its own
// so every session it creates is reliably unlinked.
func New(logger *zap.SugaredLogger, newDeps func(wspsession.PeerKey) *wspsession.Deps) *Registry {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Registry{
		sessions: make(map[wspsession.PeerKey]*wspsession.Session),
		newDeps:  newDeps,
		logger:   logger,
	}
}

// Count returns the number of sessions currently tracked, including
// ones that are mid-teardown.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Lookup returns the session for peer, if one exists.
func (r *Registry) Lookup(peer wspsession.PeerKey) (*wspsession.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[peer]
	return s, ok
}

// FindOrCreate implements §4.4's lookup rule: a TR-Invoke.ind carrying
// a Connect PDU with tcl=2 always creates a fresh NULL-state session
// for its peer (even if one already exists, letting a stale session
// lose the race); every other indication is matched to an existing
// session by its 4-tuple, or gets a new NULL-state session if none
// matches yet.
func (r *Registry) FindOrCreate(peer wspsession.PeerKey, isConnect bool) *wspsession.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if isConnect {
		s := r.newSessionLocked(peer)
		r.sessions[peer] = s
		return s
	}
	if s, ok := r.sessions[peer]; ok {
		return s
	}
	s := r.newSessionLocked(peer)
	r.sessions[peer] = s
	return s
}

func (r *Registry) newSessionLocked(peer wspsession.PeerKey) *wspsession.Session {
	deps := r.newDeps(peer)
	deps.OnDestroy = r.destroy
	return wspsession.New(peer, deps)
}

// destroy unlinks peer's session from the registry, but only if s is
// still the session occupying that peer slot. A Connect PDU always
// replaces the map entry with a fresh session while any stale,
// superseded session keeps running independently until its own queue
// drains (§4.5); if that stale session tears down later, its destroy
// must not evict the live session that replaced it. Unlike the
// leaking original this core replaces, the session is actually
// removed from the map here (when it still owns the slot), so it
// becomes eligible for garbage collection instead of lingering
// forever with a dead client_port sentinel.
func (r *Registry) destroy(peer wspsession.PeerKey, s *wspsession.Session) {
	r.mu.Lock()
	if r.sessions[peer] != s {
		r.mu.Unlock()
		r.logger.Debugf("wsp: session %v destroy skipped: superseded by a newer session", peer)
		return
	}
	delete(r.sessions, peer)
	r.mu.Unlock()
	r.logger.Debugf("wsp: session %v destroyed and unlinked", peer)
}

// Dispatch routes an inbound WTP event to its session, creating one
// first if necessary.
func (r *Registry) Dispatch(ctx context.Context, peer wspsession.PeerKey, ev wspsession.Event) {
	s := r.FindOrCreate(peer, isConnectInvoke(ev))
	s.Dispatch(ctx, ev)
}

func isConnectInvoke(ev wspsession.Event) bool {
	inv, ok := ev.(wspsession.TRInvokeIndicationEvent)
	if !ok {
		return false
	}
	return inv.Class == wtp.ClassReliableInvokeReply && wsppdu.DeducePDUType(inv.UserData, false) == wsppdu.Connect
}

// PeerKeyFromMachine converts a wtp.Machine into the 4-tuple a
// Registry keys sessions on.
func PeerKeyFromMachine(m wtp.Machine) wspsession.PeerKey {
	return wspsession.PeerKey{
		ClientAddr: m.ClientAddr,
		ClientPort: m.ClientPort,
		ServerAddr: m.ServerAddr,
		ServerPort: m.ServerPort,
	}
}
