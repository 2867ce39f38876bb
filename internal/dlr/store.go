// Package dlr implements the in-memory delivery-report correlation
// store: SMS delivery reports arrive asynchronously from an SMSC and
// must be matched back to the WSP session/request that originated
// them (§3 "DLR registry").
package dlr

import "sync"

// Entry is one outstanding delivery-report registration. Sender,
// Service, URL and Mask are opaque to the store — it never inspects
// them, only carries them from Add through to the matching Get/Remove.
// Destination takes part in matching only when the Store was created
// with matchDestination set.
type Entry struct {
	SMSC        string `json:"smsc"`
	Timestamp   string `json:"timestamp"`
	Destination string `json:"destination"`

	Sender  string `json:"sender"`
	Service string `json:"service"`
	URL     string `json:"url"`
	Mask    int    `json:"mask"`
}

// matches reports whether e corresponds to a lookup for (smsc, ts,
// dst). destination only participates in the comparison when
// matchDestination is true — see MatchDestination. The original this
// core was distilled from never compares it at all, flagging the
// omission as a known hazard for transports (like UCP) that produce
// more than one delivery report per SMSC+timestamp pair.
func (e Entry) matches(smsc, ts, dst string, matchDestination bool) bool {
	if e.SMSC != smsc || e.Timestamp != ts {
		return false
	}
	if matchDestination && e.Destination != dst {
		return false
	}
	return true
}

// Store is an append-only list of outstanding DLR entries guarded by
// a single list-wide mutex, mirroring the source's list_lock/list_get
// scan-to-match pattern.
type Store struct {
	mu sync.Mutex
	l  []Entry

	// matchDestination gates whether Get/Remove also compare
	// Destination. Defaults to false, matching the behavior this
	// store was distilled from (§9 Open Question: configurable via
	// the server's dlr_match_destination knob).
	matchDestination bool
}

// New creates an empty Store. matchDestination should come from the
// server's configuration; false reproduces the original's match rule
// exactly.
func New(matchDestination bool) *Store {
	return &Store{matchDestination: matchDestination}
}

// Add appends e to the store.
func (s *Store) Add(e Entry) {
	s.mu.Lock()
	s.l = append(s.l, e)
	s.mu.Unlock()
}

// Get returns a copy of the first entry matching (smsc, ts, dst), or
// false if none match. The entry is left in the store.
func (s *Store) Get(smsc, ts, dst string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.l {
		if e.matches(smsc, ts, dst, s.matchDestination) {
			return e, true
		}
	}
	return Entry{}, false
}

// Remove deletes the first entry matching (smsc, ts, dst), if any, and
// reports whether one was found.
func (s *Store) Remove(smsc, ts, dst string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.l {
		if e.matches(smsc, ts, dst, s.matchDestination) {
			s.l = append(s.l[:i], s.l[i+1:]...)
			return true
		}
	}
	return false
}

// Count returns the number of entries currently waiting.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.l)
}

// Flush discards every waiting entry.
func (s *Store) Flush() {
	s.mu.Lock()
	s.l = nil
	s.mu.Unlock()
}

// Shutdown releases the store's contents. It is equivalent to Flush,
// kept as a distinct method for symmetry with the collaborator this
// store replaces, whose shutdown and flush hooks were separate calls.
func (s *Store) Shutdown() {
	s.Flush()
}
