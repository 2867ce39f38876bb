package wspsession

import "sync/atomic"

// IDGenerator hands out monotonically increasing session and server
// transaction identifiers. A single generator is shared by every
// session under one registry (§3).
type IDGenerator struct {
	nextSession     atomic.Uint64
	nextTransaction atomic.Uint64
}

// NewIDGenerator returns a generator whose first session id and
// transaction id are both 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// NextSessionID returns the next unused session identifier.
func (g *IDGenerator) NextSessionID() uint64 {
	return g.nextSession.Add(1)
}

// NextTransactionID returns the next unused server transaction
// identifier.
func (g *IDGenerator) NextTransactionID() uint64 {
	return g.nextTransaction.Add(1)
}
