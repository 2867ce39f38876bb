package wspregistry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mellowdrifter/wspd/internal/octet"
	"github.com/mellowdrifter/wspd/internal/wsppdu"
	"github.com/mellowdrifter/wspd/internal/wspsession"
	"github.com/mellowdrifter/wspd/internal/wtp"
)

type nopRequester struct{}

func (nopRequester) Invoke(m wtp.Machine, userData []byte) error           { return nil }
func (nopRequester) Result(m wtp.Machine, userData []byte) error           { return nil }
func (nopRequester) Abort(m wtp.Machine, abortType, abortReason int) error { return nil }

func newTestRegistry() *Registry {
	ids := wspsession.NewIDGenerator()
	return New(zap.NewNop().Sugar(), func(peer wspsession.PeerKey) *wspsession.Deps {
		return &wspsession.Deps{
			Requester: nopRequester{},
			IDs:       ids,
			Logger:    zap.NewNop().Sugar(),
		}
	})
}

func testPeer() wspsession.PeerKey {
	return wspsession.PeerKey{ClientAddr: "192.0.2.1", ClientPort: 9200, ServerAddr: "192.0.2.2", ServerPort: 9201}
}

func connectPDU(t *testing.T) []byte {
	t.Helper()
	buf := octet.WriteU8(nil, byte(wsppdu.Connect))
	buf = octet.WriteU8(buf, 0x12)
	buf = octet.WriteUintvar(buf, 0)
	buf = octet.WriteUintvar(buf, 0)
	return buf
}

func TestFindOrCreateConnectAlwaysCreates(t *testing.T) {
	r := newTestRegistry()
	peer := testPeer()

	first := r.FindOrCreate(peer, true)
	second := r.FindOrCreate(peer, true)

	assert.NotSame(t, first, second, "a Connect PDU must always create a fresh session, even for a known peer")
	assert.Equal(t, 1, r.Count(), "the fresh session replaces the stale one in the map")
}

func TestFindOrCreateNonConnectReusesSession(t *testing.T) {
	r := newTestRegistry()
	peer := testPeer()

	first := r.FindOrCreate(peer, false)
	second := r.FindOrCreate(peer, false)

	assert.Same(t, first, second)
	assert.Equal(t, 1, r.Count())
}

func TestDispatchConnectThenDisconnectUnlinksSession(t *testing.T) {
	r := newTestRegistry()
	peer := testPeer()
	ctx := context.Background()

	r.Dispatch(ctx, peer, wspsession.TRInvokeIndicationEvent{wtp.InvokeIndication{
		Class:    wtp.ClassReliableInvokeReply,
		UserData: connectPDU(t),
	}})
	require.Equal(t, 1, r.Count())

	s, ok := r.Lookup(peer)
	require.True(t, ok)
	require.Equal(t, wspsession.StateConnected, s.State())

	disc := octet.WriteU8(nil, byte(wsppdu.Disconnect))
	r.Dispatch(ctx, peer, wspsession.TRInvokeIndicationEvent{wtp.InvokeIndication{
		Class:    wtp.ClassUnacknowledged,
		UserData: disc,
	}})

	_, ok = r.Lookup(peer)
	assert.False(t, ok, "a destroyed session must be unlinked from the registry, not merely marked dead")
	assert.Equal(t, 0, r.Count())
}

func TestStaleSupersededSessionDestroyDoesNotEvictReplacement(t *testing.T) {
	// A Connect always creates a fresh session for the peer, leaving
	// any prior session for that peer running independently (§4.5).
	// If that stale session later tears down, its destroy must not
	// unlink the live session that superseded it.
	r := newTestRegistry()
	peer := testPeer()

	stale := r.FindOrCreate(peer, true)
	fresh := r.FindOrCreate(peer, true)
	require.NotSame(t, stale, fresh)
	require.Equal(t, 1, r.Count())

	ctx := context.Background()
	disc := octet.WriteU8(nil, byte(wsppdu.Disconnect))
	stale.Dispatch(ctx, wspsession.TRInvokeIndicationEvent{wtp.InvokeIndication{
		Class:    wtp.ClassUnacknowledged,
		UserData: disc,
	}})

	got, ok := r.Lookup(peer)
	assert.True(t, ok, "the live session must still be linked after the stale session's destroy")
	assert.Same(t, fresh, got)
	assert.Equal(t, 1, r.Count())
}

func TestDistinctPeersGetDistinctSessions(t *testing.T) {
	r := newTestRegistry()
	a := wspsession.PeerKey{ClientAddr: "192.0.2.1", ClientPort: 1, ServerAddr: "192.0.2.9", ServerPort: 9201}
	b := wspsession.PeerKey{ClientAddr: "192.0.2.2", ClientPort: 2, ServerAddr: "192.0.2.9", ServerPort: 9201}

	sa := r.FindOrCreate(a, false)
	sb := r.FindOrCreate(b, false)

	assert.NotSame(t, sa, sb)
	assert.Equal(t, 2, r.Count())
}
