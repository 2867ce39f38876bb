package wspsession

import (
	"context"
	"fmt"
	"strings"

	"github.com/mellowdrifter/wspd/internal/wsphttp"
	"github.com/mellowdrifter/wspd/internal/wsppdu"
	"github.com/mellowdrifter/wspd/internal/wspcaps"
	"github.com/mellowdrifter/wspd/internal/wtp"
)

type guardFunc func(*Session, Event) bool
type actionFunc func(ctx context.Context, s *Session, ev Event) (State, error)

type rule struct {
	state State
	kind  Kind
	guard guardFunc
	action actionFunc
}

// transitionTable is the primary flow: NULL→CONNECTED on Connect,
// CONNECTED self-loops for method dispatch and HTTP completion,
// CONNECTED→NULL on Disconnect, any→NULL on Abort. Rules are evaluated
// in order; the first match wins.
var transitionTable = []rule{
	{
		state: StateNull,
		kind:  KindTRInvokeIndication,
		guard: isConnectInvoke,
		action: connectAction,
	},
	{
		state: StateConnected,
		kind:  KindTRInvokeIndication,
		guard: isPDUTypeAny(wsppdu.Get, wsppdu.Post),
		action: methodAction,
	},
	{
		state:  StateConnected,
		kind:   KindHTTPFetchCompleted,
		action: httpCompletedAction,
	},
	{
		state: StateConnected,
		kind:  KindTRInvokeIndication,
		guard: isPDUType(wsppdu.Disconnect),
		action: disconnectAction,
	},
	{
		state:  StateAny,
		kind:   KindTRAbortIndication,
		action: peerAbortAction,
	},
	{
		state:  StateAny,
		kind:   KindSDisconnectRequest,
		action: localDisconnectAction,
	},
}

// isConnectInvoke matches TR-Invoke.ind, tcl=2, Connect PDU — the
// only way a session leaves NULL.
func isConnectInvoke(s *Session, ev Event) bool {
	inv, ok := ev.(TRInvokeIndicationEvent)
	if !ok {
		return false
	}
	return inv.Class == wtp.ClassReliableInvokeReply && wsppdu.DeducePDUType(inv.UserData, false) == wsppdu.Connect
}

func isPDUType(want wsppdu.Type) guardFunc {
	return func(s *Session, ev Event) bool {
		inv, ok := ev.(TRInvokeIndicationEvent)
		if !ok {
			return false
		}
		return wsppdu.DeducePDUType(inv.UserData, false) == want
	}
}

func isPDUTypeAny(want ...wsppdu.Type) guardFunc {
	return func(s *Session, ev Event) bool {
		inv, ok := ev.(TRInvokeIndicationEvent)
		if !ok {
			return false
		}
		got := wsppdu.DeducePDUType(inv.UserData, false)
		for _, t := range want {
			if got == t {
				return true
			}
		}
		return false
	}
}

func (s *Session) machine() wtp.Machine {
	return wtp.Machine{
		ClientAddr: s.Peer.ClientAddr,
		ClientPort: s.Peer.ClientPort,
		ServerAddr: s.Peer.ServerAddr,
		ServerPort: s.Peer.ServerPort,
	}
}

// connectAction is NULL --[TR-Invoke.ind, tcl=2, Connect]-> CONNECTED.
func connectAction(ctx context.Context, s *Session, ev Event) (State, error) {
	inv := ev.(TRInvokeIndicationEvent)
	pdu, err := wsppdu.DecodeConnect(inv.UserData)
	if err != nil {
		if s.deps != nil && s.deps.Metrics != nil {
			s.deps.Metrics.IncMalformedPDU()
		}
		return StateNull, err
	}

	caps := wspcaps.Default()
	limits := wspcaps.Limits{}
	if s.deps != nil {
		limits = s.deps.Limits
	}
	var rec wspcaps.ClampRecorder
	if s.deps != nil && s.deps.Metrics != nil {
		rec = s.deps.Metrics
	}
	if err := wspcaps.NegotiateWithMetrics(pdu.Capabilities, limits, &caps, s.log(), rec); err != nil {
		if s.deps != nil && s.deps.Metrics != nil {
			s.deps.Metrics.IncMalformedPDU()
		}
		return StateNull, err
	}

	var sessionID uint64
	if s.deps != nil && s.deps.IDs != nil {
		sessionID = s.deps.IDs.NextSessionID()
	}

	var hdrs []byte
	if s.deps != nil && s.deps.Headers != nil && len(pdu.Headers) > 0 {
		decoded, err := s.deps.Headers.Decode(pdu.Headers)
		if err == nil {
			if encoded, err := s.deps.Headers.Encode(s.deps.Headers.Pack(decoded)); err == nil {
				hdrs = encoded
			}
		}
	}

	reply := &wsppdu.ConnectReplyPDU{
		SessionID:    sessionID,
		Capabilities: wspcaps.Encode(caps),
		Headers:      hdrs,
	}

	s.mu.Lock()
	s.id = sessionID
	s.caps = caps
	s.mu.Unlock()

	if s.deps != nil && s.deps.Requester != nil {
		if err := s.deps.Requester.Result(s.machine(), reply.Encode()); err != nil {
			return StateNull, fmt.Errorf("wspsession: TR-Result.req for ConnectReply: %w", err)
		}
	}
	return StateConnected, nil
}

// methodAction is CONNECTED --[TR-Invoke.ind, Get/Post]-> CONNECTED,
// dispatching the request to the HTTP collaborator. The fetch runs in
// its own goroutine and feeds its outcome back in through Dispatch as
// an HTTPFetchCompletedEvent, keeping the session handler lock free
// while the fetch is in flight.
func methodAction(ctx context.Context, s *Session, ev Event) (State, error) {
	inv := ev.(TRInvokeIndicationEvent)
	typ := wsppdu.DeducePDUType(inv.UserData, false)

	var req wsphttp.Request
	switch typ {
	case wsppdu.Get:
		pdu, err := wsppdu.DecodeGet(inv.UserData)
		if err != nil {
			if s.deps != nil && s.deps.Metrics != nil {
				s.deps.Metrics.IncMalformedPDU()
			}
			return StateConnected, err
		}
		req = wsphttp.Request{Method: "GET", URL: pdu.URL, Headers: pdu.Headers}
	case wsppdu.Post:
		pdu, err := wsppdu.DecodePost(inv.UserData)
		if err != nil {
			if s.deps != nil && s.deps.Metrics != nil {
				s.deps.Metrics.IncMalformedPDU()
			}
			return StateConnected, err
		}
		// The header block is discarded and the body is concatenated
		// onto the URL as a query string — a preserved known defect,
		// not a fix.
		url := pdu.URL
		if len(pdu.Body) > 0 {
			url = url + "?" + string(pdu.Body)
		}
		req = wsphttp.Request{Method: "POST", URL: url}
	default:
		return StateConnected, fmt.Errorf("wspsession: unexpected PDU type %s in methodAction", typ)
	}

	fetcher := s.deps.Fetcher
	go func() {
		resp, err := fetcher.Fetch(ctx, req)
		s.Dispatch(ctx, HTTPFetchCompletedEvent{
			Status:  resp.Status,
			Headers: resp.Headers,
			Body:    resp.Body,
			Err:     err,
		})
	}()

	return StateConnected, nil
}

// httpCompletedAction is CONNECTED --[HTTP-completed]-> CONNECTED,
// emitting the Reply PDU via TR-Result.req.
func httpCompletedAction(ctx context.Context, s *Session, ev Event) (State, error) {
	completed := ev.(HTTPFetchCompletedEvent)

	var status uint8
	if completed.Err != nil {
		status, _ = wsphttp.ToWSPStatus(500)
	} else {
		status, _ = wsphttp.ToWSPStatus(completed.Status)
	}

	reply := &wsppdu.ReplyPDU{
		Status:      status,
		ContentType: guessContentType(completed.Headers),
		Body:        completed.Body,
	}

	if s.deps != nil && s.deps.Requester != nil {
		if err := s.deps.Requester.Result(s.machine(), reply.Encode()); err != nil {
			return StateConnected, fmt.Errorf("wspsession: TR-Result.req for Reply: %w", err)
		}
	}
	return StateConnected, nil
}

// guessContentType is a placeholder content-type negotiator: real
// content typing belongs to the header codec collaborator, which
// carries its own well-known-content-type table (§6).
func guessContentType(headers []byte) uint8 {
	if strings.Contains(string(headers), "json") {
		return 0x28
	}
	return 0x03 // text/plain, well-known content type
}

// disconnectAction is CONNECTED --[TR-Invoke.ind, Disconnect]-> NULL,
// unlinking the session from its registry.
func disconnectAction(ctx context.Context, s *Session, ev Event) (State, error) {
	s.destroy()
	return StateNull, nil
}

// peerAbortAction is any --[TR-Abort.ind]-> NULL: the peer or the
// transport aborted the transaction, so the session is torn down
// without a reply.
func peerAbortAction(ctx context.Context, s *Session, ev Event) (State, error) {
	s.destroy()
	return StateNull, nil
}

// localDisconnectAction tears a session down on a local S-Disconnect.req
// without sending a WTP abort, since the peer did nothing wrong.
func localDisconnectAction(ctx context.Context, s *Session, ev Event) (State, error) {
	s.destroy()
	return StateNull, nil
}
