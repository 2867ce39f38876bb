package wspsession

import "github.com/mellowdrifter/wspd/internal/wtp"

// Kind discriminates the WSP event union (§3 "WSP event").
type Kind int

const (
	KindTRInvokeIndication Kind = iota
	KindTRResultConfirmation
	KindTRAbortIndication
	KindHTTPFetchCompleted
	KindRelease
	KindSDisconnectRequest
)

func (k Kind) String() string {
	switch k {
	case KindTRInvokeIndication:
		return "TR-Invoke.ind"
	case KindTRResultConfirmation:
		return "TR-Result.cnf"
	case KindTRAbortIndication:
		return "TR-Abort.ind"
	case KindHTTPFetchCompleted:
		return "HTTP-fetch-completed"
	case KindRelease:
		return "Release"
	case KindSDisconnectRequest:
		return "S-Disconnect.req"
	default:
		return "unknown"
	}
}

// Event is the tagged union the session machine dispatches on. Each
// variant below carries exactly the fields its transitions need (§3).
type Event interface {
	Kind() Kind
}

// TRInvokeIndicationEvent is TR-Invoke.ind: the peer invoked a method
// (Connect, Get, Post, Disconnect, ...).
type TRInvokeIndicationEvent struct {
	wtp.InvokeIndication
}

func (TRInvokeIndicationEvent) Kind() Kind { return KindTRInvokeIndication }

// TRResultConfirmationEvent is TR-Result.cnf: our TR-Result.req landed.
type TRResultConfirmationEvent struct {
	wtp.ResultConfirmation
}

func (TRResultConfirmationEvent) Kind() Kind { return KindTRResultConfirmation }

// TRAbortIndicationEvent is TR-Abort.ind: the transaction was aborted,
// by the peer or by the transport.
type TRAbortIndicationEvent struct {
	wtp.AbortIndication
}

func (TRAbortIndicationEvent) Kind() Kind { return KindTRAbortIndication }

// HTTPFetchCompletedEvent carries the result of a Get/Post content
// fetch back to the session, for callers that dispatch the HTTP
// collaborator asynchronously instead of blocking inline.
type HTTPFetchCompletedEvent struct {
	Status  int
	Headers []byte
	Body    []byte
	Err     error
}

func (HTTPFetchCompletedEvent) Kind() Kind { return KindHTTPFetchCompleted }

// ReleaseEvent is the housekeeping event WTP sends when its own
// transaction record is released (no payload).
type ReleaseEvent struct{}

func (ReleaseEvent) Kind() Kind { return KindRelease }

// SDisconnectRequestEvent is a local S-Disconnect.req: something above
// the session layer wants this session torn down.
type SDisconnectRequestEvent struct{}

func (SDisconnectRequestEvent) Kind() Kind { return KindSDisconnectRequest }
