// Package wtp declares the downward WTP (Wireless Transaction Protocol)
// collaborator: the events it delivers to the WSP core, and the
// requests the core sends back down to it. WTP itself is external to
// this module (§6); only the interface boundary lives here.
package wtp

// Class is the WTP transaction class carried on every invocation.
type Class uint8

const (
	ClassUnacknowledged      Class = 0
	ClassReliableInvoke      Class = 1
	ClassReliableInvokeReply Class = 2
)

// AbortType and AbortReason identify why a transaction was aborted,
// per the WAP 1.x WTP abort codes the core emits on protocol error.
const (
	AbortTypeUser    = 0x01
	AbortReasonProto = 0x01 // PROTOERR
)

// Machine identifies the transport-level transaction a WTP event
// belongs to, and carries the peer addressing the session registry
// keys sessions on.
type Machine struct {
	ClientAddr string
	ClientPort int
	ServerAddr string
	ServerPort int
}

// InvokeIndication is TR-Invoke.ind: the peer invoked a method.
type InvokeIndication struct {
	Machine  Machine
	Class    Class
	UserData []byte
	AckType  bool
}

// ResultConfirmation is TR-Result.cnf: our TR-Result.req was accepted.
type ResultConfirmation struct {
	Machine Machine
}

// AbortIndication is TR-Abort.ind: the peer (or the transport itself)
// aborted the transaction.
type AbortIndication struct {
	Machine    Machine
	AbortType  int
	AbortReason int
}

// Requester is the interface the WSP core uses to talk back down to
// WTP. Sends are synchronous from the state machine's point of view
// (§5 calls this a "short wait" suspension point).
type Requester interface {
	Invoke(m Machine, userData []byte) error
	Result(m Machine, userData []byte) error
	Abort(m Machine, abortType, abortReason int) error
}
