// Package wsppdu implements the WSP PDU wire format, built on top of
// internal/octet: parsing of Connect, Get, Post and Disconnect PDUs and
// emission of ConnectReply and Reply PDUs. Every other PDU type, Push
// included, is only recognized by its type octet; it has no decoder or
// encoder here.
package wsppdu

import "github.com/mellowdrifter/wspd/internal/octet"

// Type is the WSP PDU type discriminator. The values are normative,
// taken from the WAP 1.x WSP specification.
type Type int8

const (
	Bad           Type = -1
	Connect       Type = 0x01
	ConnectReply  Type = 0x02
	Redirect      Type = 0x03
	Reply         Type = 0x04
	Disconnect    Type = 0x05
	Push          Type = 0x06
	ConfirmedPush Type = 0x07
	Suspend       Type = 0x08
	Resume        Type = 0x09
	Get           Type = 0x40
	Options       Type = 0x41
	Head          Type = 0x42
	Delete        Type = 0x43
	Trace         Type = 0x44
	Post          Type = 0x60
	Put           Type = 0x61
)

func (t Type) String() string {
	switch t {
	case Connect:
		return "Connect"
	case ConnectReply:
		return "ConnectReply"
	case Redirect:
		return "Redirect"
	case Reply:
		return "Reply"
	case Disconnect:
		return "Disconnect"
	case Push:
		return "Push"
	case ConfirmedPush:
		return "ConfirmedPush"
	case Suspend:
		return "Suspend"
	case Resume:
		return "Resume"
	case Get:
		return "Get"
	case Options:
		return "Options"
	case Head:
		return "Head"
	case Delete:
		return "Delete"
	case Trace:
		return "Trace"
	case Post:
		return "Post"
	case Put:
		return "Put"
	default:
		return "Bad"
	}
}

// DeducePDUType reads the type octet at offset 0 for connection-oriented
// PDUs or offset 1 for connectionless PDUs. Empty input yields Bad.
func DeducePDUType(data []byte, connectionless bool) Type {
	off := 0
	if connectionless {
		off = 1
	}
	b, _, err := octet.ReadU8(data, off)
	if err != nil {
		return Bad
	}
	return Type(b)
}

// ConnectPDU is the client's session-establishment request.
//
//	type(u8=0x01) . version(u8) . caps_len(uintvar) . hdrs_len(uintvar) .
//	caps(caps_len bytes) . headers(hdrs_len bytes)
type ConnectPDU struct {
	Version      uint8
	Capabilities []byte
	Headers      []byte
}

// GetPDU requests a resource with no body. Trailing headers are optional.
//
//	type(u8=0x40) . url_len(uintvar) . url(url_len bytes) . [headers]
type GetPDU struct {
	URL     string
	Headers []byte
}

// PostPDU submits a resource with a body.
//
//	type(u8=0x60) . url_len(uintvar) . param_len(uintvar) . url(url_len) .
//	headers(param_len) . body(remaining)
type PostPDU struct {
	URL     string
	Headers []byte
	Body    []byte
}

// DisconnectPDU tears a session down. It carries no fields the core
// needs beyond its presence as an event trigger.
type DisconnectPDU struct{}

// ConnectReplyPDU is the server's session-establishment acknowledgement.
//
//	type(u8=0x02) . session_id(uintvar) . caps_len(uintvar) .
//	headers_len(uintvar) . caps . headers
type ConnectReplyPDU struct {
	SessionID    uint64
	Capabilities []byte
	Headers      []byte
}

// ReplyPDU is the server's response to a Get/Post/etc. invocation.
//
//	type(u8=0x04) . status(u8) . content_type_len(uintvar=1) .
//	content_type(u8, high bit set) . body
type ReplyPDU struct {
	Status      uint8
	ContentType uint8
	Body        []byte
}
