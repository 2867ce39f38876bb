package wsppdu

import (
	"fmt"
	"io"

	"github.com/mellowdrifter/wspd/internal/octet"
)

// Encode emits a ConnectReply PDU. Capabilities are omitted entirely
// (caps_len = 0) when caps is empty — this is the case when the client
// negotiated no capabilities at all (§4.2).
func (r *ConnectReplyPDU) Encode() []byte {
	buf := octet.WriteU8(nil, byte(ConnectReply))
	buf = octet.WriteUintvar(buf, r.SessionID)
	buf = octet.WriteUintvar(buf, uint64(len(r.Capabilities)))
	buf = octet.WriteUintvar(buf, uint64(len(r.Headers)))
	buf = octet.AppendOctets(buf, r.Capabilities)
	buf = octet.AppendOctets(buf, r.Headers)
	return buf
}

// Write emits the ConnectReply PDU to w.
func (r *ConnectReplyPDU) Write(w io.Writer) error {
	return writeFull(w, r.Encode())
}

// Encode emits a Reply PDU. Content type is always a single short-form
// octet per §4.2 ("content_type_len(uintvar=1)").
func (r *ReplyPDU) Encode() []byte {
	buf := octet.WriteU8(nil, byte(Reply))
	buf = octet.WriteU8(buf, r.Status)
	buf = octet.WriteUintvar(buf, 1)
	buf = octet.WriteU8(buf, r.ContentType|0x80)
	buf = octet.AppendOctets(buf, r.Body)
	return buf
}

// Write emits the Reply PDU to w.
func (r *ReplyPDU) Write(w io.Writer) error {
	return writeFull(w, r.Encode())
}

func writeFull(w io.Writer, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := w.Write(buf[total:])
		if err != nil {
			return fmt.Errorf("wsppdu: write error after %d of %d bytes: %w", total, len(buf), err)
		}
		if n == 0 {
			return fmt.Errorf("wsppdu: short write after %d bytes", total)
		}
		total += n
	}
	return nil
}
