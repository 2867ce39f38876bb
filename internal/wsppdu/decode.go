package wsppdu

import (
	"errors"
	"fmt"

	"github.com/mellowdrifter/wspd/internal/octet"
)

// ErrMalformed is wrapped by every decode failure: truncated length
// fields, or a length field that claims more data than is present.
var ErrMalformed = errors.New("wsppdu: malformed PDU")

// DecodeConnect parses a Connect PDU. data is the whole PDU, type octet
// included; parsing starts after it (offset 1).
func DecodeConnect(data []byte) (*ConnectPDU, error) {
	off := 1 // type octet
	version, off, err := octet.ReadU8(data, off)
	if err != nil {
		return nil, fmt.Errorf("connect: version: %w: %w", ErrMalformed, err)
	}
	capsLen, off, err := octet.ReadUintvar(data, off)
	if err != nil {
		return nil, fmt.Errorf("connect: caps_len: %w: %w", ErrMalformed, err)
	}
	hdrsLen, off, err := octet.ReadUintvar(data, off)
	if err != nil {
		return nil, fmt.Errorf("connect: hdrs_len: %w: %w", ErrMalformed, err)
	}
	caps, off, err := octet.ReadOctets(data, off, int(capsLen))
	if err != nil {
		return nil, fmt.Errorf("connect: caps: %w: %w", ErrMalformed, err)
	}
	hdrs, _, err := octet.ReadOctets(data, off, int(hdrsLen))
	if err != nil {
		return nil, fmt.Errorf("connect: headers: %w: %w", ErrMalformed, err)
	}
	return &ConnectPDU{
		Version:      version,
		Capabilities: cloneBytes(caps),
		Headers:      cloneBytes(hdrs),
	}, nil
}

// DecodeGet parses a Get PDU. Trailing headers are optional: their
// absence yields a nil Headers field, not an error.
func DecodeGet(data []byte) (*GetPDU, error) {
	off := 1
	urlLen, off, err := octet.ReadUintvar(data, off)
	if err != nil {
		return nil, fmt.Errorf("get: url_len: %w: %w", ErrMalformed, err)
	}
	url, off, err := octet.ReadOctets(data, off, int(urlLen))
	if err != nil {
		return nil, fmt.Errorf("get: url: %w: %w", ErrMalformed, err)
	}
	var hdrs []byte
	if off < len(data) {
		hdrs = cloneBytes(data[off:])
	}
	return &GetPDU{URL: string(url), Headers: hdrs}, nil
}

// DecodePost parses a Post PDU. Per the source behavior this module
// preserves, the header block is discarded and
// the body is appended to the URL as a query string by the caller
// (wspsession), not by this decoder — DecodePost only splits the wire
// fields apart.
func DecodePost(data []byte) (*PostPDU, error) {
	off := 1
	urlLen, off, err := octet.ReadUintvar(data, off)
	if err != nil {
		return nil, fmt.Errorf("post: url_len: %w: %w", ErrMalformed, err)
	}
	paramLen, off, err := octet.ReadUintvar(data, off)
	if err != nil {
		return nil, fmt.Errorf("post: param_len: %w: %w", ErrMalformed, err)
	}
	url, off, err := octet.ReadOctets(data, off, int(urlLen))
	if err != nil {
		return nil, fmt.Errorf("post: url: %w: %w", ErrMalformed, err)
	}
	hdrs, off, err := octet.ReadOctets(data, off, int(paramLen))
	if err != nil {
		return nil, fmt.Errorf("post: headers: %w: %w", ErrMalformed, err)
	}
	body := cloneBytes(data[off:])
	return &PostPDU{
		URL:     string(url),
		Headers: cloneBytes(hdrs),
		Body:    body,
	}, nil
}

// DecodeDisconnect parses a Disconnect PDU. The core only needs to know
// it arrived, so this is a formality kept for symmetry with the other
// decoders.
func DecodeDisconnect(data []byte) (*DisconnectPDU, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("disconnect: %w", ErrMalformed)
	}
	return &DisconnectPDU{}, nil
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
