package headers

// Passthrough is a minimal Codec that treats the header block as a
// sequence of NUL-separated "name: value" strings instead of the real
// WAP multibyte MIME-header encoding. It exists so this module is
// runnable end to end without the external header codec §6 defers to;
// a production deployment supplies its own Codec.
type Passthrough struct{}

// Decode implements Codec.
func (Passthrough) Decode(b []byte) ([]Header, error) {
	var out []Header
	start := 0
	for i := 0; i <= len(b); i++ {
		if i == len(b) || b[i] == 0 {
			if i > start {
				out = append(out, splitHeaderLine(string(b[start:i])))
			}
			start = i + 1
		}
	}
	return out, nil
}

// Encode implements Codec.
func (Passthrough) Encode(h []Header) ([]byte, error) {
	var out []byte
	for _, hdr := range h {
		out = append(out, hdr.Name...)
		out = append(out, ": "...)
		out = append(out, hdr.Value...)
		out = append(out, 0)
	}
	return out, nil
}

// Pack implements Codec. Passthrough has no compact representation to
// convert to, so it returns h unchanged.
func (Passthrough) Pack(h []Header) []Header { return h }

func splitHeaderLine(line string) Header {
	for i := 0; i < len(line); i++ {
		if line[i] == ':' {
			name := line[:i]
			value := line[i+1:]
			if len(value) > 0 && value[0] == ' ' {
				value = value[1:]
			}
			return Header{Name: name, Value: value}
		}
	}
	return Header{Name: line}
}
