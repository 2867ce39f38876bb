// Package wsphttp holds the HTTP↔WSP status mapping and the interface
// the session machine uses to dispatch GET/POST content fetches. The
// HTTP client itself is an external collaborator (§6) — only the
// interface and the status table live here.
package wsphttp

import "context"

// internalServerError is WSP's 0x60, used as the fallback for any HTTP
// status this gateway doesn't have a specific mapping for.
const internalServerError = 0x60

var statusTable = map[int]uint8{
	200: 0x20,
	413: 0x4D,
	415: 0x4F,
	500: internalServerError,
}

// ToWSPStatus maps an HTTP status code to its WSP equivalent. Any
// status outside the table maps to 0x60 ("Internal Server Error") and
// ok is false so the caller can log the anomaly.
func ToWSPStatus(httpStatus int) (status uint8, ok bool) {
	s, found := statusTable[httpStatus]
	if !found {
		return internalServerError, false
	}
	return s, true
}

// Request is the method, URL, headers, and body the session machine
// hands to the HTTP collaborator for a Get or Post.
type Request struct {
	Method  string
	URL     string
	Headers []byte
	Body    []byte
}

// Response is what the HTTP collaborator hands back.
type Response struct {
	Status  int
	Headers []byte
	Body    []byte
}

// Fetcher is the upward HTTP collaborator (§6). Implementations may be
// internally asynchronous; from the state machine's viewpoint a call
// to Fetch blocks until a Response or error is available.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}
