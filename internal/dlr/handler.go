package dlr

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Handler exposes a Store over HTTP for the two operations the rest of
// the gateway needs from the outside: registering that a report is
// expected, and reporting one that arrived from the SMSC side.
type Handler struct {
	store  *Store
	logger *zap.SugaredLogger
}

// NewHandler wraps store for HTTP access.
func NewHandler(store *Store, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{store: store, logger: logger}
}

type registerRequest struct {
	SMSC        string `json:"smsc"`
	Timestamp   string `json:"timestamp"`
	Destination string `json:"destination"`
	Sender      string `json:"sender"`
	Service     string `json:"service"`
	URL         string `json:"url"`
	Mask        int    `json:"mask"`
}

type reportRequest struct {
	SMSC        string `json:"smsc"`
	Timestamp   string `json:"timestamp"`
	Destination string `json:"destination"`
}

// ServeHTTP implements http.Handler. POST /register adds an entry;
// POST /report looks one up and removes it, replying 404 if no entry
// was waiting.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/register":
		h.handleRegister(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/report":
		h.handleReport(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	h.store.Add(Entry{
		SMSC:        req.SMSC,
		Timestamp:   req.Timestamp,
		Destination: req.Destination,
		Sender:      req.Sender,
		Service:     req.Service,
		URL:         req.URL,
		Mask:        req.Mask,
	})
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	entry, ok := h.store.Get(req.SMSC, req.Timestamp, req.Destination)
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.store.Remove(req.SMSC, req.Timestamp, req.Destination)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entry); err != nil {
		h.logger.Warnf("dlr: failed to encode report response: %v", err)
	}
}
