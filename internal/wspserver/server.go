// Package wspserver wires a net.Listener, per-connection WTP framing,
// the session registry, and the HTTP/DLR collaborators together into a
// runnable process (§4, §6).
package wspserver

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mellowdrifter/wspd/internal/headers"
	"github.com/mellowdrifter/wspd/internal/wspcaps"
	"github.com/mellowdrifter/wspd/internal/wspmetrics"
	"github.com/mellowdrifter/wspd/internal/wspregistry"
	"github.com/mellowdrifter/wspd/internal/wsphttp"
	"github.com/mellowdrifter/wspd/internal/wspsession"
	"github.com/mellowdrifter/wspd/internal/wtp"
)

// Server accepts connections carrying length-framed WTP indications —
// a minimal stand-in transport for the WTP layer this core treats as
// external (§6) — and dispatches them into a session registry.
type Server struct {
	listener net.Listener
	logger   *zap.SugaredLogger
	addr     string
	limits   wspcaps.Limits
	fetcher  wsphttp.Fetcher
	headers  headers.Codec
	metrics  *wspmetrics.Collector
	registry *wspregistry.Registry

	reqMu sync.Mutex
	reqs  map[wspsession.PeerKey]*connRequester

	ids *wspsession.IDGenerator

	wg           sync.WaitGroup
	shuttingDown bool
}

// Config is the subset of server behavior a caller configures.
type Config struct {
	ListenAddr string
	Limits     wspcaps.Limits
	Fetcher    wsphttp.Fetcher
	Headers    headers.Codec
	Metrics    *wspmetrics.Collector
}

// New builds a Server and the session registry it drives.
func New(cfg Config, logger *zap.SugaredLogger) *Server {
	s := &Server{
		logger:  logger,
		addr:    cfg.ListenAddr,
		limits:  cfg.Limits,
		fetcher: cfg.Fetcher,
		headers: cfg.Headers,
		metrics: cfg.Metrics,
		reqs:    make(map[wspsession.PeerKey]*connRequester),
		ids:     wspsession.NewIDGenerator(),
	}
	s.registry = wspregistry.New(logger, s.newSessionDeps)
	return s
}

// newSessionDeps is called by the registry exactly once per session,
// at creation time — by which point handleConnection has already
// registered this peer's requester. Every session shares the same
// IDGenerator so session ids and transaction ids stay strictly
// increasing across the whole process (§8), not just within one
// session's lifetime.
func (s *Server) newSessionDeps(peer wspsession.PeerKey) *wspsession.Deps {
	s.reqMu.Lock()
	req := s.reqs[peer]
	s.reqMu.Unlock()

	return &wspsession.Deps{
		Requester: req,
		Fetcher:   s.fetcher,
		Headers:   s.headers,
		Limits:    s.limits,
		IDs:       s.ids,
		Logger:    s.logger,
		Metrics:   s.metrics,
	}
}

// Start begins accepting connections. It blocks until the listener is
// closed by Stop.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("wspserver: listen on %s: %w", s.addr, err)
	}
	s.listener = l
	s.logger.Infof("wspd listening on %s", s.addr)

	go s.reportMetricsPeriodically()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.shuttingDown {
				return nil
			}
			s.logger.Errorf("wspserver: accept error: %v", err)
			continue
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// Stop closes the listener and waits up to timeout for in-flight
// connections to finish.
func (s *Server) Stop(timeout time.Duration) error {
	s.shuttingDown = true
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("wspserver: timeout waiting for connections to close")
	}
}

func (s *Server) reportMetricsPeriodically() {
	if s.metrics == nil {
		return
	}
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		s.metrics.SetActiveSessions(s.registry.Count())
	}
}

// handleConnection reads length-framed invocations off conn and feeds
// them to the registry.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	peer := peerFromConn(conn)
	req := &connRequester{conn: conn}

	s.reqMu.Lock()
	s.reqs[peer] = req
	s.reqMu.Unlock()
	defer func() {
		s.reqMu.Lock()
		delete(s.reqs, peer)
		s.reqMu.Unlock()
	}()

	ctx := context.Background()
	s.logger.Infof("wsp: peer %v connected", peer)
	for {
		class, payload, err := readFrame(conn)
		if err != nil {
			if err != io.EOF {
				s.logger.Debugf("wsp: peer %v read error: %v", peer, err)
			}
			break
		}
		ev := wspsession.TRInvokeIndicationEvent{InvokeIndication: wtp.InvokeIndication{
			Machine:  machineFromPeer(peer),
			Class:    class,
			UserData: payload,
		}}
		s.registry.Dispatch(ctx, peer, ev)
	}
	s.logger.Infof("wsp: peer %v disconnected", peer)
}

func peerFromConn(conn net.Conn) wspsession.PeerKey {
	ch, cp := splitHostPort(conn.RemoteAddr().String())
	sh, sp := splitHostPort(conn.LocalAddr().String())
	return wspsession.PeerKey{ClientAddr: ch, ClientPort: cp, ServerAddr: sh, ServerPort: sp}
}

func machineFromPeer(p wspsession.PeerKey) wtp.Machine {
	return wtp.Machine{ClientAddr: p.ClientAddr, ClientPort: p.ClientPort, ServerAddr: p.ServerAddr, ServerPort: p.ServerPort}
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

// readFrame reads one [class(1)][length(4, BE)][payload] frame.
func readFrame(r io.Reader) (wtp.Class, []byte, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	class := wtp.Class(header[0])
	length := binary.BigEndian.Uint32(header[1:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return class, payload, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var header [5]byte
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// connRequester is the per-connection wtp.Requester: it writes every
// response straight back out the TCP connection it was built for.
type connRequester struct {
	mu   sync.Mutex
	conn net.Conn
}

func (c *connRequester) Invoke(m wtp.Machine, userData []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeFrame(c.conn, userData)
}

func (c *connRequester) Result(m wtp.Machine, userData []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeFrame(c.conn, userData)
}

func (c *connRequester) Abort(m wtp.Machine, abortType, abortReason int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	abortPDU := []byte{0xFF, byte(abortType), byte(abortReason)}
	return writeFrame(c.conn, abortPDU)
}
