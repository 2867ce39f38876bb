package wspserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mellowdrifter/wspd/internal/headers"
	"github.com/mellowdrifter/wspd/internal/octet"
	"github.com/mellowdrifter/wspd/internal/wsphttp"
	"github.com/mellowdrifter/wspd/internal/wsppdu"
	"github.com/mellowdrifter/wspd/internal/wtp"
)

type fakeFetcher struct{}

func (fakeFetcher) Fetch(ctx context.Context, req wsphttp.Request) (wsphttp.Response, error) {
	return wsphttp.Response{Status: 200, Body: []byte("hello wap")}, nil
}

func startTestServer(t *testing.T) string {
	t.Helper()
	srv := New(Config{
		ListenAddr: "127.0.0.1:0",
		Fetcher:    fakeFetcher{},
		Headers:    headers.Passthrough{},
	}, zap.NewNop().Sugar())

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv.listener = l
	srv.addr = l.Addr().String()

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			srv.wg.Add(1)
			go srv.handleConnection(conn)
		}
	}()

	t.Cleanup(func() { srv.Stop(time.Second) })
	return l.Addr().String()
}

func TestServerConnectGetRoundTrip(t *testing.T) {
	addr := startTestServer(t)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	connectPDU := octet.WriteU8(nil, byte(wsppdu.Connect))
	connectPDU = octet.WriteU8(connectPDU, 0x12)
	connectPDU = octet.WriteUintvar(connectPDU, 0)
	connectPDU = octet.WriteUintvar(connectPDU, 0)
	require.NoError(t, sendTestFrame(conn, wtp.ClassReliableInvokeReply, connectPDU))

	_, payload, err := readFrame(conn)
	require.NoError(t, err)
	require.NotEmpty(t, payload)
	require.Equal(t, byte(wsppdu.ConnectReply), payload[0])

	url := "/index.wml"
	getPDU := octet.WriteU8(nil, byte(wsppdu.Get))
	getPDU = octet.WriteUintvar(getPDU, uint64(len(url)))
	getPDU = octet.AppendOctets(getPDU, []byte(url))
	require.NoError(t, sendTestFrame(conn, wtp.ClassReliableInvoke, getPDU))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, reply, err := readFrame(conn)
	require.NoError(t, err)
	require.NotEmpty(t, reply)
	require.Equal(t, byte(wsppdu.Reply), reply[0])
}

// sendTestFrame writes one [class(1)][length(4, BE)][payload] frame,
// the wire format handleConnection's readFrame expects.
func sendTestFrame(conn net.Conn, class wtp.Class, payload []byte) error {
	header := make([]byte, 5)
	header[0] = byte(class)
	header[1] = byte(len(payload) >> 24)
	header[2] = byte(len(payload) >> 16)
	header[3] = byte(len(payload) >> 8)
	header[4] = byte(len(payload))
	if _, err := conn.Write(header); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}
