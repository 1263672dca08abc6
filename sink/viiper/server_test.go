package viiper

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeServer answers the management requests the sink issues and collects
// input states written to device streams.
type fakeServer struct {
	t      *testing.T
	ln     net.Listener
	key    []byte
	states chan []byte

	mu       sync.Mutex
	buses    []uint32
	requests []string
}

func newFakeServer(t *testing.T, password string, buses ...uint32) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeServer{t: t, ln: ln, buses: buses, states: make(chan []byte, 16)}
	if password != "" {
		s.key, err = DeriveKey(password)
		require.NoError(t, err)
	}
	t.Cleanup(func() { ln.Close() })
	go s.serve()
	return s
}

func (s *fakeServer) Addr() string { return s.ln.Addr().String() }

func (s *fakeServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *fakeServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeServer) handle(raw net.Conn) {
	defer raw.Close()
	rd := bufio.NewReader(raw)
	var conn net.Conn = raw
	if s.key != nil {
		sealed, ok := s.accept(raw, rd)
		if !ok {
			return
		}
		conn, rd = sealed, bufio.NewReader(sealed)
	}

	req, err := rd.ReadString(0)
	if err != nil {
		return
	}
	req = strings.TrimSuffix(req, "\x00")
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	path, payload, _ := strings.Cut(req, " ")
	switch {
	case path == "bus/list":
		s.mu.Lock()
		ids := make([]string, len(s.buses))
		for i, b := range s.buses {
			ids[i] = fmt.Sprint(b)
		}
		s.mu.Unlock()
		fmt.Fprintf(conn, "{\"buses\":[%s]}\n", strings.Join(ids, ","))
	case path == "bus/create":
		s.mu.Lock()
		s.buses = append(s.buses, 7)
		s.mu.Unlock()
		fmt.Fprint(conn, "{\"busId\":7}\n")
	case strings.HasSuffix(path, "/add"):
		var bus uint32
		fmt.Sscanf(path, "bus/%d/add", &bus)
		if !strings.Contains(payload, `"type":"xbox360"`) {
			fmt.Fprint(conn, "{\"status\":400,\"title\":\"Bad Request\",\"detail\":\"unknown type\"}\n")
			return
		}
		fmt.Fprintf(conn, "{\"busId\":%d,\"devId\":\"1\",\"vid\":\"0x045e\",\"pid\":\"0x028e\",\"type\":\"xbox360\"}\n", bus)
	case strings.HasSuffix(path, "/remove"):
		var bus uint32
		fmt.Sscanf(path, "bus/%d/remove", &bus)
		fmt.Fprintf(conn, "{\"busId\":%d,\"devId\":%q}\n", bus, payload)
	default:
		for {
			buf := make([]byte, StateSize)
			if _, err := io.ReadFull(rd, buf); err != nil {
				return
			}
			s.states <- buf
		}
	}
}

func (s *fakeServer) accept(conn net.Conn, r *bufio.Reader) (net.Conn, bool) {
	hello := make([]byte, len(handshakeMagic)+nonceSize+32)
	if _, err := io.ReadFull(r, hello); err != nil {
		return nil, false
	}
	clientNonce := hello[len(handshakeMagic) : len(handshakeMagic)+nonceSize]
	if !hmac.Equal(hello[len(handshakeMagic)+nonceSize:], clientAuth(s.key, clientNonce)) {
		return nil, false
	}
	serverNonce := make([]byte, nonceSize)
	_, _ = rand.Read(serverNonce)
	if _, err := conn.Write(append([]byte("OK\x00"), serverNonce...)); err != nil {
		return nil, false
	}
	sealed, err := wrapConn(conn, r, deriveSessionKey(s.key, serverNonce, clientNonce))
	if err != nil {
		return nil, false
	}
	return sealed, true
}
