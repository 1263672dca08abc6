package viiper

import (
	"bufio"
	"bytes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	handshakeMagic   = "eVI1\x00"
	nonceSize        = 32
	authContext      = "VIIPER-Auth-v1"
	sessionContext   = "VIIPER-Session-v1"
	pbkdf2Salt       = "VIIPER-Key-v1"
	pbkdf2Iterations = 100000
	maxPacketSize    = 2 * 1024 * 1024
)

// ErrUnauthorized is returned when the server rejects the password.
var ErrUnauthorized = errors.New("viiper: unauthorized")

// DeriveKey stretches password to a 32 byte key.
func DeriveKey(password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}
	return pbkdf2.Key(sha256.New, password, []byte(pbkdf2Salt), pbkdf2Iterations, 32)
}

func deriveSessionKey(key, serverNonce, clientNonce []byte) []byte {
	h := sha256.New()
	h.Write(key)
	h.Write(serverNonce)
	h.Write(clientNonce)
	h.Write([]byte(sessionContext))
	return h.Sum(nil)
}

func clientAuth(key, clientNonce []byte) []byte {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(authContext))
	_, _ = mac.Write(clientNonce)
	return mac.Sum(nil)
}

// handshake authenticates conn with key and returns the encrypted connection.
// The exchange is magic, client nonce and HMAC out; "OK\0" and the server nonce back.
func handshake(conn net.Conn, key []byte) (net.Conn, error) {
	clientNonce := make([]byte, nonceSize)
	if _, err := rand.Read(clientNonce); err != nil {
		return nil, fmt.Errorf("generate client nonce: %w", err)
	}
	msg := append([]byte(handshakeMagic), clientNonce...)
	msg = append(msg, clientAuth(key, clientNonce)...)
	if _, err := conn.Write(msg); err != nil {
		return nil, fmt.Errorf("write handshake: %w", err)
	}

	r := bufio.NewReader(conn)
	prefix := make([]byte, 3)
	if _, err := io.ReadFull(r, prefix); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: connection closed during handshake", ErrUnauthorized)
		}
		return nil, fmt.Errorf("read handshake response: %w", err)
	}
	if string(prefix) != "OK\x00" {
		rest, _ := io.ReadAll(r)
		line := strings.TrimSuffix(string(append(prefix, rest...)), "\n")
		var apiErr APIError
		if err := json.Unmarshal([]byte(line), &apiErr); err == nil && (apiErr.Status != 0 || apiErr.Title != "") {
			if apiErr.Status == 401 {
				return nil, fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Detail)
			}
			return nil, &apiErr
		}
		return nil, fmt.Errorf("invalid handshake response from server: %s", line)
	}
	serverNonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(r, serverNonce); err != nil {
		return nil, fmt.Errorf("read server nonce: %w", err)
	}
	return wrapConn(conn, r, deriveSessionKey(key, serverNonce, clientNonce))
}

// sealedConn frames every write as len(u32 BE) | nonce(12) | ciphertext.
type sealedConn struct {
	net.Conn
	r       io.Reader
	aead    cipher.AEAD
	mu      sync.Mutex
	sendCtr uint64
	recvBuf bytes.Buffer
}

func wrapConn(conn net.Conn, r io.Reader, sessionKey []byte) (net.Conn, error) {
	aead, err := chacha20poly1305.New(sessionKey)
	if err != nil {
		return nil, err
	}
	if r == nil {
		r = conn
	}
	return &sealedConn{Conn: conn, r: r, aead: aead}, nil
}

func (s *sealedConn) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(nonce[4:], s.sendCtr)
	s.sendCtr++

	ct := s.aead.Seal(nil, nonce, p, nil)
	pkt := make([]byte, 4, 4+len(nonce)+len(ct))
	binary.BigEndian.PutUint32(pkt, uint32(len(nonce)+len(ct)))
	pkt = append(pkt, nonce...)
	pkt = append(pkt, ct...)
	if _, err := s.Conn.Write(pkt); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *sealedConn) Read(p []byte) (int, error) {
	if s.recvBuf.Len() == 0 {
		var hdr [4]byte
		if _, err := io.ReadFull(s.r, hdr[:]); err != nil {
			return 0, err
		}
		length := binary.BigEndian.Uint32(hdr[:])
		if length > maxPacketSize || length < chacha20poly1305.NonceSize {
			return 0, io.ErrUnexpectedEOF
		}
		pkt := make([]byte, length)
		if _, err := io.ReadFull(s.r, pkt); err != nil {
			return 0, err
		}
		pt, err := s.aead.Open(nil, pkt[:chacha20poly1305.NonceSize], pkt[chacha20poly1305.NonceSize:], nil)
		if err != nil {
			return 0, err
		}
		s.recvBuf.Write(pt)
	}
	return s.recvBuf.Read(p)
}
