// Package viiper forwards controller events to a virtual Xbox 360 pad
// hosted by a VIIPER server.
//
// Management requests are `<path>[ SP <payload>]\0`; the server answers with a
// single JSON line and closes the connection. A device stream is opened with
// the same framing and then carries raw input states until either side hangs up.
package viiper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// DefaultAddr is where a local VIIPER server listens for API connections.
const DefaultAddr = "localhost:3242"

// APIError is a problem+json error returned by the server.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
}

type BusListResponse struct {
	Buses []uint32 `json:"buses"`
}

type BusCreateResponse struct {
	BusID uint32 `json:"busId"`
}

type Device struct {
	BusID uint32 `json:"busId"`
	DevID string `json:"devId"`
	Vid   string `json:"vid"`
	Pid   string `json:"pid"`
	Type  string `json:"type"`
}

type DeviceRemoveResponse struct {
	BusID uint32 `json:"busId"`
	DevID string `json:"devId"`
}

type deviceCreateRequest struct {
	Type      string  `json:"type"`
	IDVendor  *uint16 `json:"idVendor,omitempty"`
	IDProduct *uint16 `json:"idProduct,omitempty"`
}

// Config controls dialing and authentication.
type Config struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Password     string
}

func defaultConfig() Config {
	return Config{
		DialTimeout:  3 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Client talks to the VIIPER management API.
type Client struct {
	addr string
	cfg  Config
	key  func() ([]byte, error)
}

// NewClient connects to addr lazily; a nil cfg uses default timeouts.
func NewClient(addr string, cfg *Config) *Client {
	c := defaultConfig()
	if cfg != nil {
		c = *cfg
	}
	cl := &Client{addr: addr, cfg: c}
	if c.Password != "" {
		cl.key = sync.OnceValues(func() ([]byte, error) { return DeriveKey(c.Password) })
	}
	return cl
}

func (c *Client) BusList(ctx context.Context) (*BusListResponse, error) {
	return call[BusListResponse](ctx, c, "bus/list", "")
}

// BusCreate creates bus busID; zero lets the server pick the number.
func (c *Client) BusCreate(ctx context.Context, busID uint32) (*BusCreateResponse, error) {
	payload := ""
	if busID != 0 {
		payload = fmt.Sprintf("%d", busID)
	}
	return call[BusCreateResponse](ctx, c, "bus/create", payload)
}

func (c *Client) DeviceAdd(ctx context.Context, busID uint32, devType string, vid, pid *uint16) (*Device, error) {
	b, err := json.Marshal(deviceCreateRequest{Type: devType, IDVendor: vid, IDProduct: pid})
	if err != nil {
		return nil, fmt.Errorf("marshal device create request: %w", err)
	}
	return call[Device](ctx, c, fmt.Sprintf("bus/%d/add", busID), string(b))
}

func (c *Client) DeviceRemove(ctx context.Context, busID uint32, devID string) (*DeviceRemoveResponse, error) {
	return call[DeviceRemoveResponse](ctx, c, fmt.Sprintf("bus/%d/remove", busID), devID)
}

// OpenStream attaches to a device. The caller owns the returned connection.
func (c *Client) OpenStream(ctx context.Context, busID uint32, devID string) (net.Conn, error) {
	conn, err := c.open(ctx, fmt.Sprintf("bus/%d/%s", busID, devID), "")
	if err != nil {
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return conn, nil
}

func call[T any](ctx context.Context, c *Client, path, payload string) (*T, error) {
	conn, err := c.open(ctx, path, payload)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if c.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
	raw, err := io.ReadAll(conn)
	if err != nil && len(raw) == 0 {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return parse[T](strings.TrimSuffix(string(raw), "\n"))
}

// open dials, authenticates when a password is set and writes the request.
func (c *Client) open(ctx context.Context, path, payload string) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	d := &net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	if c.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}

	if c.key != nil {
		key, err := c.key()
		if err != nil {
			conn.Close()
			return nil, err
		}
		sealed, err := handshake(conn, key)
		if err != nil {
			conn.Close()
			return nil, err
		}
		conn = sealed
	}

	line := []byte(strings.ToLower(path))
	if payload != "" {
		line = append(append(line, ' '), payload...)
	}
	if _, err := conn.Write(append(line, 0)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write: %w", err)
	}
	return conn, nil
}

func parse[T any](data string) (*T, error) {
	if data == "" {
		return nil, errors.New("empty response")
	}
	var problem APIError
	if err := json.Unmarshal([]byte(data), &problem); err == nil && (problem.Status != 0 || problem.Title != "") {
		return nil, &problem
	}
	var out T
	if err := json.NewDecoder(bytes.NewReader([]byte(data))).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}
