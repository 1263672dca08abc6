package log

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger dumps raw controller frames.
type RawLogger interface {
	Log(out bool, data []byte)
}

// rawLogger implements RawLogger with thread-safe log.
type rawLogger struct {
	w   io.Writer
	mu  sync.Mutex
	now func() time.Time
}

// NewRaw creates a new RawLogger. If writer is nil, returns a no-op logger.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w, now: time.Now}
}

// Log emits a single-line frame dump with timestamp and hex bytes.
// out=true means host->controller, out=false means controller->host.
func (r *rawLogger) Log(out bool, data []byte) {
	if len(data) == 0 || r.w == nil {
		return
	}

	dir := "C->H"
	if out {
		dir = "H->C"
	}

	var hexbuf bytes.Buffer
	const hexdigits = "0123456789abcdef"
	for i, b := range data {
		if i > 0 {
			hexbuf.WriteByte(' ')
		}
		hexbuf.WriteByte(hexdigits[b>>4])
		hexbuf.WriteByte(hexdigits[b&0x0f])
	}

	line := fmt.Sprintf("%s %s frame: %d bytes, code: %d, hex: %s\n",
		r.now().Format("2006/01/02 15:04:05.000"),
		dir,
		len(data),
		frameCode(data),
		hexbuf.String())

	r.mu.Lock()
	_, _ = r.w.Write([]byte(line))
	r.mu.Unlock()
}

func frameCode(data []byte) int {
	if len(data) < 3 {
		return -1
	}
	return int(data[2])
}
