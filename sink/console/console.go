// Package console renders controller events as a live bar display.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Alia5/mogabridge/moga"
	"golang.org/x/term"
)

var blocks = []rune(" ▁▂▃▄▅▆▇█")

// Console writes one line per event code; consecutive values of the same
// code extend its line with one block glyph each.
type Console struct {
	mu       sync.Mutex
	w        *bufio.Writer
	enabled  bool
	minimums map[moga.EventCode]int32
	last     moga.EventCode
	started  bool
}

var _ moga.Sink = (*Console)(nil)

// New renders to w. Output to a non-terminal *os.File is suppressed unless force is set.
func New(w io.Writer, force bool) *Console {
	enabled := true
	if f, ok := w.(*os.File); ok && !force {
		enabled = term.IsTerminal(int(f.Fd()))
	}
	return &Console{
		w:        bufio.NewWriter(w),
		enabled:  enabled,
		minimums: map[moga.EventCode]int32{},
	}
}

func (c *Console) Register(components []moga.Component) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, comp := range components {
		if info, ok := comp.AbsInfo(); ok {
			c.minimums[comp.Code] = info.Minimum
		}
	}
	return nil
}

func (c *Console) Send(events []moga.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return nil
	}
	for _, ev := range events {
		if ev.IsSynReport() {
			continue
		}
		if !c.started || ev.Code != c.last {
			c.started = true
			c.last = ev.Code
			fmt.Fprintf(c.w, "\n%s", Name(ev.Code))
		}
		c.w.WriteRune(c.glyph(ev))
	}
	return c.w.Flush()
}

func (c *Console) glyph(ev moga.Event) rune {
	if ev.Code.Type != moga.EvAbs {
		if ev.Value != 0 {
			return blocks[len(blocks)-1]
		}
		return blocks[0]
	}
	i := int(ev.Value-c.minimums[ev.Code]) * len(blocks) / 256
	return blocks[max(0, min(i, len(blocks)-1))]
}

func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled && c.started {
		c.w.WriteByte('\n')
	}
	return c.w.Flush()
}

var names = map[moga.EventCode]string{
	{Type: moga.EvKey, Code: moga.BtnSouth}:     "BTN_SOUTH",
	{Type: moga.EvKey, Code: moga.BtnEast}:      "BTN_EAST",
	{Type: moga.EvKey, Code: moga.BtnNorth}:     "BTN_NORTH",
	{Type: moga.EvKey, Code: moga.BtnWest}:      "BTN_WEST",
	{Type: moga.EvKey, Code: moga.BtnTL}:        "BTN_TL",
	{Type: moga.EvKey, Code: moga.BtnTR}:        "BTN_TR",
	{Type: moga.EvKey, Code: moga.BtnTL2}:       "BTN_TL2",
	{Type: moga.EvKey, Code: moga.BtnTR2}:       "BTN_TR2",
	{Type: moga.EvKey, Code: moga.BtnSelect}:    "BTN_SELECT",
	{Type: moga.EvKey, Code: moga.BtnStart}:     "BTN_START",
	{Type: moga.EvKey, Code: moga.BtnThumbL}:    "BTN_THUMBL",
	{Type: moga.EvKey, Code: moga.BtnThumbR}:    "BTN_THUMBR",
	{Type: moga.EvKey, Code: moga.BtnDPadUp}:    "BTN_DPAD_UP",
	{Type: moga.EvKey, Code: moga.BtnDPadDown}:  "BTN_DPAD_DOWN",
	{Type: moga.EvKey, Code: moga.BtnDPadLeft}:  "BTN_DPAD_LEFT",
	{Type: moga.EvKey, Code: moga.BtnDPadRight}: "BTN_DPAD_RIGHT",
	{Type: moga.EvAbs, Code: moga.AbsX}:         "ABS_X",
	{Type: moga.EvAbs, Code: moga.AbsY}:         "ABS_Y",
	{Type: moga.EvAbs, Code: moga.AbsRX}:        "ABS_RX",
	{Type: moga.EvAbs, Code: moga.AbsRY}:        "ABS_RY",
	{Type: moga.EvAbs, Code: moga.AbsHat2X}:     "ABS_HAT2X",
	{Type: moga.EvAbs, Code: moga.AbsHat2Y}:     "ABS_HAT2Y",
	{Type: moga.EvSyn, Code: 0}:                 "SYN_REPORT",
}

// Name returns the evdev symbol for c, or its numeric form.
func Name(c moga.EventCode) string {
	if n, ok := names[c]; ok {
		return n
	}
	return c.String()
}
