package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/cwbudde/thock/engine"
	"github.com/cwbudde/thock/internal/keymap"
)

// holdWindow is how long a terminal key counts as held after its last byte.
// The terminal delivers no key-up, so release is inferred from silence; OS
// auto-repeat keeps re-arming the window while a key is physically down.
const holdWindow = 75 * time.Millisecond

// escapeSettle is how long to wait for the rest of a control sequence
// before treating a lone ESC byte as the escape key.
const escapeSettle = 25 * time.Millisecond

// ui drives the engine from stdin: raw-mode keystrokes on a terminal, line
// commands otherwise.
type ui struct {
	eng   *engine.Engine
	in    *os.File
	out   io.Writer
	noRaw bool

	mu      sync.Mutex
	timers  map[keymap.KeyID]*time.Timer
	muted   bool
	restore float32
}

func newUI(eng *engine.Engine, in *os.File, out io.Writer, noRaw bool) *ui {
	return &ui{
		eng:    eng,
		in:     in,
		out:    out,
		noRaw:  noRaw,
		timers: make(map[keymap.KeyID]*time.Timer),
	}
}

func (u *ui) run(ctx context.Context) error {
	fd := int(u.in.Fd())
	if u.noRaw || !term.IsTerminal(fd) {
		return u.runLines(ctx)
	}
	return u.runRaw(ctx, fd)
}

func (u *ui) runRaw(ctx context.Context, fd int) error {
	old, err := term.MakeRaw(fd)
	if err != nil {
		slog.Warn("raw mode unavailable, falling back to line commands", "err", err)
		return u.runLines(ctx)
	}
	defer term.Restore(fd, old)
	defer u.releaseAll()

	fmt.Fprintf(u.out, "type to thock: +/- volume, m mute, r repeat, q quit\r\n")

	bytes := make(chan byte, 64)
	go u.readBytes(ctx, bytes)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-bytes:
			if !ok {
				return nil
			}
			if b == 0x1b {
				u.handleEscape(bytes)
				continue
			}
			if quit := u.handleByte(b); quit {
				return nil
			}
		}
	}
}

// readBytes pumps stdin into ch. It stays blocked in Read across
// cancellation; the process exits right after the UI loop returns.
func (u *ui) readBytes(ctx context.Context, ch chan<- byte) {
	defer close(ch)
	buf := make([]byte, 64)
	for {
		n, err := u.in.Read(buf)
		for i := 0; i < n; i++ {
			select {
			case ch <- buf[i]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (u *ui) handleByte(b byte) (quit bool) {
	switch b {
	case 'q', 0x03: // Ctrl-C arrives as a plain byte in raw mode
		return true
	case '+', '=':
		u.stepVolume(+0.05)
	case '-', '_':
		u.stepVolume(-0.05)
	case 'm':
		u.toggleMute()
	case 'r':
		on := !u.eng.RepeatEnabled()
		u.eng.SetRepeat(on)
		u.status("repeat %s", onOff(on))
	default:
		if key, ok := keymap.FromRune(rune(b)); ok {
			u.press(key)
		}
	}
	return false
}

// handleEscape consumes one control sequence from the byte stream. A lone
// ESC press delivers no follow-up bytes, so silence means the escape key.
func (u *ui) handleEscape(bytes <-chan byte) {
	var body []byte
	for {
		select {
		case b, ok := <-bytes:
			if !ok {
				return
			}
			body = append(body, b)
			if len(body) == 1 && (b == '[' || b == 'O') {
				continue
			}
			if b >= 0x40 && b <= 0x7e {
				if key, known := keymap.FromEscape(string(body)); known {
					u.press(key)
				}
				return
			}
			if len(body) > 8 {
				return
			}
		case <-time.After(escapeSettle):
			if len(body) == 0 {
				u.press("esc")
			}
			return
		}
	}
}

// press registers a key-down, or extends the hold window when the key is
// already down (OS auto-repeat).
func (u *ui) press(key keymap.KeyID) {
	now := time.Now()
	u.mu.Lock()
	if t, ok := u.timers[key]; ok {
		t.Reset(holdWindow)
		u.mu.Unlock()
		return
	}
	u.timers[key] = time.AfterFunc(holdWindow, func() { u.release(key) })
	u.mu.Unlock()

	u.eng.OnKeyDown(engine.Event{Key: key, Class: key.Class(), Time: now})
}

func (u *ui) release(key keymap.KeyID) {
	u.mu.Lock()
	delete(u.timers, key)
	u.mu.Unlock()
	u.eng.OnKeyUp(engine.Event{Key: key, Class: key.Class(), Time: time.Now()})
}

func (u *ui) releaseAll() {
	u.mu.Lock()
	keys := make([]keymap.KeyID, 0, len(u.timers))
	for k, t := range u.timers {
		t.Stop()
		keys = append(keys, k)
	}
	clear(u.timers)
	u.mu.Unlock()

	for _, k := range keys {
		u.eng.OnKeyUp(engine.Event{Key: k, Class: k.Class(), Time: time.Now()})
	}
}

func (u *ui) stepVolume(d float32) {
	v := u.eng.Volume() + d
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	u.mu.Lock()
	u.muted = false
	u.mu.Unlock()
	u.eng.SetVolume(v)
	u.status("volume %d%%", int(v*100+0.5))
}

func (u *ui) toggleMute() {
	u.mu.Lock()
	if !u.muted {
		u.muted = true
		u.restore = u.eng.Volume()
		u.mu.Unlock()
		u.eng.SetVolume(0)
		u.status("muted")
		return
	}
	u.muted = false
	v := u.restore
	u.mu.Unlock()
	if v <= 0 {
		v = 1
	}
	u.eng.SetVolume(v)
	u.status("volume %d%%", int(v*100+0.5))
}

func (u *ui) status(format string, args ...any) {
	fmt.Fprintf(u.out, "\r"+format+"\r\n", args...)
}

// runLines reads whitespace commands from stdin for non-terminal use
// (piped control, service managers).
func (u *ui) runLines(ctx context.Context) error {
	fmt.Fprintln(u.out, `commands: "volume 0.4" | "volume 40", "repeat on|off", "stats", "quit"`)

	lines := make(chan string, 4)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(u.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				// Stdin closed; keep serving the feeders until the
				// context ends.
				<-ctx.Done()
				return ctx.Err()
			}
			if quit := u.handleLine(line); quit {
				return nil
			}
		}
	}
}

func (u *ui) handleLine(line string) (quit bool) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "quit", "exit", "q":
		return true
	case "volume":
		if len(fields) != 2 {
			fmt.Fprintln(u.out, "usage: volume <0..1 | 0..100>")
			return false
		}
		v, err := parseVolume(fields[1])
		if err != nil {
			fmt.Fprintln(u.out, err)
			return false
		}
		u.eng.SetVolume(v)
		fmt.Fprintf(u.out, "volume %d%%\n", int(v*100+0.5))
	case "repeat":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			fmt.Fprintln(u.out, "usage: repeat on|off")
			return false
		}
		u.eng.SetRepeat(fields[1] == "on")
		fmt.Fprintf(u.out, "repeat %s\n", fields[1])
	case "stats":
		s := u.eng.Stats()
		fmt.Fprintf(u.out, "triggers %d  steals %d  finished %d  active %d  clips %d\n",
			s.Triggers, s.Steals, s.Finished, s.ActiveVoices, s.Clips)
	default:
		fmt.Fprintf(u.out, "unknown command %q\n", fields[0])
	}
	return false
}

// parseVolume accepts 0..1 fractions and 0..100 percentages: values above
// 1 are read as percent. Out-of-range input clamps.
func parseVolume(s string) (float32, error) {
	s = strings.TrimSuffix(s, "%")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("volume %q is not a number", s)
	}
	if f > 1 {
		f /= 100
	}
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return float32(f), nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
