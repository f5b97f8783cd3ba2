package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cwbudde/thock/engine"
	"github.com/cwbudde/thock/internal/keymap"
)

// mousePacketDevice is the kernel's PS/2-compatible aggregate of all
// pointing devices. Reading it usually needs membership in the input group.
const mousePacketDevice = "/dev/input/mice"

var mouseButtons = [3]keymap.KeyID{"mouse_left", "mouse_right", "mouse_middle"}

// runMouseFeeder reads 3-byte PS/2 packets and feeds button edges into the
// engine. Motion bytes are discarded.
func runMouseFeeder(ctx context.Context, eng *engine.Engine) {
	f, err := os.Open(mousePacketDevice)
	if err != nil {
		slog.Warn("mouse feeder disabled", "device", mousePacketDevice, "err", err)
		return
	}
	go func() {
		// Closing the device unblocks the pending read on shutdown.
		<-ctx.Done()
		f.Close()
	}()
	defer f.Close()

	slog.Info("mouse feeder running", "device", mousePacketDevice)

	var prev byte
	buf := make([]byte, 3)
	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			if ctx.Err() == nil && !errors.Is(err, os.ErrClosed) {
				slog.Warn("mouse feeder stopped", "err", err)
			}
			return
		}
		downs, ups := buttonEdges(prev, buf[0])
		prev = buf[0]
		now := time.Now()
		for _, k := range downs {
			eng.OnKeyDown(engine.Event{Key: k, Class: keymap.Mouse, Time: now})
		}
		for _, k := range ups {
			eng.OnKeyUp(engine.Event{Key: k, Class: keymap.Mouse, Time: now})
		}
	}
}

// buttonEdges compares two packet status bytes and returns the buttons that
// went down and up between them.
func buttonEdges(prev, cur byte) (downs, ups []keymap.KeyID) {
	for bit := 0; bit < 3; bit++ {
		mask := byte(1) << bit
		was, is := prev&mask != 0, cur&mask != 0
		switch {
		case is && !was:
			downs = append(downs, mouseButtons[bit])
		case was && !is:
			ups = append(ups, mouseButtons[bit])
		}
	}
	return downs, ups
}
