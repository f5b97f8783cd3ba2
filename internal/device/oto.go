//go:build !headless

package device

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

// otoOutput drives the source through oto's ring buffer. Oto pulls samples
// with Read on its own playback goroutine.
type otoOutput struct {
	ctx    *oto.Context
	player *oto.Player
	src    Source

	// Pre-allocated mix scratch; grows once if oto asks for more than
	// expected and is then stable.
	buf []float32

	underruns atomic.Uint64
}

func newOtoOutput(opts Options) (Output, error) {
	op := &oto.NewContextOptions{
		SampleRate:   opts.SampleRate,
		ChannelCount: opts.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   opts.Buffer,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("oto: %w", err)
	}
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("oto: audio device not ready")
	}

	o := &otoOutput{
		ctx: ctx,
		src: opts.Source,
		buf: make([]float32, 4096),
	}
	o.player = ctx.NewPlayer(o)
	if frames := int(opts.Buffer.Seconds() * float64(opts.SampleRate)); frames > 0 {
		// Keep the player-side buffer near the device buffer so total
		// latency stays close to the configured target.
		o.player.SetBufferSize(frames * opts.Channels * 4)
	}
	o.player.Play()
	return o, nil
}

func (o *otoOutput) Backend() string   { return "oto" }
func (o *otoOutput) Underruns() uint64 { return o.underruns.Load() }

// Read is oto's pull path. It must always hand back a full valid block; a
// panic here would kill the playback goroutine, so the source call is
// fenced and the block falls back to silence.
func (o *otoOutput) Read(p []byte) (int, error) {
	samples := len(p) / 4
	if samples == 0 {
		return 0, nil
	}
	if len(o.buf) < samples {
		o.buf = make([]float32, samples)
	}
	buf := o.buf[:samples]
	o.fill(buf)
	copy(p, unsafe.Slice((*byte)(unsafe.Pointer(&buf[0])), samples*4))
	return samples * 4, nil
}

func (o *otoOutput) fill(buf []float32) {
	defer func() {
		if r := recover(); r != nil {
			o.underruns.Add(1)
			slog.Error("audio source panicked, substituting silence", "panic", r)
			for i := range buf {
				buf[i] = 0
			}
		}
	}()
	o.src.MixInto(buf)
}

func (o *otoOutput) Close() error {
	return o.player.Close()
}
