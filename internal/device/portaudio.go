//go:build portaudio && !headless

package device

import (
	"fmt"
	"sync/atomic"

	pa "github.com/gordonklaus/portaudio"
)

// paOutput renders through the PortAudio callback API. PortAudio invokes
// the callback on its own high-priority thread with an interleaved block.
type paOutput struct {
	stream    *pa.Stream
	src       Source
	underruns atomic.Uint64
}

func newPortAudioOutput(opts Options) (Output, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: %w", err)
	}
	o := &paOutput{src: opts.Source}

	frames := int(opts.Buffer.Seconds() * float64(opts.SampleRate))
	if frames < 1 {
		frames = pa.FramesPerBufferUnspecified
	}
	stream, err := pa.OpenDefaultStream(0, opts.Channels, float64(opts.SampleRate), frames, o.callback)
	if err != nil {
		pa.Terminate()
		return nil, fmt.Errorf("portaudio: open stream: %w", err)
	}
	o.stream = stream
	if err := stream.Start(); err != nil {
		stream.Close()
		pa.Terminate()
		return nil, fmt.Errorf("portaudio: start stream: %w", err)
	}
	return o, nil
}

func (o *paOutput) Backend() string   { return "portaudio" }
func (o *paOutput) Underruns() uint64 { return o.underruns.Load() }

// callback must never panic into C.
func (o *paOutput) callback(out []float32) {
	defer func() {
		if recover() != nil {
			o.underruns.Add(1)
			for i := range out {
				out[i] = 0
			}
		}
	}()
	o.src.MixInto(out)
}

func (o *paOutput) Close() error {
	err := o.stream.Stop()
	if cerr := o.stream.Close(); err == nil {
		err = cerr
	}
	if terr := pa.Terminate(); err == nil {
		err = terr
	}
	return err
}
