//go:build !portaudio || headless

package device

func newPortAudioOutput(Options) (Output, error) {
	return nil, ErrBackendUnavailable
}
