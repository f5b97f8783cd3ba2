//go:build headless

package device

func newOtoOutput(Options) (Output, error) {
	return nil, ErrBackendUnavailable
}
