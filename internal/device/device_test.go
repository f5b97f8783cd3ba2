package device

import (
	"errors"
	"testing"
)

// sourceFunc adapts a function to the Source interface for tests.
type sourceFunc func(dst []float32)

func (f sourceFunc) MixInto(dst []float32) { f(dst) }

func TestOpenNoneBackend(t *testing.T) {
	out, err := Open(Options{
		Source:     sourceFunc(func([]float32) {}),
		SampleRate: 48000,
		Channels:   2,
		Backend:    "none",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if out.Backend() != "none" {
		t.Errorf("expected backend none, got %q", out.Backend())
	}
	if err := out.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOpenRejectsNilSource(t *testing.T) {
	if _, err := Open(Options{SampleRate: 48000, Channels: 2, Backend: "none"}); err == nil {
		t.Fatal("expected an error for a nil source")
	}
}

func TestOpenRejectsBadFormat(t *testing.T) {
	src := sourceFunc(func([]float32) {})
	if _, err := Open(Options{Source: src, SampleRate: 0, Channels: 2, Backend: "none"}); err == nil {
		t.Fatal("expected an error for a zero sample rate")
	}
	if _, err := Open(Options{Source: src, SampleRate: 48000, Channels: 0, Backend: "none"}); err == nil {
		t.Fatal("expected an error for zero channels")
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	src := sourceFunc(func([]float32) {})
	_, err := Open(Options{Source: src, SampleRate: 48000, Channels: 2, Backend: "pulse"})
	if err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
	if errors.Is(err, ErrBackendUnavailable) {
		t.Error("an unknown name is a config mistake, not a build limitation")
	}
}
