//go:build !linux

package main

import (
	"context"
	"log/slog"

	"github.com/cwbudde/thock/engine"
)

func runMouseFeeder(_ context.Context, _ *engine.Engine) {
	slog.Warn("the mouse feeder is only available on linux")
}
