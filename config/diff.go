package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// (audio format, polyphony, backend) requires a restart.
type ConfigDiff struct {
	VolumeChanged bool
	NewVolume     float64

	RepeatChanged bool
	RepeatEnabled bool

	// PackChanged covers the pack directory, the rendition pool size and
	// the bindings file: any of them forces a full pack reload.
	PackChanged bool

	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// Any reports whether the diff carries at least one applicable change.
func (d ConfigDiff) Any() bool {
	return d.VolumeChanged || d.RepeatChanged || d.PackChanged || d.LogLevelChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Engine.Volume != new.Engine.Volume {
		d.VolumeChanged = true
		d.NewVolume = new.Engine.Volume
	}

	if old.Repeat.Enabled != new.Repeat.Enabled {
		d.RepeatChanged = true
		d.RepeatEnabled = new.Repeat.Enabled
	}

	if old.Sounds.PackDir != new.Sounds.PackDir ||
		old.Sounds.PoolSize != new.Sounds.PoolSize ||
		old.Sounds.BindingsFile != new.Sounds.BindingsFile {
		d.PackChanged = true
	}

	if old.Log.Level != new.Log.Level {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Log.Level
	}

	return d
}
