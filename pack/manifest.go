package pack

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cwbudde/thock/internal/keymap"
)

// manifestName marks a pack directory as manifest-described.
const manifestName = "config.json"

// manifest mirrors the config.json layout used by mechvibes-style packs:
// one master recording with per-key [offset, duration] segments ("single"),
// or one sound file per key ("multi").
type manifest struct {
	ID             string                     `json:"id"`
	Name           string                     `json:"name"`
	KeyDefineType  string                     `json:"key_define_type"`
	IncludesNumpad bool                       `json:"includes_numpad"`
	Sound          string                     `json:"sound"`
	Defines        map[string]json.RawMessage `json:"defines"`
}

// segment is one key's slice of the master recording, in milliseconds.
type segment struct {
	Key   keymap.KeyID
	Start int
	Dur   int
}

// fileDefine is one key's dedicated sound file.
type fileDefine struct {
	Key  keymap.KeyID
	File string
}

func parseManifest(path string) (*manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pack manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse pack manifest %s: %w", path, err)
	}
	switch m.KeyDefineType {
	case "single", "multi":
	case "":
		return nil, fmt.Errorf("pack manifest %s: missing key_define_type", path)
	default:
		return nil, fmt.Errorf("pack manifest %s: unsupported key_define_type %q", path, m.KeyDefineType)
	}
	if m.KeyDefineType == "single" && m.Sound == "" {
		return nil, fmt.Errorf("pack manifest %s: single packs need a sound file", path)
	}
	return &m, nil
}

// segments decodes a single-mode define table. Null entries are keys the
// pack deliberately leaves silent; unknown scan codes are skipped quietly
// since packs routinely define codes this layout does not carry.
func (m *manifest) segments() []segment {
	out := make([]segment, 0, len(m.Defines))
	for code, raw := range m.Defines {
		key, ok := defineKey(code)
		if !ok {
			continue
		}
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var span [2]float64
		if err := json.Unmarshal(raw, &span); err != nil {
			slog.Warn("skipping malformed define", "code", code, "err", err)
			continue
		}
		out = append(out, segment{
			Key:   key,
			Start: int(span[0] + 0.5),
			Dur:   int(span[1] + 0.5),
		})
	}
	return out
}

// files decodes a multi-mode define table.
func (m *manifest) files() []fileDefine {
	out := make([]fileDefine, 0, len(m.Defines))
	for code, raw := range m.Defines {
		key, ok := defineKey(code)
		if !ok {
			continue
		}
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			slog.Warn("skipping malformed define", "code", code, "err", err)
			continue
		}
		if name == "" {
			continue
		}
		out = append(out, fileDefine{Key: key, File: name})
	}
	return out
}

func defineKey(code string) (keymap.KeyID, bool) {
	n, err := strconv.Atoi(code)
	if err != nil {
		return "", false
	}
	return keymap.FromScanCode(n)
}
