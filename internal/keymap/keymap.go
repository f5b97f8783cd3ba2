// Package keymap defines the stable key identifiers the engine routes on,
// together with the lookup tables that translate external namings (sound-pack
// scan codes, sound file names, terminal input) into those identifiers.
package keymap

import "strings"

// KeyID is a stable, device-independent identifier for a physical key or
// mouse button ("a", "space", "shift_l", "mouse_left"). It is distinct from
// the printable character a key may produce.
type KeyID string

// DeviceClass separates keyboard keys from mouse buttons for default-sound
// fallback purposes.
type DeviceClass uint8

const (
	Keyboard DeviceClass = iota
	Mouse
)

func (c DeviceClass) String() string {
	if c == Mouse {
		return "mouse"
	}
	return "keyboard"
}

// Class reports which device class a key identifier belongs to.
func (k KeyID) Class() DeviceClass {
	s := string(k)
	if strings.HasPrefix(s, "mouse_") || strings.HasPrefix(s, "scroll_") {
		return Mouse
	}
	return Keyboard
}

// heavyKeys lists the keys that strike with a deeper sound on a physical
// board: spacebar, enter, modifiers, function keys, navigation cluster.
var heavyKeys = map[KeyID]struct{}{
	"space": {}, "enter": {}, "backspace": {}, "delete": {},
	"shift_l": {}, "shift_r": {},
	"ctrl_l": {}, "ctrl_r": {},
	"alt_l": {}, "alt_r": {}, "alt_gr": {},
	"tab": {}, "caps_lock": {}, "esc": {},
	"insert": {}, "home": {}, "end": {},
	"page_up": {}, "page_down": {},
	"f1": {}, "f2": {}, "f3": {}, "f4": {}, "f5": {}, "f6": {},
	"f7": {}, "f8": {}, "f9": {}, "f10": {}, "f11": {}, "f12": {},
	"up": {}, "down": {}, "left": {}, "right": {},
	"num_lock": {}, "scroll_lock": {}, "pause": {}, "print_screen": {},
	"menu": {}, "cmd": {}, "cmd_r": {},
}

// IsHeavy reports whether k belongs to the heavy-key group.
func (k KeyID) IsHeavy() bool {
	_, ok := heavyKeys[k]
	return ok
}

// Normalize canonicalizes a raw name (filename stem, user input) for alias
// lookup: lower-cased, trimmed, spaces and dashes folded to underscores.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

// FromFilename resolves a sound file name stem ("Space", "mouse-left",
// "F1") to a key identifier via the alias table.
func FromFilename(stem string) (KeyID, bool) {
	k, ok := fileAliases[Normalize(stem)]
	return k, ok
}

// FromScanCode resolves a sound-pack manifest scan code to a key identifier.
func FromScanCode(code int) (KeyID, bool) {
	k, ok := scanCodes[code]
	return k, ok
}

// FromRune maps a printable terminal rune to a key identifier. Control
// characters handled by the terminal feeder (enter, backspace, escape) are
// resolved separately.
func FromRune(r rune) (KeyID, bool) {
	switch {
	case r == ' ':
		return "space", true
	case r == '\r' || r == '\n':
		return "enter", true
	case r == '\t':
		return "tab", true
	case r == 0x7f || r == 0x08:
		return "backspace", true
	case r == 0x1b:
		return "esc", true
	case r >= 'a' && r <= 'z':
		return KeyID(r), true
	case r >= 'A' && r <= 'Z':
		return KeyID(r - 'A' + 'a'), true
	case r >= '0' && r <= '9':
		return KeyID(r), true
	}
	switch r {
	case '`', '-', '=', '[', ']', '\\', ';', '\'', ',', '.', '/', '*', '+':
		return KeyID(r), true
	}
	return "", false
}

// FromEscape resolves a terminal escape sequence body (the bytes after ESC,
// e.g. "[A" for the up arrow) to a key identifier.
func FromEscape(body string) (KeyID, bool) {
	k, ok := escapeSeqs[body]
	return k, ok
}
