package keymap

import "strconv"

// scanCodes maps the JavaScript-era scan codes used by community sound-pack
// manifests to key identifiers. The numbering is platform agnostic; the
// blocks above 3600 and 57000/61000 are extended codes some packs emit for
// the navigation cluster and arrows.
var scanCodes = map[int]KeyID{
	// Escape + function keys
	1:  "esc",
	59: "f1", 60: "f2", 61: "f3", 62: "f4",
	63: "f5", 64: "f6", 65: "f7", 66: "f8",
	67: "f9", 68: "f10", 87: "f11", 88: "f12",
	91: "f13", 92: "f14", 93: "f15",

	// Number row
	41: "`", 2: "1", 3: "2", 4: "3",
	5: "4", 6: "5", 7: "6", 8: "7",
	9: "8", 10: "9", 11: "0",
	12: "-", 13: "=",

	// Main keys
	14: "backspace",
	15: "tab",
	58: "caps_lock",
	28: "enter",
	57: "space",

	// Letters (QWERTY order)
	16: "q", 17: "w", 18: "e", 19: "r", 20: "t",
	21: "y", 22: "u", 23: "i", 24: "o", 25: "p",
	30: "a", 31: "s", 32: "d", 33: "f", 34: "g",
	35: "h", 36: "j", 37: "k", 38: "l",
	44: "z", 45: "x", 46: "c", 47: "v", 48: "b",
	49: "n", 50: "m",

	// Punctuation
	26: "[", 27: "]", 43: "\\",
	39: ";", 40: "'",
	51: ",", 52: ".", 53: "/",

	// Navigation cluster
	3639: "print_screen",
	70:   "scroll_lock",
	3653: "pause",
	3666: "insert",
	3667: "delete",
	3655: "home",
	3663: "end",
	3657: "page_up",
	3665: "page_down",

	// Arrows
	57416: "up",
	57419: "left",
	57421: "right",
	57424: "down",

	// Modifiers
	42:   "shift_l",
	54:   "shift_r",
	29:   "ctrl_l",
	3613: "ctrl_r",
	56:   "alt_l",
	3640: "alt_r",
	3675: "cmd",
	3676: "cmd_r",
	3677: "menu",

	// Numpad
	69:   "num_lock",
	3637: "/",
	55:   "*",
	74:   "-",
	78:   "+",
	3612: "enter",
	83:   ".",
	79:   "num_1",
	80:   "num_2",
	81:   "num_3",
	75:   "num_4",
	76:   "num_5",
	77:   "num_6",
	71:   "num_7",
	72:   "num_8",
	73:   "num_9",
	82:   "num_0",

	// Extended codes some packs use for the same cluster
	61010: "insert",
	61011: "delete",
	60999: "home",
	61007: "end",
	61001: "page_up",
	61009: "page_down",
	61000: "up",
	61003: "left",
	61005: "right",
	61008: "down",
}

// fileAliases maps normalized sound file name stems to key identifiers
// ("space.wav", "mouse-left.wav", "PgUp.wav"). Built once at init from the
// alias list plus the generated letter/digit/function/numpad ranges.
var fileAliases = buildFileAliases()

func buildFileAliases() map[string]KeyID {
	m := map[string]KeyID{
		// Big keys
		"space": "space",
		"enter": "enter", "return": "enter", "ret": "enter",
		"backspace": "backspace", "bs": "backspace", "back": "backspace",
		"tab":    "tab",
		"escape": "esc", "esc": "esc",
		"delete": "delete", "del": "delete",
		"insert": "insert", "ins": "insert",
		"caps_lock": "caps_lock", "caps": "caps_lock", "capslock": "caps_lock",

		// Modifiers
		"shift": "shift_l", "shift_l": "shift_l", "shift_left": "shift_l", "lshift": "shift_l",
		"shift_r": "shift_r", "shift_right": "shift_r", "rshift": "shift_r",
		"ctrl": "ctrl_l", "ctrl_l": "ctrl_l", "ctrl_left": "ctrl_l", "control": "ctrl_l", "lctrl": "ctrl_l",
		"ctrl_r": "ctrl_r", "ctrl_right": "ctrl_r", "rctrl": "ctrl_r",
		"alt": "alt_l", "alt_l": "alt_l", "alt_left": "alt_l", "lalt": "alt_l",
		"alt_r": "alt_r", "alt_right": "alt_r", "ralt": "alt_r",
		"altgr": "alt_gr", "alt_gr": "alt_gr",

		// Navigation
		"home": "home", "end": "end",
		"page_up": "page_up", "pageup": "page_up", "pgup": "page_up", "pg_up": "page_up",
		"page_down": "page_down", "pagedown": "page_down", "pgdn": "page_down",
		"pgdown": "page_down", "pg_down": "page_down",

		// Arrows
		"up": "up", "arrow_up": "up", "arrowup": "up",
		"down": "down", "arrow_down": "down", "arrowdown": "down",
		"left": "left", "arrow_left": "left", "arrowleft": "left",
		"right": "right", "arrow_right": "right", "arrowright": "right",

		// System keys
		"print_screen": "print_screen", "printscreen": "print_screen", "prtsc": "print_screen",
		"scroll_lock": "scroll_lock", "scrolllock": "scroll_lock",
		"num_lock": "num_lock", "numlock": "num_lock",
		"pause": "pause", "menu": "menu",
		"win": "cmd", "cmd": "cmd", "super": "cmd",
		"win_r": "cmd_r", "cmd_r": "cmd_r",

		// Mouse
		"mouse_left": "mouse_left", "left_click": "mouse_left", "lclick": "mouse_left",
		"mouse_right": "mouse_right", "right_click": "mouse_right", "rclick": "mouse_right",
		"mouse_middle": "mouse_middle", "middle_click": "mouse_middle", "mclick": "mouse_middle",
		"scroll_up": "scroll_up", "scroll_down": "scroll_down",

		// Punctuation and symbols
		"period": ".", "dot": ".",
		"comma": ",", "semicolon": ";",
		"colon": ";", "slash": "/",
		"backslash": "\\", "quote": "'",
		"apostrophe": "'", "backtick": "`",
		"tilde": "`", "minus": "-",
		"hyphen": "-", "underscore": "-",
		"plus": "+", "equals": "=", "equal": "=",
		"open_bracket": "[", "close_bracket": "]",
		"asterisk": "*", "star": "*",
	}

	for r := 'a'; r <= 'z'; r++ {
		m[string(r)] = KeyID(r)
	}
	for d := '0'; d <= '9'; d++ {
		m[string(d)] = KeyID(d)
	}
	for i := 1; i <= 12; i++ {
		name := "f" + strconv.Itoa(i)
		m[name] = KeyID(name)
	}
	for i := 0; i <= 9; i++ {
		n := strconv.Itoa(i)
		id := KeyID("num_" + n)
		m["num"+n] = id
		m["num_"+n] = id
		m["numpad"+n] = id
		m["kp"+n] = id
	}
	return m
}

// escapeSeqs maps the body of a terminal escape sequence (everything after
// the ESC byte) to a key identifier. Covers the common CSI arrows and
// navigation cluster plus the SS3 function keys.
var escapeSeqs = map[string]KeyID{
	"[A": "up", "[B": "down", "[C": "right", "[D": "left",
	"[H": "home", "[F": "end",
	"OH": "home", "OF": "end",
	"[2~": "insert", "[3~": "delete",
	"[5~": "page_up", "[6~": "page_down",
	"OP": "f1", "OQ": "f2", "OR": "f3", "OS": "f4",
	"[15~": "f5", "[17~": "f6", "[18~": "f7", "[19~": "f8",
	"[20~": "f9", "[21~": "f10", "[23~": "f11", "[24~": "f12",
}
