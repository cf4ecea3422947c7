package common

import "strings"

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyA     = 65  // A key (ASCII)
	KeyB     = 66  // B key (ASCII)
	KeyF     = 70  // F key (ASCII)
	KeyI     = 73  // I key (ASCII)
	KeyR     = 82  // R key (ASCII)
	KeyV     = 86  // V key (ASCII)
	KeySpace = 32  // Spacebar (ASCII)
	KeyEnter = 257 // Enter key (GLFW)
	KeyEsc   = 256 // Escape key (GLFW)

	Key0 = 48 // 0 key (ASCII)
	Key1 = 49 // 1 key (ASCII)
	Key2 = 50 // 2 key (ASCII)
	Key3 = 51 // 3 key (ASCII)
	Key4 = 52 // 4 key (ASCII)
	Key5 = 53 // 5 key (ASCII)
	Key6 = 54 // 6 key (ASCII)
	Key7 = 55 // 7 key (ASCII)
	Key8 = 56 // 8 key (ASCII)
	Key9 = 57 // 9 key (ASCII)
)

var keyNames = map[string]int{
	"a":      KeyA,
	"b":      KeyB,
	"f":      KeyF,
	"i":      KeyI,
	"r":      KeyR,
	"v":      KeyV,
	"space":  KeySpace,
	"enter":  KeyEnter,
	"escape": KeyEsc,
	"esc":    KeyEsc,
	"0":      Key0,
	"1":      Key1,
	"2":      Key2,
	"3":      Key3,
	"4":      Key4,
	"5":      Key5,
	"6":      Key6,
	"7":      Key7,
	"8":      Key8,
	"9":      Key9,
}

// KeyCode resolves a key name as written in configuration files ("space", "f", "1") to its key code.
// Matching is case-insensitive.
//
// Parameters:
//   - name: the key name
//
// Returns:
//   - int: the key code
//   - bool: false if the name is unknown
func KeyCode(name string) (int, bool) {
	code, ok := keyNames[strings.ToLower(strings.TrimSpace(name))]
	return code, ok
}
