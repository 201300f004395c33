// Package video provides the display sink behind the HBIOS VDA
// services.
//
// The dispatcher keeps the cursor and attribute state; a driver is
// only asked to realise the effects: clear, position, attribute,
// character output and scrolling.  The "ansi" driver renders onto the
// hosting terminal with escape sequences, "null" discards everything,
// and "recorder" captures the operations for the test suite.
package video

import (
	"fmt"
	"strings"
)

// Display is the interface a VDA sink must implement.
type Display interface {

	// Clear erases the whole display.
	Clear()

	// SetCursor moves the cursor to the given row and column.
	SetCursor(row, col int)

	// SetAttr applies a PC-style attribute byte to subsequent
	// output.
	SetAttr(attr uint8)

	// WriteChar draws a character at the cursor.
	WriteChar(c uint8)

	// ScrollUp scrolls the viewport up by the given number of
	// lines.
	ScrollUp(lines int)

	// GetName returns the name of the driver.
	GetName() string
}

// Constructor is the signature of a constructor-function which is
// used to instantiate an instance of a driver.
type Constructor func() Display

// This is a map of known-drivers.
var handlers = struct {
	m map[string]Constructor
}{m: make(map[string]Constructor)}

// Register makes a display driver available, by name.
func Register(name string, obj Constructor) {
	name = strings.ToLower(name)
	handlers.m[name] = obj
}

// New returns the display driver with the given name.
func New(name string) (Display, error) {
	name = strings.ToLower(name)

	ctor, ok := handlers.m[name]
	if !ok {
		return nil, fmt.Errorf("failed to lookup display driver by name '%s'", name)
	}
	return ctor(), nil
}
