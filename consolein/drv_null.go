// drv_null is a console input driver with no input source of its own:
// reads report end-of-input immediately.
//
// It is what the tests run against - anything they stuff into the
// wrapper's queue is delivered ahead of the driver, and once the
// queue drains the driver supplies a clean EOF.

package consolein

import (
	"io"
)

var (
	// NullInputName contains the name of this driver.
	NullInputName = "null"
)

// NullInput is the empty input source.
type NullInput struct {
}

// Setup is a NOP.
func (ni *NullInput) Setup() error {
	return nil
}

// TearDown is a NOP.
func (ni *NullInput) TearDown() error {
	return nil
}

// Peek reports no input; only the wrapper's queue can feed a reader.
func (ni *NullInput) Peek() bool {
	return false
}

// Read reports the end of the input.
func (ni *NullInput) Read() (byte, error) {
	return 0x00, io.EOF
}

// GetName is part of the driver API, and returns the name of this
// driver.
func (ni *NullInput) GetName() string {
	return NullInputName
}

// init registers our driver, by name.
func init() {
	Register(NullInputName, func() ConsoleInput {
		return new(NullInput)
	})
}
