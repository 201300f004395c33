// drv_error is a console input driver which claims input is always
// waiting, and then fails every read.
//
// This driver is only used for testing the failure paths.

package consolein

import "fmt"

var (
	// ErrorInputName contains the name of this driver.
	ErrorInputName = "error"
)

// ErrorInput is the always-failing input source.
type ErrorInput struct {
}

// Setup is a NOP.
func (ei *ErrorInput) Setup() error {
	return nil
}

// TearDown is a NOP.
func (ei *ErrorInput) TearDown() error {
	return nil
}

// Peek pretends a byte is waiting, so that a read is attempted.
func (ei *ErrorInput) Peek() bool {
	return true
}

// Read always fails.
func (ei *ErrorInput) Read() (byte, error) {
	return 0x00, fmt.Errorf("DRV_ERROR")
}

// GetName is part of the driver API, and returns the name of this
// driver.
func (ei *ErrorInput) GetName() string {
	return ErrorInputName
}

// init registers our driver, by name.
func init() {
	Register(ErrorInputName, func() ConsoleInput {
		return new(ErrorInput)
	})
}
