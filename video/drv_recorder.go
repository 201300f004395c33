package video

import (
	"fmt"
)

// RecorderDisplay captures the operations applied to it, for the test
// suite.
type RecorderDisplay struct {

	// Ops holds a compact description of each operation, in
	// order.
	Ops []string

	// Text accumulates the characters written.
	Text string
}

// GetName returns the name of this driver.
func (rd *RecorderDisplay) GetName() string {
	return "recorder"
}

// Clear records the operation.
func (rd *RecorderDisplay) Clear() {
	rd.Ops = append(rd.Ops, "clear")
}

// SetCursor records the operation.
func (rd *RecorderDisplay) SetCursor(row, col int) {
	rd.Ops = append(rd.Ops, fmt.Sprintf("cursor %d,%d", row, col))
}

// SetAttr records the operation.
func (rd *RecorderDisplay) SetAttr(attr uint8) {
	rd.Ops = append(rd.Ops, fmt.Sprintf("attr 0x%02X", attr))
}

// WriteChar records the character.
func (rd *RecorderDisplay) WriteChar(c uint8) {
	rd.Text += string(rune(c))
}

// ScrollUp records the operation.
func (rd *RecorderDisplay) ScrollUp(lines int) {
	rd.Ops = append(rd.Ops, fmt.Sprintf("scroll %d", lines))
}

// init registers our driver, by name.
func init() {
	Register("recorder", func() Display {
		return &RecorderDisplay{}
	})
}
