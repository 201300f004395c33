package video

// NullDisplay discards every operation.
type NullDisplay struct {
}

// GetName returns the name of this driver.
func (nd *NullDisplay) GetName() string {
	return "null"
}

// Clear is a NOP.
func (nd *NullDisplay) Clear() {
}

// SetCursor is a NOP.
func (nd *NullDisplay) SetCursor(row, col int) {
}

// SetAttr is a NOP.
func (nd *NullDisplay) SetAttr(attr uint8) {
}

// WriteChar is a NOP.
func (nd *NullDisplay) WriteChar(c uint8) {
}

// ScrollUp is a NOP.
func (nd *NullDisplay) ScrollUp(lines int) {
}

// init registers our driver, by name.
func init() {
	Register("null", func() Display {
		return &NullDisplay{}
	})
}
