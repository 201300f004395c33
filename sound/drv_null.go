package sound

import (
	"time"
)

// NullPlayer discards every beep.
type NullPlayer struct {
}

// GetName returns the name of this driver.
func (np *NullPlayer) GetName() string {
	return "null"
}

// Beep is a NOP.
func (np *NullPlayer) Beep(period uint16, volume uint8, duration time.Duration) error {
	return nil
}

// Close is a NOP.
func (np *NullPlayer) Close() error {
	return nil
}

// init registers our driver, by name.
func init() {
	Register("null", func() Player {
		return &NullPlayer{}
	})
}
