package sound

import (
	"fmt"
	"io"
	"os"
	"time"
)

// ConsolePlayer sounds beeps by ringing the terminal bell.
//
// The period and volume are necessarily ignored; the terminal decides
// what a bell sounds like.
type ConsolePlayer struct {

	// writer is where we send the bell character.
	writer io.Writer
}

// GetName returns the name of this driver.
func (cp *ConsolePlayer) GetName() string {
	return "console"
}

// Beep rings the bell.
func (cp *ConsolePlayer) Beep(period uint16, volume uint8, duration time.Duration) error {
	if volume == 0 {
		return nil
	}
	_, err := fmt.Fprintf(cp.writer, "\a")
	return err
}

// Close is a NOP.
func (cp *ConsolePlayer) Close() error {
	return nil
}

// SetWriter will update the writer.
func (cp *ConsolePlayer) SetWriter(w io.Writer) {
	cp.writer = w
}

// init registers our driver, by name.
func init() {
	Register("console", func() Player {
		return &ConsolePlayer{
			writer: os.Stdout,
		}
	})
}
