// The output drivers: "ansi" writes straight through to the hosting
// terminal (RomWBW guests emit ANSI sequences themselves, so no
// translation is wanted), "null" discards everything, and "logger"
// records the stream for the test suite.

package consoleout

import (
	"fmt"
	"io"
	"os"
)

// AnsiOutputDriver passes bytes through to its writer.
type AnsiOutputDriver struct {
	writer io.Writer
}

// GetName returns the name of this driver.
func (ad *AnsiOutputDriver) GetName() string {
	return "ansi"
}

// PutCharacter writes the specified character to the console.
func (ad *AnsiOutputDriver) PutCharacter(c uint8) {
	fmt.Fprintf(ad.writer, "%c", c)
}

// SetWriter will update the writer.
func (ad *AnsiOutputDriver) SetWriter(w io.Writer) {
	ad.writer = w
}

// NullOutputDriver discards everything.
type NullOutputDriver struct {
}

// GetName returns the name of this driver.
func (no *NullOutputDriver) GetName() string {
	return "null"
}

// PutCharacter discards the given character.
func (no *NullOutputDriver) PutCharacter(c uint8) {
}

// SetWriter is a NOP, nothing is ever written.
func (no *NullOutputDriver) SetWriter(w io.Writer) {
}

// OutputLoggingDriver records everything, for the test suite.
type OutputLoggingDriver struct {

	// history stores everything which has been written.
	history string
}

// GetName returns the name of this driver.
func (ol *OutputLoggingDriver) GetName() string {
	return "logger"
}

// PutCharacter saves the character into our history; nothing is
// displayed.
func (ol *OutputLoggingDriver) PutCharacter(c uint8) {
	ol.history += string(rune(c))
}

// SetWriter is a NOP, nothing is ever written.
func (ol *OutputLoggingDriver) SetWriter(w io.Writer) {
}

// GetOutput returns our history.
//
// This is part of the ConsoleRecorder interface.
func (ol *OutputLoggingDriver) GetOutput() string {
	return ol.history
}

// Reset removes our history.
//
// This is part of the ConsoleRecorder interface.
func (ol *OutputLoggingDriver) Reset() {
	ol.history = ""
}

// init registers our drivers, by name.
func init() {
	Register("ansi", func() ConsoleOutput {
		return &AnsiOutputDriver{
			writer: os.Stdout,
		}
	})
	Register("null", func() ConsoleOutput {
		return &NullOutputDriver{}
	})
	Register("logger", func() ConsoleOutput {
		return &OutputLoggingDriver{}
	})
}
