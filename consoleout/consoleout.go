// Package consoleout carries the emulated UART's output to the host.
//
// Besides routing bytes to a driver, the wrapper here can watch the
// output stream for a marker: the auto-boot feature types its command
// only once the ROM loader's "Boot [H=Help]:" prompt has actually
// been printed, because anything typed earlier is swallowed by the
// firmware's start-up banner.
package consoleout

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// ConsoleOutput is the interface that must be implemented by anything
// that wishes to be used as a console output driver.
type ConsoleOutput interface {

	// PutCharacter will output the specified character.
	PutCharacter(c uint8)

	// GetName will return the name of the driver.
	GetName() string

	// SetWriter will update the writer, where the driver has one.
	SetWriter(io.Writer)
}

// ConsoleRecorder is an interface that allows returning the contents
// that have been previously sent to the console.
//
// This is used solely for integration tests.
type ConsoleRecorder interface {

	// GetOutput returns the contents which have been displayed.
	GetOutput() string

	// Reset removes any stored state.
	Reset()
}

// Constructor is the signature of a constructor-function which is
// used to instantiate an instance of a driver.
type Constructor func() ConsoleOutput

// This is a map of known-drivers.
var handlers = struct {
	m map[string]Constructor
}{m: make(map[string]Constructor)}

// Register makes a console output driver available, by name.
func Register(name string, obj Constructor) {
	name = strings.ToLower(name)
	handlers.m[name] = obj
}

// ConsoleOut holds our state: the driver, and at most one pending
// watch on the output stream.
type ConsoleOut struct {

	// driver is the thing that actually writes our output.
	driver ConsoleOutput

	// marker is the byte sequence being watched for.
	marker []byte

	// tail holds the last len(marker) bytes written, for the
	// suffix comparison.
	tail []byte

	// matched is called, once, when the marker has been written.
	matched func()
}

// New is our constructor, it creates an output device which uses the
// specified driver.
func New(name string) (*ConsoleOut, error) {
	name = strings.ToLower(name)

	ctor, ok := handlers.m[name]
	if !ok {
		return nil, fmt.Errorf("failed to lookup console output driver by name '%s'", name)
	}

	return &ConsoleOut{
		driver: ctor(),
	}, nil
}

// GetDriver allows getting our driver at runtime.
func (co *ConsoleOut) GetDriver() ConsoleOutput {
	return co.driver
}

// GetName returns the name of our selected driver.
func (co *ConsoleOut) GetName() string {
	return co.driver.GetName()
}

// WatchFor arranges for fn to run, once, when the given marker text
// has been written to the console.  Only one watch is held at a time;
// a new call replaces the old.
func (co *ConsoleOut) WatchFor(marker string, fn func()) {
	if marker == "" || fn == nil {
		co.marker = nil
		co.tail = nil
		co.matched = nil
		return
	}
	co.marker = []byte(marker)
	co.tail = nil
	co.matched = fn
}

// PutCharacter outputs a character, using our selected driver, and
// advances any pending watch.
func (co *ConsoleOut) PutCharacter(c byte) {
	co.driver.PutCharacter(c)

	if co.matched == nil {
		return
	}

	co.tail = append(co.tail, c)
	if len(co.tail) > len(co.marker) {
		co.tail = co.tail[len(co.tail)-len(co.marker):]
	}
	if bytes.Equal(co.tail, co.marker) {
		fn := co.matched
		co.matched = nil
		co.marker = nil
		co.tail = nil
		fn()
	}
}

// WriteString outputs a complete string, character by character, as
// the HBIOS device reports do.
func (co *ConsoleOut) WriteString(s string) {
	for _, c := range []byte(s) {
		co.PutCharacter(c)
	}
}
