// Package consolein feeds the emulated UART with console input.
//
// The firmware never blocks on the UART: it polls a status register
// and consumes a byte only once one is reported waiting.  The driver
// interface here mirrors that contract - a cheap Peek, and a Read
// which never waits - rather than the blocking reads a conventional
// terminal program would use.
//
// Queued input (the auto-boot command, test scripts, anything stuffed
// programmatically) is owned by the wrapper in this file and drained
// ahead of the driver, so every driver sees only real input.
package consolein

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoInput is returned by a read when nothing is waiting.  It is
// the normal idle case, not a failure.
var ErrNoInput = errors.New("no input available")

// ConsoleInput is the interface a console input driver must
// implement.
type ConsoleInput interface {

	// Setup performs any one-time initialization, such as placing
	// the terminal in raw mode.
	Setup() error

	// TearDown undoes whatever Setup did.
	TearDown() error

	// Peek reports whether Read would return something: a byte,
	// or the end of the input.
	Peek() bool

	// Read returns the next byte without waiting: ErrNoInput when
	// nothing is pending, io.EOF once the input is exhausted.
	Read() (byte, error)

	// GetName returns the name of the driver.
	GetName() string
}

// Constructor is the signature of a constructor-function used to
// instantiate an instance of a driver.
type Constructor func() ConsoleInput

// This is a map of known-drivers.
var handlers = struct {
	m map[string]Constructor
}{m: make(map[string]Constructor)}

// Register makes a console input driver available, by name.
func Register(name string, obj Constructor) {
	name = strings.ToLower(name)
	handlers.m[name] = obj
}

// ConsoleIn holds our state: the chosen driver, the queue of stuffed
// input, and the escape character which suspends the guest and opens
// the monitor.
type ConsoleIn struct {

	// driver is the thing that actually reads our input.
	driver ConsoleInput

	// queue holds input which has been stuffed programmatically;
	// it is drained before the driver is consulted.
	queue []byte

	// escape is the character which should open the monitor
	// rather than being delivered to the guest.  Zero disables
	// the check.
	escape byte
}

// New is our constructor, it creates an input device which uses the
// specified driver.
func New(name string) (*ConsoleIn, error) {
	name = strings.ToLower(name)

	ctor, ok := handlers.m[name]
	if !ok {
		return nil, fmt.Errorf("failed to lookup console input driver by name '%s'", name)
	}

	return &ConsoleIn{
		driver: ctor(),
	}, nil
}

// GetDriver allows getting our driver at runtime, mostly for tests.
func (ci *ConsoleIn) GetDriver() ConsoleInput {
	return ci.driver
}

// GetName returns the name of our selected driver.
func (ci *ConsoleIn) GetName() string {
	return ci.driver.GetName()
}

// Setup initializes the chosen driver.
func (ci *ConsoleIn) Setup() error {
	return ci.driver.Setup()
}

// TearDown restores the terminal.
func (ci *ConsoleIn) TearDown() error {
	return ci.driver.TearDown()
}

// HasInput reports whether a read would return something.  This is
// what the UART status register, CIOIST and VDAKST all surface to
// the guest.
func (ci *ConsoleIn) HasInput() bool {
	return len(ci.queue) > 0 || ci.driver.Peek()
}

// ReadChar returns the next character of input without waiting:
// stuffed input first, then the driver.  ErrNoInput means nothing is
// pending.  Newlines are converted to carriage returns, which is what
// the boot loader and CP/M expect from a terminal.
func (ci *ConsoleIn) ReadChar() (byte, error) {
	var c byte

	if len(ci.queue) > 0 {
		c = ci.queue[0]
		ci.queue = ci.queue[1:]
	} else {
		var err error
		c, err = ci.driver.Read()
		if err != nil {
			return 0x00, err
		}
	}

	if c == '\n' {
		c = '\r'
	}
	return c, nil
}

// BlockForChar polls until a character is available, sleeping between
// attempts.  The monitor reads its command lines this way; the
// dispatcher's own blocking policy does its polling at the service
// layer instead.
func (ci *ConsoleIn) BlockForChar() (byte, error) {
	for {
		c, err := ci.ReadChar()
		if errors.Is(err, ErrNoInput) {
			time.Sleep(time.Millisecond)
			continue
		}
		return c, err
	}
}

// StuffInput queues input ahead of anything the user types.
//
// This is how the auto-boot command reaches the ROM loader's prompt,
// and how the tests script the console.
func (ci *ConsoleIn) StuffInput(input string) {
	ci.queue = append(ci.queue, input...)
}

// SetEscape chooses the monitor escape character.
func (ci *ConsoleIn) SetEscape(c byte) {
	ci.escape = c
}

// Escape returns the configured monitor escape character.
func (ci *ConsoleIn) Escape() byte {
	return ci.escape
}

// CheckEscape returns true if the given character is the configured
// monitor escape character.
func (ci *ConsoleIn) CheckEscape(c byte) bool {
	return ci.escape != 0 && c == ci.escape
}
