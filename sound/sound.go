// Package sound provides the output sink behind the HBIOS SND
// services.
//
// The dispatcher owns the per-channel volume and period state; a
// driver is only asked to sound a beep.  The "console" driver rings
// the terminal bell, "wav" renders each beep into a WAV file for
// later playback, and "null" stays silent.
package sound

import (
	"fmt"
	"strings"
	"time"
)

// Player is the interface a sound sink must implement.
type Player interface {

	// Beep sounds a tone.  The period is in microseconds, as the
	// guest programs it; volume is 0-255.
	Beep(period uint16, volume uint8, duration time.Duration) error

	// GetName returns the name of the driver.
	GetName() string

	// Close releases any resources, flushing pending output.
	Close() error
}

// Constructor is the signature of a constructor-function which is
// used to instantiate an instance of a driver.
type Constructor func() Player

// This is a map of known-drivers.
var handlers = struct {
	m map[string]Constructor
}{m: make(map[string]Constructor)}

// Register makes a sound driver available, by name.
func Register(name string, obj Constructor) {
	name = strings.ToLower(name)
	handlers.m[name] = obj
}

// New returns the sound driver with the given name.
func New(name string) (Player, error) {
	name = strings.ToLower(name)

	ctor, ok := handlers.m[name]
	if !ok {
		return nil, fmt.Errorf("failed to lookup sound driver by name '%s'", name)
	}
	return ctor(), nil
}
