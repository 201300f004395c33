// Package version exists solely so that we can store the version of
// this application in one location, despite needing it in two places.
//
// The main driver-package prints it with "-version", and the HBIOS
// SYSVER call reports the firmware version we emulate alongside it.
package version

import "fmt"

var (
	// version is populated with our release tag, via a Github Action.
	version = "unreleased"
)

// GetVersionBanner returns a banner which is suitable for printing,
// to show our name, version, and the firmware we emulate.
func GetVersionBanner() string {

	str := fmt.Sprintf("romulator %s\nRomWBW HBIOS v3.5 emulator\n", version)
	return str
}

// GetVersionString returns our version number as a string.
func GetVersionString() string {
	return version
}
