// Package romapp holds the catalog of ROM applications the boot
// loader can launch.
//
// A ROM application is a bootable system image (a RomWBW ".sys"
// file) stored on the host, selected at the boot prompt by a single
// key: "C" for CP/M, "Z" for ZSDOS, and so on.  Only applications
// whose file actually exists are offered.
package romapp

import (
	"fmt"
	"os"
	"strings"
)

// App contains details of a single bootable application.
type App struct {

	// Name contains the public-facing name of the application,
	// shown in the boot menu.
	Name string

	// Path is the host path of the ".sys" image.
	Path string

	// Key is the boot-prompt key which selects the application.
	Key byte
}

// Catalog is a set of ROM applications, keyed for the boot loader.
type Catalog struct {

	// apps holds the registered applications, in registration
	// order.
	apps []App
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Register adds an application to the catalog.
//
// Applications whose image file does not exist on the host are
// rejected, so that the boot menu only offers things which can boot.
func (c *Catalog) Register(key byte, name string, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("ROM application %s: %s", name, err)
	}

	key = upper(key)
	for _, a := range c.apps {
		if a.Key == key {
			return fmt.Errorf("ROM application key '%c' already registered", key)
		}
	}

	c.apps = append(c.apps, App{
		Name: name,
		Path: path,
		Key:  key,
	})
	return nil
}

// Find returns the application with the given key, case-insensitively.
func (c *Catalog) Find(key byte) (App, bool) {
	key = upper(key)
	for _, a := range c.apps {
		if a.Key == key {
			return a, true
		}
	}
	return App{}, false
}

// All returns every registered application.
func (c *Catalog) All() []App {
	return c.apps
}

// DefaultName returns a conventional display name for well-known boot
// keys, used when the user doesn't supply one on the command line.
func DefaultName(key byte) string {
	switch upper(key) {
	case 'C':
		return "CP/M 2.2"
	case 'Z':
		return "ZSDOS"
	case 'Q':
		return "QPM"
	case 'P':
		return "CP/M 3"
	default:
		return strings.ToUpper(string(rune(key))) + " Application"
	}
}

// upper upcases a single ASCII letter.
func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
