package romapp

import (
	"os"
	"testing"
)

// TestRegisterMissing ensures a missing image file is rejected.
func TestRegisterMissing(t *testing.T) {

	c := NewCatalog()
	err := c.Register('C', "CP/M 2.2", "/this/file-does/not/exist")
	if err == nil {
		t.Fatalf("expected error for missing file, got none")
	}
	if len(c.All()) != 0 {
		t.Fatalf("catalog should be empty")
	}
}

// TestRegisterAndFind covers registration and case-insensitive lookup.
func TestRegisterAndFind(t *testing.T) {

	file, err := os.CreateTemp("", "tst-*.sys")
	if err != nil {
		t.Fatalf("failed to create temporary file")
	}
	file.Close()
	defer os.Remove(file.Name())

	c := NewCatalog()
	if err := c.Register('c', "CP/M 2.2", file.Name()); err != nil {
		t.Fatalf("register failed: %s", err)
	}

	// Duplicate keys are refused, however cased.
	if err := c.Register('C', "Other", file.Name()); err == nil {
		t.Fatalf("duplicate key should be rejected")
	}

	app, ok := c.Find('C')
	if !ok || app.Name != "CP/M 2.2" {
		t.Fatalf("lookup by upper-case key failed")
	}
	app, ok = c.Find('c')
	if !ok || app.Key != 'C' {
		t.Fatalf("lookup by lower-case key failed")
	}
	if _, ok := c.Find('Z'); ok {
		t.Fatalf("unexpected hit for unregistered key")
	}
}

// TestDefaultName checks the conventional names.
func TestDefaultName(t *testing.T) {

	if DefaultName('c') != "CP/M 2.2" {
		t.Fatalf("wrong default for C")
	}
	if DefaultName('Z') != "ZSDOS" {
		t.Fatalf("wrong default for Z")
	}
	if DefaultName('X') != "X Application" {
		t.Fatalf("wrong fallback name")
	}
}
