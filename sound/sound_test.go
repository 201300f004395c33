package sound

import (
	"os"
	"strings"
	"testing"
	"time"
)

// TestUnknownDriver ensures an unregistered name fails to resolve.
func TestUnknownDriver(t *testing.T) {

	_, err := New("no-such-driver")
	if err == nil {
		t.Fatalf("expected error for bogus driver, got none")
	}
}

// TestConsoleBeep ensures the console driver rings the bell, except
// at zero volume.
func TestConsoleBeep(t *testing.T) {

	p, err := New("console")
	if err != nil {
		t.Fatalf("failed to create player: %s", err)
	}

	var sb strings.Builder
	p.(*ConsolePlayer).SetWriter(&sb)

	p.Beep(1136, 128, 100*time.Millisecond)
	if sb.String() != "\a" {
		t.Fatalf("expected bell, got %q", sb.String())
	}

	sb.Reset()
	p.Beep(1136, 0, 100*time.Millisecond)
	if sb.String() != "" {
		t.Fatalf("zero volume should be silent")
	}
}

// TestWavPlayer renders a beep and checks a plausible WAV appears.
func TestWavPlayer(t *testing.T) {

	p, err := New("wav")
	if err != nil {
		t.Fatalf("failed to create player: %s", err)
	}
	wp := p.(*WavPlayer)

	file, err := os.CreateTemp("", "tst-*.wav")
	if err != nil {
		t.Fatalf("failed to create temporary file")
	}
	file.Close()
	defer os.Remove(file.Name())

	wp.SetPath(file.Name())

	// A 440Hz beep is a period of roughly 2272 microseconds.
	if err := wp.Beep(2272, 255, 100*time.Millisecond); err != nil {
		t.Fatalf("beep failed: %s", err)
	}
	if len(wp.samples) != 4410 {
		t.Fatalf("wrong sample count: %d", len(wp.samples))
	}

	if err := wp.Close(); err != nil {
		t.Fatalf("close failed: %s", err)
	}

	data, err := os.ReadFile(file.Name())
	if err != nil {
		t.Fatalf("failed to read wav: %s", err)
	}
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("output is not a WAV file")
	}
}

// TestWavSilent ensures a driver with no beeps writes nothing.
func TestWavSilent(t *testing.T) {

	p, err := New("wav")
	if err != nil {
		t.Fatalf("failed to create player: %s", err)
	}

	// No path set: Close must still succeed when silent.
	if err := p.Close(); err != nil {
		t.Fatalf("silent close failed: %s", err)
	}
}
