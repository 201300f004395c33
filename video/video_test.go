package video

import (
	"strings"
	"testing"
)

// TestUnknownDriver ensures an unregistered name fails to resolve.
func TestUnknownDriver(t *testing.T) {

	_, err := New("no-such-driver")
	if err == nil {
		t.Fatalf("expected error for bogus driver, got none")
	}
}

// TestAnsiSequences spot-checks the escape sequences we emit.
func TestAnsiSequences(t *testing.T) {

	d, err := New("ansi")
	if err != nil {
		t.Fatalf("failed to create display: %s", err)
	}

	var sb strings.Builder
	d.(*AnsiDisplay).SetWriter(&sb)

	d.Clear()
	d.SetCursor(4, 9)
	d.WriteChar('X')
	d.ScrollUp(2)

	out := sb.String()
	for _, want := range []string{"\x1b[2J", "\x1b[5;10H", "X", "\x1b[2S"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

// TestAnsiAttr checks the CGA attribute translation.
func TestAnsiAttr(t *testing.T) {

	d, err := New("ansi")
	if err != nil {
		t.Fatalf("failed to create display: %s", err)
	}

	var sb strings.Builder
	d.(*AnsiDisplay).SetWriter(&sb)

	// White on blue: fg=7 -> 37, bg=1 -> 44.
	d.SetAttr(0x17)
	if !strings.Contains(sb.String(), "\x1b[37;44m") {
		t.Fatalf("attribute sequence wrong: %q", sb.String())
	}

	// Bright red on black: fg=12 -> 91, bg=0 -> 40.
	sb.Reset()
	d.SetAttr(0x0C)
	if !strings.Contains(sb.String(), "\x1b[91;40m") {
		t.Fatalf("bright attribute sequence wrong: %q", sb.String())
	}
}

// TestRecorder ensures operations are captured in order.
func TestRecorder(t *testing.T) {

	d, err := New("recorder")
	if err != nil {
		t.Fatalf("failed to create display: %s", err)
	}
	rec := d.(*RecorderDisplay)

	d.Clear()
	d.SetCursor(1, 2)
	d.WriteChar('h')
	d.WriteChar('i')

	if len(rec.Ops) != 2 || rec.Ops[0] != "clear" || rec.Ops[1] != "cursor 1,2" {
		t.Fatalf("ops wrong: %v", rec.Ops)
	}
	if rec.Text != "hi" {
		t.Fatalf("text wrong: %q", rec.Text)
	}
}
