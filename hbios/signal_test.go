package hbios

import (
	"io"
	"log/slog"
	"testing"
)

// newSignalHBIOS returns an emulator suitable for poking signal bytes
// at.
func newSignalHBIOS(t *testing.T) *HBIOS {
	h, err := New(
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithConsoleInputDriver("null"),
		WithConsoleOutputDriver("null"),
		WithDisplayDriver("null"),
		WithSoundDriver("null"),
	)
	if err != nil {
		t.Fatalf("failed to create emulator: %s", err)
	}
	return h
}

// TestSignalLifecycle covers the three single-byte signals.
func TestSignalLifecycle(t *testing.T) {

	h := newSignalHBIOS(t)

	// Log-only signals change nothing.
	h.signal(0x01)
	h.signal(0xFE)
	if h.IsTrapping() {
		t.Fatalf("trapping should be off before init-complete")
	}

	// Init-complete enables trapping, and the trap addresses
	// become CPU breakpoints.
	h.signal(0xFF)
	if !h.IsTrapping() {
		t.Fatalf("trapping should be on after init-complete")
	}
	if _, ok := h.CPU.BreakPoints[DefaultMainEntry]; !ok {
		t.Fatalf("main entry not armed as a breakpoint")
	}
	if _, ok := h.CPU.BreakPoints[bankCallEntry]; !ok {
		t.Fatalf("bank-call entry not armed as a breakpoint")
	}
}

// TestSignalInitBeforeBoot ensures 0xFF ahead of 0x01 is legal.
func TestSignalInitBeforeBoot(t *testing.T) {

	h := newSignalHBIOS(t)

	h.signal(0xFF)
	if !h.IsTrapping() {
		t.Fatalf("trapping should be enabled immediately")
	}

	h.signal(0x01)
	if !h.IsTrapping() {
		t.Fatalf("a late boot-started signal should change nothing")
	}
}

// TestSignalSequential covers the eight-byte sequential registration.
func TestSignalSequential(t *testing.T) {

	h := newSignalHBIOS(t)

	bytes := []uint8{
		0x02,       // start sequential registration
		0x00, 0xE0, // CIO = 0xE000
		0x10, 0xE1, // DIO = 0xE110
		0x20, 0xE2, // RTC = 0xE220
		0x00, 0x00, // SYS = unregistered
	}
	for _, b := range bytes {
		h.signal(b)
	}

	want := []uint16{0xE000, 0xE110, 0xE220, 0x0000}
	for i, addr := range want {
		if h.dispatch[i] != addr {
			t.Fatalf("handler %s: got 0x%04X want 0x%04X",
				handlerNames[i], h.dispatch[i], addr)
		}
	}

	// The machine is idle again: a fresh signal is interpreted as
	// such, not as address data.
	if h.sig.mode != sigIdle {
		t.Fatalf("machine should be idle after the declared byte count")
	}
	h.signal(0xFF)
	if !h.IsTrapping() {
		t.Fatalf("post-registration signal not handled")
	}
}

// TestSignalPrefixed covers the per-handler registration, for every
// handler slot.
func TestSignalPrefixed(t *testing.T) {

	h := newSignalHBIOS(t)

	for i := 0; i < numHandlers; i++ {
		h.signal(uint8(0x10 + i))
		h.signal(uint8(0x10 + i)) // low byte, same as the prefix by chance
		h.signal(0xF0)            // high byte

		want := uint16(0xF0)<<8 | uint16(0x10+i)
		if h.dispatch[i] != want {
			t.Fatalf("handler %s: got 0x%04X want 0x%04X",
				handlerNames[i], h.dispatch[i], want)
		}
		if h.sig.mode != sigIdle {
			t.Fatalf("machine should be idle after handler %d", i)
		}
	}
}

// TestSignalZeroUnregisters ensures a zero address disarms the trap.
func TestSignalZeroUnregisters(t *testing.T) {

	h := newSignalHBIOS(t)
	h.signal(0xFF)

	// Register VDA at 0xE440, then unregister it.
	h.signal(0x14)
	h.signal(0x40)
	h.signal(0xE4)
	if _, ok := h.CPU.BreakPoints[0xE440]; !ok {
		t.Fatalf("registered address not armed")
	}

	h.signal(0x14)
	h.signal(0x00)
	h.signal(0x00)
	if _, ok := h.CPU.BreakPoints[0xE440]; ok {
		t.Fatalf("stale address still armed")
	}
	if h.trapKind(0xE440) != trapNone {
		t.Fatalf("zero address should not trap")
	}
}

// TestSignalUnknownByte ensures junk in the idle state is ignored.
func TestSignalUnknownByte(t *testing.T) {

	h := newSignalHBIOS(t)

	h.signal(0x42)
	if h.sig.mode != sigIdle || h.IsTrapping() {
		t.Fatalf("unknown byte should be a no-op")
	}
}

// TestSignalReset ensures a reset clears registrations and disables
// trapping until init-complete arrives again.
func TestSignalReset(t *testing.T) {

	h := newSignalHBIOS(t)

	h.signal(0x10)
	h.signal(0x00)
	h.signal(0xE0)
	h.signal(0xFF)

	h.Reset()
	if h.IsTrapping() {
		t.Fatalf("trapping should be off after reset")
	}
	if h.dispatch[handlerCIO] != 0 {
		t.Fatalf("registration should be cleared by reset")
	}
	if len(h.CPU.BreakPoints) != 0 {
		t.Fatalf("breakpoints should be cleared by reset")
	}

	h.signal(0xFF)
	if !h.IsTrapping() {
		t.Fatalf("trapping should re-enable after reset")
	}
}
