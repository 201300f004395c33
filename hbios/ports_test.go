package hbios

import (
	"context"
	"errors"
	"testing"

	"github.com/skx/romulator/video"
)

// TestBankSelectPort covers the selector aliases, including the lazy
// RAM-bank initialization a selection triggers.
func TestBankSelectPort(t *testing.T) {

	h := newTestHBIOS(t)

	h.Out(portBankSelect, 0x82)
	if h.Memory.CurrentBank() != 0x82 {
		t.Fatalf("bank not selected")
	}
	if h.Memory.ReadBank(0x82, hcbRAMDBanks) != 2 {
		t.Fatalf("bank not initialized on first selection")
	}
	if h.In(portBankSelect) != 0x82 {
		t.Fatalf("selector read wrong")
	}

	h.Out(portBankSelectAlt, 0x00)
	if h.In(portBankSelectAlt) != 0x00 {
		t.Fatalf("alias selector wrong")
	}
}

// TestUARTPorts covers the polled console path.
func TestUARTPorts(t *testing.T) {

	h := newTestHBIOS(t)

	h.Out(portUARTData, 'U')
	if recorded(h) != "U" {
		t.Fatalf("UART output wrong: %q", recorded(h))
	}

	if h.In(portUARTLSR) != uartLSRReady {
		t.Fatalf("LSR should show idle")
	}
	if h.In(portUARTData) != 0x00 {
		t.Fatalf("empty data read should give zero")
	}

	h.Input().StuffInput("z")
	if h.In(portUARTLSR) != uartLSRReady|0x01 {
		t.Fatalf("LSR should show pending data")
	}
	if h.In(portUARTData) != 'z' {
		t.Fatalf("data read wrong")
	}
}

// TestBankCopyPort performs the proxy's inter-bank copy.
func TestBankCopyPort(t *testing.T) {

	h := newTestHBIOS(t)

	// The proxy parks the banks in fixed cells.
	h.Memory.Set(bankCopySrcCell, 0x81)
	h.Memory.Set(bankCopyDstCell, 0x82)

	for i := uint16(0); i < 4; i++ {
		h.Memory.WriteBank(0x81, 0x4000+i, uint8(0x10+i))
	}

	h.CPU.States.HL.SetU16(0x4000)
	h.CPU.States.DE.SetU16(0x5000)
	h.CPU.States.BC.SetU16(4)
	h.Out(portBankCopy, 0x00)

	for i := uint16(0); i < 4; i++ {
		if h.Memory.ReadBank(0x82, 0x5000+i) != uint8(0x10+i) {
			t.Fatalf("copy mismatch at %d", i)
		}
	}
}

// TestBankCallPort routes the device-summary vector.
func TestBankCallPort(t *testing.T) {

	h := newTestHBIOS(t)

	h.CPU.States.SPR.IX = prtsumVector
	h.Out(portBankCall, 0x8F)
	if recorded(h) == "" {
		t.Fatalf("device summary not written")
	}

	// Any other vector is a no-op.
	before := recorded(h)
	h.CPU.States.SPR.IX = 0x1111
	h.Out(portBankCall, 0x8F)
	if recorded(h) != before {
		t.Fatalf("unknown vector should do nothing")
	}
}

// TestDispatchPort services a call without the synthetic return.
func TestDispatchPort(t *testing.T) {

	h := newTestHBIOS(t)

	pc := h.CPU.PC
	sp := h.CPU.SP

	h.CPU.States.BC.Hi = fnCIOOUT
	h.CPU.States.DE.Lo = 'Q'
	h.Out(portDispatch, 0x00)

	if recorded(h) != "Q" {
		t.Fatalf("dispatched call did not run")
	}
	if h.CPU.PC != pc || h.CPU.SP != sp {
		t.Fatalf("port dispatch must not touch PC or SP")
	}
}

// TestUnknownPorts covers the lenient accounting and the strict stop.
func TestUnknownPorts(t *testing.T) {

	h := newTestHBIOS(t)

	h.Out(0x55, 0x01)
	h.Out(0x55, 0x02)
	h.In(0x44)
	if h.UnknownPortCount() != 2 {
		t.Fatalf("unknown port count wrong: %d", h.UnknownPortCount())
	}
	if h.strictDiag != "" {
		t.Fatalf("lenient mode should not arm a stop")
	}

	h.strictIO = true
	h.Out(0x66, 0x01)
	if h.strictDiag == "" {
		t.Fatalf("strict mode should arm a stop")
	}
}

// runROM loads the given code at the ROM reset vector and runs it.
func runROM(t *testing.T, h *HBIOS, code []uint8) error {
	rom := testROM()
	copy(rom, code)
	h.Memory.LoadROM(rom)
	h.setupSystem()
	h.CPU.PC = 0x0000

	return h.Run(context.Background())
}

// TestRunSignalBoot is the smallest whole-system run: the ROM signals
// boot-started and init-complete, then halts.
func TestRunSignalBoot(t *testing.T) {

	h := newTestHBIOS(t)

	code := []uint8{
		0x31, 0x00, 0x90, // LD SP,0x9000
		0x3E, 0x01, // LD A,0x01
		0xD3, 0xEE, // OUT (0xEE),A
		0x3E, 0xFF, // LD A,0xFF
		0xD3, 0xEE, // OUT (0xEE),A
		0x76, // HALT
	}

	err := runROM(t, h, code)
	if !errors.Is(err, ErrHalt) {
		t.Fatalf("expected a halt, got %s", err)
	}
	if !h.IsTrapping() {
		t.Fatalf("trapping should be enabled")
	}
	if h.MainEntry() != DefaultMainEntry {
		t.Fatalf("main entry wrong")
	}
	if h.IsWaitingForInput() {
		t.Fatalf("nothing should be waiting for input")
	}
}

// TestRunServiceCall drives a service call through the real CPU: the
// trap fires at the main entry, the handler runs, and the synthetic
// return resumes the guest.
func TestRunServiceCall(t *testing.T) {

	h := newTestHBIOS(t)

	code := []uint8{
		0x31, 0x00, 0x90, // LD SP,0x9000
		0x3E, 0xFF, // LD A,0xFF
		0xD3, 0xEE, // OUT (0xEE),A
		0x06, 0xF1, // LD B,0xF1 (SYSVER)
		0xCD, 0xF0, 0xFF, // CALL 0xFFF0
		0x76, // HALT
	}

	err := runROM(t, h, code)
	if !errors.Is(err, ErrHalt) {
		t.Fatalf("expected a halt, got %s", err)
	}
	if h.CPU.States.DE.U16() != 0x3510 {
		t.Fatalf("version not returned: 0x%04X", h.CPU.States.DE.U16())
	}
	if h.CPU.States.HL.Lo != 0x01 {
		t.Fatalf("platform not returned")
	}
	if h.CPU.SP != 0x9000 {
		t.Fatalf("stack unbalanced after the call: 0x%04X", h.CPU.SP)
	}
}

// TestRunWaitingForInput covers the non-blocking handshake with the
// outer driver.
func TestRunWaitingForInput(t *testing.T) {

	h := newTestHBIOS(t)
	h.blocking = NonBlocking

	code := []uint8{
		0x31, 0x00, 0x90, // LD SP,0x9000
		0x3E, 0xFF, // LD A,0xFF
		0xD3, 0xEE, // OUT (0xEE),A
		0x06, 0x00, // LD B,0x00 (CIOIN)
		0xCD, 0xF0, 0xFF, // CALL 0xFFF0
		0x76, // HALT
	}

	err := runROM(t, h, code)
	if !errors.Is(err, ErrWaitingInput) {
		t.Fatalf("expected waiting-for-input, got %s", err)
	}
	if !h.IsWaitingForInput() {
		t.Fatalf("waiting flag not visible to the driver")
	}

	// Queue a character and resume: the guest completes.
	h.Input().StuffInput("x")
	err = h.Run(context.Background())
	if !errors.Is(err, ErrHalt) {
		t.Fatalf("expected a halt after resuming, got %s", err)
	}
	if h.CPU.States.DE.Lo != 'x' {
		t.Fatalf("queued character not delivered")
	}
}

// TestRunStrictIO stops the machine on an unexpected port.
func TestRunStrictIO(t *testing.T) {

	h := newTestHBIOS(t)
	h.strictIO = true

	code := []uint8{
		0x3E, 0x01, // LD A,0x01
		0xD3, 0x55, // OUT (0x55),A
		0x76, // HALT
	}

	err := runROM(t, h, code)
	if !errors.Is(err, ErrStrictIO) {
		t.Fatalf("expected a strict-I/O stop, got %s", err)
	}
}

// TestRunMonitorBreakpoint stops at a user breakpoint, consults the
// monitor hook, and continues past it.
func TestRunMonitorBreakpoint(t *testing.T) {

	h := newTestHBIOS(t)

	code := []uint8{
		0x00,       // NOP
		0x3E, 0x42, // LD A,0x42
		0x76, // HALT
	}

	hits := 0
	h.SetMonitor(func() bool {
		hits++
		return true
	})
	h.AddBreakpoint(0x0001)

	err := runROM(t, h, code)
	if !errors.Is(err, ErrHalt) {
		t.Fatalf("expected a halt, got %s", err)
	}
	if hits != 1 {
		t.Fatalf("monitor should run once, ran %d times", hits)
	}
	if h.CPU.States.AF.Hi != 0x42 {
		t.Fatalf("execution did not continue past the breakpoint")
	}

	// A monitor that asks to quit ends the run.
	h2 := newTestHBIOS(t)
	h2.SetMonitor(func() bool { return false })
	h2.AddBreakpoint(0x0001)

	err = runROM(t, h2, code)
	if !errors.Is(err, ErrExit) {
		t.Fatalf("expected an exit, got %s", err)
	}
}

// TestEscapeOpensMonitor ensures the escape character reaches the
// monitor instead of the guest.
func TestEscapeOpensMonitor(t *testing.T) {

	h := newTestHBIOS(t)

	hits := 0
	h.SetMonitor(func() bool {
		hits++
		return true
	})
	h.Input().SetEscape(0x05)
	h.Input().StuffInput("\x05a")

	call(t, h, fnCIOIN, 0)
	if hits != 1 {
		t.Fatalf("escape should open the monitor")
	}
	if h.CPU.States.DE.Lo != 'a' {
		t.Fatalf("the character after the escape should be delivered")
	}

	// The display driver saw nothing of this.
	if h.Display().(*video.RecorderDisplay).Text != "" {
		t.Fatalf("display should be untouched")
	}
}
