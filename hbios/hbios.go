// Package hbios is the main package for our emulator: it loads a
// RomWBW ROM image into banked memory, drives the Z80 CPU, and
// services the HBIOS calls the firmware and its guests make.
//
// The firmware runs natively from the ROM image.  Once its boot code
// announces itself on the signal port we intercept execution at the
// advertised dispatch addresses, emulate the requested HBIOS function
// against our memory, disks and console, and then synthesize the
// return the real firmware would have performed.
package hbios

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/koron-go/z80"

	"github.com/skx/romulator/consolein"
	"github.com/skx/romulator/consoleout"
	"github.com/skx/romulator/disk"
	"github.com/skx/romulator/memory"
	"github.com/skx/romulator/romapp"
	"github.com/skx/romulator/sound"
	"github.com/skx/romulator/video"
)

var (
	// ErrHalt will be used to note that the Z80 emulator executed a
	// HALT operation, and that terminated the execution of code.
	//
	// It should be handled and expected by callers.
	ErrHalt = errors.New("HALT")

	// ErrExit will be used when the user has asked the monitor to
	// terminate the emulator.
	//
	// It should be handled and expected by callers.
	ErrExit = errors.New("EXIT")

	// ErrStrictIO is returned when the guest touched an unexpected
	// I/O port and strict I/O mode is enabled.
	ErrStrictIO = errors.New("STRICT-IO")

	// ErrWaitingInput is returned by Run, under the non-blocking
	// policy, when the guest needs console input which is not yet
	// available.  The caller must queue input before resuming.
	ErrWaitingInput = errors.New("WAITING-INPUT")
)

// HBIOS result codes, as the firmware defines them.  They travel to
// the guest as a single byte in A, so the negative values wrap.
const (
	resSuccess  = 0x00
	resUndef    = 0xFF - 0 // -1
	resNotImpl  = 0xFF - 1 // -2
	resNoFunc   = 0xFF - 2 // -3
	resNoUnit   = 0xFF - 3 // -4
	resNoMem    = 0xFF - 4 // -5
	resRange    = 0xFF - 5 // -6
	resNoMedia  = 0xFF - 6 // -7
	resNoHW     = 0xFF - 7 // -8
	resIO       = 0xFF - 8 // -9
	resReadOnly = 0xFF - 9 // -10
	resTimeout  = 0xFF - 10
	resBadCfg   = 0xFF - 11
	resInternal = 0xFF - 12

	// resFailed is the legacy "generic failure" code, which some
	// guest utilities still test for.
	resFailed = 0xFF
)

// Media identifiers reported by DIOMEDIA and EXTSLICE.
const (
	mediaNone  = 0x00
	mediaMDROM = 0x01
	mediaMDRAM = 0x02
	mediaHD    = 0x04
	mediaHDNew = 0x0A
)

// Trap addresses.
const (
	// DefaultMainEntry is where the firmware's dispatch proxy
	// lives in the common bank.
	DefaultMainEntry = 0xFFF0

	// bankCallEntry is the firmware's inter-bank call proxy.
	bankCallEntry = 0xFFF9

	// bankCopySrcCell and bankCopyDstCell are the memory cells the
	// firmware's proxy stores the copy banks in, read when the
	// bank-copy port is written.
	bankCopySrcCell = 0xFFE4
	bankCopyDstCell = 0xFFE7

	// prtsumVector is the only inter-bank call address we route:
	// the loader's device-summary routine.
	prtsumVector = 0x0406
)

// Flag bits within F, as far as we need them.
const (
	flagC = 0x01
	flagZ = 0x40
)

// BlockingPolicy says what a console read may do when no input is
// available.
type BlockingPolicy int

const (
	// Blocking lets the dispatcher poll for input, sleeping, until
	// a character arrives.  This is the terminal-host behaviour.
	Blocking BlockingPolicy = iota

	// NonBlocking makes the dispatcher flag the emulator as
	// waiting-for-input and hand control back to the caller.
	// Embedded hosts queue a character and resume.
	NonBlocking
)

// HandlerType contains the signature of an HBIOS function handler.
type HandlerType func(h *HBIOS) error

// Handler contains details of a specific HBIOS function we implement.
//
// While we mostly need a "number to handler" mapping, having a name
// is useful for the logs we produce.
type Handler struct {

	// Desc contains the name of the given HBIOS function.
	Desc string

	// Handler contains the function which services it.
	Handler HandlerType
}

// handlerKind identifies the per-handler dispatch address slots the
// firmware can register via the signal port.
const (
	handlerCIO = iota
	handlerDIO
	handlerRTC
	handlerSYS
	handlerVDA
	handlerSND
	numHandlers
)

// handlerNames is indexed by the handler constants above.
var handlerNames = [numHandlers]string{"CIO", "DIO", "RTC", "SYS", "VDA", "SND"}

// MonitorFunc is invoked when the monitor escape character is seen.
// It returns true if the emulator should keep running, false to
// terminate.
type MonitorFunc func() bool

// HBIOS is the object that holds our emulator state.
type HBIOS struct {

	// Syscalls contains the HBIOS functions we know how to
	// emulate, indexed by the function code the guest passes in B.
	Syscalls map[uint8]Handler

	// Memory contains the banked memory the system runs with.
	Memory *memory.Memory

	// CPU contains the virtual Z80 we use to execute the ROM.
	CPU z80.CPU

	// Disks contains the memory disks and hard-disk slots.
	Disks *disk.Store

	// Apps contains the ROM applications the boot loader offers.
	Apps *romapp.Catalog

	// Logger holds a logger which we use for debugging and
	// diagnostics.
	Logger *slog.Logger

	// input is where console (UART) input comes from.
	input *consolein.ConsoleIn

	// output is where console (UART) output goes.
	output *consoleout.ConsoleOut

	// display is the sink behind the VDA services.
	display video.Display

	// player is the sink behind the SND services.
	player sound.Player

	// trapping is true once the firmware has completed its
	// initialization and asked us to intercept HBIOS calls.
	trapping bool

	// mainEntry is the address of the firmware's main dispatch
	// proxy.
	mainEntry uint16

	// dispatch holds the per-handler dispatch addresses announced
	// on the signal port.  Zero means "not registered".
	dispatch [numHandlers]uint16

	// sig is the signal-port registration state machine.
	sig signalState

	// waiting is set when a console read found no input under the
	// non-blocking policy.
	waiting bool

	// skipRet suppresses the synthetic return while servicing a
	// call that arrived via the dispatch port, whose Z80 proxy
	// code carries its own RET.
	skipRet bool

	// noRet is set by a handler which has already steered the PC
	// itself, or which must leave it alone.
	noRet bool

	// blocking is the console-read policy.
	blocking BlockingPolicy

	// Bank-copy parameters stored by SYSSETCPY.
	cpySrc   uint8
	cpyDst   uint8
	cpyCount uint16

	// heapPtr is the bump allocator behind SYSALLOC.  The heap
	// lives in RAM bank 0x80 between the configuration block and
	// the bank boundary.
	heapPtr uint16

	// ramInit is a bitmap of the RAM banks which have been
	// initialized with a copy of ROM bank 0's vectors and
	// configuration block.
	ramInit uint16

	// VDA state.
	vdaRows int
	vdaCols int
	vdaRow  int
	vdaCol  int
	vdaAttr uint8

	// SND state.
	sndVolume   [4]uint8
	sndPeriod   [4]uint16
	sndDuration uint16

	// Host-file transfer state.
	hostRead  *os.File
	hostWrite *os.File
	hostMode  uint8
	cmdline   string

	// started records when the emulator began running, for the
	// timer queries.
	started time.Time

	// strictIO halts execution on an unexpected I/O port.
	strictIO bool

	// unknownPorts records which unexpected ports have been seen,
	// so each is only logged once.
	unknownPorts map[uint8]struct{}

	// Per-port access counters, reported in debug mode.
	portInCount  map[uint8]int
	portOutCount map[uint8]int

	// userBreaks holds the monitor's breakpoints.
	userBreaks map[uint16]struct{}

	// disarmed is a user breakpoint suppressed until the next stop
	// so that "continue" can leave it.
	disarmed uint16

	// monitor is invoked when the escape character is seen.
	monitor MonitorFunc

	// quitReq is set when the monitor asks to exit from a context
	// which cannot return an error, such as a port read.
	quitReq bool

	// cancel aborts the running CPU, used by strict I/O mode.
	cancel context.CancelFunc

	// strictDiag holds the diagnostic of a strict I/O stop.
	strictDiag string
}

// Option is the signature of our constructor options.
type Option func(h *HBIOS) error

// WithConsoleInputDriver selects the console input driver, by name.
func WithConsoleInputDriver(name string) Option {
	return func(h *HBIOS) error {
		ci, err := consolein.New(name)
		if err != nil {
			return err
		}
		h.input = ci
		return nil
	}
}

// WithConsoleOutputDriver selects the console output driver, by name.
func WithConsoleOutputDriver(name string) Option {
	return func(h *HBIOS) error {
		co, err := consoleout.New(name)
		if err != nil {
			return err
		}
		h.output = co
		return nil
	}
}

// WithDisplayDriver selects the VDA display driver, by name.
func WithDisplayDriver(name string) Option {
	return func(h *HBIOS) error {
		d, err := video.New(name)
		if err != nil {
			return err
		}
		h.display = d
		return nil
	}
}

// WithSoundDriver selects the SND sink, by name.
func WithSoundDriver(name string) Option {
	return func(h *HBIOS) error {
		p, err := sound.New(name)
		if err != nil {
			return err
		}
		h.player = p
		return nil
	}
}

// WithSoundPlayer supplies a ready-made sound sink, used when the
// driver needs configuration the registry cannot provide.
func WithSoundPlayer(p sound.Player) Option {
	return func(h *HBIOS) error {
		h.player = p
		return nil
	}
}

// WithBlockingPolicy chooses what console reads do with no input.
func WithBlockingPolicy(p BlockingPolicy) Option {
	return func(h *HBIOS) error {
		h.blocking = p
		return nil
	}
}

// WithStrictIO makes unexpected I/O ports halt the emulator.
func WithStrictIO() Option {
	return func(h *HBIOS) error {
		h.strictIO = true
		return nil
	}
}

// WithHostCommandLine supplies the argument string the guest can read
// via the host-file extension services.
func WithHostCommandLine(cmdline string) Option {
	return func(h *HBIOS) error {
		h.cmdline = cmdline
		return nil
	}
}

// WithLogger sets our logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *HBIOS) error {
		h.Logger = logger
		return nil
	}
}

// New returns a new emulation object, with the given options applied.
func New(options ...Option) (*HBIOS, error) {

	h := &HBIOS{
		Logger:       slog.Default(),
		Memory:       memory.New(),
		Apps:         romapp.NewCatalog(),
		mainEntry:    DefaultMainEntry,
		heapPtr:      heapStart,
		cpySrc:       0x8E,
		cpyDst:       0x8E,
		blocking:     Blocking,
		vdaRows:      25,
		vdaCols:      80,
		vdaAttr:      0x07,
		sndDuration:  100,
		unknownPorts: make(map[uint8]struct{}),
		portInCount:  make(map[uint8]int),
		portOutCount: make(map[uint8]int),
		userBreaks:   make(map[uint16]struct{}),
		started:      time.Now(),
	}

	for _, opt := range options {
		if err := opt(h); err != nil {
			return nil, err
		}
	}

	// Fill in the defaults for anything an option didn't cover.
	var err error
	if h.input == nil {
		h.input, err = consolein.New("uart")
		if err != nil {
			return nil, err
		}
	}
	if h.output == nil {
		h.output, err = consoleout.New("ansi")
		if err != nil {
			return nil, err
		}
	}
	if h.display == nil {
		h.display, err = video.New("ansi")
		if err != nil {
			return nil, err
		}
	}
	if h.player == nil {
		h.player, err = sound.New("console")
		if err != nil {
			return nil, err
		}
	}

	h.Disks = disk.NewStore(h.Logger)

	// Wire the CPU to our memory and port handlers.  Execution
	// starts at the ROM reset vector.
	h.CPU.Memory = h.Memory
	h.CPU.IO = h

	//
	// Create and populate our function table.
	//
	h.Syscalls = make(map[uint8]Handler)
	h.registerCIO()
	h.registerDIO()
	h.registerRTC()
	h.registerDSKY()
	h.registerVDA()
	h.registerSND()
	h.registerEXT()
	h.registerSYS()

	return h, nil
}

// register adds one function to our table.
func (h *HBIOS) register(code uint8, desc string, fn HandlerType) {
	h.Syscalls[code] = Handler{Desc: desc, Handler: fn}
}

// Input returns the console input device.
func (h *HBIOS) Input() *consolein.ConsoleIn {
	return h.input
}

// Output returns the console output device.
func (h *HBIOS) Output() *consoleout.ConsoleOut {
	return h.output
}

// Display returns the VDA sink.
func (h *HBIOS) Display() video.Display {
	return h.display
}

// SetMonitor installs the debug-console hook.
func (h *HBIOS) SetMonitor(m MonitorFunc) {
	h.monitor = m
}

// IsTrapping reports whether HBIOS interception is active.
func (h *HBIOS) IsTrapping() bool {
	return h.trapping
}

// IsWaitingForInput reports whether a console read is stalled under
// the non-blocking policy.
func (h *HBIOS) IsWaitingForInput() bool {
	return h.waiting
}

// MainEntry returns the main dispatch trap address.
func (h *HBIOS) MainEntry() uint16 {
	return h.mainEntry
}

// DispatchAddress returns the registered address of the given handler
// slot, for the monitor's status display.
func (h *HBIOS) DispatchAddress(idx int) uint16 {
	if idx < 0 || idx >= numHandlers {
		return 0
	}
	return h.dispatch[idx]
}

// AddBreakpoint adds a monitor breakpoint.
func (h *HBIOS) AddBreakpoint(addr uint16) {
	h.userBreaks[addr] = struct{}{}
	h.refreshBreakpoints()
}

// RemoveBreakpoint removes a monitor breakpoint.
func (h *HBIOS) RemoveBreakpoint(addr uint16) {
	delete(h.userBreaks, addr)
	h.refreshBreakpoints()
}

// Breakpoints returns the monitor breakpoints.
func (h *HBIOS) Breakpoints() []uint16 {
	var ret []uint16
	for a := range h.userBreaks {
		ret = append(ret, a)
	}
	return ret
}

// refreshBreakpoints rebuilds the CPU breakpoint set from the trap
// addresses and the monitor's breakpoints.
//
// The Z80 core stops with ErrBreakPoint when the PC lands on any of
// these, before the instruction there executes; that is exactly the
// interception point an HBIOS trap needs.
func (h *HBIOS) refreshBreakpoints() {
	bp := make(map[uint16]struct{})

	if h.trapping {
		bp[h.mainEntry] = struct{}{}
		bp[bankCallEntry] = struct{}{}
		for _, addr := range h.dispatch {
			if addr != 0 {
				bp[addr] = struct{}{}
			}
		}
	}

	for a := range h.userBreaks {
		if a != h.disarmed {
			bp[a] = struct{}{}
		}
	}

	h.CPU.BreakPoints = bp
}

// LoadROM loads a RomWBW ROM image and performs the post-load setup:
// the ident block, the configuration-block copy, the memory disks and
// the device tables.
func (h *HBIOS) LoadROM(path string) error {
	err := h.Memory.LoadROMFile(path)
	if err != nil {
		return fmt.Errorf("failed to load ROM %s: %s", path, err)
	}

	h.setupSystem()
	return nil
}

// Reset returns the dispatcher to its power-on state: trapping is
// disabled until the firmware signals init-complete again, and every
// registered address, transfer parameter and host file is dropped.
func (h *HBIOS) Reset() {
	h.trapping = false
	h.waiting = false
	h.skipRet = false
	h.mainEntry = DefaultMainEntry
	for i := range h.dispatch {
		h.dispatch[i] = 0
	}
	h.sig = signalState{}
	h.cpySrc = 0x8E
	h.cpyDst = 0x8E
	h.cpyCount = 0
	h.heapPtr = heapStart
	h.ramInit = 0

	h.vdaRow = 0
	h.vdaCol = 0
	h.vdaAttr = 0x07

	for i := 0; i < 4; i++ {
		h.sndVolume[i] = 0
		h.sndPeriod[i] = 0
	}
	h.sndDuration = 100

	h.closeHostFiles()
	h.hostMode = 0

	h.refreshBreakpoints()
}

// closeHostFiles closes any files the guest opened via the host-file
// extension services.
func (h *HBIOS) closeHostFiles() {
	if h.hostRead != nil {
		h.hostRead.Close()
		h.hostRead = nil
	}
	if h.hostWrite != nil {
		h.hostWrite.Close()
		h.hostWrite = nil
	}
}

// Close releases everything the emulator owns, in deterministic
// order: host files, disks, and the sound sink.
func (h *HBIOS) Close() {
	h.closeHostFiles()
	h.Disks.CloseAll()

	if err := h.player.Close(); err != nil {
		h.Logger.Error("failed to close sound sink",
			slog.String("error", err.Error()))
	}
}

// setResult stores an HBIOS result code in A and derives the flags
// from it: Z set for success, C set for the negative result codes.
func (h *HBIOS) setResult(result uint8) {
	h.CPU.States.AF.Hi = result

	f := h.CPU.States.AF.Lo
	if result == 0 {
		f |= flagZ
	} else {
		f &= ^uint8(flagZ)
	}
	if result&0x80 != 0 {
		f |= flagC
	} else {
		f &= ^uint8(flagC)
	}
	h.CPU.States.AF.Lo = f
}

// synthReturn pops the return address from the guest stack and
// resumes the guest there, mimicking the RET that would follow a real
// HBIOS call.
func (h *HBIOS) synthReturn() {
	h.CPU.PC = h.Memory.GetU16(h.CPU.SP)
	h.CPU.SP += 2
}

// dispatchCall services the HBIOS function selected by the guest's B
// register, and performs the synthetic return unless the handler, or
// the dispatch port, has asked otherwise.
func (h *HBIOS) dispatchCall() error {

	code := h.CPU.States.BC.Hi

	handler, exists := h.Syscalls[code]
	if !exists {
		h.Logger.Debug("unknown HBIOS function",
			slog.Int("function", int(code)),
			slog.String("functionHex", fmt.Sprintf("0x%02X", code)))
		h.setResult(resNoFunc)
		if !h.skipRet {
			h.synthReturn()
		}
		return nil
	}

	h.Logger.Debug("HBIOS call",
		slog.String("name", handler.Desc),
		slog.Int("function", int(code)),
		slog.String("functionHex", fmt.Sprintf("0x%02X", code)),
		slog.Int("unit", int(h.CPU.States.BC.Lo)))

	h.noRet = false
	err := handler.Handler(h)
	if err != nil {
		return err
	}

	if !h.noRet && !h.skipRet {
		h.synthReturn()
	}
	return nil
}

// trapKind classifies a stopped PC.
const (
	trapNone = iota
	trapMain
	trapBankCall
	trapHandler
)

func (h *HBIOS) trapKind(pc uint16) int {
	if !h.trapping {
		return trapNone
	}
	if pc == h.mainEntry {
		return trapMain
	}
	if pc == bankCallEntry {
		return trapBankCall
	}
	for _, addr := range h.dispatch {
		if addr != 0 && pc == addr {
			return trapHandler
		}
	}
	return trapNone
}

// Run executes the loaded ROM until the guest halts, the monitor asks
// to exit, or an error is hit.
//
// Under the non-blocking policy Run returns ErrWaitingInput when the
// guest polls for console input which isn't there; queue a character
// with Input().StuffInput() and call Run again.
func (h *HBIOS) Run(ctx context.Context) error {

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	h.cancel = cancel
	h.quitReq = false

	// A call left waiting for input still sits at its trap address;
	// service it again before the CPU resumes, so the handler, not
	// the code at that address, runs next.
	if h.waiting {
		if k := h.trapKind(h.CPU.PC); k == trapMain || k == trapHandler {
			if err := h.dispatchCall(); err != nil {
				return err
			}
			if h.waiting && h.blocking == NonBlocking {
				return ErrWaitingInput
			}
		}
	}

	for {
		err := h.CPU.Run(ctx)

		// A quit or strict I/O stop wins over whatever else the
		// CPU was doing when it was cancelled.
		if h.quitReq {
			return ErrExit
		}
		if h.strictDiag != "" {
			fmt.Fprintf(os.Stderr, "\r\n%s\r\n", h.strictDiag)
			return ErrStrictIO
		}

		// No error?  Then end - the CPU hit a HALT.
		if err == nil {
			return ErrHalt
		}

		if !errors.Is(err, z80.ErrBreakPoint) {
			return err
		}

		// A stop re-arms any breakpoint "continue" disarmed.
		if h.disarmed != 0 {
			h.disarmed = 0
			h.refreshBreakpoints()
		}

		pc := h.CPU.PC
		switch h.trapKind(pc) {
		case trapMain, trapHandler:
			err = h.dispatchCall()
		case trapBankCall:
			err = h.bankCall()
		default:
			// A monitor breakpoint.
			if !h.enterMonitor() {
				return ErrExit
			}
			// Let execution leave the breakpoint address.
			if _, ok := h.userBreaks[pc]; ok {
				h.disarmed = pc
				h.refreshBreakpoints()
			}
			continue
		}

		if err != nil {
			return err
		}

		if h.waiting && h.blocking == NonBlocking {
			return ErrWaitingInput
		}
	}
}

// enterMonitor runs the installed monitor hook, returning true if
// execution should continue.
func (h *HBIOS) enterMonitor() bool {
	if h.monitor == nil {
		return true
	}
	return h.monitor()
}

// bankCall services the firmware's inter-bank call proxy.  The only
// vector we route is the loader's device summary.
func (h *HBIOS) bankCall() error {

	ix := h.CPU.States.SPR.IX

	h.Logger.Debug("bank call",
		slog.String("vector", fmt.Sprintf("0x%04X", ix)))

	if ix == prtsumVector {
		h.prtsum()
	}

	h.setResult(resSuccess)
	h.synthReturn()
	return nil
}

// readConsoleChar reads one character of console input, handling the
// monitor escape character and mapping end-of-input to the CP/M EOF
// character.
//
// The caller has established that input is pending; if it raced away
// regardless we poll until the reported byte arrives.
func (h *HBIOS) readConsoleChar() (byte, error) {
	for {
		c, err := h.input.ReadChar()
		if errors.Is(err, consolein.ErrNoInput) {
			time.Sleep(time.Millisecond)
			continue
		}
		if err != nil {
			// Treat any read failure, including EOF on piped
			// input, as the CP/M end-of-file character.
			return 0x1A, nil
		}

		if h.input.CheckEscape(c) {
			if !h.enterMonitor() {
				return 0, ErrExit
			}
			continue
		}
		return c, nil
	}
}

// PortStats returns the I/O port access counters, for the debug
// report at exit.
func (h *HBIOS) PortStats() (map[uint8]int, map[uint8]int) {
	return h.portInCount, h.portOutCount
}
