// The firmware announces its lifecycle, and the addresses of its
// dispatch proxies, by writing a stream of bytes to the signal port.
// This file decodes that stream.

package hbios

import (
	"fmt"
	"log/slog"
)

// The single-byte signals.
const (
	sigBootStarted = 0x01
	sigSequential  = 0x02
	sigPrefixLo    = 0x10
	sigPrefixHi    = 0x15
	sigPreInit     = 0xFE
	sigInitDone    = 0xFF
)

// signalMode enumerates the states of the registration machine.
type signalMode int

const (
	// sigIdle means the next byte starts a fresh signal.
	sigIdle signalMode = iota

	// sigSeq means we are collecting the eight (lo,hi) bytes of a
	// sequential registration: CIO, DIO, RTC and SYS in order.
	sigSeq

	// sigPrefixed means we are collecting the two (lo,hi) bytes
	// for a single handler named by the prefix byte.
	sigPrefixed
)

// signalState is the registration state machine.
//
// Exactly one sequence can be active at a time; every completed
// registration returns to idle.
type signalState struct {

	// mode is the current machine state.
	mode signalMode

	// handler is the slot being registered.
	handler int

	// high is true when the next byte is the high half of an
	// address.
	high bool

	// partial holds the low half already received.
	partial uint8
}

// signal advances the state machine with one byte from the signal
// port.
func (h *HBIOS) signal(value uint8) {

	switch h.sig.mode {
	case sigSeq:
		h.signalAddressByte(value, true)
		return
	case sigPrefixed:
		h.signalAddressByte(value, false)
		return
	}

	// Idle: the byte starts something new.
	switch {
	case value == sigBootStarted:
		h.Logger.Debug("firmware boot code starting")

	case value == sigPreInit:
		h.Logger.Debug("firmware pre-init point reached")

	case value == sigInitDone:
		h.trapping = true
		h.refreshBreakpoints()
		h.Logger.Debug("firmware init complete, trapping enabled",
			slog.String("mainEntry", fmt.Sprintf("0x%04X", h.mainEntry)))

	case value == sigSequential:
		h.sig = signalState{mode: sigSeq, handler: handlerCIO}

	case value >= sigPrefixLo && value <= sigPrefixHi:
		h.sig = signalState{mode: sigPrefixed, handler: int(value - sigPrefixLo)}

	default:
		h.Logger.Debug("unknown signal byte",
			slog.String("value", fmt.Sprintf("0x%02X", value)))
	}
}

// signalAddressByte consumes one half of an address during a
// registration sequence.
func (h *HBIOS) signalAddressByte(value uint8, sequential bool) {

	if !h.sig.high {
		h.sig.partial = value
		h.sig.high = true
		return
	}

	addr := uint16(value)<<8 | uint16(h.sig.partial)
	h.registerDispatch(h.sig.handler, addr)

	h.sig.high = false
	h.sig.partial = 0

	if sequential && h.sig.handler < handlerSYS {
		h.sig.handler++
		return
	}
	h.sig = signalState{}
}

// registerDispatch stores a per-handler dispatch address.  A zero
// address leaves the handler unregistered and untrapped.
func (h *HBIOS) registerDispatch(handler int, addr uint16) {
	if handler < 0 || handler >= numHandlers {
		return
	}

	h.dispatch[handler] = addr
	h.refreshBreakpoints()

	h.Logger.Debug("dispatch address registered",
		slog.String("handler", handlerNames[handler]),
		slog.String("address", fmt.Sprintf("0x%04X", addr)))
}
