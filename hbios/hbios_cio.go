// This file implements the character I/O (CIO) functions.
//
// The console is a single UART as far as the guest is concerned;
// every unit number routes to the same input source and output sink.

package hbios

import (
	"time"
)

// CIO function codes.
const (
	fnCIOIN     = 0x00
	fnCIOOUT    = 0x01
	fnCIOIST    = 0x02
	fnCIOOST    = 0x03
	fnCIOINIT   = 0x04
	fnCIOQUERY  = 0x05
	fnCIODEVICE = 0x06
)

// registerCIO populates the function table.
func (h *HBIOS) registerCIO() {
	h.register(fnCIOIN, "CIOIN", SysCallConsoleRead)
	h.register(fnCIOOUT, "CIOOUT", SysCallConsoleWrite)
	h.register(fnCIOIST, "CIOIST", SysCallConsoleInStatus)
	h.register(fnCIOOST, "CIOOST", SysCallConsoleOutStatus)
	h.register(fnCIOINIT, "CIOINIT", SysCallConsoleInit)
	h.register(fnCIOQUERY, "CIOQUERY", SysCallConsoleQuery)
	h.register(fnCIODEVICE, "CIODEVICE", SysCallConsoleDevice)
}

// SysCallConsoleRead reads one character of console input into E.
//
// With no input pending the behaviour depends on how we were invoked:
// a blocking host polls until a character arrives; a non-blocking
// host is flagged as waiting.  Under PC-trapping the guest PC is left
// at the trap so the call is retried, under port dispatch the guest's
// own polling loop gets a zero byte back.
func SysCallConsoleRead(h *HBIOS) error {

	if !h.input.HasInput() {
		if h.blocking == Blocking {
			// A terminal host: poll, sleeping, until a
			// character arrives.
			for !h.input.HasInput() {
				time.Sleep(time.Millisecond)
			}
		} else {
			h.waiting = true
			if !h.skipRet {
				// Leave the PC at the trap address, so the
				// next step re-enters this handler.
				h.noRet = true
				return nil
			}
			// Port dispatch: hand back a zero byte and rely
			// on the guest's own polling loop.
			h.CPU.States.DE.Lo = 0x00
			h.setResult(resSuccess)
			return nil
		}
	}

	c, err := h.readConsoleChar()
	if err != nil {
		return err
	}

	h.CPU.States.DE.Lo = c
	h.waiting = false
	h.setResult(resSuccess)
	return nil
}

// SysCallConsoleWrite writes the character in E to the console.
func SysCallConsoleWrite(h *HBIOS) error {
	h.output.PutCharacter(h.CPU.States.DE.Lo)
	h.setResult(resSuccess)
	return nil
}

// SysCallConsoleInStatus returns, in A, the number of characters
// waiting: one or zero.
func SysCallConsoleInStatus(h *HBIOS) error {
	if h.input.HasInput() {
		h.setResult(1)
	} else {
		h.setResult(0)
	}
	return nil
}

// SysCallConsoleOutStatus reports the output device as always ready.
func SysCallConsoleOutStatus(h *HBIOS) error {
	h.CPU.States.DE.Lo = 0xFF
	h.setResult(resSuccess)
	return nil
}

// SysCallConsoleInit has nothing to configure on our UART.
func SysCallConsoleInit(h *HBIOS) error {
	h.setResult(resSuccess)
	return nil
}

// SysCallConsoleQuery reports the device configuration: a UART, with
// the unit echoed back.
func SysCallConsoleQuery(h *HBIOS) error {
	h.CPU.States.DE.Hi = 0x00
	h.CPU.States.DE.Lo = h.CPU.States.BC.Lo
	h.setResult(resSuccess)
	return nil
}

// SysCallConsoleDevice reports empty device attributes.
func SysCallConsoleDevice(h *HBIOS) error {
	h.CPU.States.DE.SetU16(0x0000)
	h.setResult(resSuccess)
	return nil
}
