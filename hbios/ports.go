// Port I/O routing.
//
// The HBIOS has several roles in response to port writes: bank
// selection, the inter-bank copy and call proxies, the signal
// protocol and the dispatch trigger.  These are deliberately a flat
// switch on the port number, each case delegating to the owning
// subsystem.

package hbios

import (
	"fmt"
	"log/slog"

	"github.com/skx/romulator/memory"
)

// The guest-visible ports.
const (
	// portUARTData carries console bytes in both directions.
	portUARTData = 0x68

	// portUARTLSR is the UART line-status register.
	portUARTLSR = 0x6D

	// portRTCLatch latches the clock; a no-op for us.
	portRTCLatch = 0x70

	// portBankSelect and portBankSelectAlt select the bank mapped
	// at the lower window.  Both aliases behave identically.
	portBankSelect    = 0x78
	portBankSelectAlt = 0x7C

	// portBankCopy triggers the inter-bank copy proxy.
	portBankCopy = 0xEC

	// portBankCall triggers the inter-bank call proxy.
	portBankCall = 0xED

	// portSignal advances the signal/registration protocol.
	portSignal = 0xEE

	// portDispatch invokes the main-entry service handler.  The
	// Z80 proxy which writes it carries its own RET, so the
	// synthetic return is skipped.
	portDispatch = 0xEF
)

// uartLSRReady is the LSR value with the transmitter idle; bit 0 is
// added when receive data is pending.
const uartLSRReady = 0x60

// In is called to handle the I/O reading of a Z80 port.
//
// This is called by our embedded Z80 emulator.
func (h *HBIOS) In(port uint8) uint8 {
	h.portInCount[port]++

	switch port {
	case portBankSelect, portBankSelectAlt:
		return h.Memory.CurrentBank()

	case portUARTData:
		if !h.input.HasInput() {
			return 0x00
		}
		c, err := h.readConsoleChar()
		if err != nil {
			// The monitor asked to exit; a port read cannot
			// carry that, so flag it for the run loop.
			h.quitReq = true
			if h.cancel != nil {
				h.cancel()
			}
			return 0x00
		}
		return c

	case portUARTLSR:
		if h.input.HasInput() {
			return uartLSRReady | 0x01
		}
		return uartLSRReady

	case portUARTData + 1, portUARTData + 2, portUARTData + 3,
		portUARTData + 4, portUARTData + 7:
		// Remaining UART registers: nothing useful to report.
		return 0x00
	}

	h.unknownPort("IN", port, 0)
	return 0xFF
}

// Out is called to handle the I/O writing to a Z80 port.
//
// This is called by our embedded Z80 emulator.
func (h *HBIOS) Out(port uint8, value uint8) {
	h.portOutCount[port]++

	switch port {
	case portUARTData:
		h.output.PutCharacter(value)
		return

	case portUARTData + 1, portUARTData + 2, portUARTData + 3,
		portUARTData + 4, portUARTData + 7, portRTCLatch:
		// UART line configuration and the RTC latch: ignored.
		return

	case portBankSelect, portBankSelectAlt:
		h.initRAMBank(value)
		h.Memory.SelectBank(value)
		return

	case portBankCopy:
		h.portBankCopyWrite()
		return

	case portBankCall:
		h.portBankCallWrite(value)
		return

	case portSignal:
		h.signal(value)
		return

	case portDispatch:
		h.skipRet = true
		err := h.dispatchCall()
		h.skipRet = false
		if err != nil {
			h.strictDiag = fmt.Sprintf("dispatch failed: %s", err)
			if h.cancel != nil {
				h.cancel()
			}
		}
		return
	}

	h.unknownPort("OUT", port, value)
}

// portBankCopyWrite performs the inter-bank copy the firmware's proxy
// requests: banks come from fixed memory cells, the addresses and
// length from the guest registers.
func (h *HBIOS) portBankCopyWrite() {
	srcBank := h.Memory.Get(bankCopySrcCell)
	dstBank := h.Memory.Get(bankCopyDstCell)
	srcAddr := h.CPU.States.HL.U16()
	dstAddr := h.CPU.States.DE.U16()
	count := h.CPU.States.BC.U16()

	h.Logger.Debug("bank copy port",
		slog.String("src", fmt.Sprintf("%02X:%04X", srcBank, srcAddr)),
		slog.String("dst", fmt.Sprintf("%02X:%04X", dstBank, dstAddr)),
		slog.Int("count", int(count)))

	h.interBankCopy(srcBank, dstBank, srcAddr, dstAddr, count)
}

// portBankCallWrite performs the inter-bank call the firmware's proxy
// requests.  The written byte names the target bank, IX the call
// address; only the device-summary vector is routed.
func (h *HBIOS) portBankCallWrite(bank uint8) {
	ix := h.CPU.States.SPR.IX

	h.Logger.Debug("bank call port",
		slog.String("bank", fmt.Sprintf("0x%02X", bank)),
		slog.String("vector", fmt.Sprintf("0x%04X", ix)))

	if ix == prtsumVector {
		h.prtsum()
	}
}

// interBankCopy copies count bytes between banks.  Addresses at or
// above the bank boundary substitute the common bank, shifted down,
// which is how the firmware addresses the fixed window.
func (h *HBIOS) interBankCopy(srcBank, dstBank uint8, srcAddr, dstAddr uint16, count uint16) {
	for i := uint16(0); i < count; i++ {
		sb, sa := srcBank, srcAddr+i
		db, da := dstBank, dstAddr+i

		if sa >= memory.BankBoundary {
			sb = memory.CommonBank
			sa -= memory.BankBoundary
		}
		if da >= memory.BankBoundary {
			db = memory.CommonBank
			da -= memory.BankBoundary
		}

		h.Memory.WriteBank(db, da, h.Memory.ReadBank(sb, sa))
	}
}

// unknownPort records a port we have no handler for.  Each port is
// logged once; in strict mode the emulator stops with a diagnostic.
func (h *HBIOS) unknownPort(dir string, port uint8, value uint8) {
	if _, seen := h.unknownPorts[port]; !seen {
		h.unknownPorts[port] = struct{}{}
		h.Logger.Debug("unknown I/O port",
			slog.String("direction", dir),
			slog.String("port", fmt.Sprintf("0x%02X", port)),
			slog.String("value", fmt.Sprintf("0x%02X", value)))
	}

	if h.strictIO {
		h.strictDiag = fmt.Sprintf("unexpected %s port 0x%02X at PC=0x%04X",
			dir, port, h.CPU.PC)
		if h.cancel != nil {
			h.cancel()
		}
	}
}

// UnknownPortCount returns how many distinct unknown ports have been
// touched.
func (h *HBIOS) UnknownPortCount() int {
	return len(h.unknownPorts)
}
