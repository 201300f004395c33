// This file implements the system (SYS) functions: bank management,
// the inter-bank copy, the heap, the information queries, and the
// boot entry point.

package hbios

import (
	"fmt"
	"log/slog"
	"time"
)

// SYS function codes.
const (
	fnSYSRESET  = 0xF0
	fnSYSVER    = 0xF1
	fnSYSSETBNK = 0xF2
	fnSYSGETBNK = 0xF3
	fnSYSSETCPY = 0xF4
	fnSYSBNKCPY = 0xF5
	fnSYSALLOC  = 0xF6
	fnSYSFREE   = 0xF7
	fnSYSGET    = 0xF8
	fnSYSSET    = 0xF9
	fnSYSPEEK   = 0xFA
	fnSYSPOKE   = 0xFB
	fnSYSINT    = 0xFC
	fnSYSBOOT   = 0xFE
)

// SYSRESET subtypes, passed in C.
const (
	sysResetInternal = 0x00
	sysResetWarm     = 0x01
	sysResetCold     = 0x02
)

// SYSGET/SYSSET subfunctions, passed in C.
const (
	sysGetCIOCount  = 0x00
	sysGetDIOCount  = 0x10
	sysGetRTCCount  = 0x20
	sysGetDSKYCount = 0x30
	sysGetVDACount  = 0x40
	sysGetSNDCount  = 0x50
	sysGetSwitch    = 0xC0
	sysGetTimer     = 0xD0
	sysGetSeconds   = 0xD1
	sysGetBootInfo  = 0xE0
	sysGetCPUInfo   = 0xF0
	sysGetMemInfo   = 0xF1
	sysGetBankInfo  = 0xF2
	sysGetCPUSpeed  = 0xF3
	sysGetPanel     = 0xF4
	sysGetAppBanks  = 0xF5
	sysGetDevList   = 0xFD
)

// The heap behind SYSALLOC lives in RAM bank 0x80, between the
// configuration block and the bank boundary.
//
// It is intentionally a bump allocator with no free list: legacy
// guest code allocates once and never frees.
const (
	heapStart = 0x0200
	heapEnd   = 0x8000
)

// timerHz is the rate of the firmware's periodic tick.
const timerHz = 50

// registerSYS populates the function table.
func (h *HBIOS) registerSYS() {
	h.register(fnSYSRESET, "SYSRESET", SysCallSystemReset)
	h.register(fnSYSVER, "SYSVER", SysCallSystemVersion)
	h.register(fnSYSSETBNK, "SYSSETBNK", SysCallBankSet)
	h.register(fnSYSGETBNK, "SYSGETBNK", SysCallBankGet)
	h.register(fnSYSSETCPY, "SYSSETCPY", SysCallBankCopySetup)
	h.register(fnSYSBNKCPY, "SYSBNKCPY", SysCallBankCopy)
	h.register(fnSYSALLOC, "SYSALLOC", SysCallHeapAlloc)
	h.register(fnSYSFREE, "SYSFREE", SysCallHeapFree)
	h.register(fnSYSGET, "SYSGET", SysCallSystemGet)
	h.register(fnSYSSET, "SYSSET", SysCallSystemSet)
	h.register(fnSYSPEEK, "SYSPEEK", SysCallPeek)
	h.register(fnSYSPOKE, "SYSPOKE", SysCallPoke)
	h.register(fnSYSINT, "SYSINT", SysCallInterrupt)
	h.register(fnSYSBOOT, "SYSBOOT", SysCallBoot)
}

// SysCallSystemReset handles the warm and cold reset requests by
// restarting the firmware from the top; anything else is a no-op
// acknowledgement.
func SysCallSystemReset(h *HBIOS) error {
	kind := h.CPU.States.BC.Lo

	if kind == sysResetWarm || kind == sysResetCold {
		h.Logger.Debug("system reset",
			slog.Int("kind", int(kind)))
		h.warmBoot()
		h.noRet = true
		return nil
	}

	h.setResult(resSuccess)
	return nil
}

// warmBoot replays the firmware's boot: dispatcher state is dropped,
// the console queue cleared, and execution resumes at the ROM reset
// vector in bank 0.
func (h *HBIOS) warmBoot() {
	h.Reset()
	h.Memory.SelectBank(0x00)
	h.CPU.PC = 0x0000
	h.CPU.SP = 0x0000
}

// SysCallSystemVersion reports the firmware version in DE and the
// platform in L.
func SysCallSystemVersion(h *HBIOS) error {
	h.CPU.States.DE.SetU16(0x3510)
	h.CPU.States.HL.Lo = 0x01
	h.setResult(resSuccess)
	return nil
}

// SysCallBankSet selects the bank in C for the lower window,
// initializing a RAM bank on its first use, and returns the
// previously selected bank in C.
func SysCallBankSet(h *HBIOS) error {
	newBank := h.CPU.States.BC.Lo
	prev := h.Memory.CurrentBank()

	h.initRAMBank(newBank)
	h.Memory.SelectBank(newBank)

	h.CPU.States.BC.Lo = prev
	h.setResult(resSuccess)
	return nil
}

// SysCallBankGet reports the currently selected bank in L.
func SysCallBankGet(h *HBIOS) error {
	h.CPU.States.HL.Lo = h.Memory.CurrentBank()
	h.setResult(resSuccess)
	return nil
}

// SysCallBankCopySetup stores the banks and length for a following
// SYSBNKCPY: destination bank in D, source bank in E, count in HL.
func SysCallBankCopySetup(h *HBIOS) error {
	h.cpyDst = h.CPU.States.DE.Hi
	h.cpySrc = h.CPU.States.DE.Lo
	h.cpyCount = h.CPU.States.HL.U16()

	h.Logger.Debug("bank copy setup",
		slog.String("src", fmt.Sprintf("0x%02X", h.cpySrc)),
		slog.String("dst", fmt.Sprintf("0x%02X", h.cpyDst)),
		slog.Int("count", int(h.cpyCount)))

	h.setResult(resSuccess)
	return nil
}

// SysCallBankCopy copies the configured number of bytes from HL in
// the source bank to DE in the destination bank.  Addresses in the
// common window substitute the common bank.
func SysCallBankCopy(h *HBIOS) error {
	h.interBankCopy(h.cpySrc, h.cpyDst,
		h.CPU.States.HL.U16(), h.CPU.States.DE.U16(), h.cpyCount)
	h.setResult(resSuccess)
	return nil
}

// SysCallHeapAlloc carves HL bytes from the firmware heap, returning
// the block address in HL.  Exhaustion reports no-memory with HL=0.
func SysCallHeapAlloc(h *HBIOS) error {
	size := h.CPU.States.HL.U16()

	if uint32(h.heapPtr)+uint32(size) <= heapEnd {
		h.CPU.States.HL.SetU16(h.heapPtr)
		h.heapPtr += size
		h.setResult(resSuccess)
		return nil
	}

	h.CPU.States.HL.SetU16(0)
	h.setResult(resNoMem)
	return nil
}

// SysCallHeapFree accepts a free request and does nothing with it;
// the heap is a bump allocator.
func SysCallHeapFree(h *HBIOS) error {
	h.setResult(resSuccess)
	return nil
}

// SysCallSystemGet answers the information queries, selected by C.
func SysCallSystemGet(h *HBIOS) error {
	sub := h.CPU.States.BC.Lo

	switch sub {
	case sysGetCIOCount, sysGetVDACount, sysGetSNDCount, sysGetRTCCount:
		h.CPU.States.DE.Lo = 1

	case sysGetDSKYCount:
		h.CPU.States.DE.Lo = 0

	case sysGetDIOCount:
		h.CPU.States.DE.Lo = uint8(h.Disks.EnabledMemDisks() + h.Disks.OpenCount())

	case sysGetSwitch, sysGetPanel:
		h.CPU.States.HL.Lo = 0x00

	case sysGetTimer:
		ticks := uint32(time.Since(h.started).Seconds() * timerHz)
		h.CPU.States.DE.SetU16(uint16(ticks >> 16))
		h.CPU.States.HL.SetU16(uint16(ticks & 0xFFFF))

	case sysGetSeconds:
		secs := uint32(time.Since(h.started).Seconds())
		h.CPU.States.DE.SetU16(uint16(secs >> 16))
		h.CPU.States.HL.SetU16(uint16(secs & 0xFFFF))

	case sysGetBootInfo:
		h.CPU.States.DE.Lo = 0

	case sysGetCPUInfo:
		h.CPU.States.DE.SetU16(0x0004)
		h.CPU.States.HL.SetU16(4000)

	case sysGetMemInfo:
		h.CPU.States.DE.Hi = 16
		h.CPU.States.DE.Lo = 16

	case sysGetBankInfo:
		h.CPU.States.DE.Hi = 0x80
		h.CPU.States.DE.Lo = 0x8E

	case sysGetCPUSpeed:
		h.CPU.States.HL.Hi = 0
		h.CPU.States.HL.Lo = 1

	case sysGetAppBanks:
		h.CPU.States.DE.Hi = h.Memory.ReadBank(0x80, hcbAppBank)
		h.CPU.States.DE.Lo = h.Memory.ReadBank(0x80, hcbAppBanks)

	case sysGetDevList:
		h.devList()

	default:
		h.Logger.Debug("unhandled SYSGET subfunction",
			slog.String("subfunction", fmt.Sprintf("0x%02X", sub)))
		h.CPU.States.DE.Lo = 0
	}

	h.setResult(resSuccess)
	return nil
}

// SysCallSystemSet acknowledges the settable parameters without
// keeping them: the switch value, boot information and friends have
// no behaviour to change here.
func SysCallSystemSet(h *HBIOS) error {
	sub := h.CPU.States.BC.Lo

	h.Logger.Debug("SYSSET acknowledged",
		slog.String("subfunction", fmt.Sprintf("0x%02X", sub)))

	h.setResult(resSuccess)
	return nil
}

// SysCallPeek reads a byte from another bank: bank in D, address in
// HL, result in E.  Addresses in the common window use the CPU view.
func SysCallPeek(h *HBIOS) error {
	bank := h.CPU.States.DE.Hi
	addr := h.CPU.States.HL.U16()

	var b uint8
	if addr < 0x8000 {
		b = h.Memory.ReadBank(bank, addr)
	} else {
		b = h.Memory.Get(addr)
	}
	h.CPU.States.DE.Lo = b
	h.setResult(resSuccess)
	return nil
}

// SysCallPoke writes the byte in E to another bank: bank in D,
// address in HL.
func SysCallPoke(h *HBIOS) error {
	bank := h.CPU.States.DE.Hi
	value := h.CPU.States.DE.Lo
	addr := h.CPU.States.HL.U16()

	if addr < 0x8000 {
		h.Memory.WriteBank(bank, addr, value)
	} else {
		h.Memory.Set(addr, value)
	}
	h.setResult(resSuccess)
	return nil
}

// SysCallInterrupt acknowledges interrupt-vector management; vectors
// are not managed here.
func SysCallInterrupt(h *HBIOS) error {
	h.setResult(resSuccess)
	return nil
}

// SysCallBoot reads the boot command the loader collected, parses it,
// and loads the chosen system image.  See boot.go.
func SysCallBoot(h *HBIOS) error {
	addr := h.CPU.States.HL.U16()

	// The command is ASCII, terminated by NUL, CR or LF.
	var cmd []byte
	for i := uint16(0); i < 63; i++ {
		c := h.Memory.Get(addr + i)
		if c == 0x00 || c == '\r' || c == '\n' {
			break
		}
		cmd = append(cmd, c)
	}

	return h.boot(string(cmd))
}
