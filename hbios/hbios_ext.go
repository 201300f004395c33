// This file implements the extension (EXT) functions: the slice
// query the boot loader uses to find a system image on a partitioned
// disk, and the host-file transfer services behind the R8/W8 guest
// utilities.

package hbios

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// EXT function codes.
const (
	fnEXTSLICE  = 0xE0
	fnHostOpenR = 0xE1
	fnHostOpenW = 0xE2
	fnHostRead  = 0xE3
	fnHostWrite = 0xE4
	fnHostClose = 0xE5
	fnHostMode  = 0xE6
	fnHostArg   = 0xE7
)

// Host transfer modes.
const (
	hostModeAuto   = 0x00
	hostModeText   = 0x01
	hostModeBinary = 0x02
)

// registerEXT populates the function table.
func (h *HBIOS) registerEXT() {
	h.register(fnEXTSLICE, "EXTSLICE", SysCallSliceInfo)
	h.register(fnHostOpenR, "HOSTOPENR", SysCallHostOpenRead)
	h.register(fnHostOpenW, "HOSTOPENW", SysCallHostOpenWrite)
	h.register(fnHostRead, "HOSTREAD", SysCallHostRead)
	h.register(fnHostWrite, "HOSTWRITE", SysCallHostWrite)
	h.register(fnHostClose, "HOSTCLOSE", SysCallHostClose)
	h.register(fnHostMode, "HOSTMODE", SysCallHostMode)
	h.register(fnHostArg, "HOSTGETARG", SysCallHostGetArg)
}

// SysCallSliceInfo resolves the unit in D and reports, for the slice
// in E: device attributes in B, the media identifier in C, and the
// slice's absolute starting sector in DE:HL.
//
// The first query of a hard disk probes its partition layout; the
// result is cached for the life of the disk.
func SysCallSliceInfo(h *HBIOS) error {
	unit := h.CPU.States.DE.Hi
	slice := h.CPU.States.DE.Lo

	u := h.resolveUnit(unit)

	var media uint8
	var lba uint32

	switch {
	case u.md != nil:
		// Memory disks have no slices.
		if u.md.ROM {
			media = mediaMDROM
		} else {
			media = mediaMDRAM
		}
		lba = 0

	case u.hd != nil:
		info := u.hd.Probe()
		if info.HD1K {
			media = mediaHDNew
		} else {
			media = mediaHD
		}
		lba = u.hd.SliceLBA(slice)

	default:
		h.setResult(resNoUnit)
		return nil
	}

	h.Logger.Debug("slice query",
		slog.String("unit", fmt.Sprintf("0x%02X", unit)),
		slog.Int("slice", int(slice)),
		slog.String("media", fmt.Sprintf("0x%02X", media)),
		slog.Int("lba", int(lba)))

	h.CPU.States.BC.Hi = 0x00
	h.CPU.States.BC.Lo = media
	h.CPU.States.DE.SetU16(uint16(lba >> 16))
	h.CPU.States.HL.SetU16(uint16(lba & 0xFFFF))
	h.setResult(resSuccess)
	return nil
}

// readGuestString reads a NUL-terminated ASCII string, of at most 256
// bytes, from guest memory.
func (h *HBIOS) readGuestString(addr uint16) string {
	var sb strings.Builder
	for i := uint16(0); i < 256; i++ {
		c := h.Memory.Get(addr + i)
		if c == 0x00 {
			break
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// SysCallHostOpenRead opens the host file named by the guest string
// at DE, for reading.
func SysCallHostOpenRead(h *HBIOS) error {
	path := h.readGuestString(h.CPU.States.DE.U16())

	if h.hostRead != nil {
		h.hostRead.Close()
		h.hostRead = nil
	}

	f, err := os.Open(path)
	if err != nil {
		h.Logger.Debug("host open for read failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		h.setResult(resFailed)
		return nil
	}

	h.hostRead = f
	h.setResult(resSuccess)
	return nil
}

// SysCallHostOpenWrite opens the host file named by the guest string
// at DE, for writing.
func SysCallHostOpenWrite(h *HBIOS) error {
	path := h.readGuestString(h.CPU.States.DE.U16())

	if h.hostWrite != nil {
		h.hostWrite.Close()
		h.hostWrite = nil
	}

	f, err := os.Create(path)
	if err != nil {
		h.Logger.Debug("host open for write failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		h.setResult(resFailed)
		return nil
	}

	h.hostWrite = f
	h.setResult(resSuccess)
	return nil
}

// SysCallHostRead returns the next byte of the open host file in E;
// end of file reports the legacy failure code.
func SysCallHostRead(h *HBIOS) error {
	if h.hostRead == nil {
		h.setResult(resFailed)
		return nil
	}

	var b [1]byte
	n, _ := h.hostRead.Read(b[:])
	if n != 1 {
		h.setResult(resFailed)
		return nil
	}

	h.CPU.States.DE.Lo = b[0]
	h.setResult(resSuccess)
	return nil
}

// SysCallHostWrite appends the byte in E to the open host file.
func SysCallHostWrite(h *HBIOS) error {
	if h.hostWrite == nil {
		h.setResult(resFailed)
		return nil
	}

	_, err := h.hostWrite.Write([]byte{h.CPU.States.DE.Lo})
	if err != nil {
		h.setResult(resFailed)
		return nil
	}

	h.setResult(resSuccess)
	return nil
}

// SysCallHostClose closes the read file when C is zero, otherwise the
// write file.
func SysCallHostClose(h *HBIOS) error {
	if h.CPU.States.BC.Lo == 0 {
		if h.hostRead != nil {
			h.hostRead.Close()
			h.hostRead = nil
		}
	} else {
		if h.hostWrite != nil {
			h.hostWrite.Close()
			h.hostWrite = nil
		}
	}
	h.setResult(resSuccess)
	return nil
}

// SysCallHostMode gets (C=0) or sets (C=1) the transfer-mode flag:
// auto, text or binary.
func SysCallHostMode(h *HBIOS) error {
	if h.CPU.States.BC.Lo == 0 {
		h.CPU.States.DE.Lo = h.hostMode
	} else {
		h.hostMode = h.CPU.States.DE.Lo
	}
	h.setResult(resSuccess)
	return nil
}

// SysCallHostGetArg copies the E-th space-separated token of the host
// command line, NUL-terminated, to guest memory at DE.  A missing
// token reports the legacy failure code.
func SysCallHostGetArg(h *HBIOS) error {
	index := int(h.CPU.States.DE.Lo)
	buffer := h.CPU.States.DE.U16()

	args := strings.Fields(h.cmdline)
	if index >= len(args) {
		h.setResult(resFailed)
		return nil
	}

	arg := args[index]
	if len(arg) > 255 {
		arg = arg[:255]
	}

	for i := 0; i < len(arg); i++ {
		h.Memory.Set(buffer+uint16(i), arg[i])
	}
	h.Memory.Set(buffer+uint16(len(arg)), 0x00)
	h.setResult(resSuccess)
	return nil
}
