// The boot loader: parsing the command collected at the loader's
// prompt, and loading the chosen system image into guest memory.
//
// A bootable image - whether a ROM application file or the system
// area of a disk - carries a 32-byte header at offset 0x5E0 whose
// last six bytes give the load, end and entry addresses; the payload
// follows at offset 0x600.

package hbios

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/skx/romulator/disk"
	"github.com/skx/romulator/romapp"
)

// Image header layout.
const (
	bootHeaderOffset = 0x5E0
	bootImageOffset  = 0x600
	bootHeaderSize   = 32
)

// bootTarget is a parsed boot command.
type bootTarget struct {
	app   *romapp.App
	md    int
	hd    int
	slice uint8
}

// parseBootCommand applies the loader's parsing rules, in order, to
// the given command.  It returns the target, or false when the
// command names nothing bootable.
func (h *HBIOS) parseBootCommand(cmd string) (bootTarget, bool) {
	cmd = strings.TrimLeft(cmd, " ")
	t := bootTarget{md: -1, hd: -1}

	// An empty command boots the first available device.
	if cmd == "" {
		for i := range h.Disks.MD {
			if h.Disks.MD[i].Enabled {
				t.md = i
				return t, true
			}
		}
		for i := 0; i < disk.MaxDrives; i++ {
			if h.Disks.IsOpen(i) {
				t.hd = i
				return t, true
			}
		}
		return t, false
	}

	// A single letter selects a ROM application, when one is
	// registered under it.
	if len(cmd) == 1 && isAlpha(cmd[0]) {
		if app, ok := h.Apps.Find(cmd[0]); ok {
			t.app = &app
			return t, true
		}
	}

	unit, slice, ok := parseUnitSlice(cmd)
	if !ok {
		return t, false
	}
	t.slice = slice

	switch {
	case hasCasePrefix(cmd, "MD"):
		if unit >= 0 && unit < len(h.Disks.MD) && h.Disks.MD[unit].Enabled {
			t.md = unit
			return t, true
		}
	default:
		// "HDn" and a bare number both name a hard-disk slot.
		if h.Disks.IsOpen(unit) {
			t.hd = unit
			return t, true
		}
	}
	return t, false
}

// parseUnitSlice extracts "n" or "n:s" from a command, skipping a
// leading HD/MD prefix.
func parseUnitSlice(cmd string) (int, uint8, bool) {
	if hasCasePrefix(cmd, "HD") || hasCasePrefix(cmd, "MD") {
		cmd = cmd[2:]
	}
	if cmd == "" || !isDigit(cmd[0]) {
		return 0, 0, false
	}

	numPart := cmd
	slicePart := ""
	if idx := strings.IndexByte(cmd, ':'); idx >= 0 {
		numPart = cmd[:idx]
		slicePart = cmd[idx+1:]
	}

	unit, err := strconv.Atoi(numPart)
	if err != nil {
		return 0, 0, false
	}

	slice := 0
	if slicePart != "" {
		slice, err = strconv.Atoi(slicePart)
		if err != nil || slice < 0 || slice > 255 {
			return 0, 0, false
		}
	}
	return unit, uint8(slice), true
}

func isAlpha(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func hasCasePrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// bootSource reads bytes from wherever the chosen image lives.
type bootSource func(offset int64, buf []uint8) int

// boot parses and executes a boot command.
//
// An unbootable command is reported to the guest as no-unit, so the
// loader can prompt again.  Failures after a target has been chosen -
// an unreadable file, a truncated header - are fatal: the guest
// cannot be safely resumed.
func (h *HBIOS) boot(cmd string) error {

	h.Logger.Debug("boot command",
		slog.String("command", cmd))

	t, ok := h.parseBootCommand(cmd)
	if !ok {
		h.Logger.Debug("boot command names no bootable device",
			slog.String("command", cmd))
		h.setResult(resNoUnit)
		return nil
	}

	var src bootSource
	var unit uint8

	switch {
	case t.app != nil:
		data, err := os.ReadFile(t.app.Path)
		if err != nil {
			return fmt.Errorf("failed to load ROM application %s: %s", t.app.Name, err)
		}
		src = func(offset int64, buf []uint8) int {
			if offset >= int64(len(data)) {
				return 0
			}
			return copy(buf, data[offset:])
		}

	case t.md >= 0:
		md := &h.Disks.MD[t.md]
		unit = uint8(t.md)
		src = func(offset int64, buf []uint8) int {
			return h.memDiskRead(md, offset, buf)
		}

	default:
		d := h.Disks.Drive(t.hd)
		unit = uint8(t.hd)
		base := int64(d.SliceLBA(t.slice)) * disk.SectorSize
		src = func(offset int64, buf []uint8) int {
			return d.ReadAt(base+offset, buf)
		}
	}

	var header [bootHeaderSize]uint8
	if src(bootHeaderOffset, header[:]) != bootHeaderSize {
		return fmt.Errorf("failed to read boot header for command %q", cmd)
	}

	loadAddr := uint16(header[26]) | uint16(header[27])<<8
	endAddr := uint16(header[28]) | uint16(header[29])<<8
	entryAddr := uint16(header[30]) | uint16(header[31])<<8

	h.Logger.Debug("boot image header",
		slog.String("load", fmt.Sprintf("0x%04X", loadAddr)),
		slog.String("end", fmt.Sprintf("0x%04X", endAddr)),
		slog.String("entry", fmt.Sprintf("0x%04X", entryAddr)))

	// Copy the payload, sector by sector; a partial final sector
	// is fine, a short read before the end is not.
	var sector [disk.SectorSize]uint8
	addr := loadAddr
	offset := int64(bootImageOffset)
	for addr < endAddr {
		n := src(offset, sector[:])
		if n == 0 {
			return fmt.Errorf("boot image truncated at 0x%04X", addr)
		}
		for i := 0; i < n && addr < endAddr; i++ {
			h.Memory.Set(addr, sector[i])
			addr++
		}
		offset += int64(n)
	}

	if t.app == nil {
		h.CPU.States.DE.Hi = unit
		h.CPU.States.DE.Lo = 0
	}
	h.CPU.PC = entryAddr
	h.noRet = true
	h.setResult(resSuccess)

	h.Logger.Debug("booted",
		slog.Int("bytes", int(addr-loadAddr)),
		slog.String("entry", fmt.Sprintf("0x%04X", entryAddr)))
	return nil
}

// memDiskRead assembles a byte-addressed read over a memory disk's
// banks.
func (h *HBIOS) memDiskRead(md *disk.MemDisk, offset int64, buf []uint8) int {
	total := int64(md.TotalSectors()) * disk.SectorSize
	n := 0
	for n < len(buf) && offset < total {
		lba := uint32(offset / disk.SectorSize)
		bank, base := md.SectorHome(lba)
		within := uint16(offset % disk.SectorSize)
		buf[n] = h.Memory.ReadBank(bank, base+within)
		n++
		offset++
	}
	return n
}
