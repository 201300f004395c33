// This file implements the disk I/O (DIO) functions, along with the
// unit-number routing the firmware uses to address its storage.

package hbios

import (
	"github.com/skx/romulator/disk"
	"github.com/skx/romulator/memory"
)

// DIO function codes.
const (
	fnDIOSTATUS = 0x10
	fnDIORESET  = 0x11
	fnDIOSEEK   = 0x12
	fnDIOREAD   = 0x13
	fnDIOWRITE  = 0x14
	fnDIOFORMAT = 0x16
	fnDIODEVICE = 0x17
	fnDIOMEDIA  = 0x18
	fnDIODEFMED = 0x19
	fnDIOCAP    = 0x1A
	fnDIOGEOM   = 0x1B
)

// Unit-number ranges.  The 0xC0 alias is not documented in any
// surviving firmware specification, but the boot loaders depend on
// it: those units address the ROM disk.
const (
	hdUnitBase     = 0x02
	mdUnitAliasLo  = 0x80
	mdUnitAliasHi  = 0x8F
	hdUnitAliasLo  = 0x90
	hdUnitAliasHi  = 0x9F
	romDiskAliasLo = 0xC0
	romDiskAliasHi = 0xCF
)

// registerDIO populates the function table.
func (h *HBIOS) registerDIO() {
	h.register(fnDIOSTATUS, "DIOSTATUS", SysCallDiskStatus)
	h.register(fnDIORESET, "DIORESET", SysCallDiskReset)
	h.register(fnDIOSEEK, "DIOSEEK", SysCallDiskSeek)
	h.register(fnDIOREAD, "DIOREAD", SysCallDiskRead)
	h.register(fnDIOWRITE, "DIOWRITE", SysCallDiskWrite)
	h.register(fnDIOFORMAT, "DIOFORMAT", SysCallDiskFormat)
	h.register(fnDIODEVICE, "DIODEVICE", SysCallDiskDevice)
	h.register(fnDIOMEDIA, "DIOMEDIA", SysCallDiskMedia)
	h.register(fnDIODEFMED, "DIODEFMED", SysCallDiskDefineMedia)
	h.register(fnDIOCAP, "DIOCAP", SysCallDiskCapacity)
	h.register(fnDIOGEOM, "DIOGEOM", SysCallDiskGeometry)
}

// unitRef is a resolved disk unit: exactly one of md/hd is set.
type unitRef struct {
	md      *disk.MemDisk
	mdIndex int

	hd      *disk.Drive
	hdIndex int
}

// valid reports whether the unit resolved to an attached device.
func (u unitRef) valid() bool {
	return u.md != nil || u.hd != nil
}

// resolveUnit maps a guest unit number onto a device, honouring each
// of the firmware's encoding schemes in order.
func (h *HBIOS) resolveUnit(unit uint8) unitRef {

	md := func(idx int) unitRef {
		if h.Disks.MD[idx].Enabled {
			return unitRef{md: &h.Disks.MD[idx], mdIndex: idx}
		}
		return unitRef{}
	}
	hd := func(idx int) unitRef {
		if h.Disks.IsOpen(idx) {
			return unitRef{hd: h.Disks.Drive(idx), hdIndex: idx}
		}
		return unitRef{}
	}

	switch {
	case unit <= 0x01:
		return md(int(unit))

	case unit >= hdUnitBase && unit < hdUnitBase+disk.MaxDrives:
		return hd(int(unit - hdUnitBase))

	case unit >= mdUnitAliasLo && unit <= mdUnitAliasHi:
		idx := int(unit & 0x0F)
		if idx > 1 {
			idx = 1
		}
		return md(idx)

	case unit >= hdUnitAliasLo && unit <= hdUnitAliasHi:
		return hd(int(unit & 0x0F))

	case unit >= romDiskAliasLo && unit <= romDiskAliasHi:
		return md(1)
	}

	return unitRef{}
}

// guestBufferWrite stores a transferred byte into guest memory,
// honouring the bank hint: with bit 7 set the hint names an explicit
// bank for the lower window, with the common bank covering addresses
// above the boundary.  Otherwise the CPU-visible mapping applies.
func (h *HBIOS) guestBufferWrite(addr uint16, bank uint8, value uint8) {
	if bank&0x80 != 0 {
		if addr >= memory.BankBoundary {
			h.Memory.WriteBank(memory.CommonBank, addr-memory.BankBoundary, value)
		} else {
			h.Memory.WriteBank(bank, addr, value)
		}
		return
	}
	h.Memory.Set(addr, value)
}

// guestBufferRead is the mirror of guestBufferWrite.
func (h *HBIOS) guestBufferRead(addr uint16, bank uint8) uint8 {
	if bank&0x80 != 0 {
		if addr >= memory.BankBoundary {
			return h.Memory.ReadBank(memory.CommonBank, addr-memory.BankBoundary)
		}
		return h.Memory.ReadBank(bank, addr)
	}
	return h.Memory.Get(addr)
}

// SysCallDiskStatus reports whether the unit exists.
func SysCallDiskStatus(h *HBIOS) error {
	u := h.resolveUnit(h.CPU.States.BC.Lo)
	if !u.valid() {
		h.CPU.States.DE.Lo = 0xFF
		h.setResult(resNoUnit)
		return nil
	}
	h.CPU.States.DE.Lo = 0x00
	h.setResult(resSuccess)
	return nil
}

// SysCallDiskReset rewinds the unit to sector zero.
func SysCallDiskReset(h *HBIOS) error {
	u := h.resolveUnit(h.CPU.States.BC.Lo)
	switch {
	case u.md != nil:
		u.md.CurrentLBA = 0
	case u.hd != nil:
		u.hd.CurrentLBA = 0
	}
	h.setResult(resSuccess)
	return nil
}

// SysCallDiskSeek stores an absolute sector position.
//
// The position arrives as a 32-bit value in DE:HL; the top bit is the
// firmware's LBA-mode flag and is masked off.
func SysCallDiskSeek(h *HBIOS) error {
	u := h.resolveUnit(h.CPU.States.BC.Lo)

	lba := (uint32(h.CPU.States.DE.U16()&0x7FFF) << 16) |
		uint32(h.CPU.States.HL.U16())

	switch {
	case u.md != nil:
		u.md.CurrentLBA = lba
	case u.hd != nil:
		u.hd.CurrentLBA = lba
	default:
		h.setResult(resNoUnit)
		return nil
	}
	h.setResult(resSuccess)
	return nil
}

// SysCallDiskRead reads E sectors from the unit's current position
// into the guest buffer at HL, with the bank hint in D.  E returns
// the number of sectors actually transferred; running off the end of
// the disk shortens the transfer without failing it.
func SysCallDiskRead(h *HBIOS) error {
	u := h.resolveUnit(h.CPU.States.BC.Lo)
	if !u.valid() {
		h.CPU.States.DE.Lo = 0
		h.setResult(resNoUnit)
		return nil
	}

	buffer := h.CPU.States.HL.U16()
	bank := h.CPU.States.DE.Hi
	count := int(h.CPU.States.DE.Lo)
	done := 0

	if u.md != nil {
		for s := 0; s < count; s++ {
			if u.md.CurrentLBA >= u.md.TotalSectors() {
				break
			}
			srcBank, srcOff := u.md.SectorHome(u.md.CurrentLBA)
			for j := 0; j < disk.SectorSize; j++ {
				b := h.Memory.ReadBank(srcBank, srcOff+uint16(j))
				h.guestBufferWrite(buffer+uint16(s*disk.SectorSize+j), bank, b)
			}
			u.md.CurrentLBA++
			done++
		}
	} else {
		var sector [disk.SectorSize]uint8
		for s := 0; s < count; s++ {
			offset := int64(u.hd.CurrentLBA) * disk.SectorSize
			if u.hd.ReadAt(offset, sector[:]) < disk.SectorSize {
				break
			}
			for j := 0; j < disk.SectorSize; j++ {
				h.guestBufferWrite(buffer+uint16(s*disk.SectorSize+j), bank, sector[j])
			}
			u.hd.CurrentLBA++
			done++
		}
	}

	h.CPU.States.DE.Lo = uint8(done)
	h.setResult(resSuccess)
	return nil
}

// SysCallDiskWrite writes E sectors from the guest buffer at HL to
// the unit's current position.  Writing to the ROM disk fails with a
// read-only result and no sectors transferred.
func SysCallDiskWrite(h *HBIOS) error {
	u := h.resolveUnit(h.CPU.States.BC.Lo)
	if !u.valid() {
		h.CPU.States.DE.Lo = 0
		h.setResult(resNoUnit)
		return nil
	}

	buffer := h.CPU.States.HL.U16()
	bank := h.CPU.States.DE.Hi
	count := int(h.CPU.States.DE.Lo)
	done := 0

	if u.md != nil {
		if u.md.ROM {
			h.CPU.States.DE.Lo = 0
			h.setResult(resReadOnly)
			return nil
		}
		for s := 0; s < count; s++ {
			if u.md.CurrentLBA >= u.md.TotalSectors() {
				break
			}
			dstBank, dstOff := u.md.SectorHome(u.md.CurrentLBA)
			for j := 0; j < disk.SectorSize; j++ {
				b := h.guestBufferRead(buffer+uint16(s*disk.SectorSize+j), bank)
				h.Memory.WriteBank(dstBank, dstOff+uint16(j), b)
			}
			u.md.CurrentLBA++
			done++
		}
	} else {
		var sector [disk.SectorSize]uint8
		for s := 0; s < count; s++ {
			for j := 0; j < disk.SectorSize; j++ {
				sector[j] = h.guestBufferRead(buffer+uint16(s*disk.SectorSize+j), bank)
			}
			offset := int64(u.hd.CurrentLBA) * disk.SectorSize
			if u.hd.WriteAt(offset, sector[:]) < disk.SectorSize {
				break
			}
			u.hd.CurrentLBA++
			done++
		}
		u.hd.Flush()
	}

	h.CPU.States.DE.Lo = uint8(done)
	h.setResult(resSuccess)
	return nil
}

// SysCallDiskFormat is not supported by the emulated devices.
func SysCallDiskFormat(h *HBIOS) error {
	h.setResult(resNotImpl)
	return nil
}

// SysCallDiskDevice reports the device class in D, the per-class
// index in E and the attribute byte in C.  Hard disks carry the
// high-capacity attribute, which lets the OS enumerate slices.
func SysCallDiskDevice(h *HBIOS) error {
	u := h.resolveUnit(h.CPU.States.BC.Lo)

	switch {
	case u.md != nil:
		h.CPU.States.DE.Hi = diskClassMD
		h.CPU.States.DE.Lo = uint8(u.mdIndex)
		h.CPU.States.BC.Lo = 0x00
	case u.hd != nil:
		h.CPU.States.DE.Hi = diskClassHDSK
		h.CPU.States.DE.Lo = uint8(u.hdIndex)
		h.CPU.States.BC.Lo = attrHighCapacity
	default:
		h.CPU.States.DE.Hi = diskClassNone
		h.CPU.States.DE.Lo = 0xFF
		h.setResult(resNoUnit)
		return nil
	}
	h.setResult(resSuccess)
	return nil
}

// SysCallDiskMedia reports the media identifier in E.
func SysCallDiskMedia(h *HBIOS) error {
	u := h.resolveUnit(h.CPU.States.BC.Lo)

	switch {
	case u.md != nil:
		if u.md.ROM {
			h.CPU.States.DE.Lo = mediaMDROM
		} else {
			h.CPU.States.DE.Lo = mediaMDRAM
		}
	case u.hd != nil:
		if u.hd.Probe().HD1K {
			h.CPU.States.DE.Lo = mediaHDNew
		} else {
			h.CPU.States.DE.Lo = mediaHD
		}
	default:
		h.CPU.States.DE.Lo = 0xFF
		h.setResult(resNoUnit)
		return nil
	}
	h.setResult(resSuccess)
	return nil
}

// SysCallDiskDefineMedia is not supported by the emulated devices.
func SysCallDiskDefineMedia(h *HBIOS) error {
	h.setResult(resNotImpl)
	return nil
}

// SysCallDiskCapacity reports the total sector count in DE:HL.
func SysCallDiskCapacity(h *HBIOS) error {
	u := h.resolveUnit(h.CPU.States.BC.Lo)

	var sectors uint32
	switch {
	case u.md != nil:
		sectors = u.md.TotalSectors()
	case u.hd != nil:
		sectors = uint32(u.hd.Size() / disk.SectorSize)
	default:
		h.CPU.States.DE.SetU16(0)
		h.CPU.States.HL.SetU16(0)
		h.setResult(resNoUnit)
		return nil
	}

	h.CPU.States.DE.SetU16(uint16(sectors >> 16))
	h.CPU.States.HL.SetU16(uint16(sectors & 0xFFFF))
	h.setResult(resSuccess)
	return nil
}

// SysCallDiskGeometry reports a nominal CHS geometry for LBA devices.
func SysCallDiskGeometry(h *HBIOS) error {
	h.CPU.States.BC.Lo = 63
	h.CPU.States.DE.Hi = 16
	h.CPU.States.DE.Lo = 255
	h.setResult(resSuccess)
	return nil
}
