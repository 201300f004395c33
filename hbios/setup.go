// Post-ROM-load system setup: the ident block, the configuration
// block copy, the memory disks, and the device tables the boot loader
// reads.

package hbios

import (
	"fmt"
	"log/slog"

	"github.com/skx/romulator/disk"
	"github.com/skx/romulator/memory"
)

// The HCB (HBIOS Configuration Block) occupies 0x0100-0x01FF of ROM
// bank 0, and is mirrored into each RAM bank as the bank is first
// used.  Offsets of the fields we read and write:
const (
	hcbBase = 0x0100

	hcbDevCount  = hcbBase + 0x0C // count of logical drive letters
	hcbAPIType   = hcbBase + 0x12 // firmware type: 0x00 = HBIOS
	hcbDriveMap  = hcbBase + 0x20 // 16 bytes: (slice<<4)|unit per letter
	hcbDiskTable = hcbBase + 0x60 // 16 entries x 4 bytes
	hcbRAMDStart = hcbBase + 0xDC
	hcbRAMDBanks = hcbBase + 0xDD
	hcbROMDStart = hcbBase + 0xDE
	hcbROMDBanks = hcbBase + 0xDF
	hcbAppBank   = hcbBase + 0xE0
	hcbAppBanks  = hcbBase + 0xE1
)

// Device classes used in the disk unit table.
const (
	diskClassMD   = 0x00
	diskClassHDSK = 0x09
	diskClassNone = 0xFF
)

// attrHighCapacity marks a device whose slices can be enumerated.
const attrHighCapacity = 0x20

// slicesPerDrive is how many slices of each hard disk receive drive
// letters, matching the standard RomWBW build.
const slicesPerDrive = 4

// identVersion is the combined firmware version byte carried in the
// ident block: (major << 4) | minor.
const identVersion = 0x35

// setupSystem runs after a ROM image has been loaded: it brands the
// ROM as HBIOS, copies the vectors and configuration block into the
// firmware's working RAM bank, installs the ident block, and sizes
// the memory disks from the configuration.
func (h *HBIOS) setupSystem() {

	// Patch the type field before anything copies the HCB, so
	// every copy identifies as HBIOS rather than UNA.
	h.Memory.PatchROM(hcbAPIType, 0x00)

	// Copy the RST vectors and HCB into the firmware's working
	// bank.
	for addr := uint16(0); addr < 0x0200; addr++ {
		h.Memory.WriteBank(0x80, addr, h.Memory.ReadBank(0x00, addr))
	}
	h.ramInit |= 1 << 0

	h.Memory.InstallIdent(identVersion)

	h.initMemoryDisks()
	h.populateDiskTables()
}

// initMemoryDisks sizes the RAM and ROM disks from the configuration
// block.
func (h *HBIOS) initMemoryDisks() {

	ramdStart := h.Memory.ReadBank(0x00, hcbRAMDStart)
	ramdBanks := h.Memory.ReadBank(0x00, hcbRAMDBanks)
	romdStart := h.Memory.ReadBank(0x00, hcbROMDStart)
	romdBanks := h.Memory.ReadBank(0x00, hcbROMDBanks)

	if ramdBanks > 0 {
		h.Disks.MD[0] = disk.MemDisk{
			Enabled:   true,
			StartBank: ramdStart,
			NumBanks:  ramdBanks,
		}
		h.Logger.Debug("RAM disk configured",
			slog.String("firstBank", fmt.Sprintf("0x%02X", ramdStart)),
			slog.Int("banks", int(ramdBanks)),
			slog.Int("sectors", int(h.Disks.MD[0].TotalSectors())))
	}

	if romdBanks > 0 {
		h.Disks.MD[1] = disk.MemDisk{
			Enabled:   true,
			StartBank: romdStart,
			NumBanks:  romdBanks,
			ROM:       true,
		}
		h.Logger.Debug("ROM disk configured",
			slog.String("firstBank", fmt.Sprintf("0x%02X", romdStart)),
			slog.Int("banks", int(romdBanks)),
			slog.Int("sectors", int(h.Disks.MD[1].TotalSectors())))
	}
}

// hcbWrite stores a configuration-block byte in both the ROM image
// and the firmware's working RAM bank, so every later copy of the
// block agrees.
func (h *HBIOS) hcbWrite(addr uint16, value uint8) {
	h.Memory.PatchROM(int(addr), value)
	h.Memory.WriteBank(0x80, addr, value)
}

// populateDiskTables fills in the disk unit table, the drive map and
// the device count, so that the boot loader and the guest OS can
// discover the attached storage.
//
// Call it after the disks have been attached; LoadROM runs it for the
// memory disks, the CLI runs it again once images are attached.
func (h *HBIOS) populateDiskTables() {

	// Mark every unit-table entry empty.
	for i := 0; i < 16; i++ {
		for b := uint16(0); b < 4; b++ {
			h.hcbWrite(hcbDiskTable+uint16(i)*4+b, diskClassNone)
		}
	}

	entry := 0
	for i := range h.Disks.MD {
		if !h.Disks.MD[i].Enabled || entry >= 16 {
			continue
		}
		base := hcbDiskTable + uint16(entry)*4
		h.hcbWrite(base+0, diskClassMD)
		h.hcbWrite(base+1, uint8(i))
		h.hcbWrite(base+2, 0x00)
		h.hcbWrite(base+3, 0x00)
		entry++
	}

	for i := 0; i < disk.MaxDrives && entry < 16; i++ {
		if !h.Disks.IsOpen(i) {
			continue
		}
		base := hcbDiskTable + uint16(entry)*4
		h.hcbWrite(base+0, diskClassHDSK)
		h.hcbWrite(base+1, uint8(i))
		h.hcbWrite(base+2, 0x00)
		h.hcbWrite(base+3, 0x00)
		entry++
	}

	// Drive letters: memory disks first, then a run of slices for
	// each open hard disk.
	for i := 0; i < 16; i++ {
		h.hcbWrite(hcbDriveMap+uint16(i), 0xFF)
	}

	letter := 0
	for i := range h.Disks.MD {
		if !h.Disks.MD[i].Enabled || letter >= 16 {
			continue
		}
		h.hcbWrite(hcbDriveMap+uint16(letter), uint8(i))
		letter++
	}

	for i := 0; i < disk.MaxDrives && letter < 16; i++ {
		if !h.Disks.IsOpen(i) {
			continue
		}
		unit := uint8(i) + hdUnitBase
		for slice := 0; slice < slicesPerDrive && letter < 16; slice++ {
			h.hcbWrite(hcbDriveMap+uint16(letter),
				uint8(slice)<<4|(unit&0x0F))
			letter++
		}
	}

	h.hcbWrite(hcbDevCount, uint8(letter))

	h.Logger.Debug("disk tables populated",
		slog.Int("units", entry),
		slog.Int("driveLetters", letter))
}

// RefreshDiskTables re-populates the device tables; the CLI calls it
// after attaching disk images.
func (h *HBIOS) RefreshDiskTables() {
	h.populateDiskTables()
}

// initRAMBank prepares a RAM bank for its first use by copying ROM
// bank 0's vectors and configuration block into it, keeping the RST
// vectors and HCB readable from every bank.
func (h *HBIOS) initRAMBank(bank uint8) {
	if bank&memory.RAMBankFlag == 0 || bank&0x70 != 0 {
		return
	}

	bit := uint16(1) << (bank & 0x0F)
	if h.ramInit&bit != 0 {
		return
	}
	h.ramInit |= bit

	h.Logger.Debug("initializing RAM bank",
		slog.String("bank", fmt.Sprintf("0x%02X", bank)))

	for addr := uint16(0); addr < 0x0200; addr++ {
		h.Memory.WriteBank(bank, addr, h.Memory.ReadBank(0x00, addr))
	}
	h.Memory.WriteBank(bank, hcbAPIType, 0x00)
}
