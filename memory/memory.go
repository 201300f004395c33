// Package memory provides the banked memory within which the emulator
// executes the RomWBW firmware and its guests.
//
// The physical address space is 1 MiB: 512 KiB of ROM and 512 KiB of
// RAM, each divided into sixteen 32 KiB banks.  The CPU sees 64 KiB of
// it at a time: the lower 32 KiB window maps to whichever bank has
// been selected, the upper 32 KiB is always the common RAM bank.
package memory

import (
	"os"
)

const (
	// BankSize is the size of a single ROM or RAM bank, in bytes.
	BankSize = 32 * 1024

	// NumBanks is the number of ROM banks, and also the number of
	// RAM banks.
	NumBanks = 16

	// BankBoundary is the CPU address where the fixed common
	// window begins.
	BankBoundary = 0x8000

	// CommonBank is the bank identifier of the common RAM bank,
	// which is permanently mapped at the top of the CPU address
	// space.
	CommonBank = 0x8F

	// RAMBankFlag is set in a bank identifier to select RAM rather
	// than ROM.
	RAMBankFlag = 0x80
)

// Memory provides the 1 MiB banked memory, along with the 64 KiB view
// the CPU sees of it.
//
// It implements the Memory interface of the z80 package we use for
// the CPU emulation.
type Memory struct {

	// rom holds the sixteen ROM banks.
	rom [NumBanks * BankSize]uint8

	// ram holds the sixteen RAM banks.
	ram [NumBanks * BankSize]uint8

	// bank is the currently selected bank for the lower window.
	bank uint8

	// shadow records, one bit per address of the lower window,
	// whether a write has landed there while a ROM bank was
	// selected.  Reads from a shadowed address return the RAM
	// copy instead of the ROM.
	shadow [BankSize / 8]uint8
}

// New returns banked memory in its power-on state: ROM erased to 0xFF,
// RAM zeroed, ROM bank 0 selected.
func New() *Memory {
	m := &Memory{}
	for i := range m.rom {
		m.rom[i] = 0xFF
	}
	return m
}

// identProtected reports whether the given common-window address is
// part of the HBIOS ident block, which must survive guest writes.
func identProtected(addr uint16) bool {
	if addr >= 0xFE00 && addr <= 0xFE02 {
		return true
	}
	if addr >= 0xFF00 && addr <= 0xFF02 {
		return true
	}
	if addr >= 0xFFFC && addr <= 0xFFFD {
		return true
	}
	return false
}

// Get returns the byte at the given CPU address, honouring the current
// bank selection and the shadow-RAM rule.
func (m *Memory) Get(addr uint16) uint8 {
	if addr >= BankBoundary {
		return m.ram[(CommonBank&0x0F)*BankSize+int(addr-BankBoundary)]
	}

	if m.bank&RAMBankFlag != 0 {
		return m.ram[int(m.bank&0x0F)*BankSize+int(addr)]
	}

	// ROM bank selected: a shadowed address returns the RAM copy
	// beneath the ROM window.
	if m.shadowBit(addr) {
		return m.ram[addr]
	}
	return m.rom[int(m.bank&0x0F)*BankSize+int(addr)]
}

// Set stores a byte at the given CPU address.
//
// Writes to the ident block in the common window are dropped.  Writes
// beneath a selected ROM bank land in RAM bank 0 and set the shadow
// bit for the address.
func (m *Memory) Set(addr uint16, value uint8) {
	if addr >= BankBoundary {
		if identProtected(addr) {
			return
		}
		m.ram[(CommonBank&0x0F)*BankSize+int(addr-BankBoundary)] = value
		return
	}

	if m.bank&RAMBankFlag != 0 {
		m.ram[int(m.bank&0x0F)*BankSize+int(addr)] = value
		return
	}

	m.ram[addr] = value
	m.setShadowBit(addr)
}

// GetU16 returns the little-endian word at the given address.
func (m *Memory) GetU16(addr uint16) uint16 {
	l := m.Get(addr)
	h := m.Get(addr + 1)
	return (uint16(h) << 8) | uint16(l)
}

// SetU16 stores a little-endian word at the given address.
func (m *Memory) SetU16(addr uint16, value uint16) {
	m.Set(addr, uint8(value&0xFF))
	m.Set(addr+1, uint8(value>>8))
}

// SetRange copies bytes to consecutive CPU addresses.
func (m *Memory) SetRange(addr uint16, data ...uint8) {
	for i, d := range data {
		m.Set(addr+uint16(i), d)
	}
}

// GetRange returns the contents of the given CPU address range.
func (m *Memory) GetRange(addr uint16, size int) []uint8 {
	var ret []uint8
	for size > 0 {
		ret = append(ret, m.Get(addr))
		addr++
		size--
	}
	return ret
}

// SelectBank changes which bank is mapped at the lower window.
func (m *Memory) SelectBank(bank uint8) {
	m.bank = bank
}

// CurrentBank returns the bank mapped at the lower window.
func (m *Memory) CurrentBank() uint8 {
	return m.bank
}

// ReadBank reads a byte from a bank directly, bypassing the CPU view.
//
// Used for inter-bank copies and disk sector transfers.
func (m *Memory) ReadBank(bank uint8, offset uint16) uint8 {
	if int(offset) >= BankSize {
		return 0xFF
	}
	if bank&RAMBankFlag != 0 {
		return m.ram[int(bank&0x0F)*BankSize+int(offset)]
	}
	return m.rom[int(bank&0x0F)*BankSize+int(offset)]
}

// WriteBank writes a byte to a bank directly, bypassing the CPU view.
//
// Writes to ROM banks are ignored, as are writes to the ident block
// in the common bank.
func (m *Memory) WriteBank(bank uint8, offset uint16, value uint8) {
	if int(offset) >= BankSize {
		return
	}
	if bank&RAMBankFlag == 0 {
		return
	}
	if bank == CommonBank && identProtected(offset+BankBoundary) {
		return
	}
	m.ram[int(bank&0x0F)*BankSize+int(offset)] = value
}

// LoadROM copies an image into ROM, starting at bank 0.  At most
// 512 KiB is used; the remainder of the ROM stays erased (0xFF).
func (m *Memory) LoadROM(data []uint8) {
	n := len(data)
	if n > len(m.rom) {
		n = len(m.rom)
	}
	copy(m.rom[:n], data[:n])
}

// LoadROMFile loads a ROM image from the named file.
func (m *Memory) LoadROMFile(name string) error {
	data, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	m.LoadROM(data)
	return nil
}

// PatchROM alters a byte of the loaded ROM image.
//
// Used once at setup time, to adjust the configuration block the ROM
// carries before it is copied anywhere.
func (m *Memory) PatchROM(offset int, value uint8) {
	if offset < 0 || offset >= len(m.rom) {
		return
	}
	m.rom[offset] = value
}

// InstallIdent writes the HBIOS ident block into the common bank: the
// signature and version at 0xFE00 and 0xFF00, and the little-endian
// pointer to the latter at 0xFFFC.
//
// These addresses reject guest writes; installing the block is the
// one privileged exception.
func (m *Memory) InstallIdent(version uint8) {
	base := (CommonBank & 0x0F) * BankSize

	for _, at := range []uint16{0xFE00, 0xFF00} {
		off := base + int(at-BankBoundary)
		m.ram[off+0] = 'W'
		m.ram[off+1] = ^uint8('W')
		m.ram[off+2] = version
	}

	off := base + int(0xFFFC-BankBoundary)
	m.ram[off+0] = 0x00
	m.ram[off+1] = 0xFF
}

// ClearRAM zeroes the RAM banks and forgets all shadow bits, for a
// clean state when a new ROM is loaded.
func (m *Memory) ClearRAM() {
	for i := range m.ram {
		m.ram[i] = 0
	}
	for i := range m.shadow {
		m.shadow[i] = 0
	}
}

func (m *Memory) shadowBit(addr uint16) bool {
	return m.shadow[addr>>3]&(1<<(addr&7)) != 0
}

func (m *Memory) setShadowBit(addr uint16) {
	m.shadow[addr>>3] |= 1 << (addr & 7)
}
