// Package disk implements the storage the HBIOS dispatcher exposes to
// the guest: two memory disks whose sectors live in banked memory, and
// up to sixteen hard-disk slots backed either by an in-memory buffer
// or by an image file on the host.
//
// The three kinds of storage genuinely differ in their transfer
// mechanics, so they are kept as distinct cases rather than being
// forced through a common file-like abstraction.
package disk

import (
	"fmt"
	"log/slog"
	"os"
)

const (
	// SectorSize is the disk block size, in bytes.
	SectorSize = 512

	// SectorsPerBank is how many sectors fit in one 32 KiB bank.
	SectorsPerBank = 64

	// MaxDrives is the number of hard-disk slots.
	MaxDrives = 16

	// SliceSectorsHD1K is the slice size of the hd1k disk layout.
	SliceSectorsHD1K = 16384

	// SliceSectorsHD512 is the slice size of the hd512 disk layout.
	SliceSectorsHD512 = 16640

	// hd1kSliceBytes is the size of a single hd1k slice.
	hd1kSliceBytes = 8388608

	// hd512SliceBytes is the size of a single hd512 slice.
	hd512SliceBytes = 8519680

	// comboPrefixBytes is the MBR/prefix size of a combo hd1k image.
	comboPrefixBytes = 1048576

	// wbwPartitionType is the MBR partition type used by the hd1k
	// disk layout.
	wbwPartitionType = 0x2E
)

// MemDisk describes one of the two bank-resident memory disks: MD0 is
// the RAM disk, MD1 the ROM disk.
type MemDisk struct {

	// Enabled is true when the ROM's configuration block assigned
	// banks to this disk.
	Enabled bool

	// StartBank is the first bank belonging to the disk.
	StartBank uint8

	// NumBanks is the number of banks the disk spans.
	NumBanks uint8

	// ROM marks the disk read-only.
	ROM bool

	// CurrentLBA is the seek position, in sectors.
	CurrentLBA uint32
}

// TotalSectors returns the capacity of the memory disk, in sectors.
func (m *MemDisk) TotalSectors() uint32 {
	return uint32(m.NumBanks) * SectorsPerBank
}

// SectorHome returns the bank and in-bank offset holding the given
// sector.
func (m *MemDisk) SectorHome(lba uint32) (uint8, uint16) {
	bank := m.StartBank + uint8(lba/SectorsPerBank)
	offset := uint16(lba%SectorsPerBank) * SectorSize
	return bank, offset
}

// driveKind distinguishes the storage behind a hard-disk slot.
type driveKind int

const (
	driveClosed driveKind = iota
	driveMemory
	driveFile
)

// Drive is a single hard-disk slot.
type Drive struct {
	kind driveKind

	// path is the host file behind a file-backed drive.
	path string

	// data holds the image of an in-memory drive.  It may grow
	// when the guest writes past the current end.
	data []uint8

	// file is the handle of a file-backed drive.
	file *os.File

	// size is the image size in bytes.  For file-backed drives it
	// is cached at open time and advanced by extending writes.
	size int64

	// CurrentLBA is the seek position, in sectors.
	CurrentLBA uint32

	// Lazily probed slice information, filled by Probe.
	probed    bool
	baseLBA   uint32
	sliceSize uint32
	hd1k      bool
}

// Open reports whether the slot holds a disk.
func (d *Drive) Open() bool {
	return d.kind != driveClosed
}

// Path returns the host path of a file-backed drive, or "".
func (d *Drive) Path() string {
	return d.path
}

// Size returns the image size in bytes.
func (d *Drive) Size() int64 {
	return d.size
}

// ReadAt copies up to len(buf) bytes from the given byte offset and
// returns the number of bytes read.  Reading past the end of the image
// yields a short (possibly zero) count, not an error.
func (d *Drive) ReadAt(offset int64, buf []uint8) int {
	switch d.kind {
	case driveMemory:
		if offset >= int64(len(d.data)) {
			return 0
		}
		return copy(buf, d.data[offset:])
	case driveFile:
		if offset >= d.size {
			return 0
		}
		want := int64(len(buf))
		if offset+want > d.size {
			want = d.size - offset
		}
		n, _ := d.file.ReadAt(buf[:want], offset)
		return n
	}
	return 0
}

// WriteAt copies buf to the given byte offset, extending the image if
// the write lands past the current end, and returns the number of
// bytes written.
func (d *Drive) WriteAt(offset int64, buf []uint8) int {
	switch d.kind {
	case driveMemory:
		if end := offset + int64(len(buf)); end > int64(len(d.data)) {
			grown := make([]uint8, end)
			copy(grown, d.data)
			d.data = grown
			d.size = end
		}
		return copy(d.data[offset:], buf)
	case driveFile:
		n, err := d.file.WriteAt(buf, offset)
		if err != nil {
			return n
		}
		if end := offset + int64(n); end > d.size {
			d.size = end
		}
		return n
	}
	return 0
}

// Flush pushes pending writes to stable storage.
func (d *Drive) Flush() {
	if d.kind == driveFile {
		d.file.Sync()
	}
}

// SliceInfo is the result of probing a hard disk's partition layout.
type SliceInfo struct {

	// BaseLBA is the first sector of slice 0.
	BaseLBA uint32

	// SliceSize is the size of each slice, in sectors.
	SliceSize uint32

	// HD1K is true for the hd1k layout, false for hd512.
	HD1K bool
}

// Probe determines the slice layout of the drive.  The first call
// reads the boot sector; later calls return the cached result.
//
// Layout detection, in order: an MBR whose partition table carries a
// RomWBW partition gives an hd1k disk based at the partition start; an
// image of exactly 8 MiB is a single hd1k slice; anything else is
// treated as hd512.
func (d *Drive) Probe() SliceInfo {
	if d.probed {
		return SliceInfo{BaseLBA: d.baseLBA, SliceSize: d.sliceSize, HD1K: d.hd1k}
	}
	d.probed = true
	d.baseLBA = 0
	d.sliceSize = SliceSectorsHD512
	d.hd1k = false

	var mbr [SectorSize]uint8
	if d.ReadAt(0, mbr[:]) == SectorSize && mbr[510] == 0x55 && mbr[511] == 0xAA {
		for p := 0; p < 4; p++ {
			entry := 0x1BE + p*16
			if mbr[entry+4] != wbwPartitionType {
				continue
			}
			d.baseLBA = uint32(mbr[entry+8]) |
				uint32(mbr[entry+9])<<8 |
				uint32(mbr[entry+10])<<16 |
				uint32(mbr[entry+11])<<24
			d.sliceSize = SliceSectorsHD1K
			d.hd1k = true
			return SliceInfo{BaseLBA: d.baseLBA, SliceSize: d.sliceSize, HD1K: d.hd1k}
		}
	}

	if d.size == hd1kSliceBytes {
		d.sliceSize = SliceSectorsHD1K
		d.hd1k = true
	}
	return SliceInfo{BaseLBA: d.baseLBA, SliceSize: d.sliceSize, HD1K: d.hd1k}
}

// SliceLBA returns the first sector of the given slice, probing the
// layout if required.
func (d *Drive) SliceLBA(slice uint8) uint32 {
	info := d.Probe()
	return info.BaseLBA + uint32(slice)*info.SliceSize
}

// close releases the storage behind the slot.
func (d *Drive) close() {
	if d.kind == driveFile {
		d.file.Sync()
		d.file.Close()
	}
	*d = Drive{}
}

// Store owns the memory disks and the hard-disk slots.
type Store struct {

	// MD holds the two memory disks: MD0 (RAM) and MD1 (ROM).
	MD [2]MemDisk

	drives [MaxDrives]Drive

	// Logger is used for diagnostics.
	Logger *slog.Logger
}

// NewStore returns an empty disk store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{Logger: logger}
}

// ValidateImageSize checks a hard-disk image size against the layouts
// we can boot: a single hd1k slice, a combo image (1 MiB prefix plus
// whole hd1k slices), or one or more hd512 slices.
func ValidateImageSize(size int64) error {
	if size == hd1kSliceBytes {
		return nil
	}
	if size > comboPrefixBytes && (size-comboPrefixBytes)%hd1kSliceBytes == 0 {
		return nil
	}
	if size > 0 && size%hd512SliceBytes == 0 {
		return nil
	}
	return fmt.Errorf("unsupported disk image size %d bytes", size)
}

// Attach opens the named image file in the given hard-disk slot.
//
// The file is opened read-write where possible, falling back to
// read-only.  When create is true a missing file is created empty
// instead.  The image size is validated against the supported layouts.
func (s *Store) Attach(unit int, path string, create bool) error {
	if unit < 0 || unit >= MaxDrives {
		return fmt.Errorf("disk unit %d out of range", unit)
	}
	s.Close(unit)

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		file, err = os.Open(path)
	}
	if err != nil && create {
		file, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	}
	if err != nil {
		return fmt.Errorf("cannot open disk image %s: %s", path, err)
	}

	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("cannot stat disk image %s: %s", path, err)
	}

	if !create || fi.Size() != 0 {
		if err := ValidateImageSize(fi.Size()); err != nil {
			file.Close()
			return fmt.Errorf("%s: %s", path, err)
		}
	}

	s.drives[unit] = Drive{
		kind: driveFile,
		path: path,
		file: file,
		size: fi.Size(),
	}

	s.Logger.Debug("attached disk",
		slog.Int("unit", unit),
		slog.String("path", path),
		slog.Int64("size", fi.Size()))
	return nil
}

// AttachImage places an in-memory image in the given slot.  Any size
// is accepted; this is how tests and embedded hosts attach disks.
func (s *Store) AttachImage(unit int, data []uint8) error {
	if unit < 0 || unit >= MaxDrives {
		return fmt.Errorf("disk unit %d out of range", unit)
	}
	s.Close(unit)
	s.drives[unit] = Drive{
		kind: driveMemory,
		data: data,
		size: int64(len(data)),
	}
	return nil
}

// Drive returns the hard-disk slot with the given index, or nil when
// the index is out of range.
func (s *Store) Drive(unit int) *Drive {
	if unit < 0 || unit >= MaxDrives {
		return nil
	}
	return &s.drives[unit]
}

// IsOpen reports whether the given slot holds a disk.
func (s *Store) IsOpen(unit int) bool {
	return unit >= 0 && unit < MaxDrives && s.drives[unit].Open()
}

// Close releases the given slot, flushing file-backed drives first.
func (s *Store) Close(unit int) {
	if unit < 0 || unit >= MaxDrives {
		return
	}
	s.drives[unit].close()
}

// CloseAll releases every slot.
func (s *Store) CloseAll() {
	for i := range s.drives {
		s.drives[i].close()
	}
}

// OpenCount returns the number of open hard disks.
func (s *Store) OpenCount() int {
	n := 0
	for i := range s.drives {
		if s.drives[i].Open() {
			n++
		}
	}
	return n
}

// EnabledMemDisks returns the number of enabled memory disks.
func (s *Store) EnabledMemDisks() int {
	n := 0
	for i := range s.MD {
		if s.MD[i].Enabled {
			n++
		}
	}
	return n
}
