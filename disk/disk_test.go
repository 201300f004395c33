package disk

import (
	"io"
	"log/slog"
	"os"
	"testing"
)

// discard returns a logger suitable for tests.
func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestMemDiskGeometry checks the sector-to-bank arithmetic.
func TestMemDiskGeometry(t *testing.T) {

	md := MemDisk{Enabled: true, StartBank: 0x81, NumBanks: 2}

	if md.TotalSectors() != 128 {
		t.Fatalf("expected 128 sectors, got %d", md.TotalSectors())
	}

	bank, offset := md.SectorHome(0)
	if bank != 0x81 || offset != 0 {
		t.Fatalf("sector 0 wrong: bank=0x%02X offset=0x%04X", bank, offset)
	}

	bank, offset = md.SectorHome(63)
	if bank != 0x81 || offset != 63*512 {
		t.Fatalf("sector 63 wrong: bank=0x%02X offset=0x%04X", bank, offset)
	}

	bank, offset = md.SectorHome(64)
	if bank != 0x82 || offset != 0 {
		t.Fatalf("sector 64 wrong: bank=0x%02X offset=0x%04X", bank, offset)
	}
}

// TestValidateImageSize covers the accepted disk layouts.
func TestValidateImageSize(t *testing.T) {

	valid := []int64{
		8388608,              // single hd1k slice
		1048576 + 8388608,    // combo, one slice
		1048576 + 4*8388608,  // combo, four slices
		8519680,              // single hd512 slice
		3 * 8519680,          // hd512 multi-slice
	}
	for _, size := range valid {
		if err := ValidateImageSize(size); err != nil {
			t.Fatalf("size %d should be valid: %s", size, err)
		}
	}

	invalid := []int64{0, 1, 512, 1048576, 8388607, 8388609, 8519679}
	for _, size := range invalid {
		if err := ValidateImageSize(size); err == nil {
			t.Fatalf("size %d should be rejected", size)
		}
	}
}

// TestInMemoryDriveGrows ensures writes past the end extend the image,
// zero-filling any gap.
func TestInMemoryDriveGrows(t *testing.T) {

	s := NewStore(discard())
	if err := s.AttachImage(0, make([]uint8, 1024)); err != nil {
		t.Fatalf("attach failed: %s", err)
	}

	d := s.Drive(0)
	n := d.WriteAt(4096, []uint8{0xAA, 0xBB})
	if n != 2 {
		t.Fatalf("short write: %d", n)
	}
	if d.Size() != 4098 {
		t.Fatalf("size not extended: %d", d.Size())
	}

	buf := make([]uint8, 4)
	if d.ReadAt(4095, buf) != 3 {
		t.Fatalf("short read at tail")
	}
	if buf[0] != 0 || buf[1] != 0xAA || buf[2] != 0xBB {
		t.Fatalf("gap not zero-filled / data wrong: %v", buf)
	}
}

// TestProbeMBR covers hd1k detection via a RomWBW partition entry.
func TestProbeMBR(t *testing.T) {

	img := make([]uint8, 1048576+8388608)
	img[510] = 0x55
	img[511] = 0xAA
	entry := 0x1BE
	img[entry+4] = 0x2E
	// Partition starts at LBA 2048.
	img[entry+8] = 0x00
	img[entry+9] = 0x08

	s := NewStore(discard())
	s.AttachImage(0, img)

	d := s.Drive(0)
	info := d.Probe()
	if !info.HD1K {
		t.Fatalf("expected hd1k layout")
	}
	if info.BaseLBA != 2048 {
		t.Fatalf("wrong base LBA: %d", info.BaseLBA)
	}
	if info.SliceSize != SliceSectorsHD1K {
		t.Fatalf("wrong slice size: %d", info.SliceSize)
	}
	if d.SliceLBA(2) != 2048+2*16384 {
		t.Fatalf("wrong slice 2 LBA: %d", d.SliceLBA(2))
	}

	// Probing is cached: mutate the MBR and confirm nothing moves.
	img[entry+9] = 0x10
	if again := d.Probe(); again != info {
		t.Fatalf("probe result changed on second call")
	}
}

// TestProbeBareHD1K covers the 8 MiB image without an MBR.
func TestProbeBareHD1K(t *testing.T) {

	s := NewStore(discard())
	s.AttachImage(0, make([]uint8, 8388608))

	info := s.Drive(0).Probe()
	if !info.HD1K || info.BaseLBA != 0 || info.SliceSize != SliceSectorsHD1K {
		t.Fatalf("bare 8MiB image not detected as hd1k: %+v", info)
	}
	if s.Drive(0).SliceLBA(3) != 3*16384 {
		t.Fatalf("wrong slice 3 LBA")
	}
}

// TestProbeHD512 covers the fallback layout.
func TestProbeHD512(t *testing.T) {

	s := NewStore(discard())
	s.AttachImage(0, make([]uint8, 2*8519680))

	info := s.Drive(0).Probe()
	if info.HD1K || info.BaseLBA != 0 || info.SliceSize != SliceSectorsHD512 {
		t.Fatalf("hd512 image misdetected: %+v", info)
	}
}

// TestAttachFile exercises the file-backed drive, including the size
// validation and read-only fallback.
func TestAttachFile(t *testing.T) {

	file, err := os.CreateTemp("", "tst-*.img")
	if err != nil {
		t.Fatalf("failed to create temporary file")
	}
	defer os.Remove(file.Name())

	if err := file.Truncate(8388608); err != nil {
		t.Fatalf("truncate failed: %s", err)
	}
	file.Close()

	s := NewStore(discard())
	defer s.CloseAll()

	if err := s.Attach(0, file.Name(), false); err != nil {
		t.Fatalf("attach failed: %s", err)
	}
	if !s.IsOpen(0) {
		t.Fatalf("slot not open after attach")
	}

	d := s.Drive(0)
	if d.WriteAt(512, []uint8{1, 2, 3, 4}) != 4 {
		t.Fatalf("write failed")
	}
	d.Flush()

	buf := make([]uint8, 4)
	if d.ReadAt(512, buf) != 4 || buf[2] != 3 {
		t.Fatalf("read back failed: %v", buf)
	}

	// Reads past the end are short, not errors.
	if d.ReadAt(8388608, buf) != 0 {
		t.Fatalf("read past end should return 0")
	}

	// A bad size is rejected.
	bad, err := os.CreateTemp("", "tst-*.img")
	if err != nil {
		t.Fatalf("failed to create temporary file")
	}
	defer os.Remove(bad.Name())
	bad.Truncate(1000)
	bad.Close()

	if err := s.Attach(1, bad.Name(), false); err == nil {
		t.Fatalf("expected size validation error")
	}

	// A missing file fails without create, succeeds with it.
	missing := file.Name() + ".missing"
	defer os.Remove(missing)
	if err := s.Attach(2, missing, false); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if err := s.Attach(2, missing, true); err != nil {
		t.Fatalf("create attach failed: %s", err)
	}
}

// TestCounts checks the device counting helpers.
func TestCounts(t *testing.T) {

	s := NewStore(discard())
	s.MD[0] = MemDisk{Enabled: true, StartBank: 0x81, NumBanks: 4}
	s.AttachImage(3, make([]uint8, 8388608))

	if s.EnabledMemDisks() != 1 {
		t.Fatalf("wrong memory disk count")
	}
	if s.OpenCount() != 1 {
		t.Fatalf("wrong hard disk count")
	}

	s.Close(3)
	if s.OpenCount() != 0 {
		t.Fatalf("close did not release the slot")
	}
}
