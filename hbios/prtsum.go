// The device reports written to the guest console: the loader's
// device summary, and the DEVLIST inventory.

package hbios

import (
	"fmt"

	"github.com/skx/romulator/disk"
)

// prtsum writes the disk device summary the loader shows for its 'd'
// command.
func (h *HBIOS) prtsum() {

	h.output.WriteString("\r\nDisk Device Summary\r\n\r\n")
	h.output.WriteString(" Unit Dev       Type    Capacity\r\n")
	h.output.WriteString(" ---- --------- ------- --------\r\n")

	unit := 0
	for i := range h.Disks.MD {
		md := &h.Disks.MD[i]
		if !md.Enabled {
			continue
		}
		kind := "RAM"
		if md.ROM {
			kind = "ROM"
		}
		sizeKB := int(md.NumBanks) * 32
		h.output.WriteString(fmt.Sprintf("   %2d MD%d       %-7s %4dKB\r\n",
			unit, i, kind, sizeKB))
		unit++
	}

	for i := 0; i < disk.MaxDrives; i++ {
		if !h.Disks.IsOpen(i) {
			continue
		}
		sizeMB := h.Disks.Drive(i).Size() / (1024 * 1024)
		h.output.WriteString(fmt.Sprintf("   %2d HDSK%d     Hard    %4dMB\r\n",
			unit, i, sizeMB))
		unit++
	}

	h.output.WriteString("\r\n")
}

// devList writes the device inventory behind the DEVLIST query: the
// attached hard disks, and any ROM applications on offer.
func (h *HBIOS) devList() {

	for i := 0; i < disk.MaxDrives; i++ {
		if !h.Disks.IsOpen(i) {
			continue
		}
		h.output.WriteString(fmt.Sprintf(" %2d    HD%d:     Hard Disk\r\n", i, i))
	}

	apps := h.Apps.All()
	if len(apps) > 0 {
		h.output.WriteString("\r\nROM Applications:\r\n")
		for _, app := range apps {
			h.output.WriteString(fmt.Sprintf("  %c    %s\r\n", app.Key, app.Name))
		}
	}
}
