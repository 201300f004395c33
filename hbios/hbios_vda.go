// This file implements the video display adapter (VDA) functions.
//
// We keep the cursor and attribute state; the configured display
// driver realises the effects, typically as ANSI sequences on the
// hosting terminal.

package hbios

import (
	"time"
)

// VDA function codes.
const (
	fnVDAINI = 0x40
	fnVDAQRY = 0x41
	fnVDARES = 0x42
	fnVDASCP = 0x45
	fnVDASAT = 0x46
	fnVDASCO = 0x47
	fnVDAWRC = 0x48
	fnVDAFIL = 0x49
	fnVDASCR = 0x4B
	fnVDAKST = 0x4C
	fnVDAKRD = 0x4E
	fnVDARDC = 0x4F
)

// registerVDA populates the function table.
func (h *HBIOS) registerVDA() {
	h.register(fnVDAINI, "VDAINI", SysCallVideoInit)
	h.register(fnVDAQRY, "VDAQRY", SysCallVideoQuery)
	h.register(fnVDARES, "VDARES", SysCallVideoInit)
	h.register(fnVDASCP, "VDASCP", SysCallVideoSetCursor)
	h.register(fnVDASAT, "VDASAT", SysCallVideoSetAttr)
	h.register(fnVDASCO, "VDASCO", SysCallVideoSetColour)
	h.register(fnVDAWRC, "VDAWRC", SysCallVideoWriteChar)
	h.register(fnVDAFIL, "VDAFIL", SysCallVideoFill)
	h.register(fnVDASCR, "VDASCR", SysCallVideoScroll)
	h.register(fnVDAKST, "VDAKST", SysCallVideoKeyStatus)
	h.register(fnVDAKRD, "VDAKRD", SysCallVideoKeyRead)
	h.register(fnVDARDC, "VDARDC", SysCallVideoReadChar)
}

// SysCallVideoInit clears the display and resets the cursor and
// attribute, for both the initialize and soft-reset calls.
func SysCallVideoInit(h *HBIOS) error {
	h.vdaRow = 0
	h.vdaCol = 0
	h.vdaAttr = 0x07
	h.display.Clear()
	h.setResult(resSuccess)
	return nil
}

// SysCallVideoQuery reports the display size: columns in D, rows in
// E.
func SysCallVideoQuery(h *HBIOS) error {
	h.CPU.States.DE.Hi = uint8(h.vdaCols)
	h.CPU.States.DE.Lo = uint8(h.vdaRows)
	h.setResult(resSuccess)
	return nil
}

// SysCallVideoSetCursor moves the cursor: row in D, column in E.
func SysCallVideoSetCursor(h *HBIOS) error {
	h.vdaRow = int(h.CPU.States.DE.Hi)
	h.vdaCol = int(h.CPU.States.DE.Lo)
	h.display.SetCursor(h.vdaRow, h.vdaCol)
	h.setResult(resSuccess)
	return nil
}

// SysCallVideoSetAttr applies the attribute byte in E.
func SysCallVideoSetAttr(h *HBIOS) error {
	h.vdaAttr = h.CPU.States.DE.Lo
	h.display.SetAttr(h.vdaAttr)
	h.setResult(resSuccess)
	return nil
}

// SysCallVideoSetColour combines the foreground in D and background
// in E into an attribute byte.
func SysCallVideoSetColour(h *HBIOS) error {
	fg := h.CPU.States.DE.Hi
	bg := h.CPU.States.DE.Lo
	h.vdaAttr = (bg << 4) | (fg & 0x0F)
	h.display.SetAttr(h.vdaAttr)
	h.setResult(resSuccess)
	return nil
}

// advanceCursor moves the cursor one cell, wrapping at the right
// margin and scrolling at the bottom.
func (h *HBIOS) advanceCursor() {
	h.vdaCol++
	if h.vdaCol >= h.vdaCols {
		h.vdaCol = 0
		h.vdaRow++
		if h.vdaRow >= h.vdaRows {
			h.vdaRow = h.vdaRows - 1
			h.display.ScrollUp(1)
		}
	}
}

// SysCallVideoWriteChar draws the character in E at the cursor and
// advances it.
func SysCallVideoWriteChar(h *HBIOS) error {
	h.display.WriteChar(h.CPU.States.DE.Lo)
	h.advanceCursor()
	h.display.SetCursor(h.vdaRow, h.vdaCol)
	h.setResult(resSuccess)
	return nil
}

// SysCallVideoFill repeats the character in E, HL times, with the
// same wrap-and-scroll behaviour as single writes.
func SysCallVideoFill(h *HBIOS) error {
	c := h.CPU.States.DE.Lo
	count := int(h.CPU.States.HL.U16())

	for i := 0; i < count; i++ {
		h.display.WriteChar(c)
		h.advanceCursor()
	}
	h.display.SetCursor(h.vdaRow, h.vdaCol)
	h.setResult(resSuccess)
	return nil
}

// SysCallVideoScroll scrolls the viewport up by E lines.
func SysCallVideoScroll(h *HBIOS) error {
	h.display.ScrollUp(int(h.CPU.States.DE.Lo))
	h.setResult(resSuccess)
	return nil
}

// SysCallVideoKeyStatus reports 0xFF in E when a key is pending.
func SysCallVideoKeyStatus(h *HBIOS) error {
	if h.input.HasInput() {
		h.CPU.States.DE.Lo = 0xFF
	} else {
		h.CPU.States.DE.Lo = 0x00
	}
	h.setResult(resSuccess)
	return nil
}

// SysCallVideoKeyRead reads a key into E, with the same blocking and
// waiting semantics as the console read.
func SysCallVideoKeyRead(h *HBIOS) error {

	if !h.input.HasInput() {
		if h.blocking == Blocking {
			for !h.input.HasInput() {
				time.Sleep(time.Millisecond)
			}
		} else {
			h.waiting = true
			if !h.skipRet {
				h.noRet = true
				return nil
			}
			h.CPU.States.DE.Lo = 0x00
			h.setResult(resSuccess)
			return nil
		}
	}

	c, err := h.readConsoleChar()
	if err != nil {
		return err
	}

	h.CPU.States.DE.Lo = c
	h.waiting = false
	h.setResult(resSuccess)
	return nil
}

// SysCallVideoReadChar answers the character-under-cursor query with
// a space; cell contents are not tracked.
func SysCallVideoReadChar(h *HBIOS) error {
	h.CPU.States.DE.Lo = ' '
	h.setResult(resSuccess)
	return nil
}
