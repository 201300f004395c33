package video

import (
	"fmt"
	"io"
	"os"
)

// ansiColours maps the low three bits of a CGA colour to the matching
// ANSI colour index.  Bit 3 (intensity) selects the bright variant.
var ansiColours = [8]int{0, 4, 2, 6, 1, 5, 3, 7}

// AnsiDisplay renders VDA operations onto the hosting terminal using
// escape sequences.
type AnsiDisplay struct {

	// writer is where we send our output.
	writer io.Writer
}

// GetName returns the name of this driver.
func (ad *AnsiDisplay) GetName() string {
	return "ansi"
}

// Clear erases the display and homes the cursor.
func (ad *AnsiDisplay) Clear() {
	fmt.Fprintf(ad.writer, "\x1b[2J\x1b[H")
}

// SetCursor moves the cursor; ANSI rows and columns are 1-based.
func (ad *AnsiDisplay) SetCursor(row, col int) {
	fmt.Fprintf(ad.writer, "\x1b[%d;%dH", row+1, col+1)
}

// SetAttr translates a PC attribute byte into SGR colours.
func (ad *AnsiDisplay) SetAttr(attr uint8) {
	fg := ansiColours[attr&0x07]
	bg := ansiColours[(attr>>4)&0x07]

	if attr&0x08 != 0 {
		fg += 90
	} else {
		fg += 30
	}
	fmt.Fprintf(ad.writer, "\x1b[%d;%dm", fg, bg+40)
}

// WriteChar draws a character at the cursor.
func (ad *AnsiDisplay) WriteChar(c uint8) {
	fmt.Fprintf(ad.writer, "%c", c)
}

// ScrollUp scrolls the viewport up.
func (ad *AnsiDisplay) ScrollUp(lines int) {
	fmt.Fprintf(ad.writer, "\x1b[%dS", lines)
}

// SetWriter will update the writer.
func (ad *AnsiDisplay) SetWriter(w io.Writer) {
	ad.writer = w
}

// init registers our driver, by name.
func init() {
	Register("ansi", func() Display {
		return &AnsiDisplay{
			writer: os.Stdout,
		}
	})
}
