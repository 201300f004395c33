// This file implements the DSKY (display/keypad) functions.
//
// There is no DSKY hardware here: every function reports exactly
// that, which is what the real firmware does on boards without the
// panel fitted.

package hbios

// DSKY function codes.
const (
	fnDSKYFirst = 0x30
	fnDSKYLast  = 0x3A
)

// registerDSKY populates the function table.
func (h *HBIOS) registerDSKY() {
	names := []string{
		"DSKYRESET", "DSKYSTAT", "DSKYGETKEY", "DSKYSHOWHEX",
		"DSKYSHOWSEG", "DSKYKEYLEDS", "DSKYSTATLED", "DSKYBEEP",
		"DSKYDEVICE", "DSKYMESSAGE", "DSKYEVENT",
	}
	for i := fnDSKYFirst; i <= fnDSKYLast; i++ {
		h.register(uint8(i), names[i-fnDSKYFirst], SysCallDSKYAbsent)
	}
}

// SysCallDSKYAbsent reports the missing hardware.
func SysCallDSKYAbsent(h *HBIOS) error {
	h.setResult(resNoHW)
	return nil
}
