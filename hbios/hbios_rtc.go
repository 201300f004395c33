// This file implements the real-time clock (RTC) functions.
//
// The host wall clock is authoritative: reads convert it to the
// firmware's packed-BCD layout, writes are acknowledged and dropped.

package hbios

import (
	"time"
)

// RTC function codes.
const (
	fnRTCGETTIM = 0x20
	fnRTCSETTIM = 0x21
)

// registerRTC populates the function table.
func (h *HBIOS) registerRTC() {
	h.register(fnRTCGETTIM, "RTCGETTIM", SysCallTimeGet)
	h.register(fnRTCSETTIM, "RTCSETTIM", SysCallTimeSet)
}

// toBCD packs a value 0-99 into BCD.
func toBCD(v int) uint8 {
	return uint8(((v / 10) << 4) | (v % 10))
}

// fromBCD unpacks a BCD byte.
func fromBCD(v uint8) int {
	return int(v>>4)*10 + int(v&0x0F)
}

// SysCallTimeGet stores the wall time, as six packed-BCD bytes
// (YY MM DD HH MM SS), at the guest buffer pointed to by HL.
func SysCallTimeGet(h *HBIOS) error {
	buffer := h.CPU.States.HL.U16()
	now := time.Now()

	h.Memory.Set(buffer+0, toBCD(now.Year()%100))
	h.Memory.Set(buffer+1, toBCD(int(now.Month())))
	h.Memory.Set(buffer+2, toBCD(now.Day()))
	h.Memory.Set(buffer+3, toBCD(now.Hour()))
	h.Memory.Set(buffer+4, toBCD(now.Minute()))
	h.Memory.Set(buffer+5, toBCD(now.Second()))

	h.setResult(resSuccess)
	return nil
}

// SysCallTimeSet acknowledges a time write without applying it; the
// host clock stays authoritative.
func SysCallTimeSet(h *HBIOS) error {
	h.setResult(resSuccess)
	return nil
}
