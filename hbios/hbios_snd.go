// This file implements the sound (SND) functions.
//
// The firmware models up to four channels with a volume and period
// each, but only channel 0 is ever sounded, so that is what we play.

package hbios

import (
	"math"
	"time"
)

// SND function codes.
const (
	fnSNDRESET = 0x50
	fnSNDVOL   = 0x51
	fnSNDPRD   = 0x52
	fnSNDNOTE  = 0x53
	fnSNDPLAY  = 0x54
	fnSNDQUERY = 0x55
	fnSNDDUR   = 0x56
	fnSNDBEEP  = 0x58
)

// registerSND populates the function table.
func (h *HBIOS) registerSND() {
	h.register(fnSNDRESET, "SNDRESET", SysCallSoundReset)
	h.register(fnSNDVOL, "SNDVOL", SysCallSoundVolume)
	h.register(fnSNDPRD, "SNDPRD", SysCallSoundPeriod)
	h.register(fnSNDNOTE, "SNDNOTE", SysCallSoundNote)
	h.register(fnSNDPLAY, "SNDPLAY", SysCallSoundPlay)
	h.register(fnSNDQUERY, "SNDQUERY", SysCallSoundQuery)
	h.register(fnSNDDUR, "SNDDUR", SysCallSoundDuration)
	h.register(fnSNDBEEP, "SNDBEEP", SysCallSoundBeep)
}

// SysCallSoundReset silences every channel and restores the default
// duration.
func SysCallSoundReset(h *HBIOS) error {
	for i := 0; i < 4; i++ {
		h.sndVolume[i] = 0
		h.sndPeriod[i] = 0
	}
	h.sndDuration = 100
	h.setResult(resSuccess)
	return nil
}

// SysCallSoundVolume sets the volume of the channel in C from E.
func SysCallSoundVolume(h *HBIOS) error {
	if ch := h.CPU.States.BC.Lo; ch < 4 {
		h.sndVolume[ch] = h.CPU.States.DE.Lo
	}
	h.setResult(resSuccess)
	return nil
}

// SysCallSoundPeriod sets the period of the channel in C from DE.
func SysCallSoundPeriod(h *HBIOS) error {
	if ch := h.CPU.States.BC.Lo; ch < 4 {
		h.sndPeriod[ch] = h.CPU.States.DE.U16()
	}
	h.setResult(resSuccess)
	return nil
}

// SysCallSoundNote programs the channel in C from the MIDI note
// number in E, converting through equal temperament to a period in
// microseconds.
func SysCallSoundNote(h *HBIOS) error {
	ch := h.CPU.States.BC.Lo
	note := h.CPU.States.DE.Lo

	if ch < 4 && note > 0 {
		freq := 440.0 * math.Pow(2.0, (float64(note)-69)/12.0)
		h.sndPeriod[ch] = uint16(1000000.0 / freq)
	}
	h.setResult(resSuccess)
	return nil
}

// SysCallSoundDuration sets the tone duration, in milliseconds, from
// DE.
func SysCallSoundDuration(h *HBIOS) error {
	h.sndDuration = h.CPU.States.DE.U16()
	h.setResult(resSuccess)
	return nil
}

// SysCallSoundPlay sounds channel 0, when it has both a period and a
// volume.
func SysCallSoundPlay(h *HBIOS) error {
	if h.sndPeriod[0] > 0 && h.sndVolume[0] > 0 {
		err := h.player.Beep(h.sndPeriod[0], h.sndVolume[0],
			time.Duration(h.sndDuration)*time.Millisecond)
		if err != nil {
			return err
		}
	}
	h.setResult(resSuccess)
	return nil
}

// SysCallSoundBeep sounds a short fixed beep.
func SysCallSoundBeep(h *HBIOS) error {
	err := h.player.Beep(1000, 255, 100*time.Millisecond)
	if err != nil {
		return err
	}
	h.setResult(resSuccess)
	return nil
}

// SysCallSoundQuery reports a single sound channel.
func SysCallSoundQuery(h *HBIOS) error {
	h.CPU.States.DE.SetU16(0x0001)
	h.setResult(resSuccess)
	return nil
}
