// Package midi provides the host-side MIDI event queue the synthesizer bridge
// drains while rendering, and Standard MIDI File import into that queue.
package midi

import (
	"math"
)

// Status nibbles of channel voice messages, plus the sysex marker.
const (
	NoteOff         byte = 0x80
	NoteOn          byte = 0x90
	AfterTouch      byte = 0xA0
	ControlChange   byte = 0xB0
	ProgramChange   byte = 0xC0
	ChannelPressure byte = 0xD0
	PitchBend       byte = 0xE0
	SysEx           byte = 0xF0
)

// Controller numbers the bridge cares about.
const (
	CtrlBankSelectMSB = 0
	CtrlBankSelectLSB = 32
	CtrlAllNotesOff   = 123
)

// NoTime is the sentinel timestamp meaning "no event pending".
const NoTime uint64 = math.MaxUint64

// Event is one time-stamped MIDI message. Time is in clock ticks.
type Event struct {
	Time   uint64
	Status byte
	Param  [2]byte
	// Data carries the sysex payload without the leading 0xF0 and the
	// trailing 0xF7.
	Data []byte
}

// Type returns the message type nibble, or SysEx.
func (e Event) Type() byte {
	if e.Status == SysEx {
		return SysEx
	}
	return e.Status & 0xF0
}

// Channel returns the channel nibble of a channel voice message.
func (e Event) Channel() int {
	return int(e.Status & 0x0F)
}

// IsSysEx reports whether the event carries a system exclusive payload.
func (e Event) IsSysEx() bool {
	return e.Status == SysEx
}
