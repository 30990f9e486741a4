package synth

import (
	"github.com/zurustar/sfsynth/pkg/engine"
	"github.com/zurustar/sfsynth/pkg/midi"
)

// GM2 system on/off sysex bodies, broadcast device id.
const (
	gm2SystemOn  = "\x7E\x7F\x09\x03"
	gm2SystemOff = "\x7E\x7F\x09\x02"
)

// GM2 bank select MSB values.
const (
	gm2DrumBank    = 120
	gm2MelodicBank = 121
)

// Process renders frames of audio into left and right, delivering queued
// events at the frame they fall on. Nothing is written before the first
// SetState; paused and stopped synthesizers render without consuming events.
func (s *Synth) Process(frames int, left, right []float32) {
	frames = min(frames, len(left), len(right))
	if frames <= 0 {
		return
	}

	state := s.State()
	if state == StateInitial {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if state != StatePlaying {
		s.render(left[:frames], right[:frames])
		return
	}

	total := 0
	for total < frames {
		if s.clock.samplesToNext >= 1 {
			todo := min(frames-total, int(s.clock.samplesToNext))
			s.render(left[total:total+todo], right[total:total+todo])
			s.clock.samplesSinceLast += float64(todo)
			s.clock.samplesToNext -= float64(todo)
			total += todo
			continue
		}

		if !s.advance() {
			s.clock.samplesSinceLast += float64(frames - total)
			s.render(left[total:frames], right[total:frames])
			break
		}
	}
}

func (s *Synth) render(left, right []float32) {
	if err := s.eng.WriteFloat(left, right); err != nil {
		s.log.Error("render failed", "frames", len(left), "error", err)
	}
}

// advance delivers the events due at the next boundary and schedules the one
// after. It reports false when nothing is pending.
func (s *Synth) advance() bool {
	c := &s.clock
	if c.nextEvtTime == midi.NoTime {
		return false
	}

	t := c.nextEvtTime
	c.samplesSinceLast -= ticksBetween(c.lastEvtTime, t) * c.samplesPerTick
	c.samplesSinceLast = max(c.samplesSinceLast, 0)
	c.lastEvtTime = t

	s.processQueue(t)

	c.nextEvtTime = s.queue.NextTime()
	if c.nextEvtTime != midi.NoTime {
		c.samplesToNext += ticksBetween(c.lastEvtTime, c.nextEvtTime) * c.samplesPerTick
	}
	return true
}

// flushPending delivers every queued event regardless of the render position.
func (s *Synth) flushPending() {
	for s.advance() {
	}
}

// processQueue dispatches every queued event with a time at or before t.
func (s *Synth) processQueue(t uint64) {
	for {
		e, ok := s.queue.Peek()
		if !ok || e.Time > t {
			return
		}
		s.dispatch(e)
		s.queue.Advance()
	}
}

func (s *Synth) dispatch(e midi.Event) {
	ch := e.Channel()
	p0, p1 := int(e.Param[0]), int(e.Param[1])

	var err error
	switch e.Type() {
	case midi.NoteOff:
		err = s.eng.NoteOff(ch, p0)
	case midi.NoteOn:
		err = s.eng.NoteOn(ch, p0, p1)
	case midi.AfterTouch:
		// polyphonic aftertouch is not forwarded
	case midi.ControlChange:
		err = s.controlChange(ch, p0, p1)
	case midi.ProgramChange:
		err = s.eng.ProgramChange(ch, p0)
	case midi.ChannelPressure:
		err = s.eng.ChannelPressure(ch, p0)
	case midi.PitchBend:
		err = s.eng.PitchBend(ch, (p0&0x7F)|(p1&0x7F)<<7)
	case midi.SysEx:
		err = s.sysex(e.Data)
	}

	if err != nil {
		s.log.Debug("event not applied", "time", e.Time, "status", e.Status, "error", err)
	}
}

// controlChange applies GM2 bank selection while GM2 mode is on and forwards
// every other controller.
func (s *Synth) controlChange(ch, ctrl, value int) error {
	if s.forceGM2 {
		switch ctrl {
		case midi.CtrlBankSelectMSB:
			switch {
			case value == gm2DrumBank && (ch == 9 || ch == 10):
				return s.eng.SetChannelType(ch, engine.ChannelDrum)
			case value == gm2MelodicBank:
				return s.eng.SetChannelType(ch, engine.ChannelMelodic)
			}
			return nil
		case midi.CtrlBankSelectLSB:
			return s.eng.BankSelect(ch, value)
		}
	}
	return s.eng.CC(ch, ctrl, value)
}

// sysex hands data to the engine and watches the unhandled ones for GM2
// system on/off.
func (s *Synth) sysex(data []byte) error {
	handled, err := s.eng.Sysex(data)
	if err != nil || handled || len(data) < len(gm2SystemOn) {
		return err
	}

	switch string(data[:len(gm2SystemOn)]) {
	case gm2SystemOn:
		s.forceGM2 = true
		s.log.Debug("GM2 mode on")
	case gm2SystemOff:
		s.forceGM2 = false
		s.log.Debug("GM2 mode off")
	}
	return nil
}

// GM2 reports whether GM2 bank selection is active.
func (s *Synth) GM2() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forceGM2
}
