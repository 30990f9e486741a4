package wavetable

import (
	"math"

	"github.com/zurustar/sfsynth/pkg/engine"
)

type envStage int

const (
	envDelay envStage = iota
	envAttack
	envHold
	envDecay
	envSustain
	envRelease
	envDone
)

// envelope is a linear DAHDSR volume envelope driven one frame at a time.
type envelope struct {
	stage envStage
	level float64
	t     float64

	delay, attack, hold, decay, release float64 // frames
	sustain                             float64 // linear gain

	releaseFrom float64
}

// timecents converts a SoundFont time value to frames.
func timecents(tc, rate float64) float64 {
	return math.Pow(2, tc/1200) * rate
}

// centibels converts a SoundFont attenuation to a linear gain.
func centibels(cb float64) float64 {
	if cb <= 0 {
		return 1
	}
	return math.Pow(10, -cb/200)
}

func newEnvelope(gens *[engine.NumGenerators]float64, key int, rate float64) envelope {
	keyOfs := float64(60 - key)
	return envelope{
		delay:   timecents(gens[engine.GenVolEnvDelay], rate),
		attack:  timecents(gens[engine.GenVolEnvAttack], rate),
		hold:    timecents(gens[engine.GenVolEnvHold]+gens[engine.GenKeyToVolEnvHold]*keyOfs, rate),
		decay:   timecents(gens[engine.GenVolEnvDecay]+gens[engine.GenKeyToVolEnvDecay]*keyOfs, rate),
		sustain: centibels(gens[engine.GenVolEnvSustain]),
		release: timecents(gens[engine.GenVolEnvRelease], rate),
	}
}

func (e *envelope) next() float64 {
	e.t++
	switch e.stage {
	case envDelay:
		if e.t >= e.delay {
			e.enter(envAttack)
		}
	case envAttack:
		e.level = min(e.t/max(e.attack, 1), 1)
		if e.t >= e.attack {
			e.enter(envHold)
		}
	case envHold:
		e.level = 1
		if e.t >= e.hold {
			e.enter(envDecay)
		}
	case envDecay:
		e.level = 1 - (1-e.sustain)*min(e.t/max(e.decay, 1), 1)
		if e.t >= e.decay {
			e.enter(envSustain)
		}
	case envSustain:
		e.level = e.sustain
	case envRelease:
		e.level = e.releaseFrom * (1 - min(e.t/max(e.release, 1), 1))
		if e.t >= e.release {
			e.enter(envDone)
		}
	case envDone:
		e.level = 0
	}
	return e.level
}

func (e *envelope) enter(s envStage) {
	e.stage = s
	e.t = 0
}

func (e *envelope) noteOff() {
	if e.stage >= envRelease {
		return
	}
	e.releaseFrom = e.level
	e.enter(envRelease)
}

// defaultGenerators holds the SoundFont default generator values a voice
// starts from.
var defaultGenerators = func() [engine.NumGenerators]float64 {
	var g [engine.NumGenerators]float64
	for _, gen := range []engine.Generator{
		engine.GenModEnvDelay, engine.GenModEnvAttack, engine.GenModEnvHold,
		engine.GenModEnvDecay, engine.GenModEnvRelease,
		engine.GenVolEnvDelay, engine.GenVolEnvAttack, engine.GenVolEnvHold,
		engine.GenVolEnvDecay, engine.GenVolEnvRelease,
	} {
		g[gen] = -12000
	}
	g[engine.GenFilterFc] = 13500
	g[engine.GenScaleTune] = 100
	g[engine.GenOverrideRootKey] = -1
	return g
}()

// voice plays one sample for one key.
type voice struct {
	sample   *engine.Sample
	bank     *bankEntry
	channel  int
	key      int
	velocity int

	gens [engine.NumGenerators]float64
	mods []engine.Modulator

	pos      float64
	env      envelope
	held     bool // note off seen while the sustain pedal was down
	released bool
	done     bool
}

func (v *voice) GenSet(gen engine.Generator, value float64) {
	if gen < 0 || gen >= engine.NumGenerators {
		return
	}
	v.gens[gen] = value
}

func (v *voice) AddMod(m engine.Modulator, mode engine.ModMode) {
	for i := range v.mods {
		if !v.mods[i].SameRouting(m) {
			continue
		}
		if mode == engine.ModAdd {
			v.mods[i].Amount += m.Amount
		} else {
			v.mods[i] = m
		}
		return
	}
	v.mods = append(v.mods, m)
}

// Modulators returns the modulators set on the voice.
func (v *voice) Modulators() []engine.Modulator {
	return v.mods
}

// Gen returns a generator value of the voice.
func (v *voice) Gen(gen engine.Generator) float64 {
	return v.gens[gen]
}

func (v *voice) loopMode() int {
	return int(v.gens[engine.GenSampleMode])
}

// pitch returns the playback pitch offset in semitones, before pitch bend.
func (v *voice) pitch() float64 {
	root := v.sample.OrigPitch
	if o := int(v.gens[engine.GenOverrideRootKey]); o >= 0 {
		root = o
	}
	scale := v.gens[engine.GenScaleTune] / 100
	return float64(v.key-root)*scale +
		v.gens[engine.GenCoarseTune] +
		(v.gens[engine.GenFineTune]+float64(v.sample.PitchAdj))/100
}

func (v *voice) start(rate float64) {
	v.env = newEnvelope(&v.gens, v.key, rate)
}

func (v *voice) noteOff(sustain bool) {
	if v.released {
		return
	}
	if sustain {
		v.held = true
		return
	}
	v.released = true
	v.held = false
	v.env.noteOff()
}

// read returns the interpolated sample at the current position and advances
// by step. It marks the voice done at the end of unlooped data.
func (v *voice) read(step float64) float64 {
	s := v.sample
	start := float64(s.Start)
	end := float64(s.End)
	loopStart := float64(s.LoopStart) - start
	loopEnd := float64(s.LoopEnd) - start

	looping := loopEnd > loopStart &&
		(v.loopMode() == engine.LoopContinuous || (v.loopMode() == engine.LoopUntilRelease && !v.released))

	i := int(v.pos)
	frac := v.pos - float64(i)
	idx := int(s.Start) + i
	if idx >= len(s.Data) || float64(idx) >= end {
		v.done = true
		return 0
	}
	a := float64(s.Data[idx])
	b := a
	if idx+1 < len(s.Data) && float64(idx+1) < end {
		b = float64(s.Data[idx+1])
	}
	out := (a + (b-a)*frac) / 32768

	v.pos += step
	if looping && v.pos >= loopEnd {
		v.pos = loopStart + math.Mod(v.pos-loopStart, loopEnd-loopStart)
	}
	return out
}
