// Package catalog holds the host's in-memory instrument catalog: soundfonts made
// of presets made of key/velocity zones. A catalog is immutable once built and
// is read, never modified, by the synthesizer bridge.
package catalog

import (
	"errors"
	"fmt"

	"github.com/zurustar/sfsynth/pkg/engine"
)

// Catalog errors
var (
	// ErrDuplicatePreset is returned when two presets share a bank/program pair.
	ErrDuplicatePreset = errors.New("duplicate bank/program pair")

	// ErrInvalidZone is returned when a zone's ranges or offsets are inconsistent.
	ErrInvalidZone = errors.New("invalid zone")
)

// Envelope holds the SoundFont envelope generator values of a zone, in the
// generator's native units (timecents, centibels).
type Envelope struct {
	DelayTime      int
	AttackTime     int
	HoldTime       int
	DecayTime      int
	SustainVol     int
	ReleaseTime    int
	KeyToHoldTime  int
	KeyToDecayTime int
}

// DefaultEnvelope returns the SoundFont default envelope: every stage at
// -12000 timecents (about 1ms) and no sustain attenuation.
func DefaultEnvelope() Envelope {
	return Envelope{
		DelayTime:   -12000,
		AttackTime:  -12000,
		HoldTime:    -12000,
		DecayTime:   -12000,
		SustainVol:  0,
		ReleaseTime: -12000,
	}
}

// Zone is a key/velocity scoped reference to sample data with its generator
// values and modulators.
type Zone struct {
	// Sample placement inside Soundfont.Samples.
	Start           uint32
	End             uint32
	LoopStart       uint32
	LoopEnd         uint32
	SampleRate      uint32
	PitchKey        int
	PitchCorrection int
	SampleType      engine.SampleType

	MinKey      int
	MaxKey      int
	MinVelocity int
	MaxVelocity int

	ModLfoToPitch        int
	VibratoLfoToPitch    int
	ModEnvToPitch        int
	FilterCutoff         int
	FilterQ              int
	ModLfoToFilterCutoff int
	ModEnvToFilterCutoff int

	ModEnv Envelope
	VolEnv Envelope

	CoarseTuning int
	FineTuning   int
	LoopMode     int
	TuningScale  int

	Modulators []engine.Modulator
}

// Contains reports whether key and velocity fall inside the zone's ranges.
func (z *Zone) Contains(key, velocity int) bool {
	return key >= z.MinKey && key <= z.MaxKey &&
		velocity >= z.MinVelocity && velocity <= z.MaxVelocity
}

// Preset is a bank/program addressable instrument.
type Preset struct {
	Name    string
	Bank    int
	Program int
	Zones   []*Zone
}

// Soundfont is a named set of presets sharing one block of sample data.
type Soundfont struct {
	Name    string
	Samples []int16
	Presets []*Preset
}

// FindPreset returns the preset for a bank/program pair, or nil.
func (sf *Soundfont) FindPreset(bank, program int) *Preset {
	for _, p := range sf.Presets {
		if p.Bank == bank && p.Program == program {
			return p
		}
	}
	return nil
}

// Validate checks that bank/program pairs are unique and every zone is
// consistent with the sample data.
func (sf *Soundfont) Validate() error {
	seen := make(map[[2]int]string, len(sf.Presets))
	for _, p := range sf.Presets {
		k := [2]int{p.Bank, p.Program}
		if other, ok := seen[k]; ok {
			return fmt.Errorf("%w: %d:%d used by %q and %q", ErrDuplicatePreset, p.Bank, p.Program, other, p.Name)
		}
		seen[k] = p.Name

		for i, z := range p.Zones {
			if err := z.validate(len(sf.Samples)); err != nil {
				return fmt.Errorf("preset %q zone %d: %w", p.Name, i, err)
			}
		}
	}
	return nil
}

func (z *Zone) validate(numSamples int) error {
	switch {
	case z.MinKey > z.MaxKey:
		return fmt.Errorf("%w: key range %d-%d", ErrInvalidZone, z.MinKey, z.MaxKey)
	case z.MinVelocity > z.MaxVelocity:
		return fmt.Errorf("%w: velocity range %d-%d", ErrInvalidZone, z.MinVelocity, z.MaxVelocity)
	case z.Start > z.End || int(z.End) > numSamples:
		return fmt.Errorf("%w: sample span %d-%d of %d", ErrInvalidZone, z.Start, z.End, numSamples)
	case z.LoopStart > z.LoopEnd || z.LoopEnd > z.End:
		return fmt.Errorf("%w: loop span %d-%d", ErrInvalidZone, z.LoopStart, z.LoopEnd)
	}
	return nil
}
