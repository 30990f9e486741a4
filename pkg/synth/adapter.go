package synth

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zurustar/sfsynth/pkg/catalog"
	"github.com/zurustar/sfsynth/pkg/engine"
)

// fontMarker prefixes the synthetic names handed to the engine for catalog
// soundfonts. The rest of the name is the index into the current selection.
const fontMarker = "_sf_internal"

// nameLen is the size of the engine's fixed display name buffers.
const nameLen = 16

func internalName(idx int) string {
	return fmt.Sprintf("%s %d", fontMarker, idx)
}

// parseInternalName returns the selection index encoded in name. The whole
// remainder must be a non-negative decimal integer.
func parseInternalName(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, fontMarker+" ")
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

func displayName(s string) string {
	if len(s) >= nameLen {
		return s[:nameLen-1]
	}
	return s
}

type genValue struct {
	gen   engine.Generator
	value float64
}

// zoneGenerators copies the generator values of z the engine applies per voice.
func zoneGenerators(z *catalog.Zone) []genValue {
	return []genValue{
		{engine.GenModLfoToPitch, float64(z.ModLfoToPitch)},
		{engine.GenVibLfoToPitch, float64(z.VibratoLfoToPitch)},
		{engine.GenModEnvToPitch, float64(z.ModEnvToPitch)},
		{engine.GenFilterFc, float64(z.FilterCutoff)},
		{engine.GenFilterQ, float64(z.FilterQ)},
		{engine.GenModLfoToFilterFc, float64(z.ModLfoToFilterCutoff)},
		{engine.GenModEnvToFilterFc, float64(z.ModEnvToFilterCutoff)},

		{engine.GenModEnvDelay, float64(z.ModEnv.DelayTime)},
		{engine.GenModEnvAttack, float64(z.ModEnv.AttackTime)},
		{engine.GenModEnvHold, float64(z.ModEnv.HoldTime)},
		{engine.GenModEnvDecay, float64(z.ModEnv.DecayTime)},
		{engine.GenModEnvSustain, float64(z.ModEnv.SustainVol)},
		{engine.GenModEnvRelease, float64(z.ModEnv.ReleaseTime)},
		{engine.GenKeyToModEnvHold, float64(z.ModEnv.KeyToHoldTime)},
		{engine.GenKeyToModEnvDecay, float64(z.ModEnv.KeyToDecayTime)},

		{engine.GenVolEnvDelay, float64(z.VolEnv.DelayTime)},
		{engine.GenVolEnvAttack, float64(z.VolEnv.AttackTime)},
		{engine.GenVolEnvHold, float64(z.VolEnv.HoldTime)},
		{engine.GenVolEnvDecay, float64(z.VolEnv.DecayTime)},
		{engine.GenVolEnvSustain, float64(z.VolEnv.SustainVol)},
		{engine.GenVolEnvRelease, float64(z.VolEnv.ReleaseTime)},
		{engine.GenKeyToVolEnvHold, float64(z.VolEnv.KeyToHoldTime)},
		{engine.GenKeyToVolEnvDecay, float64(z.VolEnv.KeyToDecayTime)},

		{engine.GenCoarseTune, float64(z.CoarseTuning)},
		{engine.GenFineTune, float64(z.FineTuning)},
		{engine.GenSampleMode, float64(z.LoopMode)},
		{engine.GenScaleTune, float64(z.TuningScale)},
	}
}

// sampleAdapter presents one catalog zone as an engine sample.
type sampleAdapter struct {
	engine.Sample
	zone *catalog.Zone
	gens []genValue
	mods []engine.Modulator
}

func (s *sampleAdapter) init(z *catalog.Zone, data []int16) {
	s.Sample = engine.Sample{
		Start:      z.Start,
		End:        z.End,
		LoopStart:  z.LoopStart,
		LoopEnd:    z.LoopEnd,
		SampleRate: z.SampleRate,
		OrigPitch:  z.PitchKey,
		PitchAdj:   z.PitchCorrection,
		Type:       z.SampleType,
		Data:       data,
	}
	s.Sample.UserData = s
	s.zone = z
	s.gens = zoneGenerators(z)
	s.mods = append([]engine.Modulator(nil), z.Modulators...)
}

func (s *sampleAdapter) release() {
	s.mods = nil
	s.gens = nil
	s.zone = nil
}

// presetAdapter presents a catalog preset as an engine preset.
type presetAdapter struct {
	name    string
	bank    int
	program int
	samples []sampleAdapter
}

func (p *presetAdapter) init(cp *catalog.Preset, data []int16) {
	p.name = displayName(cp.Name)
	p.bank = cp.Bank
	p.program = cp.Program
	p.samples = make([]sampleAdapter, len(cp.Zones))
	for i, z := range cp.Zones {
		p.samples[i].init(z, data)
	}
}

func (p *presetAdapter) Name() string { return p.name }
func (p *presetAdapter) Num() int     { return p.program }
func (p *presetAdapter) BankNum() int { return p.bank }

// NoteOn starts one voice for every zone whose ranges contain key and
// velocity. It stops at the first voice the engine cannot allocate; voices
// already started keep playing.
func (p *presetAdapter) NoteOn(s engine.Synth, channel, key, velocity int) error {
	for i := range p.samples {
		sa := &p.samples[i]
		if !sa.zone.Contains(key, velocity) {
			continue
		}

		v, err := s.AllocVoice(&sa.Sample, channel, key, velocity)
		if err != nil {
			return fmt.Errorf("preset %d:%d key %d: %w", p.bank, p.program, key, err)
		}
		if v == nil {
			return fmt.Errorf("preset %d:%d key %d: %w", p.bank, p.program, key, engine.ErrNoVoice)
		}

		for _, g := range sa.gens {
			v.GenSet(g.gen, g.value)
		}
		for _, m := range sa.mods {
			v.AddMod(m, engine.ModOverwrite)
		}
		s.StartVoice(v)
	}
	return nil
}

func (p *presetAdapter) release() {
	for i := range p.samples {
		p.samples[i].release()
	}
	p.samples = nil
}

// bankAdapter presents a catalog soundfont as an engine bank. Everything but
// the sample data is copied at construction, so the bank stays valid while
// the host swaps catalog selections.
type bankAdapter struct {
	name    string
	presets []presetAdapter
	cursor  int
	freed   bool
}

func newBankAdapter(sf *catalog.Soundfont) *bankAdapter {
	b := &bankAdapter{
		name:    displayName(sf.Name),
		presets: make([]presetAdapter, len(sf.Presets)),
	}
	for i, p := range sf.Presets {
		b.presets[i].init(p, sf.Samples)
	}
	return b
}

func (b *bankAdapter) Name() string { return b.name }

func (b *bankAdapter) Preset(bank, num int) engine.Preset {
	for i := range b.presets {
		if p := &b.presets[i]; p.bank == bank && p.program == num {
			return p
		}
	}
	return nil
}

func (b *bankAdapter) IterStart() {
	b.cursor = 0
}

func (b *bankAdapter) IterNext() (engine.Preset, bool) {
	if b.cursor >= len(b.presets) {
		return nil, false
	}
	p := &b.presets[b.cursor]
	b.cursor++
	return p, true
}

// Free tears the bank down. It is called by the engine once the bank is
// unloaded and no voice uses it.
func (b *bankAdapter) Free() error {
	if b.freed {
		return engine.ErrAlreadyFreed
	}
	for i := range b.presets {
		b.presets[i].release()
	}
	b.presets = nil
	b.freed = true
	return nil
}

// fontLoader resolves marker names against the current catalog selection.
type fontLoader struct {
	log       *slog.Logger
	selection func() []*catalog.Soundfont
}

func (l *fontLoader) Load(name string) (engine.Bank, error) {
	idx, ok := parseInternalName(name)
	if !ok {
		return nil, engine.ErrNotFound
	}

	fonts := l.selection()
	if idx >= len(fonts) {
		l.log.Error("received invalid soundfont index", "index", idx, "selected", len(fonts))
		return nil, fmt.Errorf("%w: soundfont index %d of %d", engine.ErrNotFound, idx, len(fonts))
	}
	return newBankAdapter(fonts[idx]), nil
}
