package synth

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/zurustar/sfsynth/pkg/catalog"
	"github.com/zurustar/sfsynth/pkg/engine"
	"github.com/zurustar/sfsynth/pkg/midi"
)

func TestParseInternalName(t *testing.T) {
	tests := []struct {
		name   string
		want   int
		wantOK bool
	}{
		{"_sf_internal 0", 0, true},
		{"_sf_internal 12", 12, true},
		{internalName(7), 7, true},
		{"_sf_internal -1", 0, false},
		{"_sf_internal 3x", 0, false},
		{"_sf_internal ", 0, false},
		{"_sf_internal3", 0, false},
		{"font.sf2", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseInternalName(tt.name)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("parseInternalName(%q) = %d, %v, want %d, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFontLoader(t *testing.T) {
	sf := catalog.Synthetic("loader test", catalog.Square)
	var logs bytes.Buffer
	l := &fontLoader{
		log:       slog.New(slog.NewTextHandler(&logs, nil)),
		selection: func() []*catalog.Soundfont { return []*catalog.Soundfont{sf} },
	}

	if _, err := l.Load("piano.sf2"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("Load(file) = %v, want ErrNotFound", err)
	}

	if _, err := l.Load(internalName(1)); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("Load(out of range) = %v, want ErrNotFound", err)
	}
	if !bytes.Contains(logs.Bytes(), []byte("invalid soundfont index")) {
		t.Errorf("out of range index not logged: %s", logs.String())
	}

	b, err := l.Load(internalName(0))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if b.Name() != "loader test" {
		t.Errorf("Name() = %q", b.Name())
	}
}

func TestBankAdapter(t *testing.T) {
	sf := catalog.Synthetic("a rather long soundfont name", catalog.Saw)
	b := newBankAdapter(sf)

	if len(b.Name()) != nameLen-1 {
		t.Errorf("Name() = %q, want truncated to %d bytes", b.Name(), nameLen-1)
	}

	p := b.Preset(128, 0)
	if p == nil || p.BankNum() != 128 || p.Num() != 0 || p.Name() != "noise kit" {
		t.Fatalf("Preset(128, 0) = %v", p)
	}
	if b.Preset(1, 1) != nil {
		t.Error("Preset(1, 1) should be nil")
	}

	b.IterStart()
	n := 0
	for {
		if _, ok := b.IterNext(); !ok {
			break
		}
		n++
	}
	if n != len(sf.Presets) {
		t.Errorf("iterated %d presets, want %d", n, len(sf.Presets))
	}

	if err := b.Free(); err != nil {
		t.Fatalf("Free() error = %v", err)
	}
	if err := b.Free(); !errors.Is(err, engine.ErrAlreadyFreed) {
		t.Errorf("second Free() = %v, want ErrAlreadyFreed", err)
	}
}

func TestBankAdapter_IterationOrder(t *testing.T) {
	sf := catalog.Synthetic("order", catalog.Sine)
	sf.Presets = append(sf.Presets,
		&catalog.Preset{Name: "pad", Bank: 1, Program: 7, Zones: sf.Presets[0].Zones},
		&catalog.Preset{Name: "bell", Bank: 0, Program: 3, Zones: sf.Presets[0].Zones},
	)
	b := newBankAdapter(sf)

	// twice, to check IterStart rewinds
	for round := 0; round < 2; round++ {
		b.IterStart()
		for i, want := range sf.Presets {
			p, ok := b.IterNext()
			if !ok {
				t.Fatalf("round %d: IterNext() ended after %d presets", round, i)
			}
			if p.Name() != want.Name || p.BankNum() != want.Bank || p.Num() != want.Program {
				t.Errorf("round %d preset %d = %s %d:%d, want %s %d:%d",
					round, i, p.Name(), p.BankNum(), p.Num(), want.Name, want.Bank, want.Program)
			}
		}
		if _, ok := b.IterNext(); ok {
			t.Errorf("round %d: IterNext() returned more than %d presets", round, len(sf.Presets))
		}
	}
}

func TestBankAdapter_CopiesZones(t *testing.T) {
	sf := catalog.Synthetic("copy", catalog.Sine)
	b := newBankAdapter(sf)

	// later catalog edits must not reach the loaded bank
	sf.Presets[0].Zones[1].FilterCutoff = 100
	sf.Presets[0].Zones[1].Modulators = append(sf.Presets[0].Zones[1].Modulators, engine.Modulator{Dest: engine.GenPan})

	fe := newFakeEngine()
	if err := b.Preset(0, 0).NoteOn(fe, 0, 60, 127); err != nil {
		t.Fatalf("NoteOn() error = %v", err)
	}
	if len(fe.voices) != 1 {
		t.Fatalf("voices = %d, want 1", len(fe.voices))
	}
	v := fe.voices[0]
	if v.gens[engine.GenFilterFc] != 13500 {
		t.Errorf("filter cutoff = %v, want 13500", v.gens[engine.GenFilterFc])
	}
	if len(v.mods) != 0 {
		t.Errorf("modulators = %v, want none", v.mods)
	}
}

func TestPresetAdapter_NoteOn(t *testing.T) {
	sf := catalog.Synthetic("zones", catalog.Triangle)
	lead := sf.Presets[0]
	mod := engine.Modulator{Source1: 2, Dest: engine.GenFilterFc, Amount: -2400}
	for _, z := range lead.Zones {
		z.Modulators = []engine.Modulator{mod}
	}
	b := newBankAdapter(sf)
	p := b.Preset(0, 0)

	tests := []struct {
		name     string
		velocity int
		zone     *catalog.Zone
	}{
		{"soft layer", 40, lead.Zones[0]},
		{"loud layer", 100, lead.Zones[1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := newFakeEngine()
			if err := p.NoteOn(fe, 2, 64, tt.velocity); err != nil {
				t.Fatalf("NoteOn() error = %v", err)
			}
			if len(fe.voices) != 1 {
				t.Fatalf("voices = %d, want 1", len(fe.voices))
			}
			v := fe.voices[0]
			if !v.started || v.channel != 2 || v.key != 64 {
				t.Errorf("voice = %+v", v)
			}
			if len(v.gens) != 27 {
				t.Errorf("generators set = %d, want 27", len(v.gens))
			}
			if v.gens[engine.GenVolEnvRelease] != float64(tt.zone.VolEnv.ReleaseTime) {
				t.Errorf("release = %v, want %d", v.gens[engine.GenVolEnvRelease], tt.zone.VolEnv.ReleaseTime)
			}
			if v.gens[engine.GenSampleMode] != engine.LoopContinuous {
				t.Errorf("sample mode = %v", v.gens[engine.GenSampleMode])
			}
			if len(v.modes) != 1 || v.modes[0] != engine.ModOverwrite {
				t.Errorf("modulator modes = %v, want [overwrite]", v.modes)
			}
			if v.sample.Start != tt.zone.Start || v.sample.End != tt.zone.End || v.sample.OrigPitch != tt.zone.PitchKey {
				t.Errorf("sample = %+v", v.sample)
			}
		})
	}
}

// layeredFont has one preset whose three zones all cover key 60 velocity
// 100. Each layer is told apart by its root key.
func layeredFont() *catalog.Soundfont {
	sf := catalog.Synthetic("layers", catalog.Sine)
	base := sf.Presets[0].Zones[1]
	var zones []*catalog.Zone
	for _, root := range []int{60, 67, 72} {
		z := *base
		z.PitchKey = root
		z.Modulators = nil
		zones = append(zones, &z)
	}
	sf.Presets[0].Zones = zones
	return sf
}

func TestPresetAdapter_LayeredZones(t *testing.T) {
	b := newBankAdapter(layeredFont())
	fe := newFakeEngine()

	if err := b.Preset(0, 0).NoteOn(fe, 0, 60, 100); err != nil {
		t.Fatalf("NoteOn() error = %v", err)
	}
	if len(fe.voices) != 3 {
		t.Fatalf("voices = %d, want one per layer", len(fe.voices))
	}
	for i, root := range []int{60, 67, 72} {
		v := fe.voices[i]
		if !v.started || v.sample.OrigPitch != root {
			t.Errorf("voice %d: started=%v root=%d, want root %d", i, v.started, v.sample.OrigPitch, root)
		}
	}
}

func TestPresetAdapter_PartialAllocation(t *testing.T) {
	b := newBankAdapter(layeredFont())
	fe := newFakeEngine()
	fe.maxVoices = 1

	err := b.Preset(0, 0).NoteOn(fe, 0, 60, 100)
	if !errors.Is(err, engine.ErrNoVoice) {
		t.Fatalf("NoteOn() = %v, want ErrNoVoice", err)
	}
	if fe.allocs != 2 {
		t.Errorf("AllocVoice called %d times, want 2 (third layer never requested)", fe.allocs)
	}
	if len(fe.voices) != 1 || !fe.voices[0].started || fe.voices[0].sample.OrigPitch != 60 {
		t.Errorf("first layer should keep playing: %+v", fe.voices)
	}
}

func TestPresetAdapter_NoVoice(t *testing.T) {
	b := newBankAdapter(catalog.Synthetic("full", catalog.Sine))
	fe := newFakeEngine()
	fe.maxVoices = 0

	err := b.Preset(0, 0).NoteOn(fe, 0, 60, 100)
	if !errors.Is(err, engine.ErrNoVoice) {
		t.Errorf("NoteOn() = %v, want ErrNoVoice", err)
	}
}

func TestFontRegistry(t *testing.T) {
	var r fontRegistry
	if prev := r.swap([]int{1, 2}); prev != nil {
		t.Errorf("first swap returned %v", prev)
	}
	if prev := r.swap([]int{3}); len(prev) != 2 || prev[0] != 1 || prev[1] != 2 {
		t.Errorf("swap returned %v, want [1 2]", prev)
	}

	ids := r.ids()
	ids[0] = 99
	if r.ids()[0] != 3 {
		t.Error("ids() must return a copy")
	}

	if prev := r.swap(nil); len(prev) != 1 || prev[0] != 3 {
		t.Errorf("swap(nil) returned %v", prev)
	}
	if r.ids() != nil {
		t.Errorf("ids() = %v after clearing", r.ids())
	}
}

// TestDispatchTimingProperty checks that with one tick per frame, each event
// reaches the engine after exactly Time frames, whatever the block sizes.
func TestDispatchTimingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("events are dispatched at their frame", prop.ForAll(
		func(times []uint16, block int) bool {
			s, fe := newTestSynth(t)
			for _, tm := range times {
				// the timestamp travels in key and velocity
				s.InsertEvent(midi.Event{Time: uint64(tm), Status: midi.NoteOn, Param: [2]byte{byte(tm >> 7), byte(tm & 0x7F)}})
			}
			s.Play()

			for fe.rendered <= 4096 {
				process(s, block)
			}
			if s.Pending() != 0 {
				return false
			}

			n := 0
			for _, e := range fe.events() {
				var ch, key, vel, at int
				if _, err := fmt.Sscanf(e, "noteon %d %d %d @%d", &ch, &key, &vel, &at); err != nil {
					continue
				}
				if at != key<<7|vel {
					return false
				}
				n++
			}
			return n == len(times)
		},
		gen.SliceOf(gen.UInt16Range(0, 4095)),
		gen.IntRange(1, 512),
	))

	properties.TestingRun(t)
}
