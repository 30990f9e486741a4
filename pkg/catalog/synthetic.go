package catalog

import (
	"fmt"
	"math"
	"strings"

	"github.com/zurustar/sfsynth/pkg/engine"
)

// Waveform names a single-cycle shape used by Synthetic.
type Waveform string

const (
	Sine     Waveform = "sine"
	Square   Waveform = "square"
	Saw      Waveform = "saw"
	Triangle Waveform = "triangle"
)

// ParseWaveform converts a user supplied name to a Waveform.
func ParseWaveform(name string) (Waveform, error) {
	switch w := Waveform(strings.ToLower(name)); w {
	case Sine, Square, Saw, Triangle:
		return w, nil
	default:
		return "", fmt.Errorf("unknown waveform: %s (must be sine, square, saw, or triangle)", name)
	}
}

const (
	cycleLength = 256
	cycleKey    = 69 // A4
	noiseLength = 8192
	drumBank    = 128
)

// cycleRate plays one table cycle at 440Hz on the root key.
const cycleRate = 440 * cycleLength

// Synthetic builds a small soundfont from generated sample data: a looping
// melodic preset on bank 0 program 0 with two velocity layers, and an unlooped
// noise kit on the percussion bank.
func Synthetic(name string, w Waveform) *Soundfont {
	samples := make([]int16, 0, cycleLength+noiseLength)
	samples = append(samples, cycle(w)...)
	samples = append(samples, noise(noiseLength)...)

	soft := toneZone(0, 63)
	soft.VolEnv.AttackTime = -7973 // ~10ms
	soft.VolEnv.ReleaseTime = -2400

	loud := toneZone(64, 127)
	loud.VolEnv.AttackTime = -12000
	loud.VolEnv.ReleaseTime = -3600
	loud.FilterCutoff = 13500

	kit := &Zone{
		Start:        cycleLength,
		End:          cycleLength + noiseLength,
		LoopStart:    cycleLength,
		LoopEnd:      cycleLength + noiseLength,
		SampleRate:   44100,
		PitchKey:     60,
		SampleType:   engine.SampleMono,
		MinKey:       35,
		MaxKey:       81,
		MinVelocity:  0,
		MaxVelocity:  127,
		FilterCutoff: 13500,
		ModEnv:       DefaultEnvelope(),
		VolEnv:       DefaultEnvelope(),
		LoopMode:     engine.LoopNone,
	}
	kit.VolEnv.DecayTime = -2400
	kit.VolEnv.SustainVol = 1440

	return &Soundfont{
		Name:    name,
		Samples: samples,
		Presets: []*Preset{
			{Name: string(w) + " lead", Bank: 0, Program: 0, Zones: []*Zone{soft, loud}},
			{Name: "noise kit", Bank: drumBank, Program: 0, Zones: []*Zone{kit}},
		},
	}
}

func toneZone(minVel, maxVel int) *Zone {
	return &Zone{
		Start:        0,
		End:          cycleLength,
		LoopStart:    0,
		LoopEnd:      cycleLength,
		SampleRate:   cycleRate,
		PitchKey:     cycleKey,
		SampleType:   engine.SampleMono,
		MinKey:       0,
		MaxKey:       127,
		MinVelocity:  minVel,
		MaxVelocity:  maxVel,
		FilterCutoff: 13500,
		ModEnv:       DefaultEnvelope(),
		VolEnv:       DefaultEnvelope(),
		LoopMode:     engine.LoopContinuous,
		TuningScale:  100,
	}
}

func cycle(w Waveform) []int16 {
	out := make([]int16, cycleLength)
	for i := range out {
		phase := float64(i) / cycleLength
		var v float64
		switch w {
		case Square:
			v = 1
			if phase >= 0.5 {
				v = -1
			}
		case Saw:
			v = 2*phase - 1
		case Triangle:
			v = 1 - 4*math.Abs(phase-0.5)
		default:
			v = math.Sin(2 * math.Pi * phase)
		}
		out[i] = int16(v * 0.8 * math.MaxInt16)
	}
	return out
}

// noise is a fixed LCG sequence so generated kits are reproducible.
func noise(n int) []int16 {
	out := make([]int16, n)
	var x uint32 = 22222
	for i := range out {
		x = x*1664525 + 1013904223
		decay := 1 - float64(i)/float64(n)
		out[i] = int16(float64(int16(x>>16)) * 0.6 * decay)
	}
	return out
}
