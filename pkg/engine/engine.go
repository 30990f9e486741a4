// Package engine defines the contract between the MIDI bridge and a polyphonic
// wavetable synthesizer. The synthesizer owns voices, channels and loaded sound
// banks; pluggable banks are handed to it through a Loader and are released by
// the synthesizer alone, through Bank.Free.
package engine

import "errors"

var (
	// ErrNotFound is returned by a Loader that does not recognise a bank name,
	// and by Synth.SFLoad when no loader accepted the name.
	ErrNotFound = errors.New("sound bank not found")

	// ErrNoVoice is returned when the synthesizer cannot allocate a voice.
	ErrNoVoice = errors.New("no voice available")

	// ErrUnknownBank is returned when unloading a bank id that is not resident.
	ErrUnknownBank = errors.New("unknown sound bank id")

	// ErrAlreadyFreed is returned by a Bank whose Free was already called.
	ErrAlreadyFreed = errors.New("sound bank already freed")
)

// Channel count of a MIDI port.
const NumChannels = 16

// ChannelType selects melodic or percussion preset lookup on a channel.
type ChannelType int

const (
	ChannelMelodic ChannelType = iota
	ChannelDrum
)

func (t ChannelType) String() string {
	if t == ChannelDrum {
		return "drum"
	}
	return "melodic"
}

// ModMode tells Voice.AddMod how to combine a modulator with an identical one.
type ModMode int

const (
	// ModOverwrite replaces an identical modulator already on the voice.
	ModOverwrite ModMode = iota
	// ModAdd sums the amounts of identical modulators.
	ModAdd
)

// Modulator routes a control source to a generator.
type Modulator struct {
	Source1 int
	Flags1  int
	Source2 int
	Flags2  int
	Dest    Generator
	Amount  float64
}

// SameRouting reports whether two modulators share sources, flags and
// destination, which is what identifies a modulator on a voice.
func (m Modulator) SameRouting(o Modulator) bool {
	return m.Source1 == o.Source1 && m.Flags1 == o.Flags1 &&
		m.Source2 == o.Source2 && m.Flags2 == o.Flags2 && m.Dest == o.Dest
}

// SampleType mirrors the SoundFont sample link type.
type SampleType int

const (
	SampleMono  SampleType = 1
	SampleRight SampleType = 2
	SampleLeft  SampleType = 4
)

// Sample is a flat set of playback parameters for one stretch of sample data.
// It has no behaviour apart from the optional Notify callback.
type Sample struct {
	Name       string
	Start      uint32
	End        uint32
	LoopStart  uint32
	LoopEnd    uint32
	SampleRate uint32
	OrigPitch  int
	PitchAdj   int
	Type       SampleType
	Data       []int16

	// RefCount is maintained by the synthesizer while voices play the sample.
	RefCount int

	// Notify is called by the synthesizer when the last voice using the
	// sample is released. It may be nil.
	Notify func(s *Sample)

	// UserData is an opaque tag owned by whoever built the sample.
	UserData any
}

// Voice is one allocated, not yet started, playback instance.
type Voice interface {
	GenSet(gen Generator, value float64)
	AddMod(m Modulator, mode ModMode)
}

// Preset is a (bank, program) addressable instrument of a Bank.
type Preset interface {
	Name() string
	Num() int
	BankNum() int
	// NoteOn allocates, configures and starts the voices for one key press.
	NoteOn(s Synth, channel, key, velocity int) error
}

// Bank is a pluggable sound bank. The synthesizer calls Free exactly once, when
// it releases its last reference.
type Bank interface {
	Free() error
	Name() string
	// Preset returns nil when the bank has no such preset.
	Preset(bank, num int) Preset
	IterStart()
	// IterNext returns the next preset, or false once the bank is exhausted.
	// The returned preset is a view; the caller must not release it.
	IterNext() (Preset, bool)
}

// Loader builds banks from names. It returns ErrNotFound for names it does not
// handle so the synthesizer can try the next loader.
type Loader interface {
	Load(name string) (Bank, error)
}

// Synth is the subset of a synthesizer the bridge drives.
type Synth interface {
	AddLoader(l Loader)
	SFLoad(name string, resetPresets bool) (int, error)
	SFUnload(id int, resetPresets bool) error

	AllocVoice(s *Sample, channel, key, velocity int) (Voice, error)
	StartVoice(v Voice)

	NoteOn(channel, key, velocity int) error
	NoteOff(channel, key int) error
	CC(channel, ctrl, value int) error
	ProgramChange(channel, program int) error
	ChannelPressure(channel, value int) error
	PitchBend(channel, value int) error
	BankSelect(channel, bank int) error
	SetChannelType(channel int, t ChannelType) error
	// Sysex reports handled=false for messages the synthesizer does not act on.
	Sysex(data []byte) (handled bool, err error)
	SystemReset() error

	SetGain(gain float32)
	SetSampleRate(rate float64)
	// WriteFloat renders len(left) frames; left and right must be equal length.
	WriteFloat(left, right []float32) error

	Close() error
}

// FileChecker is implemented by synthesizers that can tell whether a file is a
// sound bank they would load.
type FileChecker interface {
	IsSoundfont(filename string) bool
}
