package synth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zurustar/sfsynth/pkg/engine"
)

// fakeEngine records everything the synthesizer asks of it.
type fakeEngine struct {
	mu sync.Mutex

	loaders  []engine.Loader
	banks    map[int]engine.Bank
	loadedAs map[int]string
	nextID   int
	failLoad map[string]bool
	unloads  map[int]int

	log      []string // dispatched events and renders, in order
	rendered int      // frames rendered so far
	programs [engine.NumChannels]int

	voices    []*fakeVoice
	maxVoices int
	allocs    int // AllocVoice calls, failed ones included

	gain         float32
	rate         float64
	resets       int
	sysexHandled bool
	sf2Files     map[string]bool
	closed       bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		banks:     make(map[int]engine.Bank),
		loadedAs:  make(map[int]string),
		nextID:    1,
		failLoad:  make(map[string]bool),
		unloads:   make(map[int]int),
		sf2Files:  make(map[string]bool),
		maxVoices: 256,
	}
}

func (f *fakeEngine) factory(cfg EngineConfig) (engine.Synth, error) {
	f.rate = cfg.SampleRate
	return f, nil
}

func (f *fakeEngine) record(format string, args ...any) {
	f.log = append(f.log, fmt.Sprintf(format, args...))
}

func (f *fakeEngine) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

func (f *fakeEngine) AddLoader(l engine.Loader) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaders = append(f.loaders, l)
}

func (f *fakeEngine) SFLoad(name string, resetPresets bool) (int, error) {
	f.mu.Lock()
	loaders := append([]engine.Loader(nil), f.loaders...)
	fail := f.failLoad[name]
	f.mu.Unlock()

	if fail {
		return 0, fmt.Errorf("%w: %s", engine.ErrNotFound, name)
	}

	var bank engine.Bank
	for _, l := range loaders {
		b, err := l.Load(name)
		if errors.Is(err, engine.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		bank = b
		break
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.banks[id] = bank
	f.loadedAs[id] = name
	return id, nil
}

func (f *fakeEngine) SFUnload(id int, resetPresets bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.unloads[id]++
	bank, ok := f.banks[id]
	if !ok {
		return engine.ErrUnknownBank
	}
	delete(f.banks, id)
	if bank != nil {
		return bank.Free()
	}
	return nil
}

func (f *fakeEngine) resident() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int
	for id := range f.banks {
		ids = append(ids, id)
	}
	return ids
}

type fakeVoice struct {
	sample  *engine.Sample
	channel int
	key     int
	gens    map[engine.Generator]float64
	mods    []engine.Modulator
	modes   []engine.ModMode
	started bool
}

func (v *fakeVoice) GenSet(gen engine.Generator, value float64) {
	v.gens[gen] = value
}

func (v *fakeVoice) AddMod(m engine.Modulator, mode engine.ModMode) {
	v.mods = append(v.mods, m)
	v.modes = append(v.modes, mode)
}

func (f *fakeEngine) AllocVoice(s *engine.Sample, channel, key, velocity int) (engine.Voice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allocs++
	if len(f.voices) >= f.maxVoices {
		return nil, engine.ErrNoVoice
	}
	v := &fakeVoice{sample: s, channel: channel, key: key, gens: make(map[engine.Generator]float64)}
	f.voices = append(f.voices, v)
	return v, nil
}

func (f *fakeEngine) StartVoice(v engine.Voice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v.(*fakeVoice).started = true
}

// NoteOn records the note and plays it through the newest plugin bank with a
// preset for the channel's program.
func (f *fakeEngine) NoteOn(channel, key, velocity int) error {
	f.mu.Lock()
	f.record("noteon %d %d %d @%d", channel, key, velocity, f.rendered)
	var preset engine.Preset
	for id := f.nextID - 1; id > 0; id-- {
		if b := f.banks[id]; b != nil {
			if p := b.Preset(0, f.programs[channel]); p != nil {
				preset = p
				break
			}
		}
	}
	f.mu.Unlock()

	if preset != nil {
		return preset.NoteOn(f, channel, key, velocity)
	}
	return nil
}

func (f *fakeEngine) NoteOff(channel, key int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("noteoff %d %d @%d", channel, key, f.rendered)
	return nil
}

func (f *fakeEngine) CC(channel, ctrl, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("cc %d %d %d", channel, ctrl, value)
	return nil
}

func (f *fakeEngine) ProgramChange(channel, program int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.programs[channel] = program
	f.record("program %d %d", channel, program)
	return nil
}

func (f *fakeEngine) ChannelPressure(channel, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("pressure %d %d", channel, value)
	return nil
}

func (f *fakeEngine) PitchBend(channel, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("bend %d %d", channel, value)
	return nil
}

func (f *fakeEngine) BankSelect(channel, bank int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("bank %d %d", channel, bank)
	return nil
}

func (f *fakeEngine) SetChannelType(channel int, t engine.ChannelType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("type %d %s", channel, t)
	return nil
}

func (f *fakeEngine) Sysex(data []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("sysex % X", data)
	return f.sysexHandled, nil
}

func (f *fakeEngine) SystemReset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func (f *fakeEngine) SetGain(gain float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gain = gain
}

func (f *fakeEngine) SetSampleRate(rate float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rate = rate
}

func (f *fakeEngine) WriteFloat(left, right []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range left {
		left[i], right[i] = 1, 1
	}
	f.rendered += len(left)
	f.record("render %d", len(left))
	return nil
}

func (f *fakeEngine) IsSoundfont(filename string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sf2Files[filename]
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
