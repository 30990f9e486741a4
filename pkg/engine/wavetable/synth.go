// Package wavetable is a polyphonic sample playback synthesizer implementing
// engine.Synth. Pluggable banks are played by its own voices; SoundFont 2
// files are handed to meltysynth and mixed in.
package wavetable

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/zurustar/sfsynth/pkg/engine"
	"github.com/zurustar/sfsynth/pkg/fileutil"
	"github.com/zurustar/sfsynth/pkg/logger"
)

// ErrNoPreset is returned by NoteOn when no resident bank has the channel's
// bank/program.
var ErrNoPreset = errors.New("no preset for bank/program")

const (
	drumBank       = 128
	drumChannel    = 9
	defaultVolume  = 100
	defaultPan     = 64
	pitchBendRange = 2.0 // semitones
	pitchBendZero  = 8192
)

// MIDI controllers handled by the channel.
const (
	ctrlBankMSB        = 0
	ctrlVolume         = 7
	ctrlPan            = 10
	ctrlSustain        = 64
	ctrlAllSoundOff    = 120
	ctrlResetAll       = 121
	ctrlAllNotesOff    = 123
	sustainOnThreshold = 64
)

// Settings configures a Synth.
type Settings struct {
	SampleRate float64
	Polyphony  int
	Logger     *slog.Logger
	// FS resolves SoundFont file names; nil means the working directory.
	FS fileutil.FileSystem
}

type channelState struct {
	program   int
	bank      int
	typ       engine.ChannelType
	volume    int
	pan       int
	pitchBend int
	pressure  int
	sustain   bool
}

func (c *channelState) reset(ch int) {
	*c = channelState{
		volume:    defaultVolume,
		pan:       defaultPan,
		pitchBend: pitchBendZero,
	}
	if ch == drumChannel {
		c.typ = engine.ChannelDrum
	}
}

// bankEntry is a resident bank.
type bankEntry struct {
	id   int
	bank engine.Bank
	file *fileBank
}

// Synth is the wavetable synthesizer.
type Synth struct {
	log       *slog.Logger
	polyphony int

	// noteMu serializes plugin NoteOn calls so voices can be attributed to
	// the bank that allocated them. Banks are freed only while holding it,
	// after mu is released by NoteOn. Lock order is noteMu then mu.
	noteMu sync.Mutex

	mu       sync.Mutex
	rate     float64
	gain     float32
	loaders  []engine.Loader
	files    *fileLoader
	banks    []*bankEntry // newest first
	nextID   int
	channels [engine.NumChannels]channelState
	voices   []*voice
	noteBank *bankEntry
	closed   bool

	scratchL []float32
	scratchR []float32
}

// New creates a Synth.
func New(settings Settings) (*Synth, error) {
	if settings.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %v", settings.SampleRate)
	}
	if settings.Polyphony <= 0 {
		return nil, fmt.Errorf("invalid polyphony: %d", settings.Polyphony)
	}
	log := settings.Logger
	if log == nil {
		log = logger.Component("wavetable")
	}
	fsys := settings.FS
	if fsys == nil {
		fsys = fileutil.NewRealFS("")
	}

	s := &Synth{
		log:       log,
		polyphony: settings.Polyphony,
		rate:      settings.SampleRate,
		gain:      1,
		nextID:    1,
	}
	s.files = &fileLoader{fsys: fsys, rate: s.sampleRate}
	for ch := range s.channels {
		s.channels[ch].reset(ch)
	}
	return s, nil
}

// sampleRate is read by the file loader while mu is held.
func (s *Synth) sampleRate() float64 {
	return s.rate
}

// AddLoader registers a loader. Loaders added later are tried first; SoundFont
// files are tried last.
func (s *Synth) AddLoader(l engine.Loader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaders = append([]engine.Loader{l}, s.loaders...)
}

// SFLoad loads a bank by name and puts it on top of the bank stack.
func (s *Synth) SFLoad(name string, resetPresets bool) (int, error) {
	s.mu.Lock()
	loaders := append(append([]engine.Loader(nil), s.loaders...), s.files)
	s.mu.Unlock()

	var bank engine.Bank
	for _, l := range loaders {
		var err error
		if l == s.files {
			s.mu.Lock()
			bank, err = l.Load(name)
			s.mu.Unlock()
		} else {
			bank, err = l.Load(name)
		}
		if errors.Is(err, engine.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		break
	}
	if bank == nil {
		return 0, fmt.Errorf("%w: %s", engine.ErrNotFound, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := &bankEntry{id: s.nextID, bank: bank}
	if fb, ok := bank.(*fileBank); ok {
		e.file = fb
	}
	s.nextID++
	s.banks = append([]*bankEntry{e}, s.banks...)

	s.log.Debug("bank loaded", "name", name, "id", e.id, "resetPresets", resetPresets)
	return e.id, nil
}

// SFUnload removes a bank. Voices still playing it are cut and the bank is
// freed.
func (s *Synth) SFUnload(id int, resetPresets bool) error {
	s.noteMu.Lock()
	defer s.noteMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.banks {
		if e.id != id {
			continue
		}
		s.killVoices(func(v *voice) bool { return v.bank == e })
		s.banks = append(s.banks[:i], s.banks[i+1:]...)
		s.log.Debug("bank unloaded", "id", id, "resetPresets", resetPresets)
		return e.bank.Free()
	}
	return fmt.Errorf("%w: %d", engine.ErrUnknownBank, id)
}

// Banks returns the ids of the resident banks, newest first.
func (s *Synth) Banks() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, len(s.banks))
	for i, e := range s.banks {
		ids[i] = e.id
	}
	return ids
}

// AllocVoice allocates a voice for sample. The voice sounds once started.
func (s *Synth) AllocVoice(sample *engine.Sample, channel, key, velocity int) (engine.Voice, error) {
	if sample == nil {
		return nil, fmt.Errorf("%w: nil sample", engine.ErrNoVoice)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.voices) >= s.polyphony {
		return nil, engine.ErrNoVoice
	}

	v := &voice{
		sample:   sample,
		bank:     s.noteBank,
		channel:  channel,
		key:      key,
		velocity: velocity,
		gens:     defaultGenerators,
	}
	sample.RefCount++
	return v, nil
}

// StartVoice starts a voice returned by AllocVoice.
func (s *Synth) StartVoice(ev engine.Voice) {
	v, ok := ev.(*voice)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v.start(s.rate)
	s.voices = append(s.voices, v)
}

// ActiveVoices returns the number of sounding voices.
func (s *Synth) ActiveVoices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.voices)
}

func validChannel(ch int) error {
	if ch < 0 || ch >= engine.NumChannels {
		return fmt.Errorf("invalid channel: %d", ch)
	}
	return nil
}

// NoteOn starts a note with the preset selected on the channel, searching
// banks from the newest.
func (s *Synth) NoteOn(channel, key, velocity int) error {
	if err := validChannel(channel); err != nil {
		return err
	}
	if velocity == 0 {
		return s.NoteOff(channel, key)
	}

	s.noteMu.Lock()
	defer s.noteMu.Unlock()

	s.mu.Lock()
	c := s.channels[channel]
	bankNum := c.bank
	if c.typ == engine.ChannelDrum {
		bankNum = drumBank
	}

	var (
		preset engine.Preset
		entry  *bankEntry
	)
	for _, e := range s.banks {
		if e.file != nil {
			e.file.synth.NoteOn(int32(channel), int32(key), int32(velocity))
			s.mu.Unlock()
			return nil
		}
		if p := e.bank.Preset(bankNum, c.program); p != nil {
			preset, entry = p, e
			break
		}
	}
	s.noteBank = entry
	s.mu.Unlock()

	if preset == nil {
		return fmt.Errorf("%w: %d:%d", ErrNoPreset, bankNum, c.program)
	}

	err := preset.NoteOn(s, channel, key, velocity)

	s.mu.Lock()
	s.noteBank = nil
	s.mu.Unlock()
	return err
}

// NoteOff releases the voices of a key.
func (s *Synth) NoteOff(channel, key int) error {
	if err := validChannel(channel); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.forFiles(func(fb *fileBank) { fb.synth.NoteOff(int32(channel), int32(key)) })

	sustain := s.channels[channel].sustain
	for _, v := range s.voices {
		if v.channel == channel && v.key == key {
			v.noteOff(sustain)
		}
	}
	return nil
}

// CC applies a control change.
func (s *Synth) CC(channel, ctrl, value int) error {
	if err := validChannel(channel); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.forFiles(func(fb *fileBank) {
		fb.synth.ProcessMidiMessage(int32(channel), 0xB0, int32(ctrl), int32(value))
	})

	c := &s.channels[channel]
	switch ctrl {
	case ctrlBankMSB:
		c.bank = value
	case ctrlVolume:
		c.volume = value
	case ctrlPan:
		c.pan = value
	case ctrlSustain:
		c.sustain = value >= sustainOnThreshold
		if !c.sustain {
			for _, v := range s.voices {
				if v.channel == channel && v.held {
					v.noteOff(false)
				}
			}
		}
	case ctrlAllSoundOff:
		s.killVoices(func(v *voice) bool { return v.channel == channel })
	case ctrlResetAll:
		c.volume, c.pan, c.pitchBend, c.pressure, c.sustain = defaultVolume, defaultPan, pitchBendZero, 0, false
	case ctrlAllNotesOff:
		for _, v := range s.voices {
			if v.channel == channel {
				v.noteOff(false)
			}
		}
	}
	return nil
}

// ProgramChange selects the channel's program.
func (s *Synth) ProgramChange(channel, program int) error {
	if err := validChannel(channel); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.channels[channel].program = program
	s.forFiles(func(fb *fileBank) {
		fb.synth.ProcessMidiMessage(int32(channel), 0xC0, int32(program), 0)
	})
	return nil
}

// ChannelPressure sets the channel aftertouch.
func (s *Synth) ChannelPressure(channel, value int) error {
	if err := validChannel(channel); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.channels[channel].pressure = value
	s.forFiles(func(fb *fileBank) {
		fb.synth.ProcessMidiMessage(int32(channel), 0xD0, int32(value), 0)
	})
	return nil
}

// PitchBend sets the 14-bit pitch wheel value.
func (s *Synth) PitchBend(channel, value int) error {
	if err := validChannel(channel); err != nil {
		return err
	}
	if value < 0 || value > 0x3FFF {
		return fmt.Errorf("invalid pitch bend: %d", value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.channels[channel].pitchBend = value
	s.forFiles(func(fb *fileBank) {
		fb.synth.ProcessMidiMessage(int32(channel), 0xE0, int32(value&0x7F), int32(value>>7))
	})
	return nil
}

// BankSelect sets the channel's bank number.
func (s *Synth) BankSelect(channel, bank int) error {
	if err := validChannel(channel); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.channels[channel].bank = bank
	s.forFiles(func(fb *fileBank) {
		fb.synth.ProcessMidiMessage(int32(channel), 0xB0, ctrlBankMSB, int32(bank&0x7F))
	})
	return nil
}

// SetChannelType switches a channel between melodic and percussion lookup.
func (s *Synth) SetChannelType(channel int, t engine.ChannelType) error {
	if err := validChannel(channel); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[channel].typ = t
	return nil
}

// ChannelType returns the lookup type of a channel.
func (s *Synth) ChannelType(channel int) engine.ChannelType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[channel].typ
}

// Sysex handles GM System On. Everything else is reported unhandled.
func (s *Synth) Sysex(data []byte) (bool, error) {
	// 7E <device> 09 01
	if len(data) >= 4 && data[0] == 0x7E && data[2] == 0x09 && data[3] == 0x01 {
		return true, s.SystemReset()
	}
	return false, nil
}

// SystemReset returns every channel to its power-up state and silences all
// voices.
func (s *Synth) SystemReset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.killVoices(func(*voice) bool { return true })
	for ch := range s.channels {
		s.channels[ch].reset(ch)
	}
	return s.rebuildFiles()
}

func (s *Synth) rebuildFiles() error {
	var errs []error
	s.forFiles(func(fb *fileBank) {
		if err := fb.rebuild(s.rate); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

// SetGain sets the output gain.
func (s *Synth) SetGain(gain float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gain = gain
}

// SetSampleRate changes the output rate. SoundFont file state is rebuilt.
func (s *Synth) SetSampleRate(rate float64) {
	if rate <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rate == s.rate {
		return
	}
	s.rate = rate
	if err := s.rebuildFiles(); err != nil {
		s.log.Error("failed to rebuild soundfont synthesizers", "rate", rate, "error", err)
	}
}

// WriteFloat renders len(left) frames, overwriting left and right.
func (s *Synth) WriteFloat(left, right []float32) error {
	if len(left) != len(right) {
		return fmt.Errorf("channel length mismatch: %d != %d", len(left), len(right))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clear(left)
	clear(right)
	if s.closed {
		return nil
	}

	s.renderFiles(left, right)
	s.renderVoices(left, right)

	g := s.gain
	for i := range left {
		left[i] *= g
		right[i] *= g
	}
	return nil
}

func (s *Synth) renderFiles(left, right []float32) {
	if cap(s.scratchL) < len(left) {
		s.scratchL = make([]float32, len(left))
		s.scratchR = make([]float32, len(left))
	}
	l, r := s.scratchL[:len(left)], s.scratchR[:len(left)]

	s.forFiles(func(fb *fileBank) {
		fb.synth.Render(l, r)
		for i := range l {
			left[i] += l[i]
			right[i] += r[i]
		}
	})
}

func (s *Synth) renderVoices(left, right []float32) {
	for _, v := range s.voices {
		c := &s.channels[v.channel]

		bend := float64(c.pitchBend-pitchBendZero) / pitchBendZero * pitchBendRange
		step := float64(v.sample.SampleRate) / s.rate * math.Pow(2, (v.pitch()+bend)/12)

		vel := float64(v.velocity) / 127
		vol := float64(c.volume) / 127
		amp := vel * vel * vol * vol * centibels(v.gens[engine.GenAttenuation])
		angle := float64(c.pan) / 127 * math.Pi / 2
		gl, gr := math.Cos(angle), math.Sin(angle)

		for i := range left {
			if v.done {
				break
			}
			e := v.env.next()
			if v.env.stage == envDone {
				v.done = true
				break
			}
			x := v.read(step) * e * amp
			left[i] += float32(x * gl)
			right[i] += float32(x * gr)
		}
	}
	s.killVoices(func(v *voice) bool { return v.done })
}

// killVoices removes the voices matching f and releases their samples.
func (s *Synth) killVoices(f func(v *voice) bool) {
	kept := s.voices[:0]
	for _, v := range s.voices {
		if !f(v) {
			kept = append(kept, v)
			continue
		}
		v.done = true
		v.sample.RefCount--
		if v.sample.RefCount == 0 && v.sample.Notify != nil {
			v.sample.Notify(v.sample)
		}
	}
	clear(s.voices[len(kept):])
	s.voices = kept
}

func (s *Synth) forFiles(f func(fb *fileBank)) {
	for _, e := range s.banks {
		if e.file != nil && e.file.synth != nil {
			f(e.file)
		}
	}
}

// IsSoundfont reports whether filename is a readable SoundFont 2 file.
func (s *Synth) IsSoundfont(filename string) bool {
	_, err := s.files.readFont(filename)
	return err == nil
}

// Close frees every resident bank.
func (s *Synth) Close() error {
	s.noteMu.Lock()
	defer s.noteMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.killVoices(func(*voice) bool { return true })
	var errs []error
	for _, e := range s.banks {
		if err := e.bank.Free(); err != nil {
			errs = append(errs, err)
		}
	}
	s.banks = nil
	return errors.Join(errs...)
}
