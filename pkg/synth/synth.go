// Package synth bridges a timestamped MIDI event stream and the host's
// instrument catalog to a wavetable synthesis engine.
//
// A Synth is driven from two sides. The control side loads and selects
// soundfonts, queues events and changes playback state. The render side calls
// Process from the audio callback, which delivers queued events at their
// sample-accurate boundaries and pulls audio from the engine.
package synth

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/zurustar/sfsynth/pkg/catalog"
	"github.com/zurustar/sfsynth/pkg/engine"
	"github.com/zurustar/sfsynth/pkg/midi"
)

// gainScale is applied to the host gain before it reaches the engine.
const gainScale = 0.2

// State is the playback state of a Synth.
type State int32

const (
	StateInitial State = iota
	StatePlaying
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Device describes the output the synthesizer renders for.
type Device struct {
	Frequency int
}

// clock tracks the scheduler position between rendered frames and event
// ticks. Owned by the render side; guarded by Synth.mu.
type clock struct {
	samplesPerTick   float64
	lastEvtTime      uint64
	nextEvtTime      uint64
	samplesSinceLast float64
	samplesToNext    float64
}

func (c *clock) reset() {
	c.lastEvtTime = 0
	c.nextEvtTime = midi.NoTime
	c.samplesSinceLast = 0
	c.samplesToNext = 0
}

// ticksBetween returns b-a as a signed tick count.
func ticksBetween(a, b uint64) float64 {
	return float64(b) - float64(a)
}

// Synth is the synthesizer facade.
type Synth struct {
	log      *slog.Logger
	eng      engine.Synth
	catalog  *catalog.Registry
	queue    *midi.Queue
	tickRate uint64

	// ctlMu serializes soundfont loading, selection and Close. The render
	// side never takes it.
	ctlMu     sync.Mutex
	fonts     fontRegistry
	selection atomic.Pointer[[]*catalog.Soundfont]

	state atomic.Int32
	gain  atomic.Uint32

	// mu is the device lock. Rendering, event insertion and stop/reset/update
	// serialize on it; soundfont swaps never take it.
	mu        sync.Mutex
	clock     clock
	frequency int
	forceGM2  bool
}

// New creates a synthesizer for dev.
func New(dev Device, opts ...Option) (*Synth, error) {
	if dev.Frequency <= 0 {
		return nil, fmt.Errorf("%w: invalid device frequency %d", ErrCreateFailed, dev.Frequency)
	}

	o := applyOptions(opts...)

	eng, err := o.engine(EngineConfig{
		SampleRate: float64(dev.Frequency),
		Polyphony:  o.polyphony,
		Logger:     o.logger,
		FS:         o.fsys,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	if eng == nil {
		return nil, fmt.Errorf("%w: engine factory returned nil", ErrCreateFailed)
	}

	s := &Synth{
		log:      o.logger,
		eng:      eng,
		catalog:  o.catalog,
		queue:    o.queue,
		tickRate: o.tickRate,
	}
	s.gain.Store(math.Float32bits(1))
	s.clock.reset()

	eng.AddLoader(&fontLoader{log: o.logger, selection: s.currentSelection})
	eng.SetGain(gainScale)

	s.Update(dev)

	s.log.Debug("synthesizer created", "frequency", dev.Frequency, "polyphony", o.polyphony, "tickRate", o.tickRate)
	return s, nil
}

func (s *Synth) currentSelection() []*catalog.Soundfont {
	if p := s.selection.Load(); p != nil {
		return *p
	}
	return nil
}

// Engine returns the underlying synthesis engine.
func (s *Synth) Engine() engine.Synth {
	return s.eng
}

// Catalog returns the host soundfont registry.
func (s *Synth) Catalog() *catalog.Registry {
	return s.catalog
}

// Pending returns the number of queued events not yet delivered.
func (s *Synth) Pending() int {
	return s.queue.Pending()
}

// Soundfonts returns the engine ids of the resident soundfonts, in load order.
func (s *Synth) Soundfonts() []int {
	return s.fonts.ids()
}

// fontName returns the file name to hand to the engine, or "" when filename
// names no file.
func fontName(filename string) string {
	name := strings.TrimSpace(filename)
	if name == "" || strings.HasSuffix(name, "/") || strings.HasSuffix(name, string(filepath.Separator)) {
		return ""
	}
	return filepath.Clean(name)
}

// IsSoundfont reports whether the engine recognises filename as a soundfont.
func (s *Synth) IsSoundfont(filename string) bool {
	name := fontName(filename)
	if name == "" {
		return false
	}
	fc, ok := s.eng.(engine.FileChecker)
	if !ok {
		return false
	}
	return fc.IsSoundfont(name)
}

// LoadSoundfont makes the soundfont file the only resident bank. The previous
// banks are unloaded.
func (s *Synth) LoadSoundfont(filename string) error {
	name := fontName(filename)
	if name == "" {
		return fmt.Errorf("%w: empty soundfont file name", ErrInvalidValue)
	}

	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()

	id, err := s.eng.SFLoad(name, true)
	if err != nil {
		s.log.Error("failed to load soundfont", "file", name, "error", err)
		return fmt.Errorf("%w: failed to load %s: %v", ErrInvalidValue, name, err)
	}
	s.log.Info("loaded soundfont", "file", name, "id", id)

	s.unload(s.fonts.swap([]int{id}))
	return nil
}

// SelectSoundfonts replaces the resident banks with catalog soundfonts, in
// the order given. An unknown id rejects the whole selection. Fonts the
// engine fails to load are logged and left out of the new list. Concurrent
// calls run one after another; the last one decides the resident set.
func (s *Synth) SelectSoundfonts(ids []int) error {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()

	fonts, err := s.catalog.Resolve(ids)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	s.selection.Store(&fonts)

	loaded := make([]int, 0, len(fonts))
	for i, sf := range fonts {
		id, err := s.eng.SFLoad(internalName(i), true)
		if err != nil {
			s.log.Error("failed to load selected soundfont", "index", i, "name", sf.Name, "error", err)
			continue
		}
		loaded = append(loaded, id)
	}
	s.log.Info("selected soundfonts", "requested", len(ids), "loaded", len(loaded))

	s.unload(s.fonts.swap(loaded))
	return nil
}

func (s *Synth) unload(ids []int) {
	for _, id := range ids {
		if err := s.eng.SFUnload(id, true); err != nil {
			s.log.Warn("failed to unload soundfont", "id", id, "error", err)
		}
	}
}

// Gain returns the host gain.
func (s *Synth) Gain() float32 {
	return math.Float32frombits(s.gain.Load())
}

// SetGain sets the host gain. The engine receives a fifth of it.
func (s *Synth) SetGain(gain float32) {
	s.gain.Store(math.Float32bits(gain))
	s.eng.SetGain(gain * gainScale)
}

// State returns the playback state.
func (s *Synth) State() State {
	return State(s.state.Load())
}

// SetState sets the playback state.
func (s *Synth) SetState(st State) {
	s.state.Store(int32(st))
}

// Play is SetState(StatePlaying).
func (s *Synth) Play() { s.SetState(StatePlaying) }

// Pause is SetState(StatePaused).
func (s *Synth) Pause() { s.SetState(StatePaused) }

// Stop delivers every pending event in time order, silences all channels and
// rewinds the scheduler.
func (s *Synth) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushPending()
	for ch := 0; ch < engine.NumChannels; ch++ {
		if err := s.eng.CC(ch, midi.CtrlAllNotesOff, 0); err != nil {
			s.log.Warn("all notes off failed", "channel", ch, "error", err)
		}
	}

	s.queue.Reset()
	s.clock.reset()
	s.SetState(StateStopped)
}

// Reset returns the engine to its power-up state and rewinds the scheduler.
func (s *Synth) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.eng.SystemReset(); err != nil {
		s.log.Warn("system reset failed", "error", err)
	}
	s.forceGM2 = false

	s.queue.Reset()
	s.clock.reset()
	s.SetState(StateInitial)
}

// Update adopts the device's sample rate.
func (s *Synth) Update(dev Device) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dev.Frequency <= 0 {
		s.log.Warn("ignoring invalid device frequency", "frequency", dev.Frequency)
		return
	}
	s.frequency = dev.Frequency
	s.clock.samplesPerTick = float64(dev.Frequency) / float64(s.tickRate)
	s.eng.SetSampleRate(float64(dev.Frequency))
}

// Frequency returns the sample rate the synthesizer renders at.
func (s *Synth) Frequency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frequency
}

// InsertEvent queues a channel voice event for delivery at e.Time.
func (s *Synth) InsertEvent(e midi.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue.Insert(e)
	s.schedule(e.Time)
}

// InsertMessage decodes and queues a channel voice or sysex message.
func (s *Synth) InsertMessage(time uint64, msg gomidi.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.queue.InsertMessage(time, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	s.schedule(time)
	return nil
}

// InsertSysEx queues a sysex payload.
func (s *Synth) InsertSysEx(time uint64, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue.InsertSysEx(time, data)
	s.schedule(time)
}

// LoadEvents queues a batch of events, such as those read from a MIDI file.
func (s *Synth) LoadEvents(events []midi.Event) {
	if len(events) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue.Load(events)
	s.schedule(s.queue.NextTime())
}

// schedule pulls the next boundary forward when an event arrives before it.
func (s *Synth) schedule(time uint64) {
	if time >= s.clock.nextEvtTime {
		return
	}
	s.clock.nextEvtTime = time
	s.clock.samplesToNext = ticksBetween(s.clock.lastEvtTime, time)*s.clock.samplesPerTick - s.clock.samplesSinceLast
}

// Close unloads every resident soundfont and releases the engine.
func (s *Synth) Close() error {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()

	s.unload(s.fonts.swap(nil))
	if err := s.eng.Close(); err != nil {
		return fmt.Errorf("close engine: %w", err)
	}
	return nil
}
