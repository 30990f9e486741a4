package wavetable

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/zurustar/sfsynth/pkg/engine"
	"github.com/zurustar/sfsynth/pkg/fileutil"
)

// synthesizer is the part of meltysynth a file bank drives.
type synthesizer interface {
	ProcessMidiMessage(channel int32, command int32, data1, data2 int32)
	NoteOn(channel, key, vel int32)
	NoteOff(channel, key int32)
	Render(left, right []float32)
}

var newSynthesizer = func(sf *meltysynth.SoundFont, rate float64) (synthesizer, error) {
	settings := meltysynth.NewSynthesizerSettings(int32(rate))
	settings.EnableReverbAndChorus = false
	return meltysynth.NewSynthesizer(sf, settings)
}

// fileBank is a SoundFont 2 file played by meltysynth. Preset lookup happens
// inside meltysynth, so Preset always returns nil.
type fileBank struct {
	name  string
	font  *meltysynth.SoundFont
	synth synthesizer
	freed bool
}

func (b *fileBank) Name() string                       { return b.name }
func (b *fileBank) Preset(bank, num int) engine.Preset { return nil }
func (b *fileBank) IterStart()                         {}
func (b *fileBank) IterNext() (engine.Preset, bool)    { return nil, false }

func (b *fileBank) Free() error {
	if b.freed {
		return engine.ErrAlreadyFreed
	}
	b.freed = true
	b.synth = nil
	b.font = nil
	return nil
}

// rebuild recreates the meltysynth synthesizer, dropping all channel and
// voice state.
func (b *fileBank) rebuild(rate float64) error {
	syn, err := newSynthesizer(b.font, rate)
	if err != nil {
		return fmt.Errorf("create synthesizer for %s: %w", b.name, err)
	}
	b.synth = syn
	return nil
}

// fileLoader loads SoundFont 2 files through a FileSystem.
type fileLoader struct {
	fsys fileutil.FileSystem
	rate func() float64
}

func (l *fileLoader) Load(name string) (engine.Bank, error) {
	font, err := l.readFont(name)
	if err != nil {
		return nil, err
	}
	b := &fileBank{name: name, font: font}
	if err := b.rebuild(l.rate()); err != nil {
		return nil, err
	}
	return b, nil
}

func (l *fileLoader) readFont(name string) (*meltysynth.SoundFont, error) {
	data, err := l.fsys.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fileutil.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", engine.ErrNotFound, name)
		}
		return nil, fmt.Errorf("read soundfont %s: %w", name, err)
	}

	font, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse soundfont %s: %w", name, err)
	}
	return font, nil
}
