package synth

import (
	"log/slog"

	"github.com/zurustar/sfsynth/pkg/catalog"
	"github.com/zurustar/sfsynth/pkg/engine"
	"github.com/zurustar/sfsynth/pkg/engine/wavetable"
	"github.com/zurustar/sfsynth/pkg/fileutil"
	"github.com/zurustar/sfsynth/pkg/logger"
	"github.com/zurustar/sfsynth/pkg/midi"
)

// DefaultPolyphony is the voice count requested from the engine.
const DefaultPolyphony = 256

// EngineConfig is what the synthesizer asks of a new engine.
type EngineConfig struct {
	SampleRate float64
	Polyphony  int
	Logger     *slog.Logger
	// FS resolves soundfont file names; nil means the working directory.
	FS fileutil.FileSystem
}

// EngineFactory creates the synthesis engine driven by a Synth.
type EngineFactory func(cfg EngineConfig) (engine.Synth, error)

// Wavetable is the default EngineFactory.
func Wavetable(cfg EngineConfig) (engine.Synth, error) {
	return wavetable.New(wavetable.Settings{
		SampleRate: cfg.SampleRate,
		Polyphony:  cfg.Polyphony,
		Logger:     cfg.Logger,
		FS:         cfg.FS,
	})
}

type options struct {
	logger    *slog.Logger
	catalog   *catalog.Registry
	queue     *midi.Queue
	engine    EngineFactory
	polyphony int
	tickRate  uint64
	fsys      fileutil.FileSystem
}

// Option configures a Synth.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithCatalog sets the host soundfont registry used by SelectSoundfonts.
func WithCatalog(r *catalog.Registry) Option {
	return func(o *options) {
		o.catalog = r
	}
}

// WithQueue sets the event queue drained while rendering.
func WithQueue(q *midi.Queue) Option {
	return func(o *options) {
		o.queue = q
	}
}

// WithEngine replaces the synthesis engine.
func WithEngine(f EngineFactory) Option {
	return func(o *options) {
		o.engine = f
	}
}

// WithFS sets where LoadSoundfont and IsSoundfont look up file names.
func WithFS(fsys fileutil.FileSystem) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}

// WithPolyphony sets the voice count requested from the engine.
func WithPolyphony(n int) Option {
	return func(o *options) {
		o.polyphony = n
	}
}

// WithTickRate sets how many event clock ticks make one second. Event
// timestamps are microseconds unless changed.
func WithTickRate(ticksPerSecond uint64) Option {
	return func(o *options) {
		o.tickRate = ticksPerSecond
	}
}

func applyOptions(opts ...Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = logger.Component("synth")
	}
	if o.catalog == nil {
		o.catalog = catalog.NewRegistry()
	}
	if o.queue == nil {
		o.queue = midi.NewQueue()
	}
	if o.engine == nil {
		o.engine = Wavetable
	}
	if o.polyphony <= 0 {
		o.polyphony = DefaultPolyphony
	}
	if o.tickRate == 0 {
		o.tickRate = midi.MicrosPerSecond
	}
	return o
}
