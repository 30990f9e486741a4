// Package app はsfsynthのコマンドラインアプリケーションを組み立てる
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/zurustar/sfsynth/pkg/catalog"
	"github.com/zurustar/sfsynth/pkg/cli"
	"github.com/zurustar/sfsynth/pkg/fileutil"
	"github.com/zurustar/sfsynth/pkg/logger"
	"github.com/zurustar/sfsynth/pkg/midi"
	"github.com/zurustar/sfsynth/pkg/player"
	"github.com/zurustar/sfsynth/pkg/synth"
)

// Tail は最後のイベントの後にレンダリングする余韻の長さ
const Tail = 2 * time.Second

// pollInterval はデバイス再生中に終了を確認する間隔
const pollInterval = 50 * time.Millisecond

// ErrNoMIDIFile はMIDIファイルが指定されていない場合のエラー
var ErrNoMIDIFile = errors.New("no MIDI file given")

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config   *cli.Config
	log      *slog.Logger
	registry *catalog.Registry
	synth    *synth.Synth
	events   []midi.Event
	fontFile string // サウンドフォントのディレクトリ内のファイル名
}

// New Applicationを作成
func New() *Application {
	return &Application{}
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	config, err := cli.ParseArgs(args)
	if err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}
	app.config = config

	if app.config.ShowHelp {
		cli.PrintHelp()
		return nil
	}

	// 2. ロガーの初期化
	if err := logger.InitLogger(app.config.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.log = logger.Component("app")

	if app.config.MIDIPath == "" {
		return ErrNoMIDIFile
	}

	app.log.Info("Application started", "midi", app.config.MIDIPath, "rate", app.config.SampleRate)

	// 3. シンセサイザーの作成
	if err := app.initSynth(); err != nil {
		return fmt.Errorf("failed to create synthesizer: %w", err)
	}
	defer func() {
		if err := app.synth.Close(); err != nil {
			app.log.Warn("failed to close synthesizer", "error", err)
		}
	}()

	// 4. 音色の読み込み
	if err := app.loadInstrument(); err != nil {
		return fmt.Errorf("failed to load instrument: %w", err)
	}

	// 5. MIDIファイルの読み込み
	if err := app.loadMIDI(); err != nil {
		return fmt.Errorf("failed to load MIDI file: %w", err)
	}

	app.synth.SetGain(float32(app.config.Gain))
	app.synth.Play()

	// 6. 出力
	switch {
	case app.config.OutPath != "":
		err = app.renderToFile(app.config.OutPath)
	case app.config.Headless:
		err = app.renderTo(io.Discard)
	default:
		err = app.playDevice()
	}
	if err != nil {
		return err
	}

	app.log.Info("Application terminated normally")
	return nil
}

// initSynth カタログとシンセサイザーを作成
// サウンドフォントが指定されている場合は、そのディレクトリをシンセサイザーのFSにする
func (app *Application) initSynth() error {
	app.registry = catalog.NewRegistry()

	opts := []synth.Option{
		synth.WithCatalog(app.registry),
		synth.WithLogger(logger.Component("synth")),
	}
	if app.config.SoundfontPath != "" {
		path, err := findSoundFont(app.config.SoundfontPath)
		if err != nil {
			return err
		}
		dir, file := filepath.Split(path)
		if dir == "" {
			dir = "."
		}
		app.fontFile = file
		opts = append(opts, synth.WithFS(fileutil.NewFS(os.DirFS(dir))))
		app.log.Info("Using soundfont file", "dir", dir, "file", file)
	}

	s, err := synth.New(synth.Device{Frequency: app.config.SampleRate}, opts...)
	if err != nil {
		return err
	}
	app.synth = s
	return nil
}

// loadInstrument SF2ファイル、または合成音色を読み込む
func (app *Application) loadInstrument() error {
	if app.fontFile != "" {
		if !app.synth.IsSoundfont(app.fontFile) {
			return fmt.Errorf("%s is not a soundfont", app.fontFile)
		}
		return app.synth.LoadSoundfont(app.fontFile)
	}

	sf := catalog.Synthetic(string(app.config.Instrument), app.config.Instrument)
	id, err := app.registry.Add(sf)
	if err != nil {
		return err
	}
	app.log.Info("Using synthetic instrument", "waveform", app.config.Instrument, "id", id)
	return app.synth.SelectSoundfonts([]int{id})
}

// loadMIDI SMFを読み込んでキューに積む
func (app *Application) loadMIDI() error {
	dir, file := filepath.Split(app.config.MIDIPath)
	data, err := fileutil.NewRealFS(dir).ReadFile(file)
	if err != nil {
		return err
	}

	events, err := midi.ReadSMF(data, midi.MicrosPerSecond)
	if err != nil {
		return err
	}
	app.events = events
	app.synth.LoadEvents(events)

	app.log.Info("MIDI file loaded", "events", len(events), "duration", app.songLength())
	return nil
}

// songLength 最後のイベントまでの長さ
func (app *Application) songLength() time.Duration {
	if len(app.events) == 0 {
		return 0
	}
	return time.Duration(app.events[len(app.events)-1].Time) * time.Microsecond
}

// duration 出力する長さ（タイムアウトが指定されていればそれで打ち切る）
func (app *Application) duration() time.Duration {
	d := app.songLength() + Tail
	if app.config.Timeout > 0 && app.config.Timeout < d {
		d = app.config.Timeout
	}
	return d
}

func (app *Application) frames() int {
	return int(app.duration().Seconds() * float64(app.config.SampleRate))
}

// renderToFile WAVファイルへ書き出す
func (app *Application) renderToFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	if err := app.renderTo(f); err != nil {
		return err
	}
	app.log.Info("WAV file written", "path", path, "duration", app.duration())
	return nil
}

// renderTo デバイスを使わずに全体をレンダリングする
func (app *Application) renderTo(w io.Writer) error {
	frames := app.frames()
	app.log.Debug("Rendering offline", "frames", frames)
	if err := player.WriteWAV(w, app.synth, app.config.SampleRate, frames); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	return nil
}

// playDevice オーディオデバイスで再生する
func (app *Application) playDevice() error {
	ctx, err := player.Context(app.config.SampleRate)
	if err != nil {
		return err
	}
	p, err := player.New(ctx, app.synth)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			app.log.Warn("failed to close player", "error", err)
		}
	}()

	sig, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p.Play()
	app.log.Info("Playback started")

	end := int64(app.frames())
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sig.Done():
			app.log.Info("Interrupted, stopping playback")
			app.synth.Stop()
			return nil
		case <-ticker.C:
			if p.Frames() >= end {
				app.log.Info("Playback finished", "frames", p.Frames())
				return nil
			}
		}
	}
}
