package cli

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zurustar/sfsynth/pkg/catalog"
)

// DefaultSampleRate は出力のデフォルトサンプルレート
const DefaultSampleRate = 44100

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	MIDIPath      string           // 再生するSMFファイルのパス
	SoundfontPath string           // SF2ファイルまたはディレクトリ（空なら合成音色）
	Instrument    catalog.Waveform // 合成音色の波形
	SampleRate    int              // 出力サンプルレート（Hz）
	Gain          float64          // マスターゲイン
	OutPath       string           // WAV出力先（空ならデバイス再生）
	Timeout       time.Duration    // タイムアウト時間（0は無制限）
	LogLevel      string           // ログレベル（debug, info, warn, error）
	Headless      bool             // ヘッドレスモード
	ShowHelp      bool             // ヘルプ表示フラグ
}

// boolFlags は値を取らないフラグ
var boolFlags = map[string]bool{
	"-h": true, "--h": true,
	"-help": true, "--help": true,
	"-headless": true, "--headless": true,
}

// ParseArgs コマンドライン引数を解析してConfigを返す
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("sfsynth", flag.ContinueOnError)

	config := &Config{}

	var timeoutSec int
	var instrument string
	fs.StringVar(&config.SoundfontPath, "soundfont", "", "SF2ファイルまたはディレクトリ")
	fs.StringVar(&instrument, "instrument", string(catalog.Sine), "合成音色（sine, square, saw, triangle）")
	fs.IntVar(&config.SampleRate, "rate", 0, "サンプルレート（Hz）")
	fs.Float64Var(&config.Gain, "gain", 1.0, "マスターゲイン")
	fs.StringVar(&config.OutPath, "out", "", "WAV出力ファイル")
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.BoolVar(&config.Headless, "headless", false, "ヘッドレスモード")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	// 環境変数からの設定（コマンドラインフラグが優先）
	if !config.Headless {
		if headlessEnv := os.Getenv("HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}

	if timeoutSec == 0 {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}

	if config.SampleRate == 0 {
		config.SampleRate = DefaultSampleRate
		if rateEnv := os.Getenv("SAMPLE_RATE"); rateEnv != "" {
			r, err := strconv.Atoi(rateEnv)
			if err != nil {
				return nil, fmt.Errorf("invalid SAMPLE_RATE: %q", rateEnv)
			}
			config.SampleRate = r
		}
	}

	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	// タイムアウトの検証
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	// ログレベルの検証
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", config.SampleRate)
	}
	if config.Gain < 0 {
		return nil, fmt.Errorf("gain must be non-negative, got %g", config.Gain)
	}

	w, err := catalog.ParseWaveform(instrument)
	if err != nil {
		return nil, err
	}
	config.Instrument = w

	// 位置引数（SMFファイルのパス）
	if fs.NArg() > 0 {
		config.MIDIPath = fs.Arg(0)
	}

	return config, nil
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 1 && arg[0] == '-' {
			flags = append(flags, arg)

			// -rate 48000 のように次の引数が値になる場合
			// -gain -1 のような負数も値として扱う
			if i+1 < len(args) && !boolFlags[arg] && !strings.Contains(arg, "=") {
				i++
				flags = append(flags, args[i])
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置
	return append(flags, positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `sfsynth - SoundFont MIDI Synthesizer

Usage:
  sfsynth [options] <midi-file>

Arguments:
  midi-file     再生するStandard MIDI Fileのパス

Options:
  --soundfont <path>          SF2ファイル、またはSF2を含むディレクトリ
                              省略時は --instrument の合成音色を使用
  --instrument <wave>         合成音色: sine, square, saw, triangle（デフォルト: sine）
  --rate <hz>                 サンプルレート（デフォルト: 44100）
  --gain <value>              マスターゲイン（デフォルト: 1.0）
  --out <file.wav>            デバイスではなくWAVファイルへ書き出し
  -t, --timeout <seconds>     指定秒数後に終了（デフォルト: 曲の終わりまで）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  --headless                  ヘッドレスモード（オーディオデバイスを使わない）
  -h, --help                  このヘルプを表示

Environment Variables:
  HEADLESS=1                  ヘッドレスモードを有効化
  SAMPLE_RATE=<hz>            サンプルレート
  TIMEOUT=<seconds>           タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル

Examples:
  sfsynth song.mid                            合成音色で再生
  sfsynth --soundfont GeneralUser.sf2 song.mid
  sfsynth --instrument square --out song.wav song.mid
  sfsynth --log-level debug song.mid          デバッグログを有効化
  HEADLESS=1 sfsynth song.mid                 デバイスを使わずにレンダリング
`)
}
