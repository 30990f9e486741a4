package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zurustar/sfsynth/pkg/fileutil"
)

// DefaultSoundFontName はディレクトリ指定時に優先して探すファイル名
const DefaultSoundFontName = "GeneralUser-GS.sf2"

// ErrNoSoundFont はSF2ファイルが見つからない場合のエラー
var ErrNoSoundFont = errors.New("no soundfont found")

// findSoundFont は -soundfont の指定からSF2ファイルのパスを決める
//
// ファイルが指定された場合はそのまま返す。
// ディレクトリが指定された場合は以下の順で探す:
//  1. DefaultSoundFontName（大文字小文字を無視）
//  2. 拡張子 .sf2 のファイル（名前順で最初のもの）
func findSoundFont(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSoundFont, err)
	}
	if !info.IsDir() {
		return path, nil
	}

	dirFS := os.DirFS(path)
	if name, err := fileutil.FindFile(dirFS, ".", DefaultSoundFontName); err == nil {
		return filepath.Join(path, filepath.FromSlash(name)), nil
	}

	names, err := fileutil.FindByExt(dirFS, ".", ".sf2")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSoundFont, err)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoSoundFont, path)
	}
	return filepath.Join(path, filepath.FromSlash(names[0])), nil
}
