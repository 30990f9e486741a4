package fileutil

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileSystem は実ファイルシステムと fs.FS を統一的に扱うインターフェース
type FileSystem interface {
	// Open はファイルを開く（大文字小文字を無視）
	Open(name string) (fs.File, error)
	// ReadFile はファイルの内容を読み込む（大文字小文字を無視）
	ReadFile(name string) ([]byte, error)
	// Resolve は大文字小文字を無視してファイルを検索し、実際のパスを返す
	Resolve(name string) (string, error)
}

// RealFS は実ファイルシステムへのアクセスを提供する
type RealFS struct {
	basePath string
}

// NewRealFS は実ファイルシステム用のFileSystemを作成する
// basePath が空の場合はカレントディレクトリからの相対パスになる
func NewRealFS(basePath string) *RealFS {
	return &RealFS{basePath: basePath}
}

func (r *RealFS) Open(name string) (fs.File, error) {
	p, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (r *RealFS) ReadFile(name string) ([]byte, error) {
	p, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (r *RealFS) Resolve(name string) (string, error) {
	p := name
	if r.basePath != "" && !filepath.IsAbs(name) {
		p = filepath.Join(r.basePath, name)
	}

	// まず直接アクセスを試みる
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}

	// 大文字小文字を無視して検索
	dir, file := filepath.Split(p)
	if dir == "" {
		dir = "."
	}
	found, err := FindFile(os.DirFS(dir), ".", file)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.FromSlash(found)), nil
}

// FS は fs.FS（embed.FS や fstest.MapFS）へのアクセスを提供する
type FS struct {
	fsys fs.FS
}

// NewFS は fs.FS 用のFileSystemを作成する
func NewFS(fsys fs.FS) *FS {
	return &FS{fsys: fsys}
}

func (e *FS) Open(name string) (fs.File, error) {
	p, err := e.Resolve(name)
	if err != nil {
		return nil, err
	}
	return e.fsys.Open(p)
}

func (e *FS) ReadFile(name string) ([]byte, error) {
	p, err := e.Resolve(name)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(e.fsys, p)
}

func (e *FS) Resolve(name string) (string, error) {
	// fs.FS では "/" を使用し、先頭の "/" は付けない
	p := strings.TrimPrefix(strings.ReplaceAll(name, "\\", "/"), "/")
	if p == "" {
		p = "."
	}

	if f, err := e.fsys.Open(p); err == nil {
		f.Close()
		return p, nil
	}

	dir, file := path.Split(p)
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" {
		dir = "."
	}
	return FindFile(e.fsys, dir, file)
}
