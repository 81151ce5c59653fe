package fileutil

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileSystem は実ファイルシステムと任意の fs.FS を統一的に扱うインターフェース
// パスはベースパスからの相対パスで、区切り文字は "/" を使う
type FileSystem interface {
	// ReadFile はファイルの内容を読み込む（大文字小文字を無視）
	ReadFile(name string) ([]byte, error)
	// ReadDir はディレクトリの内容を読み込む
	ReadDir(name string) ([]fs.DirEntry, error)
	// FindFile は大文字小文字を無視してファイルを検索し、ベースパスからの相対パスを返す
	FindFile(name string) (string, error)
	// BasePath はベースパスを返す
	BasePath() string
	// Sub はサブディレクトリをベースとする FileSystem を返す
	Sub(dir string) FileSystem
}

// RealFS は実ファイルシステムへのアクセスを提供する
type RealFS struct {
	basePath string
}

// NewRealFS は実ファイルシステム用のFileSystemを作成する
func NewRealFS(basePath string) *RealFS {
	return &RealFS{basePath: basePath}
}

func (r *RealFS) ReadFile(name string) ([]byte, error) {
	rel, err := r.FindFile(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(r.resolvePath(rel))
}

func (r *RealFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(r.resolvePath(name))
}

func (r *RealFS) FindFile(name string) (string, error) {
	clean := cleanName(name)
	// まず直接アクセスを試みる
	if info, err := os.Stat(r.resolvePath(clean)); err == nil && !info.IsDir() {
		return clean, nil
	}

	// 大文字小文字を無視して検索
	dir, file := path.Split(clean)
	found, err := FindFileCaseInsensitive(r.resolvePath(dir), file)
	if err != nil {
		return "", err
	}
	return path.Join(dir, filepath.Base(found)), nil
}

func (r *RealFS) BasePath() string {
	return r.basePath
}

func (r *RealFS) Sub(dir string) FileSystem {
	if filepath.IsAbs(dir) {
		return NewRealFS(dir)
	}
	return NewRealFS(r.resolvePath(dir))
}

func (r *RealFS) resolvePath(name string) string {
	clean := filepath.FromSlash(cleanName(name))
	if r.basePath != "" {
		return filepath.Join(r.basePath, clean)
	}
	return clean
}

// IOFS は fs.FS（embed.FS, fstest.MapFS, os.DirFS など）へのアクセスを提供する
type IOFS struct {
	fsys     fs.FS
	basePath string
}

// NewIOFS は fs.FS 用のFileSystemを作成する
func NewIOFS(fsys fs.FS, basePath string) *IOFS {
	return &IOFS{fsys: fsys, basePath: basePath}
}

func (e *IOFS) ReadFile(name string) ([]byte, error) {
	rel, err := e.FindFile(name)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(e.fsys, e.resolvePath(rel))
}

func (e *IOFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(e.fsys, e.resolvePath(name))
}

func (e *IOFS) FindFile(name string) (string, error) {
	clean := cleanName(name)
	// まず直接アクセスを試みる
	if info, err := fs.Stat(e.fsys, e.resolvePath(clean)); err == nil && !info.IsDir() {
		return clean, nil
	}

	// 大文字小文字を無視して検索
	dir, file := path.Split(clean)
	found, err := FindFileCaseInsensitiveFS(e.fsys, e.resolvePath(dir), file)
	if err != nil {
		return "", err
	}
	return path.Join(dir, path.Base(found)), nil
}

func (e *IOFS) BasePath() string {
	return e.basePath
}

func (e *IOFS) Sub(dir string) FileSystem {
	return NewIOFS(e.fsys, e.resolvePath(dir))
}

func (e *IOFS) resolvePath(name string) string {
	clean := cleanName(name)
	// "." は現在のディレクトリを意味するので、basePathそのものを返す
	if clean == "." || clean == "" {
		if e.basePath != "" {
			return e.basePath
		}
		return "."
	}
	if e.basePath != "" {
		return e.basePath + "/" + clean
	}
	return clean
}

// cleanName は先頭の "/" や "\" を除去し、区切り文字を "/" に揃える
func cleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return "."
	}
	return path.Clean(name)
}
