// Package script はコンパイル対象のソースファイルを読み込む
package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/zurustar/espg/pkg/compiler/diag"
	"github.com/zurustar/espg/pkg/fileutil"
)

// Script はソースファイルを表す
type Script struct {
	FileName string // ファイル名
	Path     string // 絶対パス（FileSystem経由の場合はベースパスからの相対パス）
	Dir      string // ソースのあるディレクトリ。asset_folder と output の基準になる
	Content  string // UTF-8に変換された内容
	Size     int64  // ファイルサイズ
}

// Load はソースファイルを読み込む
// 存在しない場合やディレクトリの場合は ConfigFileMissing を返す
func Load(p string) (*Script, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, diag.Wrap(diag.ConfigFileMissing, err, "resolving %s", p)
	}

	// ファイル情報を取得
	info, err := os.Stat(abs)
	if err != nil {
		return nil, diag.Wrap(diag.ConfigFileMissing, err, "config file %s not found", p)
	}
	if info.IsDir() {
		return nil, diag.New(diag.ConfigFileMissing, "config file %s is a directory", p)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, diag.Wrap(diag.ConfigFileMissing, err, "failed to read %s", p)
	}

	content, err := Decode(data)
	if err != nil {
		return nil, diag.Wrap(diag.ParseError, err, "failed to decode %s", p)
	}

	return &Script{
		FileName: filepath.Base(abs),
		Path:     abs,
		Dir:      filepath.Dir(abs),
		Content:  content,
		Size:     info.Size(),
	}, nil
}

// LoadFS は FileSystem からソースファイルを読み込む（大文字小文字を無視）
func LoadFS(fsys fileutil.FileSystem, name string) (*Script, error) {
	rel, err := fsys.FindFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, diag.Wrap(diag.ConfigFileMissing, err, "config file %s not found", name)
		}
		return nil, diag.Wrap(diag.ConfigFileMissing, err, "failed to find %s", name)
	}

	data, err := fsys.ReadFile(rel)
	if err != nil {
		return nil, diag.Wrap(diag.ConfigFileMissing, err, "failed to read %s", name)
	}

	content, err := Decode(data)
	if err != nil {
		return nil, diag.Wrap(diag.ParseError, err, "failed to decode %s", name)
	}

	return &Script{
		FileName: path.Base(rel),
		Path:     rel,
		Dir:      path.Dir(rel),
		Content:  content,
		Size:     int64(len(data)),
	}, nil
}

// Decode はバイト列をUTF-8文字列に変換する
// BOMがあればUTF-8/UTF-16LE/UTF-16BEを判別し、BOMは取り除く。BOMがなければUTF-8とみなす
func Decode(data []byte) (string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	reader := transform.NewReader(bytes.NewReader(data), decoder)

	utf8Data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to decode source: %w", err)
	}
	return string(utf8Data), nil
}
