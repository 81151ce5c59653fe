package cli

import (
	"bytes"
	"os"
	"reflect"
	"strings"
	"testing"
)

// clearEnv はテスト中だけログ関連の環境変数を未設定にする
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestParse_ValidArgs(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name     string
		args     []string
		expected Config
	}{
		{
			name: "build コマンド",
			args: []string{"build", "pacman/Config.js"},
			expected: Config{
				Command: CommandBuild, Path: "pacman/Config.js",
				LogLevel: "info", LogFormat: "auto",
			},
		},
		{
			name: "コマンド省略時は build",
			args: []string{"Config.js"},
			expected: Config{
				Command: CommandBuild, Path: "Config.js",
				LogLevel: "info", LogFormat: "auto",
			},
		},
		{
			name: "位置引数の後ろのフラグ",
			args: []string{"Config.js", "-o", "out/game.espg", "--verify", "--summary"},
			expected: Config{
				Command: CommandBuild, Path: "Config.js", Output: "out/game.espg",
				Verify: true, Summary: true,
				LogLevel: "info", LogFormat: "auto",
			},
		},
		{
			name: "監視モード（短縮形）",
			args: []string{"build", "-w", "Config.js"},
			expected: Config{
				Command: CommandBuild, Path: "Config.js", Watch: true,
				LogLevel: "info", LogFormat: "auto",
			},
		},
		{
			name: "グローバルフラグをコマンドの後ろに書く",
			args: []string{"build", "Config.js", "-l", "debug", "--log-format=json"},
			expected: Config{
				Command: CommandBuild, Path: "Config.js",
				LogLevel: "debug", LogFormat: "json",
			},
		},
		{
			name: "= 形式の出力指定",
			args: []string{"--log-level", "warn", "build", "--output=a.espg", "Config.js"},
			expected: Config{
				Command: CommandBuild, Path: "Config.js", Output: "a.espg",
				LogLevel: "warn", LogFormat: "auto",
			},
		},
		{
			name: "inspect コマンド",
			args: []string{"inspect", "pacman.espg", "--disasm"},
			expected: Config{
				Command: CommandInspect, Path: "pacman.espg", Disasm: true,
				LogLevel: "info", LogFormat: "auto",
			},
		},
		{
			name: "disasm コマンド",
			args: []string{"disasm", "Config.js"},
			expected: Config{
				Command: CommandDisasm, Path: "Config.js",
				LogLevel: "info", LogFormat: "auto",
			},
		},
		{
			name: "-- 以降はファイル名",
			args: []string{"build", "--", "-odd.js"},
			expected: Config{
				Command: CommandBuild, Path: "-odd.js",
				LogLevel: "info", LogFormat: "auto",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			config, err := Parse(tt.args, &out)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(*config, tt.expected) {
				t.Errorf("config = %+v, want %+v", *config, tt.expected)
			}
			if out.Len() != 0 {
				t.Errorf("unexpected output: %q", out.String())
			}
		})
	}
}

func TestParse_Help(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{"引数なし", []string{}, "espgc"},
		{"--help", []string{"--help"}, "LOG_LEVEL"},
		{"-h", []string{"-h"}, "inspect"},
		{"help コマンド", []string{"help"}, "disasm"},
		{"build のヘルプ", []string{"build", "--help"}, "--watch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			config, err := Parse(tt.args, &out)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !config.ShowHelp {
				t.Error("ShowHelp should be true")
			}
			if !strings.Contains(out.String(), tt.contains) {
				t.Errorf("help output does not contain %q:\n%s", tt.contains, out.String())
			}
		})
	}
}

func TestParse_InvalidArgs(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"無効なログレベル", []string{"-l", "verbose", "Config.js"}, "invalid log level"},
		{"無効なログ形式", []string{"--log-format", "xml", "Config.js"}, "invalid log format"},
		{"ファイル指定なし", []string{"build"}, "missing"},
		{"ファイルが多すぎる", []string{"inspect", "a.espg", "b.espg"}, "expected one argument"},
		{"未定義のフラグ", []string{"build", "--fast", "Config.js"}, "fast"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			_, err := Parse(tt.args, &out)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestParse_EnvironmentVariables(t *testing.T) {
	clearEnv(t)

	t.Run("環境変数からログ設定", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "DEBUG")
		t.Setenv("LOG_FORMAT", "text")

		config, err := Parse([]string{"Config.js"}, &bytes.Buffer{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.LogLevel != "debug" || config.LogFormat != "text" {
			t.Errorf("got level %q format %q", config.LogLevel, config.LogFormat)
		}
	})

	t.Run("コマンドラインフラグが優先", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "debug")

		config, err := Parse([]string{"Config.js", "-l", "error"}, &bytes.Buffer{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.LogLevel != "error" {
			t.Errorf("LogLevel = %q, want error", config.LogLevel)
		}
	})
}

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"フラグのみ", []string{"--verify"}, []string{"--verify"}},
		{"値付きフラグが後ろ", []string{"a.js", "-o", "x.espg"}, []string{"-o", "x.espg", "a.js"}},
		{"ブールフラグは値を取らない", []string{"--watch", "a.js"}, []string{"--watch", "a.js"}},
		{"= 形式", []string{"a.js", "--output=x.espg"}, []string{"--output=x.espg", "a.js"}},
		{"区切り", []string{"--verify", "--", "-a.js"}, []string{"--verify", "--", "-a.js"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reorderArgs(tt.args)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("reorderArgs(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"空", nil, nil},
		{"コマンド補完", []string{"a.js"}, []string{"build", "a.js"}},
		{"グローバルフラグを先頭へ", []string{"inspect", "p.espg", "-l", "debug"}, []string{"-l", "debug", "inspect", "p.espg"}},
		{"アプリのヘルプ", []string{"--help"}, []string{"--help"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeArgs(tt.args)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("normalizeArgs(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}
