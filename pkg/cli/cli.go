package cli

import (
	"fmt"
	"io"
	"strings"

	ucli "github.com/urfave/cli/v2"

	"github.com/zurustar/espg/pkg/logger"
)

// コマンド名
const (
	CommandBuild   = "build"
	CommandInspect = "inspect"
	CommandDisasm  = "disasm"
)

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	Command   string // 実行するコマンド（build, inspect, disasm）
	Path      string // 設定ファイル（build, disasm）またはパッケージ（inspect）のパス
	Output    string // 出力先の上書き（build）
	Watch     bool   // 変更を監視して再ビルド（build）
	Verify    bool   // 書き込み後にパッケージを検証（build）
	Summary   bool   // アセット一覧を表示（build）
	Disasm    bool   // バイトコードを逆アセンブル（inspect）
	LogLevel  string // ログレベル（debug, info, warn, error）
	LogFormat string // ログ形式（auto, text, json）
	ShowHelp  bool   // ヘルプを表示しただけで終了する
}

// 値を取るグローバルフラグ。サブコマンドの後ろに書かれても先頭へ移す
var globalFlags = map[string]bool{
	"-l":           true,
	"--log-level":  true,
	"--log-format": true,
}

// 値を取らないフラグ
var boolFlags = map[string]bool{
	"-h":        true,
	"--help":    true,
	"-w":        true,
	"--watch":   true,
	"--verify":  true,
	"--summary": true,
	"--disasm":  true,
}

var commandNames = map[string]bool{
	CommandBuild:   true,
	CommandInspect: true,
	CommandDisasm:  true,
	"help":         true,
	"h":            true,
}

// Parse コマンドライン引数を解析する。ヘルプと使い方の表示は w に書き出す
func Parse(args []string, w io.Writer) (*Config, error) {
	config := &Config{}
	app := newApp(config, w)

	if err := app.Run(append([]string{app.Name}, normalizeArgs(args)...)); err != nil {
		return nil, err
	}

	// どのコマンドのActionも実行されなかった場合はヘルプ表示のみ
	if config.Command == "" {
		config.ShowHelp = true
	}
	return config, nil
}

// newApp はサブコマンドの Action で config を埋める urfave/cli のアプリを作る
func newApp(config *Config, w io.Writer) *ucli.App {
	usageError := func(_ *ucli.Context, err error, _ bool) error {
		return err
	}

	return &ucli.App{
		Name:      "espgc",
		Usage:     "JavaScriptの設定ファイルから .espg ゲームパッケージを生成する",
		UsageText: "espgc [グローバルオプション] <コマンド> [オプション] <ファイル>\n   espgc [グローバルオプション] <config.js> [オプション]",
		Description: `コマンドを省略してファイルを指定した場合は build として扱う。
フラグは位置引数の前後どちらにも書ける。

環境変数:
  LOG_LEVEL=<level>     ログレベル
  LOG_FORMAT=<format>   ログ形式

例:
  espgc pacman/Config.js                 pacman/pacman.espg を生成
  espgc build Config.js -o out.espg      出力先を指定
  espgc build Config.js --watch          変更を監視して再ビルド
  espgc inspect pacman.espg --disasm     パッケージの中身を表示
  espgc --log-level debug Config.js      デバッグログを有効化`,
		Writer:       w,
		ErrWriter:    w,
		OnUsageError: usageError,
		Flags: []ucli.Flag{
			&ucli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "ログレベル: debug, info, warn, error",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&ucli.StringFlag{
				Name:    "log-format",
				Value:   logger.FormatAuto,
				Usage:   "ログ形式: auto（端末ならtext、それ以外はjson）, text, json",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Before: func(c *ucli.Context) error {
			// 環境変数は大文字でも受け付ける
			config.LogLevel = strings.ToLower(c.String("log-level"))
			config.LogFormat = strings.ToLower(c.String("log-format"))
			return validate(config)
		},
		Action: func(c *ucli.Context) error {
			return ucli.ShowAppHelp(c)
		},
		Commands: []*ucli.Command{
			{
				Name:         CommandBuild,
				Usage:        "設定ファイルをコンパイルしてパッケージを書き出す",
				ArgsUsage:    "<config.js>",
				OnUsageError: usageError,
				Flags: []ucli.Flag{
					&ucli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "出力先（設定の output より優先）"},
					&ucli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "設定ファイルとアセットフォルダを監視して再ビルド"},
					&ucli.BoolFlag{Name: "verify", Usage: "書き込んだパッケージを読み直して検証"},
					&ucli.BoolFlag{Name: "summary", Usage: "アセットの一覧を表示"},
				},
				Action: func(c *ucli.Context) error {
					path, err := singleArg(c)
					if err != nil {
						return err
					}
					config.Command = CommandBuild
					config.Path = path
					config.Output = c.String("output")
					config.Watch = c.Bool("watch")
					config.Verify = c.Bool("verify")
					config.Summary = c.Bool("summary")
					return nil
				},
			},
			{
				Name:         CommandInspect,
				Usage:        "パッケージのヘッダとアセット表を表示",
				ArgsUsage:    "<file.espg>",
				OnUsageError: usageError,
				Flags: []ucli.Flag{
					&ucli.BoolFlag{Name: "disasm", Usage: "ゲームロジックを逆アセンブルして表示"},
				},
				Action: func(c *ucli.Context) error {
					path, err := singleArg(c)
					if err != nil {
						return err
					}
					config.Command = CommandInspect
					config.Path = path
					config.Disasm = c.Bool("disasm")
					return nil
				},
			},
			{
				Name:         CommandDisasm,
				Usage:        "書き出さずにコンパイルしてバイトコードを表示",
				ArgsUsage:    "<config.js>",
				OnUsageError: usageError,
				Action: func(c *ucli.Context) error {
					path, err := singleArg(c)
					if err != nil {
						return err
					}
					config.Command = CommandDisasm
					config.Path = path
					return nil
				},
			},
		},
	}
}

func singleArg(c *ucli.Context) (string, error) {
	switch c.NArg() {
	case 0:
		return "", fmt.Errorf("%s: missing %s argument", c.Command.Name, c.Command.ArgsUsage)
	case 1:
		return c.Args().First(), nil
	default:
		return "", fmt.Errorf("%s: expected one argument, got %d", c.Command.Name, c.NArg())
	}
}

func validate(config *Config) error {
	if _, err := logger.ParseLevel(config.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}
	switch config.LogFormat {
	case logger.FormatAuto, logger.FormatText, logger.FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid log format: %s (must be auto, text, or json)", config.LogFormat)
	}
}

// normalizeArgs グローバルフラグを先頭に集め、コマンド名を補い、
// コマンドの引数はフラグが前に来るように並べ替える
func normalizeArgs(args []string) []string {
	var global, rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if globalFlags[arg] {
			global = append(global, arg)
			if i+1 < len(args) {
				i++
				global = append(global, args[i])
			}
			continue
		}
		if name, _, ok := strings.Cut(arg, "="); ok && globalFlags[name] {
			global = append(global, arg)
			continue
		}
		rest = append(rest, arg)
	}

	if len(rest) == 0 {
		return global
	}

	cmd := rest[0]
	switch {
	case commandNames[cmd]:
		rest = rest[1:]
	case len(rest) == 1 && (cmd == "-h" || cmd == "--help"):
		// espgc --help はアプリ全体のヘルプ
		return append(global, cmd)
	default:
		// コマンド省略時は build
		cmd = CommandBuild
	}

	out := append(global, cmd)
	return append(out, reorderArgs(rest)...)
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string
	terminated := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "--" 以降はすべて位置引数
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			terminated = true
			break
		}

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 1 && arg[0] == '-' {
			flags = append(flags, arg)

			// 次の引数が値である可能性をチェック（-o out.espg のような場合）
			if !boolFlags[arg] && !strings.Contains(arg, "=") &&
				i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置
	if terminated {
		flags = append(flags, "--")
	}
	return append(flags, positional...)
}
