// Package app はコマンドラインからのコンパイル、監視、パッケージ表示をまとめる
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/zurustar/espg/pkg/bytecode"
	"github.com/zurustar/espg/pkg/cli"
	"github.com/zurustar/espg/pkg/compiler"
	"github.com/zurustar/espg/pkg/logger"
)

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config *cli.Config
	log    *slog.Logger
	stdout io.Writer
}

// New Applicationを作成
func New() *Application {
	return &Application{
		stdout: os.Stdout,
	}
}

// WithOutput コマンドの出力先（ヘルプ、表、逆アセンブル）を差し替える
func (app *Application) WithOutput(w io.Writer) *Application {
	app.stdout = w
	return app
}

// Run アプリケーションを実行
// ctx がキャンセルされると監視モードは終了する
func (app *Application) Run(ctx context.Context, args []string) error {
	// 1. コマンドライン引数の解析
	config, err := cli.Parse(args, app.stdout)
	if err != nil {
		return err
	}
	app.config = config

	if app.config.ShowHelp {
		return nil
	}

	// 2. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.log.Debug("Application started", "command", app.config.Command, "path", app.config.Path)

	// 3. コマンドの実行
	switch app.config.Command {
	case cli.CommandBuild:
		if app.config.Watch {
			return app.watch(ctx)
		}
		_, err := app.build(ctx)
		return err
	case cli.CommandInspect:
		return app.inspect(app.config.Path, app.config.Disasm)
	case cli.CommandDisasm:
		return app.disasm(ctx)
	default:
		return fmt.Errorf("unknown command: %s", app.config.Command)
	}
}

// initLogger ロガーを初期化
func (app *Application) initLogger() error {
	if err := logger.InitLogger(app.config.LogLevel, app.config.LogFormat); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

// build 設定ファイルを1回コンパイルする
func (app *Application) build(ctx context.Context) (*compiler.Result, error) {
	res, err := compiler.Compile(ctx, app.config.Path, compiler.Options{
		Output: app.config.Output,
		Verify: app.config.Verify,
	})
	if err != nil {
		return nil, err
	}

	if app.config.Summary {
		printSummary(app.stdout, res)
	}
	return res, nil
}

// disasm 書き出さずにコンパイルし、生成したバイトコードを表示する
func (app *Application) disasm(ctx context.Context) error {
	res, err := compiler.Compile(ctx, app.config.Path, compiler.Options{DryRun: true})
	if err != nil {
		return err
	}
	return bytecode.NewDisassembler(app.stdout).
		WithVarNames(res.Vars.Names()).
		Disassemble(res.Code)
}
