// Package compiler provides the compilation pipeline that turns a JavaScript
// config source into an .espg package.
//
// A compilation runs these phases in order, each borrowing the Session:
//  1. Load: read and decode the source file (pkg/script)
//  2. Parse: build the syntax tree (frontend)
//  3. Extract: variable table, initial values and typed config (config)
//  4. Generate: lower the game logic to bytecode (codegen)
//  5. Assets: convert and compress the declared images (pkg/asset)
//  6. Assemble: lay out and atomically write the package (pkg/container)
//
// This package provides a unified API:
//   - CompileFile: compiles a source file on disk
//   - Compile: the same with a context and an optional injected file system
//   - NewSession: runs the phases step by step
package compiler

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/zurustar/espg/pkg/asset"
	"github.com/zurustar/espg/pkg/compiler/ast"
	"github.com/zurustar/espg/pkg/compiler/codegen"
	"github.com/zurustar/espg/pkg/compiler/config"
	"github.com/zurustar/espg/pkg/compiler/diag"
	"github.com/zurustar/espg/pkg/compiler/frontend"
	"github.com/zurustar/espg/pkg/compiler/symtab"
	"github.com/zurustar/espg/pkg/container"
	"github.com/zurustar/espg/pkg/fileutil"
	"github.com/zurustar/espg/pkg/heatshrink"
	"github.com/zurustar/espg/pkg/logger"
	"github.com/zurustar/espg/pkg/script"
)

// Options provides configuration options for compilation.
type Options struct {
	// Output overrides the output path from the config object.
	Output string

	// Verify re-reads the written package and round-trips every region.
	Verify bool

	// DryRun compiles everything but writes nothing.
	DryRun bool

	// FS, when set, is used to read the source file and the asset folder.
	// Paths are then relative to its base.
	FS fileutil.FileSystem

	// Writer, when set, receives the package bytes instead of the output file.
	Writer io.Writer
}

// Result describes a finished compilation.
type Result struct {
	// Output is the path the package was written to, or would be.
	Output        string
	Config        *config.Config
	Vars          *symtab.Table
	InitialValues symtab.InitialValues
	Assets        []asset.Entry
	Events        []codegen.EventHandler
	// Code is the uncompressed bytecode; Logic is the region as stored.
	Code         []byte
	Logic        []byte
	RawLogicSize int
	Size         int
	File         *container.File
}

// CompileFile compiles the source file at path.
//
// Parameters:
//   - path: Path to the JavaScript config source
//   - opts: Compilation options
//
// Returns:
//   - *Result: The compiled package description
//   - error: A *diag.Error describing the first failure
func CompileFile(path string, opts Options) (*Result, error) {
	return Compile(context.Background(), path, opts)
}

// Compile compiles the source file at path. Cancelling ctx aborts the asset
// conversion phase.
func Compile(ctx context.Context, path string, opts Options) (*Result, error) {
	s := NewSession(opts)
	return s.Run(ctx, path)
}

// Session owns the state of one compilation run. Each phase reads what the
// previous phases stored and adds its own output.
type Session struct {
	opts Options
	log  *slog.Logger

	Script    *script.Script
	Program   *ast.Program
	Extracted *config.Result
	Generated *codegen.Output
	Assets    *asset.Result
	File      *container.File
}

// NewSession creates a Session for one run.
func NewSession(opts Options) *Session {
	return &Session{
		opts: opts,
		log:  logger.GetLogger(),
	}
}

// Run executes every phase and returns the result.
func (s *Session) Run(ctx context.Context, path string) (*Result, error) {
	if err := s.Load(path); err != nil {
		return nil, err
	}
	if err := s.Parse(); err != nil {
		return nil, err
	}
	if err := s.Extract(); err != nil {
		return nil, err
	}
	if err := s.Generate(); err != nil {
		return nil, err
	}
	if err := s.ProcessAssets(ctx); err != nil {
		return nil, err
	}
	return s.Assemble()
}

// Load reads the source file.
func (s *Session) Load(path string) error {
	var err error
	if s.opts.FS != nil {
		s.Script, err = script.LoadFS(s.opts.FS, path)
	} else {
		s.Script, err = script.Load(path)
	}
	if err != nil {
		return err
	}
	s.log.Debug("Loaded source", "path", s.Script.Path, "size", s.Script.Size)
	return nil
}

// Parse builds the syntax tree.
func (s *Session) Parse() error {
	prog, err := frontend.Parse(s.Script.FileName, s.Script.Content)
	if err != nil {
		return err
	}
	s.Program = prog
	s.log.Debug("Parsed source", "statements", len(prog.Statements))
	return nil
}

// Extract builds the variable table and the typed config.
func (s *Session) Extract() error {
	res, err := config.Extract(s.Program, s.Script.Path)
	if err != nil {
		return diag.WithContext(err, s.Script.Content)
	}
	if s.opts.Output != "" {
		res.Config.Output = s.opts.Output
	}
	s.Extracted = res
	s.log.Debug("Extracted config",
		"variables", res.Vars.Len(),
		"assets", len(res.Config.Assets),
		"asset_folder", res.Config.AssetFolder,
		"output", res.Config.Output)
	return nil
}

// Generate lowers the game logic to bytecode.
func (s *Session) Generate() error {
	out, err := codegen.New(s.Extracted.Vars).Generate(s.Extracted.Config.GameLogic)
	if err != nil {
		return diag.WithContext(err, s.Script.Content)
	}
	s.Generated = out
	s.log.Debug("Generated bytecode", "size", len(out.Code), "events", len(out.Events))
	return nil
}

// ProcessAssets converts the declared assets. Offsets start after the header,
// the asset table and the event table.
func (s *Session) ProcessAssets(ctx context.Context) error {
	cfg := s.Extracted.Config
	var fsys fileutil.FileSystem
	if s.opts.FS != nil {
		fsys = s.opts.FS.Sub(filepath.ToSlash(cfg.AssetFolder))
	} else {
		fsys = fileutil.NewRealFS(cfg.AssetFolder)
	}

	base := container.BlobOffset(len(cfg.Assets), len(s.eventEntries()))
	res, err := asset.NewProcessor(fsys).Process(ctx, cfg.Assets, base)
	if err != nil {
		return err
	}
	s.Assets = res
	s.log.Debug("Processed assets", "count", len(res.Entries), "blob", len(res.Blob))
	return nil
}

// eventEntries returns the serialized event table, empty unless enabled.
func (s *Session) eventEntries() []container.EventEntry {
	if !s.Extracted.Config.EventTable {
		return nil
	}
	events := make([]container.EventEntry, len(s.Generated.Events))
	for i, e := range s.Generated.Events {
		events[i] = container.EventEntry{
			Kind:    uint8(e.Kind),
			X:       e.X,
			Y:       e.Y,
			Radius:  e.Radius,
			Handler: e.Handler,
		}
	}
	return events
}

// Assemble compresses the logic, lays out the package and writes it.
func (s *Session) Assemble() (*Result, error) {
	cfg := s.Extracted.Config
	code := s.Generated.Code

	logic := code
	if cfg.CompressLogic {
		var err error
		logic, err = heatshrink.Encode(code, heatshrink.LogicParams)
		if err != nil {
			return nil, diag.Wrap(diag.AssemblyError, err, "compressing game logic")
		}
	}

	assets := make([]container.AssetEntry, len(s.Assets.Entries))
	for i, e := range s.Assets.Entries {
		assets[i] = container.AssetEntry{
			Kind:           uint8(e.Kind),
			Offset:         e.Offset,
			CompressedSize: e.CompressedSize,
			RawSize:        e.RawSize,
			Format:         uint8(e.Format),
		}
	}

	f, err := container.New(assets, s.eventEntries(), s.Assets.Blob, logic)
	if err != nil {
		return nil, err
	}
	s.File = f

	data, err := f.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if s.opts.Verify {
		if err := s.verify(data); err != nil {
			return nil, err
		}
	}
	if err := s.write(data); err != nil {
		return nil, err
	}
	if s.opts.Verify {
		if err := s.verifyWritten(data); err != nil {
			return nil, err
		}
	}

	s.log.Info("Compiled package",
		"output", cfg.Output,
		"size", len(data),
		"assets", len(assets),
		"logic", len(logic),
		"logic_raw", len(code))

	return &Result{
		Output:        cfg.Output,
		Config:        cfg,
		Vars:          s.Extracted.Vars,
		InitialValues: s.Extracted.InitialValues,
		Assets:        s.Assets.Entries,
		Events:        s.Generated.Events,
		Code:          code,
		Logic:         logic,
		RawLogicSize:  len(code),
		Size:          len(data),
		File:          f,
	}, nil
}

func (s *Session) write(data []byte) error {
	switch {
	case s.opts.DryRun:
		return nil
	case s.opts.Writer != nil:
		if _, err := s.opts.Writer.Write(data); err != nil {
			return diag.Wrap(diag.AssemblyError, err, "writing package")
		}
		return nil
	default:
		return container.WriteBytes(s.Extracted.Config.Output, data)
	}
}
