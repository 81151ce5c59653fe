// Package config extracts the variable table, the initial values and the
// typed build configuration from the top-level declarations of a parsed
// source file.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/text/cases"

	"github.com/zurustar/espg/pkg/compiler/ast"
	"github.com/zurustar/espg/pkg/compiler/diag"
	"github.com/zurustar/espg/pkg/compiler/symtab"
	"github.com/zurustar/espg/pkg/logger"
)

// Defaults applied when the config object omits a field.
const (
	DefaultAssetFolder = "assets"
	DefaultOutput      = "game.espg"
)

// Names of the declarations with a special meaning.
const (
	configVarName = "config"
	assetsVarName = "assets"
)

// AssetKind is the asset category stored in the asset table.
type AssetKind uint8

const (
	KindSprite AssetKind = 0
	KindImage  AssetKind = 1
)

func (k AssetKind) String() string {
	switch k {
	case KindSprite:
		return "sprite"
	case KindImage:
		return "image"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// PixelFormat is the pixel encoding stored in the asset table format flag.
type PixelFormat uint8

const (
	FormatRGB565   PixelFormat = 0
	FormatIndexed8 PixelFormat = 1
	FormatIndexed4 PixelFormat = 2
	FormatPNG      PixelFormat = 3
)

var formatNames = map[string]PixelFormat{
	"rgb565":   FormatRGB565,
	"indexed8": FormatIndexed8,
	"indexed4": FormatIndexed4,
	"png":      FormatPNG,
}

func (f PixelFormat) String() string {
	for name, v := range formatNames {
		if v == f {
			return name
		}
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// ParsePixelFormat looks up a format name case-insensitively.
func ParsePixelFormat(name string) (PixelFormat, bool) {
	f, ok := formatNames[cases.Fold().String(name)]
	return f, ok
}

// AssetDeclaration is one entry of the `assets` list.
type AssetDeclaration struct {
	Name   string
	Kind   AssetKind
	Format PixelFormat
	// Width and Height request a resample before encoding; zero keeps the
	// source size (one zero dimension keeps the aspect ratio).
	Width  int
	Height int
	// Dither enables Floyd-Steinberg error diffusion for indexed formats.
	Dither bool
}

// Config is the typed build configuration.
type Config struct {
	SourcePath    string
	AssetFolder   string
	Output        string
	CompressLogic bool
	// EventTable serializes the collected touch handlers into the event table.
	// Handlers are always emitted inline in the bytecode.
	EventTable bool
	Assets     []AssetDeclaration
	// GameLogic holds the top-level expression statements and function
	// declarations, in source order.
	GameLogic []ast.Statement
}

// rawConfig is the mapstructure target for the generic config map.
type rawConfig struct {
	AssetFolder   *string    `js:"asset_folder"`
	Output        *string    `js:"output"`
	CompressLogic *bool      `js:"compress_logic"`
	EventTable    *bool      `js:"event_table"`
	Assets        []rawAsset `js:"assets"`
}

type rawAsset struct {
	Name   string `js:"name"`
	Type   string `js:"type"`
	Format string `js:"format"`
	Width  int    `js:"width"`
	Height int    `js:"height"`
	Dither bool   `js:"dither"`
}

// Result is the output of Extract.
type Result struct {
	Vars          *symtab.Table
	InitialValues symtab.InitialValues
	Config        *Config
}

// Extract walks the top-level statements of prog.
//
// Parameters:
//   - prog: The parsed program
//   - sourcePath: Path of the source file; relative paths in the config resolve against its directory
//
// Returns:
//   - *Result: Variable table, initial values and typed config
//   - error: ConfigMissing, InvalidConfig, UnsupportedPixelFormat, UnsupportedNode or TooManyVariables
func Extract(prog *ast.Program, sourcePath string) (*Result, error) {
	vars := symtab.New()
	initial := symtab.InitialValues{}

	var (
		configMap  map[string]any
		assetsList []any
		haveAssets bool
		gameLogic  []ast.Statement
	)

	for _, stmt := range prog.Statements {
		switch s := stmt.(type) {
		case *ast.VarDecl:
			for _, d := range s.Names {
				idx, fresh, err := vars.Declare(d.Name)
				if err != nil {
					e := err.(*diag.Error)
					e.Line, e.Column = d.Pos.Line, d.Pos.Column
					return nil, e
				}
				if fresh {
					if v, ok := initialValue(d.Init); ok {
						initial[idx] = v
					}
				}
				switch {
				case d.Name == configVarName:
					if obj, ok := d.Init.(*ast.ObjectLit); ok {
						configMap = extractObject(obj)
					}
				case d.Name == assetsVarName:
					if arr, ok := d.Init.(*ast.ArrayLit); ok {
						assetsList = extractArray(arr)
						haveAssets = true
					}
				}
			}
		case *ast.ExpressionStmt, *ast.FunctionDecl:
			gameLogic = append(gameLogic, stmt)
		default:
			p := stmt.Position()
			return nil, diag.At(diag.UnsupportedNode, p.Line, p.Column,
				"unsupported top-level statement %s", stmt.Kind())
		}
	}

	if configMap == nil {
		return nil, diag.New(diag.ConfigMissing, "no object literal bound to %q", configVarName)
	}
	if haveAssets {
		configMap["assets"] = assetsList
	}

	cfg, err := decode(configMap, sourcePath)
	if err != nil {
		return nil, err
	}
	cfg.GameLogic = gameLogic

	return &Result{Vars: vars, InitialValues: initial, Config: cfg}, nil
}

// initialValue returns the value recorded for an integer, boolean or string initializer.
func initialValue(init ast.Expression) (any, bool) {
	lit, ok := init.(*ast.Literal)
	if !ok {
		return nil, false
	}
	switch lit.LitKind {
	case ast.IntLiteral:
		return lit.Int, true
	case ast.BoolLiteral:
		if lit.Bool {
			return int64(1), true
		}
		return int64(0), true
	case ast.StringLiteral:
		return lit.Str, true
	default:
		return nil, false
	}
}

// extractObject deep-extracts an object literal. Property values that are
// not literals, arrays or objects are dropped.
func extractObject(o *ast.ObjectLit) map[string]any {
	out := make(map[string]any, len(o.Properties))
	for _, p := range o.Properties {
		switch v := p.Value.(type) {
		case *ast.Literal:
			out[p.Key] = v.Value()
		case *ast.ArrayLit:
			out[p.Key] = extractArray(v)
		case *ast.ObjectLit:
			out[p.Key] = extractObject(v)
		}
	}
	return out
}

// extractArray extracts literal and object elements; other elements become nil.
func extractArray(a *ast.ArrayLit) []any {
	out := make([]any, len(a.Elements))
	for i, el := range a.Elements {
		switch v := el.(type) {
		case *ast.Literal:
			out[i] = v.Value()
		case *ast.ObjectLit:
			out[i] = extractObject(v)
		}
	}
	return out
}

// decode converts the generic config map into a Config.
func decode(m map[string]any, sourcePath string) (*Config, error) {
	var raw rawConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "js",
		Result:  &raw,
	})
	if err != nil {
		return nil, diag.Wrap(diag.InvalidConfig, err, "failed to build config decoder")
	}
	if err := dec.Decode(m); err != nil {
		return nil, diag.Wrap(diag.InvalidConfig, err, "invalid %s object", configVarName)
	}

	baseDir := filepath.Dir(sourcePath)
	cfg := &Config{
		SourcePath:    sourcePath,
		AssetFolder:   resolvePath(baseDir, stringOr(raw.AssetFolder, DefaultAssetFolder)),
		Output:        resolvePath(baseDir, stringOr(raw.Output, DefaultOutput)),
		CompressLogic: true,
	}
	if raw.CompressLogic != nil {
		cfg.CompressLogic = *raw.CompressLogic
	}
	if raw.EventTable != nil {
		cfg.EventTable = *raw.EventTable
	}

	fold := cases.Fold()
	for i, a := range raw.Assets {
		if a.Name == "" {
			return nil, diag.New(diag.InvalidConfig, "asset %d has no name", i)
		}
		if a.Width < 0 || a.Height < 0 {
			return nil, diag.New(diag.InvalidConfig, "asset %q has a negative size", a.Name)
		}
		decl := AssetDeclaration{
			Name:   a.Name,
			Kind:   KindSprite,
			Format: FormatRGB565,
			Width:  a.Width,
			Height: a.Height,
			Dither: a.Dither,
		}
		switch t := fold.String(a.Type); t {
		case "", "sprite":
		case "image":
			decl.Kind = KindImage
		default:
			logger.GetLogger().Warn("Unknown asset type, treating as image", "asset", a.Name, "type", a.Type)
			decl.Kind = KindImage
		}
		if a.Format != "" {
			f, ok := ParsePixelFormat(a.Format)
			if !ok {
				return nil, diag.New(diag.UnsupportedPixelFormat,
					"asset %q: unknown pixel format %q (want rgb565, indexed8, indexed4 or png)", a.Name, a.Format)
			}
			decl.Format = f
		}
		cfg.Assets = append(cfg.Assets, decl)
	}

	return cfg, nil
}

func stringOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

// resolvePath joins a relative config path onto the source directory.
// A relative source path yields a relative result, as used with an injected
// file system.
func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}
