// Package asset converts the declared image assets into the fixed pixel and
// palette formats of the espg container and compresses them.
//
// Conversion runs in parallel. Table offsets are assigned afterwards in
// declaration order so the blob layout never depends on scheduling.
package asset

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/zurustar/espg/pkg/compiler/config"
	"github.com/zurustar/espg/pkg/compiler/diag"
	"github.com/zurustar/espg/pkg/fileutil"
	"github.com/zurustar/espg/pkg/heatshrink"
	"github.com/zurustar/espg/pkg/logger"
)

// Entry describes one processed asset and its place in the blob.
type Entry struct {
	Name   string
	Kind   config.AssetKind
	Format config.PixelFormat
	// Offset is the absolute file offset of the compressed payload.
	Offset         uint32
	CompressedSize uint32
	RawSize        uint32
	Width          int
	Height         int
}

// Result holds the entries in declaration order and their concatenated
// compressed payloads.
type Result struct {
	Entries []Entry
	Blob    []byte
}

// Payload returns the compressed bytes of entry i.
func (r *Result) Payload(i int) []byte {
	start := 0
	for _, e := range r.Entries[:i] {
		start += int(e.CompressedSize)
	}
	return r.Blob[start : start+int(r.Entries[i].CompressedSize)]
}

// Processor reads assets through a FileSystem rooted at the asset folder.
type Processor struct {
	fsys    fileutil.FileSystem
	workers int
	log     *slog.Logger
}

// NewProcessor creates a Processor bounded to GOMAXPROCS concurrent conversions.
func NewProcessor(fsys fileutil.FileSystem) *Processor {
	return &Processor{
		fsys:    fsys,
		workers: runtime.GOMAXPROCS(0),
		log:     logger.GetLogger(),
	}
}

// WithWorkers overrides the conversion concurrency. n < 1 means 1.
func (p *Processor) WithWorkers(n int) *Processor {
	p.workers = max(n, 1)
	return p
}

// converted is the per-asset output of a worker.
type converted struct {
	compressed []byte
	rawSize    int
	width      int
	height     int
}

// Process converts and compresses every declaration and lays the payloads
// out contiguously starting at base.
//
// Parameters:
//   - ctx: Cancels pending conversions
//   - decls: The asset declarations in table order
//   - base: The absolute file offset of the first payload
//
// Returns:
//   - *Result: Entries with absolute offsets and the concatenated blob
//   - error: AssetFolderMissing, AssetFileMissing, AssetDecodeError or
//     UnsupportedPixelFormat from the first failing asset in
//     declaration order
func (p *Processor) Process(ctx context.Context, decls []config.AssetDeclaration, base uint32) (*Result, error) {
	if _, err := p.fsys.ReadDir("."); err != nil {
		return nil, diag.Wrap(diag.AssetFolderMissing, err, "asset folder %s not found", p.fsys.BasePath())
	}

	// Every declaration is converted; the error reported is the first in
	// declaration order.
	out := make([]converted, len(decls))
	errs := make([]error, len(decls))
	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, decl := range decls {
		i, decl := i, decl
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			out[i], errs[i] = p.convert(decl)
			return nil
		})
	}
	_ = g.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	res := &Result{Entries: make([]Entry, len(decls))}
	offset := uint64(base)
	for i, decl := range decls {
		c := out[i]
		if offset+uint64(len(c.compressed)) > math.MaxUint32 {
			return nil, diag.New(diag.AssemblyError, "asset %q ends beyond the 4 GiB offset range", decl.Name)
		}
		res.Entries[i] = Entry{
			Name:           decl.Name,
			Kind:           decl.Kind,
			Format:         decl.Format,
			Offset:         uint32(offset),
			CompressedSize: uint32(len(c.compressed)),
			RawSize:        uint32(c.rawSize),
			Width:          c.width,
			Height:         c.height,
		}
		res.Blob = append(res.Blob, c.compressed...)
		offset += uint64(len(c.compressed))

		p.log.Info("asset",
			"name", decl.Name,
			"kind", decl.Kind,
			"format", decl.Format,
			"offset", res.Entries[i].Offset,
			"compressed", len(c.compressed),
			"raw", c.rawSize)
	}
	return res, nil
}

// convert loads, encodes and compresses one asset.
func (p *Processor) convert(decl config.AssetDeclaration) (converted, error) {
	rel, err := p.fsys.FindFile(decl.Name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return converted{}, diag.Wrap(diag.AssetFileMissing, err, "asset %q not found in %s", decl.Name, p.fsys.BasePath())
		}
		return converted{}, diag.Wrap(diag.AssetDecodeError, err, "asset %q", decl.Name)
	}

	data, err := p.fsys.ReadFile(rel)
	if err != nil {
		return converted{}, diag.Wrap(diag.AssetDecodeError, err, "reading asset %q", decl.Name)
	}

	raw, size, err := Encode(data, decl)
	if err != nil {
		return converted{}, diag.Wrap(diag.AssetDecodeError, err, "asset %q", decl.Name)
	}

	compressed, err := heatshrink.Encode(raw, heatshrink.AssetParams)
	if err != nil {
		return converted{}, diag.Wrap(diag.AssemblyError, err, "compressing asset %q", decl.Name)
	}

	p.log.Debug("asset converted", "name", decl.Name, "file", rel, "width", size.X, "height", size.Y)
	return converted{
		compressed: compressed,
		rawSize:    len(raw),
		width:      size.X,
		height:     size.Y,
	}, nil
}
