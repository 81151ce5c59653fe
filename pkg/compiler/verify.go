package compiler

import (
	"bytes"
	"os"

	"github.com/zurustar/espg/pkg/bytecode"
	"github.com/zurustar/espg/pkg/compiler/diag"
	"github.com/zurustar/espg/pkg/container"
	"github.com/zurustar/espg/pkg/heatshrink"
)

// verify parses the assembled package and checks that every region decodes
// back to what was compiled. It runs before anything is written.
func (s *Session) verify(data []byte) error {
	f, err := container.Parse(data)
	if err != nil {
		return diag.Wrap(diag.AssemblyError, err, "verify")
	}

	for i, a := range f.Assets {
		payload, err := f.Payload(i)
		if err != nil {
			return diag.Wrap(diag.AssemblyError, err, "verify: asset %d", i)
		}
		raw, err := heatshrink.Decode(payload, heatshrink.AssetParams)
		if err != nil {
			return diag.Wrap(diag.AssemblyError, err, "verify: decompressing asset %d", i)
		}
		if len(raw) != int(a.RawSize) {
			return diag.New(diag.AssemblyError, "verify: asset %d decompressed to %d bytes, table says %d", i, len(raw), a.RawSize)
		}
	}

	code := f.Logic
	if s.Extracted.Config.CompressLogic {
		code, err = heatshrink.Decode(f.Logic, heatshrink.LogicParams)
		if err != nil {
			return diag.Wrap(diag.AssemblyError, err, "verify: decompressing logic")
		}
	}
	if !bytes.Equal(code, s.Generated.Code) {
		return diag.New(diag.AssemblyError, "verify: logic does not round-trip")
	}
	if err := bytecode.Validate(code); err != nil {
		return diag.Wrap(diag.AssemblyError, err, "verify: invalid bytecode")
	}

	s.log.Debug("Verified package", "assets", len(f.Assets), "events", len(f.Events))
	return nil
}

// verifyWritten re-reads the written package and compares it with data.
// A mismatching file is removed.
func (s *Session) verifyWritten(data []byte) error {
	if s.opts.DryRun || s.opts.Writer != nil {
		return nil
	}
	path := s.Extracted.Config.Output
	written, err := os.ReadFile(path)
	if err != nil {
		return diag.Wrap(diag.AssemblyError, err, "verify: re-reading output")
	}
	if !bytes.Equal(written, data) {
		if rmErr := os.Remove(path); rmErr != nil {
			s.log.Warn("Could not remove mismatching output", "path", path, "error", rmErr)
		}
		return diag.New(diag.AssemblyError, "verify: %s differs from the assembled package", path)
	}
	return nil
}
