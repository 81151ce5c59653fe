package container

import (
	"os"
	"path/filepath"

	"github.com/zurustar/espg/pkg/compiler/diag"
)

// Write encodes f and stores it at path atomically: the bytes go to a
// temporary file in the destination directory, which is synced and renamed
// over path. On failure the temporary file is removed and nothing is left at
// path. A missing destination directory is created.
func Write(path string, f *File) error {
	data, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	return WriteBytes(path, data)
}

// WriteBytes stores already encoded package bytes at path atomically.
func WriteBytes(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return diag.Wrap(diag.AssemblyError, err, "creating output directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return diag.Wrap(diag.AssemblyError, err, "creating temporary file in %s", dir)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return diag.Wrap(diag.AssemblyError, err, "writing %s", path)
	}
	if err := tmp.Sync(); err != nil {
		return diag.Wrap(diag.AssemblyError, err, "syncing %s", path)
	}
	if err := tmp.Close(); err != nil {
		return diag.Wrap(diag.AssemblyError, err, "closing %s", path)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return diag.Wrap(diag.AssemblyError, err, "setting permissions on %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return diag.Wrap(diag.AssemblyError, err, "renaming output to %s", path)
	}
	return nil
}

// Read loads and parses the package at path.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, diag.Wrap(diag.AssemblyError, err, "reading %s", path)
	}
	return Parse(data)
}
