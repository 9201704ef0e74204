package filestore

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Local is a Store on the local filesystem. Areas are directory paths.
type Local struct {
	// DirMode is used when an area directory has to be created.
	DirMode os.FileMode
}

// NewLocal creates a local file store.
func NewLocal() *Local {
	return &Local{DirMode: 0o755}
}

// List returns the regular files in the area directory. Hidden files are skipped.
func (l *Local) List(ctx context.Context, area string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(area)
	if err != nil {
		return nil, eris.Wrapf(err, "filestore: list %s", area)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, eris.Wrapf(err, "filestore: stat %s", de.Name())
		}
		if !info.Mode().IsRegular() {
			continue
		}
		entries = append(entries, Entry{Name: de.Name(), ModTime: info.ModTime()})
	}
	return entries, nil
}

// Read returns a file's content.
func (l *Local) Read(ctx context.Context, area, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(area, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(ErrNotFound, "%s/%s", area, name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "filestore: read %s", name)
	}
	return data, nil
}

// Move renames the file into the destination area, falling back to copy and
// delete when the areas are on different devices.
func (l *Local) Move(ctx context.Context, from, to, name string) error {
	src := filepath.Join(from, name)
	dst := filepath.Join(to, name)

	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(ErrNotFound, "%s/%s", from, name)
	}

	if err := os.MkdirAll(to, l.DirMode); err != nil {
		return eris.Wrapf(err, "filestore: create %s", to)
	}

	if err := os.Rename(src, dst); err != nil {
		if err := copyFile(src, dst); err != nil {
			return eris.Wrapf(err, "filestore: copy %s to %s", name, to)
		}
		if err := os.Remove(src); err != nil {
			return eris.Wrapf(err, "filestore: remove %s", src)
		}
	}
	return nil
}

// Write stores data through a temporary file so readers never see a partial file.
func (l *Local) Write(ctx context.Context, area, name string, data []byte) error {
	if err := os.MkdirAll(area, l.DirMode); err != nil {
		return eris.Wrapf(err, "filestore: create %s", area)
	}

	tmp, err := os.CreateTemp(area, "."+name+".*")
	if err != nil {
		return eris.Wrapf(err, "filestore: create temp for %s", name)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "filestore: write %s", name)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "filestore: close %s", name)
	}
	return eris.Wrapf(os.Rename(tmp.Name(), filepath.Join(area, name)), "filestore: commit %s", name)
}

// Exists reports whether area/name is a regular file.
func (l *Local) Exists(ctx context.Context, area, name string) (bool, error) {
	info, err := os.Stat(filepath.Join(area, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "filestore: stat %s", name)
	}
	return info.Mode().IsRegular(), nil
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}
