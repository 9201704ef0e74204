// =============================================================================
// Donation Ledger - File Store
// =============================================================================
//
// This module abstracts the three file areas the pipeline works with:
//   - intake:    source files waiting to be imported
//   - processed: source files that were imported successfully
//   - output:    generated acknowledgement documents and run summaries
//
// An area is a directory for the local backend and a key prefix for the S3
// backend. Callers only see flat file names within an area.
//
// =============================================================================

package filestore

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ginjaninja78/donation-ledger/internal/config"
)

// ErrNotFound is returned when a named file does not exist in an area.
var ErrNotFound = eris.New("filestore: file not found")

// Entry is a file in an area.
type Entry struct {
	Name    string
	ModTime time.Time
}

// Store reads, writes and moves files between areas.
type Store interface {
	// List returns the files directly inside area. Subdirectories are ignored.
	List(ctx context.Context, area string) ([]Entry, error)

	// Read returns the content of area/name.
	Read(ctx context.Context, area, name string) ([]byte, error)

	// Move relocates name from one area to another, replacing any file of
	// the same name at the destination.
	Move(ctx context.Context, from, to, name string) error

	// Write creates or replaces area/name.
	Write(ctx context.Context, area, name string, data []byte) error

	// Exists reports whether area/name is present. A missing area is not an error.
	Exists(ctx context.Context, area, name string) (bool, error)
}

// Open returns the configured backend.
func Open(ctx context.Context, cfg config.FilesConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "local":
		return NewLocal(), nil
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, eris.Wrap(config.ErrMissingConfig, "files.s3.bucket")
		}
		return NewS3(ctx, cfg.S3.Bucket, cfg.S3.Region)
	default:
		return nil, eris.Errorf("filestore: unknown backend %q", cfg.Backend)
	}
}
