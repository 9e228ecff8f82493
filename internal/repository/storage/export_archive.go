package storage

import (
	"context"

	"github.com/google/uuid"
)

// ExportArchive stores audit copies of exported batch payloads. The
// authoritative payload lives in Postgres; the archive is best effort and
// its failures must not fail a batch build.
type ExportArchive interface {
	Put(ctx context.Context, batchID uuid.UUID, payload []byte) (string, error)
	Delete(ctx context.Context, objectPath string) error
}

// NoOpArchive is wired when no archive bucket is configured.
type NoOpArchive struct{}

// Put does nothing and reports an empty object path.
func (NoOpArchive) Put(ctx context.Context, batchID uuid.UUID, payload []byte) (string, error) {
	return "", nil
}

// Delete does nothing.
func (NoOpArchive) Delete(ctx context.Context, objectPath string) error { return nil }
