package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when a backup key does not exist
var ErrObjectNotFound = errors.New("object not found")

// BackupStore persists serialized ledger snapshots
type BackupStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns keys under prefix, newest first
	List(ctx context.Context, prefix string) ([]string, error)
	GeneratePresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// BackupPrefix is the key prefix owned by one user
func BackupPrefix(userID uuid.UUID) string {
	return fmt.Sprintf("backups/%s/", userID)
}

// BackupKey builds the object key for a snapshot taken at t
func BackupKey(userID uuid.UUID, t time.Time) string {
	return BackupPrefix(userID) + t.UTC().Format("20060102T150405.000Z") + ".json"
}
