package gcsuploader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Archiver stores raw uploads in a bucket before they are ingested.
type Archiver struct {
	storage StorageService
	bucket  string
	now     func() time.Time
	newID   func() string
}

// NewArchiver creates an Archiver writing to bucket.
func NewArchiver(storage StorageService, bucket string) *Archiver {
	return &Archiver{
		storage: storage,
		bucket:  bucket,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// ObjectName returns uploads/YYYY/MM/DD/<id>-<base filename>.
func ObjectName(filename string, at time.Time, id string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload.json"
	}
	return fmt.Sprintf("uploads/%s/%s-%s", at.UTC().Format("2006/01/02"), id, base)
}

// Archive uploads data and returns its gs:// URI.
func (a *Archiver) Archive(ctx context.Context, filename string, data []byte) (string, error) {
	object := ObjectName(filename, a.now(), a.newID())
	if err := a.storage.UploadBytes(ctx, a.bucket, object, data, "application/json"); err != nil {
		return "", fmt.Errorf("Archive: %w", err)
	}
	return "gs://" + a.bucket + "/" + object, nil
}
