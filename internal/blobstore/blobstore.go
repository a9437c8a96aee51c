// Package blobstore defines the write-once object storage contract that
// backs CrawlTask.BlobRef, plus a minio-go production implementation.
package blobstore

import (
	"context"
	"io"
	"strconv"
)

// BlobStore is write-once per (task id, attempt): a second Put to the same
// key must fail rather than silently overwrite, since a completed task's
// blob may still be read by a later parse-only restart.
type BlobStore interface {
	// Put writes body under key, failing with apperrors.Duplicate if the
	// key already exists.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Key derives the conditional-put address for one task attempt, addressed
// by task id and attempt number as spec §5 requires.
func Key(taskID uint, attempt int) string {
	return "tasks/" + strconv.FormatUint(uint64(taskID), 10) + "/attempt-" + strconv.Itoa(attempt) + ".html"
}
