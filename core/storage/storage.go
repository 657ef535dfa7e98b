// Package storage defines where uploaded documents and synthesized lessons
// are kept.
package storage

import (
	"context"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlobStore persists a blob under key and returns a URL it can be read back
// from.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (url string, err error)
}

const (
	PrefixUploads = "uploads"
	PrefixLessons = "lessons"
)

// NewKey builds a unique, date partitioned key such as
// lessons/2025/03/14/<uuid>.wav.
func NewKey(prefix, contentType string, now time.Time) string {
	ext := ""
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	switch {
	case strings.HasPrefix(contentType, "audio/wav"), contentType == "audio/x-wav":
		ext = ".wav"
	case contentType == "application/pdf":
		ext = ".pdf"
	case strings.HasPrefix(contentType, "text/plain"):
		ext = ".txt"
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return path.Join(prefix, now.UTC().Format("2006/01/02"), id.String()+ext)
}
