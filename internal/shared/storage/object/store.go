package object

import (
	"context"
	"io"
)

// ObjectStore archives opaque blobs (raw AI responses) under slash-separated keys.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// RawResponseKey returns the archive key for an analysis' raw AI text.
func RawResponseKey(analysisID string) string {
	return "analyses/" + analysisID + "/ai_raw.txt"
}
