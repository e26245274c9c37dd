package local

import (
	"context"
	"io"
	"strings"
	"testing"

	"competitor-knowledge/internal/shared/storage/object"
)

func TestPutThenOpen(t *testing.T) {
	store := New(t.TempDir())
	key := object.RawResponseKey("a-1")

	n, err := store.Put(context.Background(), key, "text/plain", strings.NewReader(`{"competitors":[]}`))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != int64(len(`{"competitors":[]}`)) {
		t.Fatalf("unexpected size %d", n)
	}

	rc, err := store.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != `{"competitors":[]}` {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestPutRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Put(context.Background(), "../outside.txt", "text/plain", strings.NewReader("x")); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
}
