package export

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestMemoryStore_PutOpen(t *testing.T) {
	store := NewMemoryStore()
	ref, err := store.Put(context.Background(), "a/report.pdf", strings.NewReader("pdf"), ArtifactMeta{ContentType: "application/pdf"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ref.Meta.Size != 3 || ref.Meta.CreatedAt.IsZero() {
		t.Fatalf("unexpected meta %+v", ref.Meta)
	}

	rc, meta, err := store.Open(context.Background(), "a/report.pdf")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "pdf" || meta.ContentType != "application/pdf" {
		t.Fatalf("unexpected artifact %q %+v", data, meta)
	}
}

func TestMemoryStore_Errors(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Put(context.Background(), "", strings.NewReader(""), ArtifactMeta{}); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, _, err := store.Open(context.Background(), "missing"); KindFromError(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
