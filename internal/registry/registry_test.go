package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hackhunters/docqa/pkg/models"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := New(Config{DBPath: filepath.Join(t.TempDir(), "registry.db")})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func testDoc(id, owner string) models.Document {
	return models.Document{
		ID:       id,
		OwnerID:  owner,
		FileName: "rules.pdf",
		Size:     1024,
	}
}

func TestCreateAndGet(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	if err := reg.Create(ctx, testDoc("doc-1", "user-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := reg.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != models.StatusProcessing {
		t.Errorf("status = %q, want %q by default", got.Status, models.StatusProcessing)
	}
	if got.FileName != "rules.pdf" || got.Size != 1024 {
		t.Errorf("Get() = %+v", got)
	}
	if got.UploadedAt.IsZero() {
		t.Error("UploadedAt should be set")
	}

	if _, err := reg.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	if err := reg.Create(ctx, models.Document{OwnerID: "user-1"}); err == nil {
		t.Error("Create() should require an ID")
	}
	if err := reg.Create(ctx, models.Document{ID: "doc-1"}); err == nil {
		t.Error("Create() should require an owner")
	}
}

func TestGetOwned(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	if err := reg.Create(ctx, testDoc("doc-1", "user-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := reg.GetOwned(ctx, "doc-1", "user-1"); err != nil {
		t.Errorf("GetOwned() by owner error = %v", err)
	}

	// Another user's document reads as not found, not forbidden.
	if _, err := reg.GetOwned(ctx, "doc-1", "user-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetOwned() by stranger error = %v, want ErrNotFound", err)
	}
}

func TestListByOwner(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	older := testDoc("doc-old", "user-1")
	older.UploadedAt = time.Now().Add(-time.Hour)
	newer := testDoc("doc-new", "user-1")
	newer.UploadedAt = time.Now()
	other := testDoc("doc-other", "user-2")

	for _, doc := range []models.Document{older, newer, other} {
		if err := reg.Create(ctx, doc); err != nil {
			t.Fatalf("Create(%s) error = %v", doc.ID, err)
		}
	}

	docs, err := reg.ListByOwner(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0].ID != "doc-new" || docs[1].ID != "doc-old" {
		t.Errorf("order = [%s %s], want newest first", docs[0].ID, docs[1].ID)
	}

	empty, err := reg.ListByOwner(ctx, "user-nobody")
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("got %d documents for unknown owner, want 0", len(empty))
	}
}

func TestStatusTransitions(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	if err := reg.Create(ctx, testDoc("doc-1", "user-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := reg.MarkReady(ctx, "doc-1", 12, 48, 35000); err != nil {
		t.Fatalf("MarkReady() error = %v", err)
	}
	got, err := reg.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != models.StatusReady {
		t.Errorf("status = %q, want ready", got.Status)
	}
	if got.PageCount != 12 || got.ChunkCount != 48 || got.TotalChars != 35000 {
		t.Errorf("counts = %d/%d/%d", got.PageCount, got.ChunkCount, got.TotalChars)
	}

	if err := reg.MarkFailed(ctx, "doc-1", "EMBEDDING_FAILED"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	got, err = reg.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != models.StatusFailed || got.ErrorCode != "EMBEDDING_FAILED" {
		t.Errorf("after MarkFailed: status=%q code=%q", got.Status, got.ErrorCode)
	}

	if err := reg.MarkReady(ctx, "missing", 1, 1, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkReady(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	if err := reg.Create(ctx, testDoc("doc-1", "user-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := reg.Delete(ctx, "doc-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := reg.Get(ctx, "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}

	// Deleting a document that never existed is a no-op.
	if err := reg.Delete(ctx, "never-uploaded"); err != nil {
		t.Errorf("Delete(unknown) error = %v", err)
	}
}
