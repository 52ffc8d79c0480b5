package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgallion1/pdfingest/internal/document"
	"github.com/dgallion1/pdfingest/internal/parser"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("test-1", "", nil, []string{"a.zip"})

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusExpanding, "expanding archives"},
		{StatusExtracting, "extracting pages"},
		{StatusChunking, "splitting into chunks"},
		{StatusIndexing, "publishing records"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
	if !job.Status.Terminal() {
		t.Error("expected completed to be terminal")
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("index batch 0 failed")
	job.AddError("index batch 1 failed")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "index batch 0 failed" {
		t.Errorf("expected first error %q, got %q", "index batch 0 failed", snap.Progress.Errors[0])
	}
}

func TestJob_SetBatch(t *testing.T) {
	job := &Job{ID: "batch-test", UpdatedAt: time.Now()}
	job.SetFiles(3)
	job.SetBatch(&parser.Batch{
		Documents: []document.Document{{Text: "x", Source: "a.pdf"}},
		Skipped:   []string{"empty.pdf"},
		Failures:  []parser.FileFailure{{Source: "bad.pdf", Error: "malformed"}},
	})

	snap := job.Snapshot()
	if snap.Progress.Files != 3 || snap.Progress.Documents != 1 {
		t.Errorf("expected files=3 documents=1, got %+v", snap.Progress)
	}
	if len(snap.Progress.Skipped) != 1 || len(snap.Progress.Failed) != 1 {
		t.Errorf("expected one skipped and one failed file, got %+v", snap.Progress)
	}
}

func TestJob_ChunksAreCopied(t *testing.T) {
	job := &Job{ID: "chunks-test", UpdatedAt: time.Now()}
	job.SetChunks([]document.Chunk{{Text: "one", Source: "a.pdf"}, {Text: "two", Source: "a.pdf", Index: 1}})

	got := job.Chunks()
	got[0].Text = "mutated"
	if job.Chunks()[0].Text != "one" {
		t.Error("expected Chunks to return a copy")
	}
	snap := job.Snapshot()
	if snap.Progress.Chunks != 2 {
		t.Errorf("expected 2 chunks, got %d", snap.Progress.Chunks)
	}
	if snap.Progress.Tokens != 2 {
		t.Errorf("expected 2 estimated tokens, got %d", snap.Progress.Tokens)
	}
}

func TestJob_SnapshotSlicesNotNil(t *testing.T) {
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil || snap.Progress.Skipped == nil || snap.Progress.Failed == nil {
		t.Error("expected non-nil slices in snapshot")
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	store.Put(&Job{ID: "store-1", UpdatedAt: time.Now()})

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	dir := filepath.Join(t.TempDir(), "old")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	expired := NewJob("old", dir, nil, nil)
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	store.Put(NewJob("new", "", nil, nil))
	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("expected expired job dir to be removed")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d", store.Len())
	}
}

func TestNewJobID(t *testing.T) {
	a, b := NewJobID(), NewJobID()
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("expected 26-char ULIDs, got %q and %q", a, b)
	}
	if a >= b {
		t.Errorf("expected monotonic IDs, got %q then %q", a, b)
	}
}
