package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	einoindexer "github.com/cloudwego/eino/components/indexer"

	"github.com/dgallion1/pdfingest/internal/archive"
	"github.com/dgallion1/pdfingest/internal/metrics"
)

// ErrDuplicateFile is returned when two uploads of one job stage the same file name.
var ErrDuplicateFile = errors.New("duplicate file in job")

// Worker processes a single ingest job.
type Worker struct {
	ingester *Ingester
	indexer  einoindexer.Indexer
	log      *slog.Logger
}

// NewWorker creates a worker. A nil indexer leaves chunks on the job only.
func NewWorker(ingester *Ingester, indexer einoindexer.Indexer, log *slog.Logger) *Worker {
	return &Worker{ingester: ingester, indexer: indexer, log: log}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID)
	defer func() {
		metrics.JobsTotal.WithLabelValues(string(job.Snapshot().Status)).Inc()
	}()
	defer os.RemoveAll(job.Dir())

	// Phase 1: Stage uploads, expanding archives.
	job.SetStatus(StatusExpanding, "expanding")
	docsDir := filepath.Join(job.Dir(), "docs")
	if err := stageUploads(job.Uploads(), filepath.Join(job.Dir(), "expand"), docsDir); err != nil {
		log.Error("expand failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "expanding")
		return
	}

	// Phase 2: Extract page text and assemble documents.
	job.SetStatus(StatusExtracting, "extracting")
	batch, err := w.ingester.Assemble(ctx, docsDir)
	if batch != nil {
		job.SetFiles(len(batch.Documents) + len(batch.Skipped) + len(batch.Failures))
		job.SetBatch(batch)
	}
	if err != nil {
		log.Error("assemble failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "extracting")
		return
	}
	log.Info("assembled documents",
		"documents", len(batch.Documents),
		"skipped", len(batch.Skipped),
		"failed", len(batch.Failures),
	)

	// Phase 3: Chunk.
	job.SetStatus(StatusChunking, "chunking")
	chunks := w.ingester.Split(batch.Documents)
	job.SetChunks(chunks)

	// Phase 4: Hand off to the indexer.
	if w.indexer != nil {
		job.SetStatus(StatusIndexing, "indexing")
		ids, err := Publish(ctx, w.indexer, chunks)
		job.SetIndexed(len(ids))
		if err != nil {
			log.Error("index failed", "error", err, "indexed", len(ids))
			job.AddError(err.Error())
			job.SetStatus(StatusFailed, "indexing")
			return
		}
		log.Info("indexed chunks", "indexed", len(ids))
	}

	job.SetStatus(StatusCompleted, "done")
}

// stageUploads moves PDFs into docsDir and expands zips into it. Zips are
// expanded into their own folder under stageDir first, so a name that two
// uploads both provide is rejected instead of overwritten.
func stageUploads(uploads []string, stageDir, docsDir string) error {
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		return fmt.Errorf("create docs dir: %w", err)
	}

	staged := make(map[string]string)
	place := func(src, rel, upload string) error {
		if prev, ok := staged[rel]; ok {
			return fmt.Errorf("%s: %w (from %s and %s)", filepath.ToSlash(rel), ErrDuplicateFile, prev, upload)
		}
		staged[rel] = upload
		dst := filepath.Join(docsDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("stage %s: %w", rel, err)
		}
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("stage %s: %w", rel, err)
		}
		return nil
	}

	for i, path := range uploads {
		name := filepath.Base(path)
		switch strings.ToLower(filepath.Ext(name)) {
		case ".zip":
			dir := filepath.Join(stageDir, strconv.Itoa(i))
			files, err := archive.Expand(path, dir)
			if err != nil {
				return fmt.Errorf("expand %s: %w", name, err)
			}
			for _, f := range files {
				rel, err := filepath.Rel(dir, f)
				if err != nil {
					return fmt.Errorf("expand %s: %w", name, err)
				}
				if err := place(f, rel, name); err != nil {
					return err
				}
			}
		case ".pdf":
			if err := place(path, name, name); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported upload: %s", name)
		}
	}
	return nil
}
