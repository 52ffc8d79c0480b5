package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	einoindexer "github.com/cloudwego/eino/components/indexer"

	"github.com/dgallion1/pdfingest/internal/archive"
	"github.com/dgallion1/pdfingest/internal/chunker"
	"github.com/dgallion1/pdfingest/internal/document"
	"github.com/dgallion1/pdfingest/internal/metrics"
	"github.com/dgallion1/pdfingest/internal/parser"
)

// ErrNoDocuments is returned when no file in the corpus yields usable text.
var ErrNoDocuments = errors.New("no usable documents in corpus")

// Result is the output of one ingest run.
type Result struct {
	Batch  *parser.Batch
	Chunks []document.Chunk
}

// Ingester runs assemble then split over a folder of PDFs.
type Ingester struct {
	assembler *parser.Assembler
	chunkCfg  chunker.Config
	log       *slog.Logger
}

func NewIngester(assembler *parser.Assembler, chunkCfg chunker.Config, log *slog.Logger) *Ingester {
	return &Ingester{assembler: assembler, chunkCfg: chunkCfg, log: log}
}

// Assemble builds documents from every PDF in dir. It returns
// ErrNoDocuments, together with the batch, when none survive.
func (i *Ingester) Assemble(ctx context.Context, dir string) (*parser.Batch, error) {
	batch, err := i.assembler.AssembleFolder(ctx, dir)
	if err != nil {
		return nil, err
	}
	if len(batch.Documents) == 0 {
		return batch, ErrNoDocuments
	}
	return batch, nil
}

// Split chunks the documents and tags each chunk with its source.
func (i *Ingester) Split(docs []document.Document) []document.Chunk {
	chunks := chunker.SplitDocuments(docs, i.chunkCfg)
	metrics.ChunksTotal.Add(float64(len(chunks)))
	i.log.Info("created chunks",
		"chunks", len(chunks),
		"documents", len(docs),
		"est_tokens", chunker.EstimateChunkTokens(chunks),
	)
	return chunks
}

// IngestFolder assembles and splits the PDFs in dir. On ErrNoDocuments the
// Result still carries the batch; other errors return a nil Result.
func (i *Ingester) IngestFolder(ctx context.Context, dir string) (*Result, error) {
	batch, err := i.Assemble(ctx, dir)
	if batch == nil {
		return nil, err
	}
	if err != nil {
		return &Result{Batch: batch}, err
	}
	return &Result{Batch: batch, Chunks: i.Split(batch.Documents)}, nil
}

// IngestArchive expands zipPath into destDir and ingests the result.
// Expansion failure aborts the run.
func (i *Ingester) IngestArchive(ctx context.Context, zipPath, destDir string) (*Result, error) {
	files, err := archive.Expand(zipPath, destDir)
	if err != nil {
		return nil, fmt.Errorf("expand archive: %w", err)
	}
	i.log.Info("expanded archive", "zip", zipPath, "files", len(files))
	return i.IngestFolder(ctx, destDir)
}

// Publish hands the chunks to an indexer as eino documents and returns the
// stored IDs.
func Publish(ctx context.Context, idx einoindexer.Indexer, chunks []document.Chunk, opts ...einoindexer.Option) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	ids, err := idx.Store(ctx, document.Records(chunks), opts...)
	if err != nil {
		return ids, fmt.Errorf("store records: %w", err)
	}
	return ids, nil
}
