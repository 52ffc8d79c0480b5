package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/spf13/cobra"

	"github.com/dgallion1/pdfingest/internal/app"
	"github.com/dgallion1/pdfingest/internal/config"
	"github.com/dgallion1/pdfingest/internal/indexer"
	"github.com/dgallion1/pdfingest/internal/pipeline"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Extract, assemble and chunk a folder or zip of PDFs",
	Long: `Reads every PDF in a folder (or in a zip archive, after expanding it),
falls back to OCR for pages without a usable text layer, appends detected
table rows, and splits each document into overlapping chunks.

Chunks are written as JSON lines to --out, or sent to the indexing
service configured by INDEXER_URL when --publish is set.`,
	RunE: runIngest,
}

type ingestOptions struct {
	Dir       string
	Zip       string
	ExtractTo string
	Out       string
	Publish   bool
}

var ingestOpts ingestOptions

func init() {
	f := ingestCmd.Flags()
	f.StringVarP(&ingestOpts.Dir, "dir", "d", "", "Folder of PDF files")
	f.StringVarP(&ingestOpts.Zip, "zip", "z", "", "Zip archive of PDF files")
	f.StringVar(&ingestOpts.ExtractTo, "extract-to", "", "Keep the expanded archive in this folder (default: temporary)")
	f.StringVarP(&ingestOpts.Out, "out", "o", "-", "JSON lines output file, - for stdout")
	f.BoolVar(&ingestOpts.Publish, "publish", false, "Send chunks to the indexing service instead of --out")
	ingestCmd.MarkFlagsMutuallyExclusive("dir", "zip")
	ingestCmd.MarkFlagsOneRequired("dir", "zip")
	ingestCmd.MarkFlagsMutuallyExclusive("out", "publish")
}

func runIngest(cmd *cobra.Command, args []string) error {
	log := newLogger()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	components, err := app.Build(cfg, log)
	if err != nil {
		return err
	}
	defer components.Close()

	var idx einoindexer.Indexer
	if ingestOpts.Publish {
		h, err := indexer.NewHTTPIndexer(cfg.Indexer())
		if err != nil {
			return fmt.Errorf("--publish: %w", err)
		}
		idx = h
	} else {
		out, closeOut, err := openOutput(ingestOpts.Out)
		if err != nil {
			return err
		}
		defer closeOut()
		idx = indexer.NewJSONLWriter(out)
	}

	return ingest(cmd.Context(), components.Ingester, idx, ingestOpts, log)
}

// ingest runs one corpus through ing and stores the chunks in idx.
func ingest(ctx context.Context, ing *pipeline.Ingester, idx einoindexer.Indexer, opts ingestOptions, log *slog.Logger) error {
	var (
		res *pipeline.Result
		err error
	)
	switch {
	case opts.Zip != "":
		dest := opts.ExtractTo
		if dest == "" {
			tmp, terr := os.MkdirTemp("", "pdfingest-*")
			if terr != nil {
				return fmt.Errorf("create temp dir: %w", terr)
			}
			defer os.RemoveAll(tmp)
			dest = tmp
		}
		res, err = ing.IngestArchive(ctx, opts.Zip, dest)
	case opts.Dir != "":
		res, err = ing.IngestFolder(ctx, opts.Dir)
	default:
		return errors.New("one of --dir or --zip is required")
	}

	if res != nil && res.Batch != nil {
		for _, f := range res.Batch.Failures {
			log.Warn("file failed", "source", f.Source, "error", f.Error)
		}
		for _, s := range res.Batch.Skipped {
			log.Warn("file skipped", "source", s, "reason", "empty")
		}
	}
	if err != nil {
		return err
	}

	ids, err := pipeline.Publish(ctx, idx, res.Chunks)
	if err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	log.Info("ingest complete",
		"documents", len(res.Batch.Documents),
		"skipped", len(res.Batch.Skipped),
		"failed", len(res.Batch.Failures),
		"chunks", len(res.Chunks),
		"stored", len(ids),
	)
	return nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func() { f.Close() }, nil
}
