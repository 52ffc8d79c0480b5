package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"
)

// JSONLWriter writes records as JSON lines, one per chunk.
type JSONLWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc}
}

func (j *JSONLWriter) Store(ctx context.Context, docs []*schema.Document, _ ...einoindexer.Option) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	records := toRecords(docs)
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		if err := j.enc.Encode(r); err != nil {
			return ids, fmt.Errorf("write record %s: %w", r.ID, err)
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (j *JSONLWriter) GetType() string {
	return "JSONLWriter"
}
