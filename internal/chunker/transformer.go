package chunker

import (
	"context"
	"fmt"

	einodoc "github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"

	"github.com/dgallion1/pdfingest/internal/document"
)

// Transformer implements eino's document.Transformer over Split. Each input
// document must carry its filename under the "source" metadata key.
type Transformer struct {
	cfg Config
}

var _ einodoc.Transformer = (*Transformer)(nil)

// NewTransformer creates a Transformer with the given chunking config.
func NewTransformer(cfg Config) *Transformer {
	return &Transformer{cfg: cfg.normalized()}
}

// Transform splits every source document and returns the chunk records in order.
func (t *Transformer) Transform(ctx context.Context, src []*schema.Document, opts ...einodoc.TransformerOption) ([]*schema.Document, error) {
	if len(src) == 0 {
		return nil, nil
	}
	docs := make([]document.Document, 0, len(src))
	for i, d := range src {
		if d == nil {
			continue
		}
		source := document.SourceOf(d)
		if source == "" {
			return nil, fmt.Errorf("transform document %d: missing %q metadata", i, document.MetaSource)
		}
		docs = append(docs, document.Document{Text: d.Content, Source: source})
	}
	return document.Records(SplitDocuments(docs, t.cfg)), nil
}
