// Package indexer hands chunk records to the external embedding and
// vector-index service. Both implementations satisfy eino's indexer.Indexer.
package indexer

import (
	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"
)

// IndexSpec describes the index the service should create if absent.
type IndexSpec struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
}

// DefaultIndexSpec matches a 768-dimension sentence embedding model.
func DefaultIndexSpec() IndexSpec {
	return IndexSpec{Name: "legal-rag", Dimension: 768, Metric: "cosine"}
}

// Record is the wire form of one chunk.
type Record struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

func toRecords(docs []*schema.Document) []Record {
	out := make([]Record, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		meta := d.MetaData
		if meta == nil {
			meta = map[string]any{}
		}
		out = append(out, Record{ID: d.ID, Content: d.Content, Metadata: meta})
	}
	return out
}

// indexName returns the first sub-index passed in opts, or def.
func indexName(def string, opts []einoindexer.Option) string {
	options := einoindexer.GetCommonOptions(nil, opts...)
	if options != nil && len(options.SubIndexes) > 0 && options.SubIndexes[0] != "" {
		return options.SubIndexes[0]
	}
	return def
}
