package document

import (
	"strconv"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// MetaSource is the metadata key carrying a chunk's originating filename.
const MetaSource = "source"

// TableRow is one data row of a table found on a page, rendered with its headers.
type TableRow struct {
	Page  int    // 1-based page number
	Table int    // 1-based table index on the page
	Row   int    // 1-based data row number, restarting per table
	Text  string // "Row N | header: cell | ..."
}

// Document is the assembled text of one PDF file, paired with its source filename.
type Document struct {
	Text   string
	Source string
	Pages  int
}

// Chunk is a size-bounded substring of a Document's text.
type Chunk struct {
	Text   string
	Source string
	Index  int // Sequence number within the source document
}

// Sources returns the document filenames in order.
func Sources(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Source
	}
	return out
}

var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("pdfingest/chunk"))

// RecordID is stable for a given source and chunk position.
func RecordID(source string, index int) string {
	return uuid.NewSHA1(recordNamespace, []byte(source+"#"+strconv.Itoa(index))).String()
}

// Records converts chunks into the record sequence handed to the indexing
// collaborator: content plus {source: filename}.
func Records(chunks []Chunk) []*schema.Document {
	out := make([]*schema.Document, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, &schema.Document{
			ID:       RecordID(c.Source, c.Index),
			Content:  c.Text,
			MetaData: map[string]any{MetaSource: c.Source},
		})
	}
	return out
}

// SourceOf returns the source filename stored on a record, if any.
func SourceOf(rec *schema.Document) string {
	if rec == nil || rec.MetaData == nil {
		return ""
	}
	s, _ := rec.MetaData[MetaSource].(string)
	return s
}
