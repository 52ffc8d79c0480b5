package indexer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ einoindexer.Indexer = (*HTTPIndexer)(nil)
	_ einoindexer.Indexer = (*JSONLWriter)(nil)
)

func sampleDocs() []*schema.Document {
	return []*schema.Document{
		{ID: "1", Content: "first", MetaData: map[string]any{"source": "a.pdf"}},
		{ID: "2", Content: "second", MetaData: map[string]any{"source": "a.pdf"}},
		{ID: "3", Content: "third", MetaData: map[string]any{"source": "b.pdf"}},
	}
}

func TestHTTPIndexerBatches(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []upsertRequest
		paths    []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body upsertRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		mu.Lock()
		requests = append(requests, body)
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	idx, err := NewHTTPIndexer(Config{URL: srv.URL + "/", APIKey: "secret", BatchSize: 2})
	require.NoError(t, err)

	ids, err := idx.Store(context.Background(), sampleDocs())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids)

	require.Len(t, requests, 2)
	assert.Len(t, requests[0].Records, 2)
	assert.Len(t, requests[1].Records, 1)
	assert.Equal(t, DefaultIndexSpec(), requests[0].Index)
	assert.Equal(t, "b.pdf", requests[1].Records[0].Metadata["source"])
	assert.Equal(t, "/v1/indexes/legal-rag/records", paths[0])
}

func TestHTTPIndexerSubIndexOverride(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	idx, err := NewHTTPIndexer(Config{URL: srv.URL})
	require.NoError(t, err)

	_, err = idx.Store(context.Background(), sampleDocs()[:1], einoindexer.WithSubIndexes([]string{"contracts"}))
	require.NoError(t, err)
	assert.Equal(t, "/v1/indexes/contracts/records", path)
}

func TestHTTPIndexerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "dimension mismatch", http.StatusBadRequest)
	}))
	defer srv.Close()

	idx, err := NewHTTPIndexer(Config{URL: srv.URL})
	require.NoError(t, err)

	_, err = idx.Store(context.Background(), sampleDocs())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestNewHTTPIndexerRequiresURL(t *testing.T) {
	_, err := NewHTTPIndexer(Config{})
	assert.Error(t, err)
}

func TestJSONLWriter(t *testing.T) {
	var buf bytes.Buffer
	ids, err := NewJSONLWriter(&buf).Store(context.Background(), sampleDocs())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids)

	var lines []Record
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		lines = append(lines, r)
	}
	require.Len(t, lines, 3)
	assert.Equal(t, "third", lines[2].Content)
	assert.Equal(t, "b.pdf", lines[2].Metadata["source"])
}
