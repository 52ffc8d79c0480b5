package indexer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"
)

// Config holds the indexing service settings.
type Config struct {
	URL       string
	APIKey    string
	Spec      IndexSpec
	BatchSize int
	Timeout   time.Duration
}

// HTTPIndexer POSTs record batches to an indexing service, which embeds and
// upserts them into Spec's index. Requests are not retried.
type HTTPIndexer struct {
	client    *resty.Client
	baseURL   string
	apiKey    string
	spec      IndexSpec
	batchSize int
}

type upsertRequest struct {
	Index   IndexSpec `json:"index"`
	Records []Record  `json:"records"`
}

func NewHTTPIndexer(cfg Config) (*HTTPIndexer, error) {
	if cfg.URL == "" {
		return nil, errors.New("indexer url is required")
	}
	if cfg.Spec.Name == "" {
		cfg.Spec = DefaultIndexSpec()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)

	return &HTTPIndexer{
		client:    client,
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		apiKey:    cfg.APIKey,
		spec:      cfg.Spec,
		batchSize: cfg.BatchSize,
	}, nil
}

// Store sends docs in batches and returns their IDs in order.
// indexer.WithSubIndexes overrides the index name.
func (x *HTTPIndexer) Store(ctx context.Context, docs []*schema.Document, opts ...einoindexer.Option) ([]string, error) {
	records := toRecords(docs)
	if len(records) == 0 {
		return nil, nil
	}

	spec := x.spec
	spec.Name = indexName(spec.Name, opts)
	endpoint := x.baseURL + "/v1/indexes/" + url.PathEscape(spec.Name) + "/records"

	ids := make([]string, 0, len(records))
	for start := 0; start < len(records); start += x.batchSize {
		end := min(start+x.batchSize, len(records))
		batch := records[start:end]

		req := x.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(upsertRequest{Index: spec, Records: batch})
		if x.apiKey != "" {
			req.SetAuthToken(x.apiKey)
		}

		resp, err := req.Post(endpoint)
		if err != nil {
			return ids, fmt.Errorf("upsert records: %w", err)
		}
		if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
			body := resp.String()
			if len(body) > 1024 {
				body = body[:1024]
			}
			return ids, fmt.Errorf("upsert records %d-%d: status %d: %s", start, end, resp.StatusCode(), body)
		}
		for _, r := range batch {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func (x *HTTPIndexer) GetType() string {
	return "HTTPIndexer"
}
