package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/pdfingest/internal/chunker"
	"github.com/dgallion1/pdfingest/internal/indexer"
	"github.com/dgallion1/pdfingest/internal/parser"
	"github.com/dgallion1/pdfingest/internal/pipeline"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Scratch space for uploads and expanded archives
	WorkDir string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// OCR fallback
	OCRMinTextChars int
	OCRLanguage     string
	OCRDPI          float64
	OCRMaxPixels    int
	OCRIsolatePages bool

	// PDF
	PDFFallbackPdftotext bool
	TableBackend         string
	UnidocLicenseKey     string
	AssembleWorkers      int
	RecursiveScan        bool

	// Indexing service
	IndexerURL       string
	IndexerAPIKey    string
	IndexName        string
	IndexDimension   int
	IndexMetric      string
	IndexerBatchSize int
	IndexerTimeout   time.Duration
}

// Load reads the environment, after merging a .env file from the working
// directory if one exists. Variables already set take precedence.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("PDFINGEST_API_KEY"),

		WorkDir: envOr("WORK_DIR", filepath.Join(os.TempDir(), "pdfingest")),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 209715200), // 200MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		ChunkSize:    envInt("CHUNK_SIZE", 1000),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 200),

		OCRMinTextChars: envInt("OCR_MIN_TEXT_CHARS", parser.DefaultMinTextChars),
		OCRLanguage:     envOr("OCR_LANGUAGE", "eng"),
		OCRDPI:          envFloat("OCR_DPI", 300),
		OCRMaxPixels:    envInt("OCR_MAX_PIXELS", 40_000_000),
		OCRIsolatePages: envBool("OCR_ISOLATE_PAGES", false),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
		TableBackend:         envOr("TABLE_BACKEND", "geometric"),
		UnidocLicenseKey:     os.Getenv("UNIDOC_LICENSE_API_KEY"),
		AssembleWorkers:      envInt("ASSEMBLE_WORKERS", 1),
		RecursiveScan:        envBool("RECURSIVE_SCAN", false),

		IndexerURL:       os.Getenv("INDEXER_URL"),
		IndexerAPIKey:    os.Getenv("INDEXER_API_KEY"),
		IndexName:        envOr("INDEX_NAME", "legal-rag"),
		IndexDimension:   envInt("INDEX_DIMENSION", 768),
		IndexMetric:      envOr("INDEX_METRIC", "cosine"),
		IndexerBatchSize: envInt("INDEXER_BATCH_SIZE", 100),
		IndexerTimeout:   envDuration("INDEXER_TIMEOUT", 30*time.Second),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 209715200
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.OCRMinTextChars <= 0 {
		cfg.OCRMinTextChars = parser.DefaultMinTextChars
	}
	if cfg.OCRDPI <= 0 {
		cfg.OCRDPI = 300
	}
	if cfg.AssembleWorkers <= 0 {
		cfg.AssembleWorkers = 1
	}
	if cfg.IndexerBatchSize <= 0 {
		cfg.IndexerBatchSize = 100
	}

	return cfg
}

// Validate checks settings shared by the server and the CLI.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	switch c.TableBackend {
	case "geometric", "unipdf", "none":
	default:
		return fmt.Errorf("TABLE_BACKEND must be geometric, unipdf or none, got %q", c.TableBackend)
	}
	switch c.IndexMetric {
	case "cosine", "euclidean", "dotproduct":
	default:
		return fmt.Errorf("INDEX_METRIC must be cosine, euclidean or dotproduct, got %q", c.IndexMetric)
	}
	if c.IndexDimension <= 0 {
		return fmt.Errorf("INDEX_DIMENSION must be positive, got %d", c.IndexDimension)
	}
	return nil
}

// ValidateServer additionally checks what the HTTP service needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("PDFINGEST_API_KEY is required")
	}
	return nil
}

func (c Config) Chunker() chunker.Config {
	return chunker.Config{
		ChunkSize:    c.ChunkSize,
		ChunkOverlap: c.ChunkOverlap,
		Separators:   chunker.DefaultSeparators,
	}
}

func (c Config) Extractor() parser.ExtractorConfig {
	return parser.ExtractorConfig{
		MinTextChars:       c.OCRMinTextChars,
		IsolateOCRFailures: c.OCRIsolatePages,
		Pdftotext:          c.PDFFallbackPdftotext,
	}
}

func (c Config) Assembler() parser.AssemblerConfig {
	return parser.AssemblerConfig{
		Workers:   c.AssembleWorkers,
		Recursive: c.RecursiveScan,
	}
}

func (c Config) Indexer() indexer.Config {
	return indexer.Config{
		URL:    c.IndexerURL,
		APIKey: c.IndexerAPIKey,
		Spec: indexer.IndexSpec{
			Name:      c.IndexName,
			Dimension: c.IndexDimension,
			Metric:    c.IndexMetric,
		},
		BatchSize: c.IndexerBatchSize,
		Timeout:   c.IndexerTimeout,
	}
}

func (c Config) Orchestrator() pipeline.OrchestratorConfig {
	return pipeline.OrchestratorConfig{
		WorkerCount:  c.WorkerCount,
		MaxQueueSize: c.MaxQueueSize,
		JobTTL:       c.JobTTL,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
