package pipeline

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgallion1/pdfingest/internal/chunker"
	"github.com/dgallion1/pdfingest/internal/document"
	"github.com/dgallion1/pdfingest/internal/parser"
)

// JobStatus represents the state of an ingest job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExpanding  JobStatus = "expanding"
	StatusExtracting JobStatus = "extracting"
	StatusChunking   JobStatus = "chunking"
	StatusIndexing   JobStatus = "indexing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions will happen.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job tracks the state of one ingest request.
type Job struct {
	mu sync.Mutex

	ID        string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Filenames []string  `json:"filenames"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	dir     string
	uploads []string
	chunks  []document.Chunk
	errors  []string
}

// Progress tracks processing progress.
type Progress struct {
	Files     int                  `json:"files"`
	Documents int                  `json:"documents"`
	Skipped   []string             `json:"skipped"`
	Failed    []parser.FileFailure `json:"failed"`
	Chunks    int                  `json:"chunks"`
	Tokens    int                  `json:"est_tokens"`
	Indexed   int                  `json:"indexed"`
	Errors    []string             `json:"errors"`
}

// NewJob creates a queued job whose uploads live under dir.
func NewJob(id, dir string, uploads, filenames []string) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Status:    StatusQueued,
		Phase:     "queued",
		Filenames: filenames,
		CreatedAt: now,
		UpdatedAt: now,
		dir:       dir,
		uploads:   uploads,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs and their working directories.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		dir := job.dir
		job.mu.Unlock()
		if expired {
			if dir != "" {
				os.RemoveAll(dir)
			}
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetFiles records how many PDFs were found.
func (j *Job) SetFiles(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Files = n
	j.UpdatedAt = time.Now()
}

// SetBatch records the assembler outcome.
func (j *Job) SetBatch(b *parser.Batch) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Documents = len(b.Documents)
	j.Progress.Skipped = b.Skipped
	j.Progress.Failed = b.Failures
	j.UpdatedAt = time.Now()
}

// SetChunks stores the chunk output of the job.
func (j *Job) SetChunks(chunks []document.Chunk) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.chunks = chunks
	j.Progress.Chunks = len(chunks)
	j.Progress.Tokens = chunker.EstimateChunkTokens(chunks)
	j.UpdatedAt = time.Now()
}

// SetIndexed records how many chunks the indexer accepted.
func (j *Job) SetIndexed(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Indexed = n
	j.UpdatedAt = time.Now()
}

// Chunks returns a copy of the job's chunks.
func (j *Job) Chunks() []document.Chunk {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]document.Chunk, len(j.chunks))
	copy(out, j.chunks)
	return out
}

// Uploads returns the paths of the uploaded files.
func (j *Job) Uploads() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.uploads...)
}

// Dir returns the job's working directory.
func (j *Job) Dir() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dir
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filenames   []string  `json:"filenames"`
	ContentHash string    `json:"content_hash,omitempty"`
	Progress    Progress  `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append([]string{}, p.Errors...)
	p.Skipped = append([]string{}, p.Skipped...)
	p.Failed = append([]parser.FileFailure{}, p.Failed...)
	return JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filenames:   append([]string{}, j.Filenames...),
		ContentHash: j.ContentHash,
		Progress:    p,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
