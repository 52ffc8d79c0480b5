package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/pdfingest/internal/parser"
	"github.com/dgallion1/pdfingest/internal/pipeline"
)

var errUploadTooLarge = errors.New("file exceeds max size")

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) != 1 {
		jsonError(w, "exactly one file is required", http.StatusBadRequest)
		return
	}
	s.submit(w, files)
}

func (s *Server) handleBatchIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	s.submit(w, files)
}

// submit stages every upload into a fresh job directory and queues one job
// covering all of them.
func (s *Server) submit(w http.ResponseWriter, files []*multipart.FileHeader) {
	names := make([]string, 0, len(files))
	seen := make(map[string]bool, len(files))
	for _, fh := range files {
		name := sanitizeFilename(fh.Filename)
		if !isUpload(name) {
			jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(name)), http.StatusBadRequest)
			return
		}
		if seen[name] {
			jsonError(w, "duplicate filename: "+name, http.StatusBadRequest)
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	id := pipeline.NewJobID()
	dir := filepath.Join(s.cfg.WorkDir, id)
	uploadDir := filepath.Join(dir, "uploads")
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		s.log.Error("create job dir failed", "job_id", id, "error", err)
		jsonError(w, "failed to stage upload", http.StatusInternalServerError)
		return
	}

	uploads := make([]string, 0, len(files))
	hashes := make([]string, 0, len(files))
	for i, fh := range files {
		path := filepath.Join(uploadDir, names[i])
		hash, err := s.saveUpload(fh, path)
		if err != nil {
			os.RemoveAll(dir)
			if errors.Is(err, errUploadTooLarge) {
				jsonError(w, fmt.Sprintf("%s exceeds max size (%d bytes)", names[i], s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
				return
			}
			s.log.Error("save upload failed", "job_id", id, "filename", names[i], "error", err)
			jsonError(w, "failed to stage upload", http.StatusInternalServerError)
			return
		}
		uploads = append(uploads, path)
		hashes = append(hashes, hash)
	}

	job := pipeline.NewJob(id, dir, uploads, names)
	if len(hashes) == 1 {
		job.ContentHash = hashes[0]
	} else {
		job.ContentHash = pipeline.ContentHashHex([]byte(strings.Join(hashes, "")))
	}

	if err := s.orchestrator.Submit(job); err != nil {
		os.RemoveAll(dir)
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.log.Info("job queued", "job_id", id, "files", len(names))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":       job.ID,
		"status":       pipeline.StatusQueued,
		"filenames":    names,
		"content_hash": job.ContentHash,
		"poll_url":     fmt.Sprintf("/api/ingest/%s/status", job.ID),
	})
}

// saveUpload copies one multipart file to path and returns its content hash.
func (s *Server) saveUpload(fh *multipart.FileHeader, path string) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return "", errUploadTooLarge
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return pipeline.ContentHashHex(data), nil
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

type chunkView struct {
	Index  int    `json:"index"`
	Source string `json:"source"`
	Text   string `json:"text"`
}

func (s *Server) handleIngestChunks(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	if !snap.Status.Terminal() {
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
		return
	}

	chunks := job.Chunks()
	out := make([]chunkView, len(chunks))
	for i, c := range chunks {
		out[i] = chunkView{Index: c.Index, Source: c.Source, Text: c.Text}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id": snap.ID,
		"status": snap.Status,
		"chunks": out,
	})
}

// isUpload accepts PDFs and zip archives of PDFs.
func isUpload(name string) bool {
	return parser.IsPDF(name) || strings.EqualFold(filepath.Ext(name), ".zip")
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
