package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleOCRStats(w http.ResponseWriter, r *http.Request) {
	if s.ocrStats == nil {
		jsonError(w, "ocr stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"language": s.cfg.OCRLanguage,
		"dpi":      s.cfg.OCRDPI,
		"stats":    s.ocrStats.Snapshot(),
	})
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"queue_depth": s.orchestrator.QueueDepth(),
		"max_queue":   s.cfg.MaxQueueSize,
		"jobs":        s.orchestrator.JobCount(),
		"workers":     s.cfg.WorkerCount,
	})
}
