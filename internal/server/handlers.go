package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/doc-sentinel/internal/document"
	"github.com/raaihank/doc-sentinel/internal/mask"
	"github.com/raaihank/doc-sentinel/internal/pipeline"
	"github.com/raaihank/doc-sentinel/internal/semantic"
	"github.com/raaihank/doc-sentinel/internal/store"
)

// maskRequest is the caller-facing entry point payload
type maskRequest struct {
	FilePath   string   `json:"file_path"`
	FileType   string   `json:"file_type"`
	Categories []string `json:"categories"`
	Additional []string `json:"additional"`
}

// maskResponse reports a completed run
type maskResponse struct {
	RunID       string `json:"run_id"`
	OutputPath  string `json:"output_path,omitempty"`
	ArtifactURL string `json:"artifact_url,omitempty"`
	NothingToDo bool   `json:"nothing_to_do"`
}

// errorResponse carries the human-readable failure message
type errorResponse struct {
	Error string `json:"error"`
}

// handleMask runs the pipeline for one document
func (s *Server) handleMask(w http.ResponseWriter, r *http.Request) {
	var req maskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if req.FilePath == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "file_path is required"})
		return
	}

	result, err := s.pipeline.Run(r.Context(), pipeline.Request{
		FilePath:   req.FilePath,
		FileType:   req.FileType,
		Categories: req.Categories,
		Additional: req.Additional,
	})
	if err != nil {
		s.logger.Error("Mask request failed",
			zap.String("file", req.FilePath),
			zap.Error(err),
		)
		writeJSON(w, statusForError(err), errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, maskResponse{
		RunID:       result.RunID,
		OutputPath:  result.OutputPath,
		ArtifactURL: result.ArtifactURL,
		NothingToDo: result.NothingToDo,
	})
}

// handleValues returns the stored masking value set for a document reference
func (s *Server) handleValues(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "document reference is required"})
		return
	}

	values, err := s.store.MaskingValues(r.Context(), ref)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document": ref,
		"values":   values,
		"count":    len(values),
	})
}

// statusForError maps pipeline failures to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, document.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, document.ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, semantic.ErrDetection):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrPersistence):
		return http.StatusBadGateway
	case errors.Is(err, mask.ErrMasking):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
