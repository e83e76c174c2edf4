package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/raaihank/doc-sentinel/internal/document"
	"github.com/raaihank/doc-sentinel/internal/mask"
	"github.com/raaihank/doc-sentinel/internal/semantic"
	"github.com/raaihank/doc-sentinel/internal/store"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unsupported format", document.ErrUnsupportedFormat, http.StatusBadRequest},
		{"extraction", document.ErrExtraction, http.StatusUnprocessableEntity},
		{"detection", semantic.ErrDetection, http.StatusBadGateway},
		{"persistence", store.ErrPersistence, http.StatusBadGateway},
		{"masking", mask.ErrMasking, http.StatusUnprocessableEntity},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusForError(tt.err); got != tt.want {
				t.Errorf("statusForError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusForWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("%w: open doc.docx: no such file", document.ErrExtraction)
	if got := statusForError(wrapped); got != http.StatusUnprocessableEntity {
		t.Errorf("statusForError(wrapped) = %d, want %d", got, http.StatusUnprocessableEntity)
	}
}
