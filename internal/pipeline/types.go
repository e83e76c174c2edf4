package pipeline

import (
	"context"

	"github.com/raaihank/doc-sentinel/internal/semantic"
)

// State is a pipeline run state. Progression is linear with no back-edges;
// StateFailed is reachable from any state.
type State string

const (
	StateExtracted State = "extracted"
	StateDetected  State = "detected"
	StateMerged    State = "merged"
	StatePersisted State = "persisted"
	StateMasked    State = "masked"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Request describes one document to process end-to-end
type Request struct {
	// FilePath is the caller-supplied source path; it doubles as the
	// document reference joining all findings records.
	FilePath string
	// FileType is the declared format discriminator (word|excel)
	FileType string
	// Categories are the PII category labels to detect
	Categories []string
	// Additional are caller-supplied free-text terms of interest
	Additional []string
}

// Result is the outcome of a completed run
type Result struct {
	RunID      string
	State      State
	OutputPath string
	// NothingToDo is set when no PII was found: no output file exists and
	// the run still counts as completed.
	NothingToDo bool
	// ArtifactURL is set when the masked output was also uploaded to
	// object storage.
	ArtifactURL string
}

// ContextDetector is the boundary to the semantic detection service
type ContextDetector interface {
	Detect(ctx context.Context, text string, categories, additional []string) (*semantic.Result, error)
}

// FindingStore is the boundary to findings persistence: three independent
// writes and one value-set read, keyed by document reference.
type FindingStore interface {
	SaveMetadata(ctx context.Context, docRef string) error
	SaveFindings(ctx context.Context, docRef string, findings map[string][]string) error
	SaveAdditional(ctx context.Context, docRef string, additional map[string][]string) error
	MaskingValues(ctx context.Context, docRef string) ([]string, error)
}

// Masker rewrites a document with the masking value set applied
type Masker interface {
	Mask(path string, values []string) (string, error)
}

// ArtifactUploader pushes a finished masked output to object storage
type ArtifactUploader interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}
