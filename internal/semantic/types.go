package semantic

import (
	"context"
	"errors"
)

// ErrDetection is returned when the context detection service fails or its
// response does not match the expected two-section JSON shape. It aborts the
// pipeline run; no partial results are persisted.
var ErrDetection = errors.New("context detection failed")

// Result is the strict two-section response shape of the detection service.
// The section keys are part of the service contract; anything else in the
// response is rejected.
type Result struct {
	// Personal maps a PII category label to the literal strings the
	// service judged to match it.
	Personal map[string][]string `json:"개인정보"`
	// Additional maps a caller-supplied label to matched literal strings.
	Additional map[string][]string `json:"추가 탐지 정보"`
}

// ChatClient is the narrow boundary to the external text-understanding
// service: one prompt in, one raw response out.
type ChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
