// Package semantic implements context-based PII detection by delegating the
// semantic judgment to an external language-model service.
package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/doc-sentinel/internal/logger"
)

// Detector sends extracted document text to the detection service and
// parses the categorized findings out of its response.
type Detector struct {
	client   ChatClient
	throttle *Throttle
	timeout  time.Duration
	logger   *logger.Logger
}

// New creates a new context detector. throttle may be nil to disable
// client-side rate limiting.
func New(client ChatClient, throttle *Throttle, timeout time.Duration, log *logger.Logger) *Detector {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Detector{
		client:   client,
		throttle: throttle,
		timeout:  timeout,
		logger:   log,
	}
}

// Detect analyzes text for the requested categories and additional terms
// with a single service request. No chunking, no retry: a failed or
// malformed response fails the whole document.
func (d *Detector) Detect(ctx context.Context, text string, categories, additional []string) (*Result, error) {
	if d.throttle != nil {
		if err := d.throttle.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDetection, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	raw, err := d.client.Complete(ctx, buildPrompt(text, categories, additional))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetection, err)
	}

	result, err := parseResponse(raw)
	if err != nil {
		d.logger.Warn("Detection service returned unexpected shape",
			zap.Error(err),
			zap.Int("response_bytes", len(raw)),
		)
		return nil, fmt.Errorf("%w: %v", ErrDetection, err)
	}

	d.logger.Info("Context detection completed",
		zap.Int("categories", len(result.Personal)),
		zap.Int("additional_labels", len(result.Additional)),
		zap.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// buildPrompt renders the single analysis request. The instruction demands
// the fixed two-section JSON shape that parseResponse enforces.
func buildPrompt(text string, categories, additional []string) string {
	var b strings.Builder

	b.WriteString("다음 텍스트에서 다음 항목을 문맥을 분석하여 탐지하세요:\n")
	fmt.Fprintf(&b, "- 선택된 개인정보: %s\n", strings.Join(categories, ", "))
	fmt.Fprintf(&b, "- 추가 요청 정보: %s\n\n", strings.Join(additional, ", "))
	b.WriteString("**반환 형식(JSON):**\n")
	b.WriteString("아래 예시와 같이 정확히 두 개의 최상위 키만 포함한 JSON 객체를 반환하세요.\n")
	b.WriteString("{\n")
	b.WriteString("    \"개인정보\": {\n")
	b.WriteString("        \"이름\": [\"홍길동\", \"김철수\"],\n")
	b.WriteString("        \"주소\": [\"서울시 강남구 역삼동\"]\n")
	b.WriteString("    },\n")
	b.WriteString("    \"추가 탐지 정보\": {\n")
	b.WriteString("        \"추가 요청 정보\": [\"Project Alpha\", \"XYZ Corporation\"]\n")
	b.WriteString("    }\n")
	b.WriteString("}\n\n")
	b.WriteString("**분석할 텍스트:**\n")
	b.WriteString(text)

	return b.String()
}

// parseResponse decodes the service response into the strict two-field
// shape. Unknown top-level fields and non-JSON content are rejected rather
// than duck-typed around.
func parseResponse(raw string) (*Result, error) {
	decoder := json.NewDecoder(bytes.NewReader([]byte(raw)))
	decoder.DisallowUnknownFields()

	var result Result
	if err := decoder.Decode(&result); err != nil {
		return nil, fmt.Errorf("invalid response JSON: %v", err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("invalid response JSON: trailing content")
	}

	if result.Personal == nil {
		result.Personal = map[string][]string{}
	}
	if result.Additional == nil {
		result.Additional = map[string][]string{}
	}

	return &result, nil
}
