package semantic

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/doc-sentinel/internal/logger"
)

type fakeClient struct {
	response string
	err      error
	prompt   string
}

func (f *fakeClient) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func newTestDetector(client ChatClient) *Detector {
	return New(client, nil, time.Second, &logger.Logger{Logger: zap.NewNop()})
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *Result
		wantErr bool
	}{
		{
			name: "both sections populated",
			raw:  `{"개인정보":{"이름":["홍길동"]},"추가 탐지 정보":{"프로젝트":["Alpha"]}}`,
			want: &Result{
				Personal:   map[string][]string{"이름": {"홍길동"}},
				Additional: map[string][]string{"프로젝트": {"Alpha"}},
			},
		},
		{
			name: "missing sections normalize to empty maps",
			raw:  `{}`,
			want: &Result{
				Personal:   map[string][]string{},
				Additional: map[string][]string{},
			},
		},
		{
			name:    "not JSON",
			raw:     "죄송하지만 분석할 수 없습니다",
			wantErr: true,
		},
		{
			name:    "unknown top-level field",
			raw:     `{"개인정보":{},"추가 탐지 정보":{},"비고":"none"}`,
			wantErr: true,
		},
		{
			name:    "trailing content after object",
			raw:     `{"개인정보":{},"추가 탐지 정보":{}} trailing`,
			wantErr: true,
		},
		{
			name:    "empty response",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResponse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseResponse(%q) succeeded, want error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseResponse(%q) error: %v", tt.raw, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseResponse(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	client := &fakeClient{
		response: `{"개인정보":{"연락처":["010-1234-5678"]},"추가 탐지 정보":{}}`,
	}
	detector := newTestDetector(client)

	result, err := detector.Detect(context.Background(), "연락처: 010-1234-5678",
		[]string{"연락처"}, []string{"프로젝트명"})
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}

	want := map[string][]string{"연락처": {"010-1234-5678"}}
	if !reflect.DeepEqual(result.Personal, want) {
		t.Errorf("Detect() personal = %v, want %v", result.Personal, want)
	}

	// The single request carries the document text, the requested
	// categories and the additional terms.
	for _, fragment := range []string{"연락처: 010-1234-5678", "연락처", "프로젝트명", "개인정보", "추가 탐지 정보"} {
		if !strings.Contains(client.prompt, fragment) {
			t.Errorf("prompt missing %q", fragment)
		}
	}
}

func TestDetectServiceFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	detector := newTestDetector(client)

	_, err := detector.Detect(context.Background(), "text", nil, nil)
	if !errors.Is(err, ErrDetection) {
		t.Errorf("Detect() error = %v, want ErrDetection", err)
	}
}

func TestDetectMalformedResponse(t *testing.T) {
	client := &fakeClient{response: "not json at all"}
	detector := newTestDetector(client)

	_, err := detector.Detect(context.Background(), "text", nil, nil)
	if !errors.Is(err, ErrDetection) {
		t.Errorf("Detect() error = %v, want ErrDetection", err)
	}
}

func TestThrottleDisabled(t *testing.T) {
	if NewThrottle(0, 5) != nil {
		t.Error("NewThrottle(0, 5) should return nil")
	}
	if NewThrottle(-1, 5) != nil {
		t.Error("NewThrottle(-1, 5) should return nil")
	}
}

func TestThrottleAllowsBurst(t *testing.T) {
	throttle := NewThrottle(60, 3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		if err := throttle.Wait(ctx); err != nil {
			t.Fatalf("Wait() %d within burst failed: %v", i, err)
		}
	}
}

func TestThrottleRespectsContextCancellation(t *testing.T) {
	throttle := NewThrottle(1, 1)

	// Drain the single token, then a canceled context must fail fast.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := throttle.Wait(ctx); err != nil {
		t.Fatalf("initial Wait() failed: %v", err)
	}

	canceled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	if err := throttle.Wait(canceled); err == nil {
		t.Error("Wait() with canceled context succeeded")
	}
}
