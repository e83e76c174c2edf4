package pipeline

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/raaihank/doc-sentinel/internal/config"
	"github.com/raaihank/doc-sentinel/internal/document"
	"github.com/raaihank/doc-sentinel/internal/logger"
	"github.com/raaihank/doc-sentinel/internal/mask"
	"github.com/raaihank/doc-sentinel/internal/privacy"
	"github.com/raaihank/doc-sentinel/internal/semantic"
)

type fakeContexts struct {
	result *semantic.Result
	err    error
	calls  int
}

func (f *fakeContexts) Detect(_ context.Context, _ string, _, _ []string) (*semantic.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// memStore is an in-memory FindingStore recording every write
type memStore struct {
	metadata   []string
	findings   map[string]map[string][]string
	additional map[string]map[string][]string
}

func newMemStore() *memStore {
	return &memStore{
		findings:   make(map[string]map[string][]string),
		additional: make(map[string]map[string][]string),
	}
}

func (m *memStore) SaveMetadata(_ context.Context, docRef string) error {
	m.metadata = append(m.metadata, docRef)
	return nil
}

func (m *memStore) SaveFindings(_ context.Context, docRef string, findings map[string][]string) error {
	m.findings[docRef] = findings
	return nil
}

func (m *memStore) SaveAdditional(_ context.Context, docRef string, additional map[string][]string) error {
	m.additional[docRef] = additional
	return nil
}

func (m *memStore) MaskingValues(_ context.Context, docRef string) ([]string, error) {
	values := []string{}
	for _, vs := range m.findings[docRef] {
		values = append(values, vs...)
	}
	for _, vs := range m.additional[docRef] {
		values = append(values, vs...)
	}
	return values, nil
}

func nopLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func writeWordFixture(t *testing.T, text string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	entries := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types/>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`,
	}
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	return path
}

func newTestPipeline(t *testing.T, contexts ContextDetector, store FindingStore) *Pipeline {
	t.Helper()

	log := nopLogger()
	engine := mask.NewEngine(config.MaskingConfig{
		OutputDir: t.TempDir(),
		Marker:    "****",
	}, log)

	return New(privacy.New(log), contexts, store, engine, log)
}

func TestRunMasksDetectedValues(t *testing.T) {
	src := writeWordFixture(t, "연락처: 010-1234-5678, email: a@b.com")
	store := newMemStore()
	contexts := &fakeContexts{result: &semantic.Result{
		Personal:   map[string][]string{},
		Additional: map[string][]string{},
	}}
	pipe := newTestPipeline(t, contexts, store)

	result, err := pipe.Run(context.Background(), Request{
		FilePath:   src,
		FileType:   "word",
		Categories: []string{privacy.CategoryPhone, privacy.CategoryEmail},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if result.State != StateDone {
		t.Errorf("state = %v, want %v", result.State, StateDone)
	}
	if result.NothingToDo {
		t.Error("NothingToDo set on a run with findings")
	}
	if result.OutputPath == "" {
		t.Fatal("no output path returned")
	}

	masked, err := document.Extract(result.OutputPath, document.TypeWord)
	if err != nil {
		t.Fatalf("extract masked output: %v", err)
	}
	if masked != "연락처: ****, email: ****" {
		t.Errorf("masked text = %q, want %q", masked, "연락처: ****, email: ****")
	}

	// All three writes happened for the document reference
	if len(store.metadata) != 1 || store.metadata[0] != src {
		t.Errorf("metadata writes = %v, want [%s]", store.metadata, src)
	}
	wantFindings := map[string][]string{
		privacy.CategoryPhone: {"010-1234-5678"},
		privacy.CategoryEmail: {"a@b.com"},
	}
	if !reflect.DeepEqual(store.findings[src], wantFindings) {
		t.Errorf("stored findings = %v, want %v", store.findings[src], wantFindings)
	}
}

func TestRunModelOverridesPatternsOnCollision(t *testing.T) {
	src := writeWordFixture(t, "연락처: 010-1234-5678")
	store := newMemStore()
	contexts := &fakeContexts{result: &semantic.Result{
		Personal: map[string][]string{
			privacy.CategoryPhone: {"010-1234-5678", "공일공 일이삼사 오륙칠팔"},
		},
		Additional: map[string][]string{},
	}}
	pipe := newTestPipeline(t, contexts, store)

	_, err := pipe.Run(context.Background(), Request{
		FilePath:   src,
		FileType:   "word",
		Categories: []string{privacy.CategoryPhone},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := map[string][]string{
		privacy.CategoryPhone: {"010-1234-5678", "공일공 일이삼사 오륙칠팔"},
	}
	if !reflect.DeepEqual(store.findings[src], want) {
		t.Errorf("stored findings = %v, want %v", store.findings[src], want)
	}
}

func TestRunDetectionFailureAbortsBeforePersistence(t *testing.T) {
	src := writeWordFixture(t, "연락처: 010-1234-5678")
	store := newMemStore()
	contexts := &fakeContexts{err: semantic.ErrDetection}
	pipe := newTestPipeline(t, contexts, store)

	_, err := pipe.Run(context.Background(), Request{
		FilePath:   src,
		FileType:   "word",
		Categories: []string{privacy.CategoryPhone},
	})
	if !errors.Is(err, semantic.ErrDetection) {
		t.Fatalf("Run() error = %v, want ErrDetection", err)
	}

	if len(store.metadata) != 0 || len(store.findings) != 0 || len(store.additional) != 0 {
		t.Error("store written despite aborted run")
	}
}

func TestRunNothingToDo(t *testing.T) {
	src := writeWordFixture(t, "개인정보 없는 평범한 문장")
	store := newMemStore()
	contexts := &fakeContexts{result: &semantic.Result{
		Personal:   map[string][]string{},
		Additional: map[string][]string{},
	}}
	pipe := newTestPipeline(t, contexts, store)

	result, err := pipe.Run(context.Background(), Request{
		FilePath:   src,
		FileType:   "word",
		Categories: []string{privacy.CategoryPhone},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if !result.NothingToDo {
		t.Error("NothingToDo not set")
	}
	if result.State != StateDone {
		t.Errorf("state = %v, want %v", result.State, StateDone)
	}
	if result.OutputPath != "" {
		t.Errorf("output path = %q for a run with no findings", result.OutputPath)
	}

	// Persistence still happened: the empty result is recorded
	if len(store.metadata) != 1 {
		t.Errorf("metadata writes = %d, want 1", len(store.metadata))
	}
}

func TestRunUnsupportedFileType(t *testing.T) {
	store := newMemStore()
	pipe := newTestPipeline(t, &fakeContexts{}, store)

	_, err := pipe.Run(context.Background(), Request{
		FilePath: "whatever.pdf",
		FileType: "pdf",
	})
	if !errors.Is(err, document.ErrUnsupportedFormat) {
		t.Errorf("Run() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestRunAdditionalTermsAreMasked(t *testing.T) {
	src := writeWordFixture(t, "Project Alpha 보고서")
	store := newMemStore()
	contexts := &fakeContexts{result: &semantic.Result{
		Personal: map[string][]string{},
		Additional: map[string][]string{
			"프로젝트명": {"Project Alpha"},
		},
	}}
	pipe := newTestPipeline(t, contexts, store)

	result, err := pipe.Run(context.Background(), Request{
		FilePath:   src,
		FileType:   "word",
		Categories: []string{privacy.CategoryPhone},
		Additional: []string{"프로젝트명"},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	masked, err := document.Extract(result.OutputPath, document.TypeWord)
	if err != nil {
		t.Fatalf("extract masked output: %v", err)
	}
	if masked != "**** 보고서" {
		t.Errorf("masked text = %q, want %q", masked, "**** 보고서")
	}
}

func TestMergeFindings(t *testing.T) {
	tests := []struct {
		name      string
		regex     map[string][]string
		model     map[string][]string
		requested []string
		want      map[string][]string
	}{
		{
			name:      "model overrides regex on collision",
			regex:     map[string][]string{"A": {"x"}},
			model:     map[string][]string{"A": {"y"}},
			requested: []string{"A"},
			want:      map[string][]string{"A": {"y"}},
		},
		{
			name:      "disjoint categories union",
			regex:     map[string][]string{"A": {"x"}},
			model:     map[string][]string{"B": {"y"}},
			requested: []string{"A", "B"},
			want:      map[string][]string{"A": {"x"}, "B": {"y"}},
		},
		{
			name:      "unrequested model category dropped",
			regex:     map[string][]string{"A": {"x"}},
			model:     map[string][]string{"B": {"y"}},
			requested: []string{"A"},
			want:      map[string][]string{"A": {"x"}},
		},
		{
			name:      "both empty",
			regex:     map[string][]string{},
			model:     map[string][]string{},
			requested: []string{"A"},
			want:      map[string][]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeFindings(tt.regex, tt.model, tt.requested)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("mergeFindings() = %v, want %v", got, tt.want)
			}
		})
	}
}
