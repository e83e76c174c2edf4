package privacy

import (
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/raaihank/doc-sentinel/internal/logger"
)

func newTestDetector() *Detector {
	return New(&logger.Logger{Logger: zap.NewNop()})
}

func TestDetectPerCategory(t *testing.T) {
	detector := newTestDetector()

	tests := []struct {
		name     string
		text     string
		category string
		want     []string
	}{
		{
			name:     "national ID",
			text:     "주민등록번호는 900101-1234567 입니다",
			category: CategoryNationalID,
			want:     []string{"900101-1234567"},
		},
		{
			name:     "phone",
			text:     "연락처: 010-1234-5678",
			category: CategoryPhone,
			want:     []string{"010-1234-5678"},
		},
		{
			name:     "birthdate dash",
			text:     "생년월일 1990-01-15",
			category: CategoryBirthdate,
			want:     []string{"1990-01-15"},
		},
		{
			name:     "birthdate slash",
			text:     "1990/01/15 출생",
			category: CategoryBirthdate,
			want:     []string{"1990/01/15"},
		},
		{
			name:     "bank account",
			text:     "계좌 110-234-567890 아님, 110-234-5678 맞음",
			category: CategoryBankAcct,
			want:     []string{"110-234-5678"},
		},
		{
			name:     "passport",
			text:     "여권번호 M12345678",
			category: CategoryPassport,
			want:     []string{"M12345678"},
		},
		{
			name:     "email",
			text:     "메일 주소는 hong.gildong@example.co.kr 입니다",
			category: CategoryEmail,
			want:     []string{"hong.gildong@example.co.kr"},
		},
		{
			name:     "card",
			text:     "카드 1234-5678-9012-3456 결제",
			category: CategoryCard,
			want:     []string{"1234-5678-9012-3456"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detector.Detect(tt.text, []string{tt.category})
			if !reflect.DeepEqual(got[tt.category], tt.want) {
				t.Errorf("Detect(%q, %q) = %v, want %v", tt.text, tt.category, got[tt.category], tt.want)
			}
		})
	}
}

func TestDetectMultipleCategories(t *testing.T) {
	detector := newTestDetector()

	text := "연락처: 010-1234-5678, email: a@b.com"
	got := detector.Detect(text, []string{CategoryPhone, CategoryEmail})

	want := map[string][]string{
		CategoryPhone: {"010-1234-5678"},
		CategoryEmail: {"a@b.com"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Detect() = %v, want %v", got, want)
	}
}

func TestDetectRestrictsToRequestedCategories(t *testing.T) {
	detector := newTestDetector()

	text := "연락처: 010-1234-5678, email: a@b.com"
	got := detector.Detect(text, []string{CategoryEmail})

	if _, ok := got[CategoryPhone]; ok {
		t.Errorf("unrequested category %q present in results: %v", CategoryPhone, got)
	}
	if !reflect.DeepEqual(got[CategoryEmail], []string{"a@b.com"}) {
		t.Errorf("Detect() email = %v, want [a@b.com]", got[CategoryEmail])
	}
}

func TestDetectDeduplicatesPreservingOrder(t *testing.T) {
	detector := newTestDetector()

	text := "010-1111-2222 또는 010-3333-4444 또는 010-1111-2222"
	got := detector.Detect(text, []string{CategoryPhone})

	want := []string{"010-1111-2222", "010-3333-4444"}
	if !reflect.DeepEqual(got[CategoryPhone], want) {
		t.Errorf("Detect() = %v, want %v", got[CategoryPhone], want)
	}
}

func TestDetectNoMatchProducesNoEntry(t *testing.T) {
	detector := newTestDetector()

	got := detector.Detect("아무 개인정보도 없는 문장", []string{CategoryPhone, CategoryEmail})

	if len(got) != 0 {
		t.Errorf("expected empty result map, got %v", got)
	}
}

func TestDetectEmptyCategorySet(t *testing.T) {
	detector := newTestDetector()

	got := detector.Detect("연락처: 010-1234-5678", nil)

	if len(got) != 0 {
		t.Errorf("expected empty result map with no requested categories, got %v", got)
	}
}

func TestCategoriesCoversPatternTable(t *testing.T) {
	detector := newTestDetector()

	got := detector.Categories()
	if len(got) != len(GetDefaultRules()) {
		t.Fatalf("Categories() returned %d labels, want %d", len(got), len(GetDefaultRules()))
	}
}
