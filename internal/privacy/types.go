package privacy

import "regexp"

// Category labels carried verbatim through detection, persistence and
// masking. Categories without a rule here (이름, 주소) are only reachable
// through the context detector.
const (
	CategoryNationalID = "주민등록번호"
	CategoryPhone      = "연락처"
	CategoryBirthdate  = "생년월일"
	CategoryBankAcct   = "계좌번호"
	CategoryPassport   = "여권번호"
	CategoryEmail      = "이메일"
	CategoryCard       = "카드번호"
	CategoryName       = "이름"
	CategoryAddress    = "주소"
)

// DetectionRule represents a single PII detection rule
type DetectionRule struct {
	Category string
	Pattern  *regexp.Regexp
}

// GetDefaultRules returns the fixed pattern table. The patterns reproduce
// the established matching semantics exactly, including the loose bank
// account shape that overlaps other numeric identifiers.
func GetDefaultRules() []DetectionRule {
	return []DetectionRule{
		{Category: CategoryNationalID, Pattern: regexp.MustCompile(`\b\d{6}-\d{7}\b`)},
		{Category: CategoryPhone, Pattern: regexp.MustCompile(`\b010-\d{4}-\d{4}\b`)},
		{Category: CategoryBirthdate, Pattern: regexp.MustCompile(`\b\d{4}[-/]\d{2}[-/]\d{2}\b`)},
		{Category: CategoryBankAcct, Pattern: regexp.MustCompile(`\b\d{2,4}-\d{2,4}-\d{2,4}\b`)},
		{Category: CategoryPassport, Pattern: regexp.MustCompile(`\b[A-Z]\d{8}\b`)},
		{Category: CategoryEmail, Pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
		{Category: CategoryCard, Pattern: regexp.MustCompile(`\b\d{4}-\d{4}-\d{4}-\d{4}\b`)},
	}
}
