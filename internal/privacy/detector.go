// Package privacy implements pattern-based PII detection over extracted
// document text.
package privacy

import (
	"github.com/raaihank/doc-sentinel/internal/logger"
	"go.uber.org/zap"
)

// Detector handles regex-based PII detection
type Detector struct {
	rules  []DetectionRule
	logger *logger.Logger
}

// New creates a new PII detector instance
func New(log *logger.Logger) *Detector {
	detector := &Detector{
		rules:  GetDefaultRules(),
		logger: log,
	}

	log.Info("Pattern detector initialized",
		zap.Int("total_rules", len(detector.rules)),
	)

	return detector
}

// Detect applies the fixed pattern table to text, restricted to the
// requested categories. Matches are deduplicated per category preserving
// first occurrence; categories with no match produce no entry.
func (d *Detector) Detect(text string, categories []string) map[string][]string {
	requested := make(map[string]bool, len(categories))
	for _, c := range categories {
		requested[c] = true
	}

	results := make(map[string][]string)

	for _, rule := range d.rules {
		if !requested[rule.Category] {
			continue
		}

		matches := rule.Pattern.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}

		results[rule.Category] = dedupe(matches)

		d.logger.Debug("PII pattern matched",
			zap.String("category", rule.Category),
			zap.Int("count", len(results[rule.Category])),
		)
	}

	return results
}

// Categories returns the category labels covered by the pattern table
func (d *Detector) Categories() []string {
	names := make([]string, 0, len(d.rules))
	for _, rule := range d.rules {
		names = append(names, rule.Category)
	}
	return names
}

// dedupe removes duplicate values preserving first-occurrence order
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
