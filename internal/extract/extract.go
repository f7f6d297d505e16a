package extract

import (
	"iter"
	"slices"
	"strings"
)

// Extractor is the three-function contract callers depend on. A stronger
// NLP component can replace RuleSet behind it.
type Extractor interface {
	Keywords(text string) []string
	ActionPhrases(text string) []string
	Deadlines(text string) []string
}

var _ Extractor = (*RuleSet)(nil)

// Result bundles the three independent extraction results for one text.
type Result struct {
	Keywords  []string `json:"keywords"`
	Actions   []string `json:"actions_required"`
	Deadlines []string `json:"deadlines"`
}

// Analyze runs all three extractions of e over text.
func Analyze(e Extractor, text string) Result {
	return Result{
		Keywords:  nonNil(e.Keywords(text)),
		Actions:   nonNil(e.ActionPhrases(text)),
		Deadlines: nonNil(e.Deadlines(text)),
	}
}

// KeywordSeq yields vocabulary terms present in text, in vocabulary order.
func (r *RuleSet) KeywordSeq(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		lower := strings.ToLower(text)
		for _, kw := range r.Vocabulary {
			if strings.Contains(lower, strings.ToLower(kw)) {
				if !yield(kw) {
					return
				}
			}
		}
	}
}

// ActionSeq yields every action-phrase match, pattern by pattern.
// Duplicates are kept.
func (r *RuleSet) ActionSeq(text string) iter.Seq[string] {
	return matchSeq(r.ActionPatterns, strings.ToLower(text))
}

// DeadlineSeq yields every deadline match, pattern by pattern.
// Duplicates are kept.
func (r *RuleSet) DeadlineSeq(text string) iter.Seq[string] {
	return matchSeq(r.DeadlinePatterns, text)
}

func (r *RuleSet) Keywords(text string) []string {
	return slices.Collect(r.KeywordSeq(text))
}

func (r *RuleSet) ActionPhrases(text string) []string {
	return slices.Collect(r.ActionSeq(text))
}

func (r *RuleSet) Deadlines(text string) []string {
	return slices.Collect(r.DeadlineSeq(text))
}

func matchSeq(patterns []Pattern, text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, p := range patterns {
			for _, m := range p.Expr.FindAllStringSubmatch(text, -1) {
				if p.Group >= len(m) {
					continue
				}
				if !yield(m[p.Group]) {
					return
				}
			}
		}
	}
}

// Keywords extracts with the default rule set.
func Keywords(text string) []string { return defaultRules.Keywords(text) }

// ActionPhrases extracts with the default rule set.
func ActionPhrases(text string) []string { return defaultRules.ActionPhrases(text) }

// Deadlines extracts with the default rule set.
func Deadlines(text string) []string { return defaultRules.Deadlines(text) }

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
