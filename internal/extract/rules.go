// Package extract pulls keywords, action phrases and deadline expressions
// out of free text. Every function is pure: the same input always yields
// the same, order-stable output.
package extract

import "regexp"

// Pattern is one entry of an ordered extraction table.
// Group selects the capture group reported for a match; 0 is the whole match.
type Pattern struct {
	Name  string
	Expr  *regexp.Regexp
	Group int
}

// RuleSet is the declarative table behind an Extractor. Tables are
// evaluated in declaration order and results are concatenated in that order.
type RuleSet struct {
	// Vocabulary is a closed keyword set matched case-insensitively as substrings.
	Vocabulary []string

	// ActionPatterns are matched against the lower-cased text.
	ActionPatterns []Pattern

	// DeadlinePatterns are matched against the original text; patterns carry (?i).
	DeadlinePatterns []Pattern
}

var defaultRules = &RuleSet{
	Vocabulary: []string{"urgent", "deadline", "meeting", "review", "project", "client", "important"},
	ActionPatterns: []Pattern{
		{Name: "request_review", Expr: regexp.MustCompile(`need your (review|approval|feedback)`)},
		{Name: "request_response", Expr: regexp.MustCompile(`please (respond|reply|confirm)`)},
		{Name: "schedule", Expr: regexp.MustCompile(`schedule a (call|meeting)`)},
		{Name: "send_material", Expr: regexp.MustCompile(`send (the|your) (report|document)`)},
	},
	DeadlinePatterns: []Pattern{
		{Name: "end_of_day", Expr: regexp.MustCompile(`(?i)by (EOD|end of day)`), Group: 1},
		{Name: "by_clock_time", Expr: regexp.MustCompile(`(?i)by (\d{1,2}:\d{2} (AM|PM))`), Group: 1},
		{Name: "by_date", Expr: regexp.MustCompile(`(?i)by (\w+ \d{1,2},? \d{4})`), Group: 1},
		{Name: "clock_time", Expr: regexp.MustCompile(`(?i)(\d{1,2}:\d{2} (AM|PM))`), Group: 1},
	},
}

// DefaultRules returns the built-in rule set.
func DefaultRules() *RuleSet {
	return defaultRules
}
