// Package classify routes complaint text to the responsible city department.
package classify

import "strings"

// DefaultDepartment is returned when no rule matches.
const DefaultDepartment = "Lainnya"

// Rule maps a keyword to a department.
type Rule struct {
	Keyword    string
	Department string
}

// DefaultRules are checked in order; the first keyword found wins.
var DefaultRules = []Rule{
	{Keyword: "jalan", Department: "Dinas Pekerjaan Umum"},
	{Keyword: "lampu", Department: "Dinas Perhubungan"},
	{Keyword: "air", Department: "PDAM"},
	{Keyword: "sampah", Department: "DLH"},
	{Keyword: "ktp", Department: "Disdukcapil"},
	{Keyword: "puskesmas", Department: "Dinkes"},
}

// Classifier matches keywords as case-insensitive substrings.
type Classifier struct {
	rules    []Rule
	fallback string
}

// New builds a classifier. An empty fallback uses DefaultDepartment.
func New(rules []Rule, fallback string) *Classifier {
	if fallback == "" {
		fallback = DefaultDepartment
	}
	lowered := make([]Rule, len(rules))
	for i, r := range rules {
		lowered[i] = Rule{Keyword: strings.ToLower(r.Keyword), Department: r.Department}
	}
	return &Classifier{rules: lowered, fallback: fallback}
}

// Classify returns the department of the first rule whose keyword occurs in text.
func (c *Classifier) Classify(text string) string {
	lower := strings.ToLower(text)
	for _, r := range c.rules {
		if r.Keyword != "" && strings.Contains(lower, r.Keyword) {
			return r.Department
		}
	}
	return c.fallback
}

var defaultClassifier = New(DefaultRules, DefaultDepartment)

// Department classifies text with DefaultRules.
func Department(text string) string {
	return defaultClassifier.Classify(text)
}
