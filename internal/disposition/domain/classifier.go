package domain

import "strings"

// Classifier maps a free-text result code to its statistics category.
// Pluggable so tenants with structured result vocabularies can bypass
// keyword matching entirely.
type Classifier interface {
	Classify(resultCode string) ResultCategory
}

// KeywordClassifier buckets result codes by substring vocabulary, matching
// the behavior of the legacy dialer so historical free-text codes keep
// classifying. First matching class wins.
type KeywordClassifier struct{}

var keywordClasses = []struct {
	category ResultCategory
	needles  []string
}{
	{CategorySuccess, []string{"success", "connected"}},
	{CategoryNoAnswer, []string{"no-answer", "no_answer", "no answer", "absent"}},
	{CategoryCallback, []string{"callback", "call back", "reconnect", "recall"}},
	{CategoryFailed, []string{"fail", "busy", "rejected", "refused", "wrong"}},
}

func (KeywordClassifier) Classify(resultCode string) ResultCategory {
	code := strings.ToLower(strings.TrimSpace(resultCode))
	if code == "" {
		return CategoryNone
	}
	for _, class := range keywordClasses {
		for _, needle := range class.needles {
			if strings.Contains(code, needle) {
				return class.category
			}
		}
	}
	return CategoryNone
}
