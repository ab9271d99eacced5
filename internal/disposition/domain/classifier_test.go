package domain

import "testing"

func TestKeywordClassifier(t *testing.T) {
	cases := []struct {
		code string
		want ResultCategory
	}{
		{"success", CategorySuccess},
		{"Connected", CategorySuccess},
		{"sale-success", CategorySuccess},
		{"no-answer", CategoryNoAnswer},
		{"No Answer", CategoryNoAnswer},
		{"absent", CategoryNoAnswer},
		{"callback", CategoryCallback},
		{"please call back", CategoryCallback},
		{"reconnect", CategoryCallback},
		{"fail", CategoryFailed},
		{"busy", CategoryFailed},
		{"wrong number", CategoryFailed},
		{"refused", CategoryFailed},
		{"", CategoryNone},
		{"   ", CategoryNone},
		{"something else", CategoryNone},
	}

	var classifier KeywordClassifier
	for _, tc := range cases {
		if got := classifier.Classify(tc.code); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestKeywordClassifierFirstMatchWins(t *testing.T) {
	// "callback failed" contains both vocabularies; the callback class is
	// checked before the failed class.
	var classifier KeywordClassifier
	if got := classifier.Classify("callback failed"); got != CategoryCallback {
		t.Fatalf("Classify(callback failed) = %s, want %s", got, CategoryCallback)
	}
}
