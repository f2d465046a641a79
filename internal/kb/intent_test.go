// File path: internal/kb/intent_test.go
package kb

import "testing"

func TestClassifyQuotePrecedesSection(t *testing.T) {
	c := Classify(`find "reasonable wear and tear" in 90.300`)
	if c.Intent != IntentPhraseLookup {
		t.Fatalf("expected phrase_lookup, got %s", c.Intent)
	}
	if c.Phrase != "reasonable wear and tear" {
		t.Fatalf("unexpected phrase: %q", c.Phrase)
	}
}

func TestClassifySectionLookup(t *testing.T) {
	cases := []struct {
		query   string
		section string
	}{
		{"what does ORS 90.427 say about termination", "90.427"},
		{"summarize 90.300", "90.300"},
		{"ors 105.124 eviction timeline", "105.124"},
	}
	for _, tc := range cases {
		c := Classify(tc.query)
		if c.Intent != IntentSectionLookup {
			t.Fatalf("query %q: expected section_lookup, got %s", tc.query, c.Intent)
		}
		if c.Section != tc.section {
			t.Fatalf("query %q: expected section %q, got %q", tc.query, tc.section, c.Section)
		}
	}
}

func TestClassifyKeywordPhrasings(t *testing.T) {
	cases := []string{
		"where can a landlord store abandoned property",
		"which statute covers security deposits",
		"find the notice requirements for rent increases",
		"look up pet deposit rules",
		"search for habitability requirements",
	}
	for _, query := range cases {
		if c := Classify(query); c.Intent != IntentKeyword {
			t.Fatalf("query %q: expected keyword, got %s", query, c.Intent)
		}
	}
}

func TestClassifyDefaultsToSemantic(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"can my landlord raise rent twice in one year?",
		"tenant stopped paying, what are my options",
	}
	for _, query := range cases {
		if c := Classify(query); c.Intent != IntentSemantic {
			t.Fatalf("query %q: expected semantic, got %s", query, c.Intent)
		}
	}
}

func TestClassifyCurlyAndSingleQuotes(t *testing.T) {
	c := Classify("what does “habitable condition” mean")
	if c.Intent != IntentPhraseLookup || c.Phrase != "habitable condition" {
		t.Fatalf("curly quotes: got %+v", c)
	}
	c = Classify("define 'essential service' under the act")
	if c.Intent != IntentPhraseLookup || c.Phrase != "essential service" {
		t.Fatalf("single quotes: got %+v", c)
	}
}

func TestClassifyEmptyQuotesIgnored(t *testing.T) {
	// A degenerate empty quote pair should not hijack classification.
	c := Classify(`what is "" in 90.300`)
	if c.Intent != IntentSectionLookup {
		t.Fatalf("expected section_lookup for empty quotes, got %s", c.Intent)
	}
}
