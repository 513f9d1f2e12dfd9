package analyzer

import (
	"reflect"
	"testing"
)

func TestTokenizeBasic(t *testing.T) {
	tok := NewTokenizer(false)

	tokens := tok.Tokenize("The quarterly budget meeting notes")
	want := []string{"quarterly", "budget", "meeting", "notes"}
	if !reflect.DeepEqual(tokens, want) {
		t.Errorf("Tokenize() = %v, want %v", tokens, want)
	}
}

func TestTokenizeStopwordsAndShortWords(t *testing.T) {
	tok := NewTokenizer(false)

	tokens := tok.Tokenize("it is a DB of x")
	want := []string{"db"}
	if !reflect.DeepEqual(tokens, want) {
		t.Errorf("Tokenize() = %v, want %v", tokens, want)
	}
}

func TestTokenizeStemming(t *testing.T) {
	tok := NewTokenizer(true)

	// Query and document forms must reduce to the same term.
	docTokens := tok.Tokenize("meetings")
	queryTokens := tok.Tokenize("meeting")
	if len(docTokens) != 1 || len(queryTokens) != 1 {
		t.Fatalf("expected single tokens, got %v and %v", docTokens, queryTokens)
	}
	if docTokens[0] != queryTokens[0] {
		t.Errorf("stems differ: %q vs %q", docTokens[0], queryTokens[0])
	}
}

func TestStem(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"budgets", "budget"},
		{"stresses", "stress"},
		{"policies", "polici"},
		{"running", "run"},
		{"planned", "plan"},
		{"quickly", "quick"},
		{"cat", "cat"},
	}

	for _, tc := range tests {
		if got := stem(tc.in); got != tc.want {
			t.Errorf("stem(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCountTokensEmpty(t *testing.T) {
	tok := NewTokenizer(false)
	if n := tok.CountTokens(""); n != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", n)
	}
}

func TestSentenceEndsPartition(t *testing.T) {
	text := "First sentence. Second one! Third?\nFourth without terminator"
	ends := SentenceEnds(text)

	if ends[len(ends)-1] != len(text) {
		t.Fatalf("last offset must equal text length: got %d, want %d", ends[len(ends)-1], len(text))
	}

	// Offsets must be strictly increasing and reassemble the text.
	prev := 0
	var rebuilt string
	for _, e := range ends {
		if e <= prev {
			t.Fatalf("offsets not strictly increasing: %v", ends)
		}
		rebuilt += text[prev:e]
		prev = e
	}
	if rebuilt != text {
		t.Error("sentence offsets do not partition the text")
	}
}

func TestSentenceEndsNoTerminator(t *testing.T) {
	ends := SentenceEnds("no terminator here")
	if len(ends) != 1 || ends[0] != len("no terminator here") {
		t.Errorf("expected single end at text length, got %v", ends)
	}
}
