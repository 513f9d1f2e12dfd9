package analyzer

import "strings"

// stem applies light suffix stripping. It collapses the inflectional
// endings that matter for recall on prose corpora (plurals, -ed, -ing)
// without the full Porter rule set; term and query go through the same
// function, so reduced precision is symmetric.
func stem(word string) string {
	if len(word) < 4 {
		return word
	}

	switch {
	case strings.HasSuffix(word, "sses"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "ies"):
		return word[:len(word)-3] + "i"
	case strings.HasSuffix(word, "ss"):
		return word
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "us"):
		word = word[:len(word)-1]
	}

	if len(word) >= 6 {
		if strings.HasSuffix(word, "ing") && hasVowel(word[:len(word)-3]) {
			word = undouble(word[:len(word)-3])
		} else if strings.HasSuffix(word, "ed") && hasVowel(word[:len(word)-2]) {
			word = undouble(word[:len(word)-2])
		}
	}

	if len(word) >= 5 && strings.HasSuffix(word, "ly") {
		word = word[:len(word)-2]
	}

	return word
}

func hasVowel(s string) bool {
	return strings.ContainsAny(s, "aeiouy")
}

// undouble strips one letter from a doubled consonant ending left by
// suffix removal (e.g. "stopp" -> "stop").
func undouble(s string) string {
	n := len(s)
	if n >= 2 && s[n-1] == s[n-2] && !strings.ContainsRune("aeiou", rune(s[n-1])) {
		switch s[n-1] {
		case 'l', 's', 'z':
			return s
		}
		return s[:n-1]
	}
	return s
}
