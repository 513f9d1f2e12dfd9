package analyzer

import "unicode"

// SentenceEnds returns the byte offsets just past each sentence
// terminator in text, including trailing whitespace up to the next
// sentence. The final offset is always len(text), so the offsets
// partition the text exactly.
func SentenceEnds(text string) []int {
	var ends []int
	runes := []rune(text)
	byteAt := make([]int, len(runes)+1)
	off := 0
	for i, r := range runes {
		byteAt[i] = off
		off += len(string(r))
	}
	byteAt[len(runes)] = off

	i := 0
	for i < len(runes) {
		r := runes[i]
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			// Absorb consecutive terminators and following spaces.
			j := i + 1
			for j < len(runes) && (runes[j] == '.' || runes[j] == '!' || runes[j] == '?') {
				j++
			}
			for j < len(runes) && runes[j] != '\n' && unicode.IsSpace(runes[j]) {
				j++
			}
			ends = append(ends, byteAt[j])
			i = j
			continue
		}
		i++
	}

	if len(ends) == 0 || ends[len(ends)-1] != len(text) {
		ends = append(ends, len(text))
	}
	return ends
}
