// Package markdown derives structural hints from markdown text for
// files ingested directly from disk, where no document-processing
// collaborator supplies them.
package markdown

import (
	"strings"

	"recall/internal/domain"
)

// Hints scans text line by line for headings, fenced code blocks and
// pipe tables. Offsets are byte positions into the original text.
func Hints(text string) []domain.StructuralHint {
	var hints []domain.StructuralHint

	lines := strings.SplitAfter(text, "\n")
	offset := 0

	inFence := false
	fenceStart := 0
	tableStart := -1

	flushTable := func(end int) {
		if tableStart >= 0 {
			hints = append(hints, domain.StructuralHint{
				Type:  domain.HintTable,
				Start: tableStart,
				End:   end,
			})
			tableStart = -1
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\n")

		switch {
		case strings.HasPrefix(strings.TrimSpace(trimmed), "```"):
			flushTable(offset)
			if inFence {
				hints = append(hints, domain.StructuralHint{
					Type:  domain.HintCodeBlock,
					Start: fenceStart,
					End:   offset + len(line),
				})
				inFence = false
			} else {
				inFence = true
				fenceStart = offset
			}

		case inFence:
			// Lines inside a fence belong to the code block.

		case strings.HasPrefix(trimmed, "#"):
			flushTable(offset)
			level := 0
			for level < len(trimmed) && trimmed[level] == '#' {
				level++
			}
			title := strings.TrimSpace(trimmed[level:])
			if level <= 6 && title != "" {
				hints = append(hints, domain.StructuralHint{
					Type:  domain.HintHeading,
					Start: offset,
					End:   offset + len(line),
					Level: level,
					Title: title,
				})
			}

		case isTableRow(trimmed):
			if tableStart < 0 {
				tableStart = offset
			}

		default:
			flushTable(offset)
		}

		offset += len(line)
	}

	// Unterminated fence: treat the rest of the document as code.
	if inFence {
		hints = append(hints, domain.StructuralHint{
			Type:  domain.HintCodeBlock,
			Start: fenceStart,
			End:   len(text),
		})
	}
	flushTable(len(text))

	return hints
}

func isTableRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "|") && strings.Count(trimmed, "|") >= 2
}
