// Package chunker turns raw document text plus structural hints into
// the ordered chunk sequence that gets indexed.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"recall/internal/adapter/analyzer"
	"recall/internal/domain"
	"recall/internal/logger"
	"recall/internal/port"
)

// SectionChunker splits documents along structural boundaries.
//
// Rule order: hinted tables and code blocks are atomic, never split and
// never merged with neighbors; remaining text segments at headings and
// turn markers; adjacent undersized sections merge up to the target
// size without crossing sibling or higher-level headings; an oversized
// section hard-splits at sentence boundaries, carrying a trailing-token
// overlap into the next chunk.
type SectionChunker struct {
	targetTokens  int
	overlapTokens int
	maxTokens     int
	tokenizer     port.Tokenizer
}

// NewSectionChunker creates a new SectionChunker.
func NewSectionChunker(targetTokens, overlapTokens, maxTokens int, tokenizer port.Tokenizer) *SectionChunker {
	return &SectionChunker{
		targetTokens:  targetTokens,
		overlapTokens: overlapTokens,
		maxTokens:     maxTokens,
		tokenizer:     tokenizer,
	}
}

// atom is a maximal span of text with a single structural identity.
// Atoms partition the document text exactly.
type atom struct {
	start       int
	end         int
	kind        domain.ChunkType
	level       int  // heading level, 1 is highest rank; 0 for non-headings
	boundary    bool // opens a new heading section
	anyHeadStop bool // any heading boundary ends a merge run anchored here
	title       string
	path        []string
	tokens      int
}

// Chunk splits the document into chunks. An empty document yields
// domain.ErrEmptyDocument and no chunks.
func (c *SectionChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, domain.ErrEmptyDocument
	}

	hints := sanitizeHints(doc)
	atoms := c.segment(doc.Text, hints)

	var chunks []domain.Chunk
	seq := 0

	i := 0
	for i < len(atoms) {
		a := atoms[i]

		if a.kind == domain.ChunkTable || a.kind == domain.ChunkCodeBlock {
			chunks = append(chunks, c.emit(doc, seq, a.start, a.end, "", a))
			seq++
			i++
			continue
		}

		// Merge rule: absorb following undersized sections until the
		// running total reaches the target or a boundary of equal or
		// higher heading rank is hit.
		total := a.tokens
		j := i + 1
		for j < len(atoms) && total < c.targetTokens {
			b := atoms[j]
			if b.kind == domain.ChunkTable || b.kind == domain.ChunkCodeBlock {
				break
			}
			if b.boundary && (a.anyHeadStop || b.level <= a.level) {
				break
			}
			if b.tokens >= c.targetTokens {
				break
			}
			total += b.tokens
			j++
		}

		chunks = append(chunks, c.split(doc, &seq, a.start, atoms[j-1].end, a)...)
		i = j
	}

	return chunks, nil
}

// split applies the hard-split rule to one section span. Oversized
// spans cut at the nearest sentence boundary at or before maxTokens; a
// single sentence longer than maxTokens falls back to a word boundary.
func (c *SectionChunker) split(doc domain.Document, seq *int, start, end int, a atom) []domain.Chunk {
	if c.tokenizer.CountTokens(doc.Text[start:end]) <= c.maxTokens {
		ch := c.emit(doc, *seq, start, end, "", a)
		*seq++
		return []domain.Chunk{ch}
	}

	ends := analyzer.SentenceEnds(doc.Text[start:end])
	for k := range ends {
		ends[k] += start
	}

	var chunks []domain.Chunk
	cur := start
	overlap := ""
	ei := 0

	for cur < end {
		for ei < len(ends) && ends[ei] <= cur {
			ei++
		}

		cut := cur
		for ei < len(ends) {
			e := ends[ei]
			if c.tokenizer.CountTokens(overlap+doc.Text[cur:e]) > c.maxTokens {
				break
			}
			cut = e
			ei++
		}

		if cut == cur {
			limit := end
			if ei < len(ends) {
				limit = ends[ei]
			}
			cut = wordBoundaryCut(doc.Text, cur, limit, c.maxTokens, c.tokenizer, overlap)
			if cut <= cur {
				cut = limit
			}
		}

		ch := c.emit(doc, *seq, cur, cut, overlap, a)
		*seq++
		chunks = append(chunks, ch)

		if cut >= end {
			break
		}
		overlap = trailingTokens(ch.Text, c.overlapTokens, c.tokenizer)
		cur = cut
	}

	return chunks
}

// emit builds a chunk for doc.Text[start:end] with an optional overlap
// prefix carried from the previous chunk.
func (c *SectionChunker) emit(doc domain.Document, seq, start, end int, overlap string, a atom) domain.Chunk {
	text := overlap + doc.Text[start:end]
	return domain.Chunk{
		ID:           chunkID(doc.ID, seq, start, end),
		DocID:        doc.ID,
		Sequence:     seq,
		Text:         text,
		Type:         a.kind,
		SectionTitle: a.title,
		HeadingPath:  a.path,
		TokenCount:   c.tokenizer.CountTokens(text),
		Start:        start,
		End:          end,
		OverlapLen:   len(overlap),
		Tokens:       c.tokenizer.Tokenize(text),
	}
}

// segment partitions the text into atoms from the sanitized hints. With
// no hints at all the whole text is a single prose atom, left to the
// hard-split rule.
func (c *SectionChunker) segment(text string, hints []domain.StructuralHint) []atom {
	if len(hints) == 0 {
		return []atom{{
			start:       0,
			end:         len(text),
			kind:        domain.ChunkProse,
			anyHeadStop: true,
			tokens:      c.tokenizer.CountTokens(text),
		}}
	}

	var atoms []atom
	var headStack []domain.StructuralHint

	// Open section context inherited by text between hints. fresh is
	// true until the section's first atom is emitted, so continuations
	// after an interrupting table are not treated as new boundaries.
	current := atom{kind: domain.ChunkProse, anyHeadStop: true}
	fresh := false

	flush := func(from, to int) {
		if to <= from {
			return
		}
		seg := current
		seg.start = from
		seg.end = to
		seg.boundary = current.boundary && fresh
		seg.tokens = c.tokenizer.CountTokens(text[from:to])
		atoms = append(atoms, seg)
		fresh = false
	}

	pos := 0
	for _, h := range hints {
		flush(pos, h.Start)
		if h.Start > pos {
			pos = h.Start
		}

		switch h.Type {
		case domain.HintTable, domain.HintCodeBlock:
			kind := domain.ChunkTable
			if h.Type == domain.HintCodeBlock {
				kind = domain.ChunkCodeBlock
			}
			atoms = append(atoms, atom{
				start:  h.Start,
				end:    h.End,
				kind:   kind,
				title:  current.title,
				path:   current.path,
				tokens: c.tokenizer.CountTokens(text[h.Start:h.End]),
			})
			pos = h.End

		case domain.HintHeading:
			for len(headStack) > 0 && headStack[len(headStack)-1].Level >= h.Level {
				headStack = headStack[:len(headStack)-1]
			}
			headStack = append(headStack, h)
			path := make([]string, len(headStack))
			for k, hh := range headStack {
				path[k] = hh.Title
			}
			current = atom{
				kind:     domain.ChunkHeadingSection,
				level:    h.Level,
				boundary: true,
				title:    h.Title,
				path:     path,
			}
			fresh = true

		case domain.HintTurn:
			title := h.Title
			if title == "" {
				title = firstLine(text[h.Start:])
			}
			current = atom{
				kind:        domain.ChunkTurn,
				anyHeadStop: true,
				title:       title,
			}
			fresh = true

		default:
			// Unknown hint types fall back to prose explicitly.
			current = atom{kind: domain.ChunkProse, anyHeadStop: true}
			fresh = true
		}
	}

	flush(pos, len(text))

	return atoms
}

// sanitizeHints sorts hints and drops malformed ones (out-of-range or
// overlapping spans), logging a warning instead of aborting ingestion.
func sanitizeHints(doc domain.Document) []domain.StructuralHint {
	sorted := make([]domain.StructuralHint, len(doc.Hints))
	copy(sorted, doc.Hints)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	hints := sorted[:0]
	dropped := 0
	prevEnd := 0
	for _, h := range sorted {
		if h.Start < 0 || h.End > len(doc.Text) || h.End <= h.Start || h.Start < prevEnd {
			dropped++
			continue
		}
		hints = append(hints, h)
		prevEnd = h.End
	}

	if dropped > 0 {
		logger.Warn("document %s: dropped %d malformed structural hints: %v",
			doc.ID, dropped, domain.ErrMalformedHints)
	}

	return hints
}

// trailingTokens returns the shortest word-aligned suffix of text
// holding at least n tokens, or all of text when it is shorter.
func trailingTokens(text string, n int, tok port.Tokenizer) string {
	if n <= 0 || text == "" {
		return ""
	}

	idx := len(text)
	for idx > 0 {
		next := strings.LastIndexByte(text[:idx], ' ')
		if next < 0 {
			break
		}
		if tok.CountTokens(text[next+1:]) >= n {
			return text[next+1:]
		}
		idx = next
	}
	return text
}

// wordBoundaryCut finds the furthest space-delimited cut in
// (start, limit) keeping the chunk within maxTokens. Returns start when
// no cut fits.
func wordBoundaryCut(text string, start, limit, maxTokens int, tok port.Tokenizer, overlap string) int {
	cut := start
	for i := start; i < limit; i++ {
		if text[i] != ' ' && text[i] != '\n' {
			continue
		}
		if tok.CountTokens(overlap+text[start:i+1]) > maxTokens {
			break
		}
		cut = i + 1
	}
	return cut
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, " \t\n")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}

func chunkID(docID string, seq, start, end int) string {
	data := fmt.Sprintf("%s:%d:%d-%d", docID, seq, start, end)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
