// Package processor provides document processing: text extraction and chunking
package processor

import (
	"regexp"
	"strings"
)

const (
	// DefaultMaxChunkSize is the target upper bound for one chunk, in characters
	DefaultMaxChunkSize = 1500

	// DefaultOverlap is the character budget carried over between consecutive chunks
	DefaultOverlap = 200

	// MinChunkLength is the noise floor: shorter chunks are dropped, not stored
	MinChunkLength = 20

	// paragraphSeparator joins paragraphs inside a chunk and accounts for the
	// two characters added when a paragraph is appended to a non-empty chunk
	paragraphSeparator = "\n\n"
)

var (
	paragraphSplitRe = regexp.MustCompile(`\n\n+`)
	sentenceEndRe    = regexp.MustCompile(`([.!?])\s+`)
)

// Chunker splits extracted document text into bounded, overlapping passages
// suitable for embedding and retrieval. It holds no state and is safe for
// concurrent use.
type Chunker struct {
	MaxChunkSize int
	Overlap      int
	MinLength    int
}

// NewChunker creates a chunker with the given bounds. Non-positive maxChunkSize
// or negative overlap fall back to the defaults.
func NewChunker(maxChunkSize, overlap int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	return &Chunker{
		MaxChunkSize: maxChunkSize,
		Overlap:      overlap,
		MinLength:    MinChunkLength,
	}
}

// Split chunks text into ordered passages. It is total over strings: empty or
// whitespace-only input yields an empty slice, and no input can produce an
// error. The returned chunks preserve document order.
func (c *Chunker) Split(text string) []string {
	clean := strings.ReplaceAll(text, "\r\n", "\n")
	clean = strings.ReplaceAll(clean, "\r", "\n")

	paragraphs := paragraphSplitRe.Split(clean, -1)

	var chunks []string
	current := ""

	for _, paragraph := range paragraphs {
		trimmed := strings.TrimSpace(paragraph)
		if trimmed == "" {
			continue
		}

		if len(current)+len(trimmed)+len(paragraphSeparator) > c.MaxChunkSize && len(current) > 0 {
			chunks = append(chunks, strings.TrimSpace(current))

			if c.Overlap > 0 {
				// Seed the next chunk with a word-level suffix of the one just
				// closed so local context survives the boundary.
				current = c.overlapSuffix(current) + paragraphSeparator + trimmed
			} else {
				current = trimmed
			}
		} else if current == "" {
			current = trimmed
		} else {
			current = current + paragraphSeparator + trimmed
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	// A single paragraph can exceed the budget on its own; those chunks are
	// re-split at sentence boundaries. Overlap is intentionally not applied at
	// this level.
	var final []string
	for _, chunk := range chunks {
		if len(chunk) > c.oversizeThreshold() {
			final = append(final, c.splitSentences(chunk)...)
		} else {
			final = append(final, chunk)
		}
	}

	// Noise floor: degenerate fragments are dropped silently.
	filtered := final[:0]
	for _, chunk := range final {
		if len(chunk) > c.MinLength {
			filtered = append(filtered, chunk)
		}
	}
	return filtered
}

// oversizeThreshold is the point past which a chunk is considered an
// irreducible oversized paragraph and gets sentence-split.
func (c *Chunker) oversizeThreshold() int {
	return c.MaxChunkSize * 3 / 2
}

// overlapSuffix walks backward word by word through chunk, accumulating until
// the character budget (one separator per word included) reaches the overlap.
func (c *Chunker) overlapSuffix(chunk string) string {
	words := strings.Fields(chunk)
	overlapLen := 0
	i := len(words)
	for i > 0 && overlapLen < c.Overlap {
		i--
		overlapLen += len(words[i]) + 1
	}
	return strings.Join(words[i:], " ")
}

// splitSentences re-splits an oversized chunk on whitespace following sentence
// punctuation, greedily re-accumulating up to the chunk budget. A single
// sentence larger than the budget passes through unchanged.
func (c *Chunker) splitSentences(chunk string) []string {
	sentences := splitAfterSentenceEnd(chunk)

	var out []string
	sub := ""
	for _, sentence := range sentences {
		if len(sub)+len(sentence)+1 > c.MaxChunkSize && len(sub) > 0 {
			out = append(out, strings.TrimSpace(sub))
			sub = sentence
		} else if sub == "" {
			sub = sentence
		} else {
			sub = sub + " " + sentence
		}
	}
	if strings.TrimSpace(sub) != "" {
		out = append(out, strings.TrimSpace(sub))
	}
	return out
}

// splitAfterSentenceEnd splits text after `.`, `!` or `?` followed by
// whitespace, keeping the punctuation with the preceding sentence. Go's
// regexp has no lookbehind, so the terminator is reinserted manually.
func splitAfterSentenceEnd(text string) []string {
	matches := sentenceEndRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}

	var parts []string
	start := 0
	for _, m := range matches {
		// m[3] is the end of the punctuation group; the whitespace that
		// follows is consumed by the split.
		parts = append(parts, text[start:m[3]])
		start = m[1]
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}
