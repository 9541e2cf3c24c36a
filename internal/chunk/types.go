// Package chunk splits long text into overlapping passages bounded by a
// target size. Passages are the addressable unit for long-form indexing.
package chunk

// Size defaults, in characters.
const (
	// DefaultChunkSize bounds a passage. Roughly 500 tokens at 4 chars
	// per token, which keeps a passage inside one embedding window.
	DefaultChunkSize = 2000

	// DefaultChunkOverlap bounds the trailing-sentence window carried
	// into the next passage.
	DefaultChunkOverlap = 200

	// maxOverlapSentences caps how many trailing sentences seed the next
	// passage regardless of the character budget.
	maxOverlapSentences = 2
)

// Passage is one bounded, overlapping sub-span of a parent text.
type Passage struct {
	// Ordinal is the stable, monotonic position within the parent.
	Ordinal int

	// Text is the passage content. Never truncated: a single sentence
	// longer than the chunk size becomes its own oversized passage.
	Text string

	// Page is the 1-based source page for PDF-origin text, 0 otherwise.
	Page int

	// CharCount is len(Text) in bytes.
	CharCount int
}

// Page is one page of PDF-extracted text.
type Page struct {
	Number int
	Text   string
}
