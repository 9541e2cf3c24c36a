package chunk

import (
	"strings"
)

// Engine splits text into overlapping passages. Sentences are the split
// unit: a passage accumulates whole sentences until appending the next one
// would exceed the chunk size, then the trailing sentences of the emitted
// passage seed the next one so passages split mid-thought keep cross-chunk
// context.
type Engine struct {
	chunkSize    int
	chunkOverlap int
}

// NewEngine creates a chunking engine. Non-positive arguments fall back to
// the defaults.
func NewEngine(chunkSize, chunkOverlap int) *Engine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}
	return &Engine{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// ChunkSize returns the passage size bound in characters.
func (e *Engine) ChunkSize() int { return e.chunkSize }

// Split chunks a single text. Ordinals start at 0.
func (e *Engine) Split(text string) []Passage {
	return e.split(text, 0, 0)
}

// SplitPages chunks PDF page texts. Overlap is carried within a page only;
// a page boundary starts a fresh passage. Ordinals stay monotonic across
// the whole document.
func (e *Engine) SplitPages(pages []Page) []Passage {
	var passages []Passage
	ordinal := 0
	for _, p := range pages {
		chunks := e.split(p.Text, ordinal, p.Number)
		passages = append(passages, chunks...)
		ordinal += len(chunks)
	}
	return passages
}

func (e *Engine) split(text string, startOrdinal, page int) []Passage {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var (
		passages []Passage
		current  []string
		curLen   int
		ordinal  = startOrdinal
	)

	emit := func() {
		if len(current) == 0 {
			return
		}
		body := strings.Join(current, " ")
		passages = append(passages, Passage{
			Ordinal:   ordinal,
			Text:      body,
			Page:      page,
			CharCount: len(body),
		})
		ordinal++
	}

	for _, sentence := range sentences {
		sentenceLen := len(sentence)

		// A sentence above the bound always becomes its own oversized
		// passage rather than being truncated or merged into a neighbor.
		// Any passage in progress is emitted first, and the oversized
		// passage carries no overlap into the next one.
		if sentenceLen > e.chunkSize {
			emit()
			current = []string{sentence}
			emit()
			current, curLen = nil, 0
			continue
		}

		if curLen+sentenceLen+1 > e.chunkSize && len(current) > 0 {
			emit()
			seed := e.overlapTail(current)
			current, curLen = seed, 0
			for _, s := range current {
				curLen += len(s) + 1
			}
		}

		current = append(current, sentence)
		curLen += sentenceLen + 1
	}
	emit()

	return passages
}

// overlapTail returns up to the last two sentences of a just-emitted
// passage, newest last, bounded by the overlap character budget.
func (e *Engine) overlapTail(sentences []string) []string {
	if e.chunkOverlap == 0 {
		return nil
	}
	var (
		tail []string
		size int
	)
	for i := len(sentences) - 1; i >= 0 && len(tail) < maxOverlapSentences; i-- {
		s := sentences[i]
		if size+len(s) > e.chunkOverlap {
			break
		}
		tail = append([]string{s}, tail...)
		size += len(s)
	}
	return tail
}

// sentenceTerminators end a sentence when followed by whitespace or EOF.
const sentenceTerminators = ".!?"

// SplitSentences splits text on punctuation boundaries. Terminators are
// kept with their sentence; consecutive whitespace (including newlines)
// separates sentences that lack terminal punctuation.
func SplitSentences(text string) []string {
	var (
		sentences []string
		start     int
	)
	data := text
	flush := func(end int) {
		s := strings.TrimSpace(text[start:end])
		if s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}

	for i := 0; i < len(data); i++ {
		c := data[i]
		if strings.IndexByte(sentenceTerminators, c) >= 0 {
			// Swallow a run of terminators ("..." or "?!").
			j := i + 1
			for j < len(data) && strings.IndexByte(sentenceTerminators, data[j]) >= 0 {
				j++
			}
			if j >= len(data) || data[j] == ' ' || data[j] == '\n' || data[j] == '\t' || data[j] == '\r' {
				flush(j)
				i = j - 1
			}
			continue
		}
		// A blank line is a paragraph boundary even without punctuation.
		if c == '\n' && i+1 < len(data) && data[i+1] == '\n' {
			flush(i)
		}
	}
	flush(len(data))

	return sentences
}
