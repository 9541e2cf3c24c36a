package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "terminators kept with sentence",
			text: "Hello world. How are you? Fine!",
			want: []string{"Hello world.", "How are you?", "Fine!"},
		},
		{
			name: "terminator runs swallowed",
			text: "Wait... Really?! Yes.",
			want: []string{"Wait...", "Really?!", "Yes."},
		},
		{
			name: "blank line splits unpunctuated paragraphs",
			text: "first paragraph without punctuation\n\nsecond paragraph",
			want: []string{"first paragraph without punctuation", "second paragraph"},
		},
		{
			name: "empty input",
			text: "   ",
			want: nil,
		},
		{
			name: "single sentence without terminator",
			text: "no terminal punctuation here",
			want: []string{"no terminal punctuation here"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.text))
		})
	}
}

func TestSplit_RespectsChunkSize(t *testing.T) {
	e := NewEngine(100, 30)

	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString("This is sentence number something. ")
	}

	passages := e.Split(sb.String())
	require.NotEmpty(t, passages)

	for _, p := range passages {
		assert.LessOrEqual(t, p.CharCount, 100, "passage %d exceeds chunk size", p.Ordinal)
		assert.Equal(t, len(p.Text), p.CharCount)
	}
}

func TestSplit_CoversAllSentences(t *testing.T) {
	e := NewEngine(80, 20)
	text := "Alpha sentence one. Beta sentence two. Gamma sentence three. Delta sentence four. Epsilon sentence five."

	passages := e.Split(text)
	require.NotEmpty(t, passages)

	joined := ""
	for _, p := range passages {
		joined += p.Text + " "
	}
	for _, s := range SplitSentences(text) {
		assert.Contains(t, joined, s, "sentence lost during chunking")
	}
}

func TestSplit_OrdinalsAreMonotonic(t *testing.T) {
	e := NewEngine(60, 20)
	passages := e.Split("One short sentence here. Another short sentence here. A third short sentence here. A fourth one too.")

	for i, p := range passages {
		assert.Equal(t, i, p.Ordinal)
	}
}

func TestSplit_OversizedSentencePassesThroughWhole(t *testing.T) {
	e := NewEngine(50, 10)
	long := strings.Repeat("verylongword ", 10) + "end."
	require.Greater(t, len(long), 50)

	passages := e.Split(long)

	require.Len(t, passages, 1)
	// Never truncated, even though it exceeds the bound.
	assert.Greater(t, passages[0].CharCount, 50)
	assert.Contains(t, passages[0].Text, "verylongword")
}

func TestSplit_OversizedSentenceStandsAloneMidPassage(t *testing.T) {
	e := NewEngine(100, 50)
	short := strings.Repeat("w", 36) + " x."         // 39 chars
	long := strings.Repeat("longword ", 16) + "end." // 148 chars
	text := short + " " + short + " " + long + " " + short

	passages := e.Split(text)
	require.GreaterOrEqual(t, len(passages), 3)

	// Oversized sentences never share a passage, even when one arrives
	// while a passage is being accumulated.
	for _, p := range passages {
		if p.CharCount > 100 {
			assert.Len(t, SplitSentences(p.Text), 1,
				"oversized passage %d must hold a single sentence", p.Ordinal)
		}
	}
}

func TestSplit_OverlapCarriesTrailingSentences(t *testing.T) {
	e := NewEngine(60, 30)
	text := "First bit here. Second bit here. Third bit here. Fourth bit here. Fifth bit here."

	passages := e.Split(text)
	require.GreaterOrEqual(t, len(passages), 2)

	// Each passage after the first leads with the tail of its predecessor:
	// the predecessor's final sentence appears within the first two
	// sentences of the next passage.
	for i := 1; i < len(passages); i++ {
		prev := SplitSentences(passages[i-1].Text)
		cur := SplitSentences(passages[i].Text)
		require.NotEmpty(t, prev)
		require.NotEmpty(t, cur)
		lead := cur
		if len(lead) > 2 {
			lead = lead[:2]
		}
		assert.Contains(t, lead, prev[len(prev)-1],
			"passage %d does not begin with predecessor's trailing sentence", i)
	}
}

func TestSplit_OverlapBoundedByTwoSentences(t *testing.T) {
	e := NewEngine(100, 90)
	text := "Aa. Bb. Cc. Dd. Ee. Ff. Gg. Hh. Ii. Jj. Kk. Ll. Mm. Nn. Oo. Pp. Qq. Rr. Ss. Tt. Uu. Vv. Ww. Xx. Yy. Zz."

	passages := e.Split(text)
	require.GreaterOrEqual(t, len(passages), 2)

	for i := 1; i < len(passages); i++ {
		prev := SplitSentences(passages[i-1].Text)
		cur := SplitSentences(passages[i].Text)
		overlap := 0
		for _, s := range cur {
			found := false
			for _, p := range prev {
				if p == s {
					found = true
					break
				}
			}
			if found {
				overlap++
			} else {
				break
			}
		}
		assert.LessOrEqual(t, overlap, 2, "more than two sentences carried into passage %d", i)
	}
}

func TestSplit_ZeroOverlap(t *testing.T) {
	e := NewEngine(50, 0)
	text := "First sentence goes here. Second sentence goes here. Third sentence goes here."

	passages := e.Split(text)
	require.GreaterOrEqual(t, len(passages), 2)

	seen := make(map[string]bool)
	for _, p := range passages {
		for _, s := range SplitSentences(p.Text) {
			assert.False(t, seen[s], "sentence repeated with zero overlap: %q", s)
			seen[s] = true
		}
	}
}

func TestSplitPages(t *testing.T) {
	e := NewEngine(60, 20)
	pages := []Page{
		{Number: 1, Text: "Page one first sentence. Page one second sentence. Page one third sentence."},
		{Number: 2, Text: "Page two first sentence. Page two second sentence."},
	}

	passages := e.SplitPages(pages)
	require.NotEmpty(t, passages)

	for i, p := range passages {
		assert.Equal(t, i, p.Ordinal, "ordinals must stay monotonic across pages")
	}

	// Page boundaries never blend: no passage mixes text from two pages.
	for _, p := range passages {
		onPageOne := strings.Contains(p.Text, "Page one")
		onPageTwo := strings.Contains(p.Text, "Page two")
		assert.False(t, onPageOne && onPageTwo, "passage %d spans a page boundary", p.Ordinal)
		if onPageOne {
			assert.Equal(t, 1, p.Page)
		}
		if onPageTwo {
			assert.Equal(t, 2, p.Page)
		}
	}
}

func TestSplit_EmptyText(t *testing.T) {
	e := NewEngine(100, 20)
	assert.Nil(t, e.Split(""))
	assert.Nil(t, e.Split("   \n\n  "))
}

func TestNewEngine_Fallbacks(t *testing.T) {
	e := NewEngine(0, -1)
	assert.Equal(t, DefaultChunkSize, e.chunkSize)
	assert.Equal(t, DefaultChunkOverlap, e.chunkOverlap)

	// Overlap must stay below chunk size.
	e = NewEngine(100, 100)
	assert.Equal(t, 25, e.chunkOverlap)
}
