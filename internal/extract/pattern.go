package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/Aman-CERP/corpus/internal/store"
)

// PatternExtractor is the default extractor: regex and capitalization
// heuristics, no network. It finds dates, capitalized multi-word spans, and
// simple "X <verb> Y" relationships between adjacent entities.
type PatternExtractor struct{}

// NewPatternExtractor creates a heuristic extractor.
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

var (
	// dateRegex matches common date shapes: 2026-08-30, 08/30/2026,
	// "August 30, 2026", "30 August 2026".
	dateRegex = regexp.MustCompile(
		`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|` +
			`(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(?:,\s*\d{4})?|` +
			`\d{1,2}\s+(?:January|February|March|April|May|June|July|August|September|October|November|December)(?:\s+\d{4})?)\b`)

	// capitalizedSpanRegex matches runs of capitalized words, allowing
	// connective lowercase words inside ("Bank of England").
	capitalizedSpanRegex = regexp.MustCompile(
		`\b[A-Z][a-zA-Z0-9&.\-]*(?:\s+(?:of|the|and|for|de|van|von)\s+[A-Z][a-zA-Z0-9&.\-]*|\s+[A-Z][a-zA-Z0-9&.\-]*)*`)

	// relationVerbRegex captures "<Entity> <verb phrase> <Entity>" within a
	// sentence for a small set of relation-bearing verbs.
	relationVerbRegex = regexp.MustCompile(
		`\b(works? (?:at|for)|founded|leads?|manages?|owns?|acquired|joined|met(?: with)?|visited|located in|based in|partnered with|reports? to)\b`)
)

// organizationSuffixes mark a capitalized span as an organization.
var organizationSuffixes = []string{
	"Inc", "Inc.", "LLC", "Ltd", "Ltd.", "Corp", "Corp.", "Corporation",
	"Company", "Co.", "Group", "Bank", "University", "Institute",
	"Foundation", "Agency", "Department", "Committee", "Association",
}

// locationKeywords mark a span as a location when preceded by them.
var locationKeywords = map[string]bool{
	"in": true, "at": true, "near": true, "from": true, "to": true,
}

// sentenceStarters are capitalized function words that begin sentences and
// are never entities on their own.
var sentenceStarters = map[string]bool{
	"The": true, "A": true, "An": true, "This": true, "That": true,
	"These": true, "Those": true, "It": true, "He": true, "She": true,
	"They": true, "We": true, "I": true, "On": true, "In": true,
	"At": true, "By": true, "For": true, "With": true, "After": true,
	"Before": true, "When": true, "While": true, "If": true, "But": true,
	"And": true, "Or": true, "As": true, "So": true, "Not": true,
	"There": true, "Here": true, "What": true, "Who": true, "How": true,
	"Monday": true, "Tuesday": true, "Wednesday": true, "Thursday": true,
	"Friday": true, "Saturday": true, "Sunday": true,
	"January": true, "February": true, "March": true, "April": true,
	"May": true, "June": true, "July": true, "August": true,
	"September": true, "October": true, "November": true, "December": true,
}

// Extract runs the heuristics over text.
func (e *PatternExtractor) Extract(ctx context.Context, text string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entities []store.Entity

	for _, m := range dateRegex.FindAllString(text, -1) {
		entities = append(entities, store.Entity{Name: m, Type: TypeDate})
	}

	spans := capitalizedSpanRegex.FindAllStringIndex(text, -1)
	for _, span := range spans {
		name := strings.TrimSpace(text[span[0]:span[1]])
		name = trimSentenceStarter(name)
		// Sentence-final spans carry their terminator ("Berlin.").
		name = strings.TrimSuffix(name, ".")
		if name == "" || dateRegex.MatchString(name) {
			continue
		}
		entities = append(entities, store.Entity{
			Name: name,
			Type: classifySpan(text, span[0], name),
		})
	}

	entities = dedupeEntities(entities)
	relationships := e.extractRelationships(text, entities)

	return &Result{Entities: entities, Relationships: relationships}, nil
}

// trimSentenceStarter strips leading capitalized function words so "The
// Board met Alice" yields "Board"... unless the whole span is a starter, in
// which case nothing remains.
func trimSentenceStarter(name string) string {
	for {
		first, rest, found := strings.Cut(name, " ")
		if !sentenceStarters[first] {
			break
		}
		if !found {
			return ""
		}
		name = rest
	}
	if sentenceStarters[name] {
		return ""
	}
	// Single lowercase-connective leftovers are noise.
	if len(name) < 2 {
		return ""
	}
	return name
}

// classifySpan decides an entity type from suffix and surrounding words.
func classifySpan(text string, start int, name string) string {
	for _, suffix := range organizationSuffixes {
		if strings.HasSuffix(name, suffix) {
			return TypeOrganization
		}
	}
	if prev := precedingWord(text, start); locationKeywords[strings.ToLower(prev)] {
		// "in Berlin", "at Headquarters". Multi-word spans after a
		// preposition are more often orgs or places than people.
		if !strings.Contains(name, " ") {
			return TypeLocation
		}
	}
	// Two capitalized words with no org suffix reads like a person name.
	words := strings.Fields(name)
	if len(words) == 2 || len(words) == 3 {
		return TypePerson
	}
	return TypeOther
}

// precedingWord returns the word immediately before offset.
func precedingWord(text string, offset int) string {
	end := offset
	for end > 0 && text[end-1] == ' ' {
		end--
	}
	start := end
	for start > 0 && text[start-1] != ' ' && text[start-1] != '\n' {
		start--
	}
	return strings.Trim(text[start:end], ".,;:!?")
}

// extractRelationships finds "<entity> <verb> <entity>" patterns. Both
// endpoints must be among the extracted entities.
func (e *PatternExtractor) extractRelationships(text string, entities []store.Entity) []store.Relationship {
	if len(entities) < 2 {
		return nil
	}
	typeOf := make(map[string]string, len(entities))
	for _, ent := range entities {
		typeOf[ent.Name] = ent.Type
	}

	var rels []store.Relationship
	for _, sentence := range strings.Split(text, ".") {
		loc := relationVerbRegex.FindStringIndex(sentence)
		if loc == nil {
			continue
		}
		verb := sentence[loc[0]:loc[1]]
		before, after := sentence[:loc[0]], sentence[loc[1]:]

		source := lastEntityIn(before, typeOf)
		target := firstEntityIn(after, typeOf)
		if source == "" || target == "" || source == target {
			continue
		}
		rels = append(rels, store.Relationship{
			SourceEntity: source,
			SourceType:   typeOf[source],
			Type:         normalizeRelationType(verb),
			TargetEntity: target,
			TargetType:   typeOf[target],
			Confidence:   0.5,
			Context:      strings.TrimSpace(sentence),
		})
	}
	return rels
}

func lastEntityIn(text string, typeOf map[string]string) string {
	best, bestPos := "", -1
	for name := range typeOf {
		if pos := strings.LastIndex(text, name); pos > bestPos {
			best, bestPos = name, pos
		}
	}
	return best
}

func firstEntityIn(text string, typeOf map[string]string) string {
	best, bestPos := "", len(text)+1
	for name := range typeOf {
		if pos := strings.Index(text, name); pos >= 0 && pos < bestPos {
			best, bestPos = name, pos
		}
	}
	return best
}

// normalizeRelationType maps a verb phrase to an upper-snake relation label.
func normalizeRelationType(verb string) string {
	v := strings.ToUpper(strings.TrimSpace(verb))
	v = strings.ReplaceAll(v, " ", "_")
	return v
}
