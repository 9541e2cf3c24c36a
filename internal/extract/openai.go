package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Aman-CERP/corpus/internal/store"
)

// DefaultExtractionModel is used when none is configured.
const DefaultExtractionModel = "gpt-4o-mini"

const extractionSystemPrompt = `You extract entities and relationships from text.
Respond with JSON only, no prose, using this shape:
{
  "entities": [{"name": "...", "type": "person|organization|location|date|other"}],
  "relationships": [{"source": "...", "source_type": "...", "type": "UPPER_SNAKE_VERB", "target": "...", "target_type": "...", "confidence": 0.0, "context": "..."}]
}
Entity names must appear verbatim in the text. Confidence is your certainty in [0,1].`

// OpenAIExtractor asks a chat model for structured entities and
// relationships. Use when extraction quality matters more than offline
// operation.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
}

// NewOpenAIExtractor creates an extractor backed by the OpenAI API.
func NewOpenAIExtractor(apiKey, model string) *OpenAIExtractor {
	if model == "" {
		model = DefaultExtractionModel
	}
	return &OpenAIExtractor{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

type wireEntity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type wireRelationship struct {
	Source     string  `json:"source"`
	SourceType string  `json:"source_type"`
	Type       string  `json:"type"`
	Target     string  `json:"target"`
	TargetType string  `json:"target_type"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
}

type wireExtraction struct {
	Entities      []wireEntity       `json:"entities"`
	Relationships []wireRelationship `json:"relationships"`
}

// Extract sends text to the model and parses the JSON reply.
func (e *OpenAIExtractor) Extract(ctx context.Context, text string) (*Result, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("extraction request: empty response")
	}

	var wire wireExtraction
	raw := stripCodeFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}

	result := &Result{}
	for _, we := range wire.Entities {
		result.Entities = append(result.Entities, store.Entity{
			Name: strings.TrimSpace(we.Name),
			Type: normalizeEntityType(we.Type),
		})
	}
	result.Entities = dedupeEntities(result.Entities)
	for _, wr := range wire.Relationships {
		if wr.Source == "" || wr.Target == "" {
			continue
		}
		result.Relationships = append(result.Relationships, store.Relationship{
			SourceEntity: strings.TrimSpace(wr.Source),
			SourceType:   normalizeEntityType(wr.SourceType),
			Type:         normalizeRelationType(wr.Type),
			TargetEntity: strings.TrimSpace(wr.Target),
			TargetType:   normalizeEntityType(wr.TargetType),
			Confidence:   clamp01(wr.Confidence),
			Context:      wr.Context,
		})
	}
	return result, nil
}

func normalizeEntityType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case TypePerson, TypeOrganization, TypeLocation, TypeDate:
		return strings.ToLower(strings.TrimSpace(t))
	default:
		return TypeOther
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// stripCodeFence unwraps ```json fenced replies some models insist on.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
