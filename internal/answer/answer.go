// Package answer composes a natural-language answer from retrieved passages.
// The engine passes top-ranked search results here verbatim; the confidence
// an Answerer reports is surfaced to the caller unchanged.
package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultAnswerModel is used when none is configured.
const DefaultAnswerModel = "gpt-4o-mini"

// Passage is one retrieved piece of evidence handed to the answerer.
type Passage struct {
	Title string
	Text  string
	Score float64
}

// Response is the composed answer plus the model's self-reported confidence.
type Response struct {
	Answer     string
	Confidence float64
}

// Answerer turns a question and supporting passages into an answer.
type Answerer interface {
	Answer(ctx context.Context, question string, passages []Passage) (*Response, error)
}

const answerSystemPrompt = `You answer questions using only the provided passages.
If the passages do not contain the answer, say so plainly.
Respond with JSON only: {"answer": "...", "confidence": 0.0}
Confidence is how well the passages support the answer, in [0,1].`

// OpenAIAnswerer composes answers with a chat model.
type OpenAIAnswerer struct {
	client *openai.Client
	model  string
}

// NewOpenAIAnswerer creates an answerer backed by the OpenAI API.
func NewOpenAIAnswerer(apiKey, model string) *OpenAIAnswerer {
	if model == "" {
		model = DefaultAnswerModel
	}
	return &OpenAIAnswerer{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Answer sends the question and passages to the model.
func (a *OpenAIAnswerer) Answer(ctx context.Context, question string, passages []Passage) (*Response, error) {
	if len(passages) == 0 {
		return &Response{
			Answer:     "No relevant documents were found for this question.",
			Confidence: 0,
		}, nil
	}

	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nPassages:\n")
	for i, p := range passages {
		fmt.Fprintf(&sb, "[%d] %s\n%s\n\n", i+1, p.Title, p.Text)
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("answer request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("answer request: empty response")
	}

	var wire struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
	}
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		// A model that ignores the JSON instruction still gave an answer.
		return &Response{Answer: raw, Confidence: 0.5}, nil
	}
	if wire.Confidence < 0 {
		wire.Confidence = 0
	}
	if wire.Confidence > 1 {
		wire.Confidence = 1
	}
	return &Response{Answer: wire.Answer, Confidence: wire.Confidence}, nil
}

var _ Answerer = (*OpenAIAnswerer)(nil)
