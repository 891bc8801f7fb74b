package ailink

import (
	"context"
	"fmt"
	"strings"

	"github.com/feedlens/feedlens/internal/ailink/content"
	"github.com/feedlens/feedlens/internal/ailink/driver"
)

// Passage is one retrieved item of grounding context.
type Passage struct {
	ID    string
	Text  string
	Score float64
}

// Retriever finds the stored passages nearest to a query vector.
type Retriever interface {
	Retrieve(ctx context.Context, vector []float64, limit int) ([]Passage, error)
}

// Answer is the outcome of one question.
type Answer struct {
	Text     string
	Passages []Passage
	Usage    *driver.Usage
}

const defaultTopK = 8

const answerSystemPrompt = "You answer questions about a collection of social feed posts. " +
	"Use only the provided posts as evidence. If the posts do not contain the answer, say so."

// Answerer runs the embed-retrieve-complete flow for the ask command.
type Answerer struct {
	Registry  *Registry
	Retriever Retriever
	TopK      int
}

// Answer embeds the question, retrieves the nearest stored passages, and
// asks the completion provider to answer grounded on them.
func (a *Answerer) Answer(ctx context.Context, question string) (*Answer, error) {
	if a == nil || a.Registry == nil || a.Retriever == nil {
		return nil, fmt.Errorf("answerer is not configured")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	vectors, err := a.Registry.EmbedTexts(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	topK := a.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	passages, err := a.Retriever.Retrieve(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if len(passages) == 0 {
		return nil, fmt.Errorf("no embedded items to answer from; collect with embedding enabled first")
	}

	resolved, err := a.Registry.Resolve(RoleAnswer, "")
	if err != nil {
		return nil, err
	}

	resp, err := resolved.Driver.Complete(ctx, &driver.Request{
		Model: resolved.Model,
		Messages: []content.Message{
			{Role: "system", Content: []content.ContentBlock{{Type: content.ContentTypeText, Text: answerSystemPrompt}}},
			{Role: "user", Content: []content.ContentBlock{{Type: content.ContentTypeText, Text: buildQuestionPrompt(question, passages)}}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("complete answer: %w", err)
	}

	return &Answer{
		Text:     strings.TrimSpace(resp.Text()),
		Passages: passages,
		Usage:    resp.Usage,
	}, nil
}

// EmbedTexts resolves the embedding provider and returns one vector per
// input text.
func (r *Registry) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts are required")
	}

	resolved, err := r.Resolve(RoleEmbed, "")
	if err != nil {
		return nil, err
	}

	embedder, ok := resolved.Driver.(driver.Embedder)
	if !ok {
		return nil, fmt.Errorf("provider %q does not support embeddings", resolved.ProviderID)
	}

	resp, err := embedder.Embed(ctx, &driver.EmbedRequest{Model: resolved.Model, Inputs: texts})
	if err != nil {
		return nil, err
	}
	return resp.Vectors, nil
}

func buildQuestionPrompt(question string, passages []Passage) string {
	var b strings.Builder
	b.WriteString("Posts:\n")
	for i, passage := range passages {
		fmt.Fprintf(&b, "%d. %s\n", i+1, passage.Text)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
