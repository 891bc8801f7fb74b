package openai

import (
	"fmt"
	"sort"

	"github.com/feedlens/feedlens/internal/ailink/content"
	"github.com/feedlens/feedlens/internal/ailink/driver"
)

type chatCompletionResponse struct {
	Choices []choice `json:"choices"`
	Usage   *usage   `json:"usage,omitempty"`
}

type choice struct {
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type chatResponseMessage struct {
	Content string `json:"content"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type embeddingResponse struct {
	Data  []embeddingDatum `json:"data"`
	Usage *usage           `json:"usage,omitempty"`
}

type embeddingDatum struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

func toDriverResponse(resp *chatCompletionResponse) (*driver.Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response choices")
	}

	choice := resp.Choices[0]
	response := &driver.Response{
		Content:      []content.ContentBlock{{Type: content.ContentTypeText, Text: choice.Message.Content}},
		FinishReason: choice.FinishReason,
	}
	response.Usage = toDriverUsage(resp.Usage)
	return response, nil
}

func toEmbedResponse(req *driver.EmbedRequest, resp *embeddingResponse) (*driver.EmbedResponse, error) {
	if resp == nil || len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	if len(resp.Data) != len(req.Inputs) {
		return nil, fmt.Errorf("embedding count mismatch: %d inputs, %d vectors", len(req.Inputs), len(resp.Data))
	}

	// The API is documented to return data in input order, but sort by index
	// to be safe.
	data := make([]embeddingDatum, len(resp.Data))
	copy(data, resp.Data)
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float64, 0, len(data))
	for _, datum := range data {
		if len(datum.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding vector at index %d", datum.Index)
		}
		vectors = append(vectors, datum.Embedding)
	}

	return &driver.EmbedResponse{Vectors: vectors, Usage: toDriverUsage(resp.Usage)}, nil
}

func toDriverUsage(u *usage) *driver.Usage {
	if u == nil {
		return nil
	}
	return &driver.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
