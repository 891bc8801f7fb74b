package driver

import (
	"context"

	"github.com/feedlens/feedlens/internal/ailink/content"
)

// Driver defines the interface for AI completion providers.
type Driver interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Name returns the driver identifier (e.g., "openai").
	Name() string
	// Capabilities returns what this driver supports.
	Capabilities() Capabilities
}

// Embedder is implemented by drivers that can produce embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error)
}

// Capabilities describes driver features.
type Capabilities struct {
	SupportsEmbeddings bool
	SupportedModels    []string
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model       string
	Messages    []content.Message
	Temperature *float64
	MaxTokens   *int
	Metadata    map[string]string
}

// Response is a provider-agnostic completion response.
type Response struct {
	Content      []content.ContentBlock
	FinishReason string
	Usage        *Usage
}

// Text returns the concatenated text blocks of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	var out string
	for _, block := range r.Content {
		out += block.Text
	}
	return out
}

// EmbedRequest asks for embedding vectors over one or more inputs.
type EmbedRequest struct {
	Model  string
	Inputs []string
}

// EmbedResponse carries one vector per input, in input order.
type EmbedResponse struct {
	Vectors [][]float64
	Usage   *Usage
}
