// Package provider defines the generative model interface and its
// OpenAI-compatible implementation.
package provider

import "context"

// Message roles understood by chat-completion APIs.
const (
	RoleSystem    = "system"
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// Message is a single prompt message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a completion request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// ChatResponse is the model's reply.
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// EmbeddingRequest asks for one embedding vector.
type EmbeddingRequest struct {
	Model string
	Input string
}

// EmbeddingResponse carries the resulting vector.
type EmbeddingResponse struct {
	Vector []float32
	Usage  Usage
}

// Usage reports token accounting from the provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatProvider generates text completions.
type ChatProvider interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Embedder generates embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)
}

// LLMProvider is the full model surface the engine depends on.
type LLMProvider interface {
	ChatProvider
	Embedder
}
