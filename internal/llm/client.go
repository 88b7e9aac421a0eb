// Package llm provides chat completion clients for the LLM providers used by
// the extraction pipeline, plus the constrained-decoding loop that turns chat
// replies into validated, typed payloads.
//
// The package is self-contained: provider implementations speak the raw HTTP
// APIs (OpenAI Chat Completions, Anthropic Messages) and expose one Client
// interface the rest of the service consumes.
//
// Example usage:
//
//	client, err := llm.NewClient(llm.FactoryConfig{Provider: "openai", ...})
//	decoder := llm.NewDecoder(client, llm.NewDecodeRetryPolicy(4))
//	outcome, err := decoder.Decode(ctx, req, &payload)
package llm

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single message in a chat conversation.
type Message struct {
	Role    Role
	Content string
}

// ResponseFormatJSON constrains the reply to a single JSON object on
// providers that support constrained output.
const ResponseFormatJSON = "json"

// Request is a provider-independent chat completion request.
type Request struct {
	// Messages is the conversation so far, in order.
	Messages []Message

	// ResponseFormat selects the output format. Empty means free text.
	ResponseFormat string

	// MaxTokens caps the reply length. Zero applies the provider default.
	MaxTokens int
}

// Usage reports token consumption for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is a provider-independent chat completion response.
type Response struct {
	// Content is the assistant reply text.
	Content string

	// Model is the model that produced the reply.
	Model string

	// Usage reports token consumption.
	Usage Usage
}

// Client is a chat completion client for one LLM provider.
//
// Implementations should handle provider-specific API calls, retry transient
// failures, and wrap errors with provider context while conforming to this
// unified interface.
type Client interface {
	// Complete sends the conversation and returns the assistant reply.
	// The context should be used for cancellation and deadline propagation.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used (e.g., "gpt-4o", "claude-3-5-sonnet-20241022").
	Model() string
}
