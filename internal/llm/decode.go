package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultDecodeMaxAttempts bounds structured decode retries when the policy
// is zero-valued.
const DefaultDecodeMaxAttempts = 4

// Target is implemented by structured-output payloads that can validate
// themselves after JSON decoding.
type Target interface {
	Validate() error
}

// DecodeRetryPolicy bounds how many completions a structured decode may spend
// before giving up.
type DecodeRetryPolicy struct {
	// MaxAttempts is the total number of completions allowed, including the
	// first. Values below 1 fall back to DefaultDecodeMaxAttempts.
	MaxAttempts int
}

// NewDecodeRetryPolicy creates a policy with the given attempt budget.
func NewDecodeRetryPolicy(maxAttempts int) DecodeRetryPolicy {
	return DecodeRetryPolicy{MaxAttempts: maxAttempts}
}

// attempts returns the effective attempt budget.
func (p DecodeRetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return DefaultDecodeMaxAttempts
	}
	return p.MaxAttempts
}

// DecodeOutcome reports what a structured decode spent.
type DecodeOutcome struct {
	// Attempts is the number of completions consumed.
	Attempts int
	// Model is the model that produced the replies.
	Model string
	// Usage is the total token consumption across all attempts.
	Usage Usage
}

// Decoder drives constrained decoding: it sends a chat request, parses the
// reply as a JSON object into a typed target, validates the target, and
// re-asks with a correction message when parsing or validation fails.
type Decoder struct {
	client Client
	policy DecodeRetryPolicy
}

// NewDecoder creates a Decoder using the given client and retry policy.
func NewDecoder(client Client, policy DecodeRetryPolicy) *Decoder {
	return &Decoder{
		client: client,
		policy: policy,
	}
}

// Decode runs the decode loop. On success the target holds the validated
// payload and the outcome reports attempts and token usage. When the budget
// is exhausted the returned error is a DecodeError wrapping the last parse or
// validation failure; the outcome still reports what was spent.
func (d *Decoder) Decode(ctx context.Context, req Request, target Target) (*DecodeOutcome, error) {
	outcome := &DecodeOutcome{Model: d.client.Model()}

	messages := make([]Message, len(req.Messages))
	copy(messages, req.Messages)

	var lastErr error
	for outcome.Attempts < d.policy.attempts() {
		outcome.Attempts++

		resp, err := d.client.Complete(ctx, Request{
			Messages:       messages,
			ResponseFormat: ResponseFormatJSON,
			MaxTokens:      req.MaxTokens,
		})
		if err != nil {
			// Provider failures are not decode failures; the client already
			// retried anything transient.
			return outcome, err
		}
		outcome.Model = resp.Model
		outcome.Usage.InputTokens += resp.Usage.InputTokens
		outcome.Usage.OutputTokens += resp.Usage.OutputTokens

		lastErr = decodeInto(resp.Content, target)
		if lastErr == nil {
			return outcome, nil
		}

		messages = append(messages,
			Message{Role: RoleAssistant, Content: resp.Content},
			Message{Role: RoleUser, Content: correctionMessage(lastErr)},
		)
	}

	return outcome, &DecodeError{Attempts: outcome.Attempts, Cause: lastErr}
}

// decodeInto parses raw assistant output into the target and validates it.
func decodeInto(content string, target Target) error {
	if err := json.Unmarshal([]byte(stripJSONFences(content)), target); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return target.Validate()
}

// correctionMessage tells the model what was wrong with its previous reply.
func correctionMessage(err error) string {
	return fmt.Sprintf(
		"The previous response could not be used: %v. Respond again with only a valid JSON object matching the requested schema, with no surrounding prose.",
		err,
	)
}

// stripJSONFences removes a markdown code fence wrapper if the model added one.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
