package llm

import "context"

// Role identifies the speaker of one message in a generation request.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation sent to a provider.
type Message struct {
	Role    Role
	Content string
}

// GenerateRequest is provider-agnostic; each Provider implementation
// shapes it into its own wire format, extracting the first system
// message into the provider's out-of-band system slot where the
// provider's API requires that.
type GenerateRequest struct {
	Messages      []Message
	Model         string
	Temperature   float64
	MaxTokens     int
	CorrelationID string
}

// TokenUsage reports input/output token counts from a completed
// generation, when the provider's response exposes them.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// GenerateResponse is the normalized provider response.
type GenerateResponse struct {
	Content string
	Usage   TokenUsage
}

// Provider is one supported LLM backend. Implementations differ only in
// request shaping, auth, and response parsing — call shape and error
// classification are uniform.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
}

// splitSystemMessage extracts the first system message (if any) from msgs,
// returning it separately along with the remaining messages in order —
// the shape every provider client that requires an out-of-band system
// prompt needs.
func splitSystemMessage(msgs []Message) (system string, rest []Message) {
	found := false
	for _, m := range msgs {
		if !found && m.Role == RoleSystem {
			system = m.Content
			found = true
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
