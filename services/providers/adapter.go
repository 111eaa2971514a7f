package providers

import (
	"github.com/modelrelay/modelrelay/internal/llmerr"
)

// TokenUsage carries explicit token counts reported by a backend.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// BuildInput is the unified input for request construction.
type BuildInput struct {
	Model        string
	Prompt       string
	SystemPrompt string
	// Credential is the provider secret; empty for local backends.
	Credential string
	// SessionToken continues a persistent conversation (localProcess only).
	SessionToken string
}

// WireRequest is a backend-specific request ready for transport. Remote and
// local-HTTP backends use Headers+Body; local-process backends use Args.
type WireRequest struct {
	Headers map[string]string
	Body    []byte
	Args    []string
}

// Adapter translates between the unified call contract and one wire schema.
// Adapters are pure and stateless; a descriptor binds to exactly one at
// registry load time.
type Adapter interface {
	// Name identifies the wire schema (e.g. "chat-completion").
	Name() string

	// BuildRequest constructs the wire request for a prompt.
	BuildRequest(in BuildInput) (*WireRequest, error)

	// ExtractResponseText pulls the response text out of a raw payload.
	// Fails with an extraction error when no recognized field is present.
	ExtractResponseText(raw []byte) (string, error)

	// ExtractTokenUsage pulls explicit token counts out of a raw payload,
	// or nil when the backend reports none.
	ExtractTokenUsage(raw []byte) *TokenUsage
}

// SessionAdapter is implemented by adapters whose backends issue opaque
// continuation tokens.
type SessionAdapter interface {
	// ExtractSessionToken returns the continuation token from a raw
	// payload, or empty when none was issued.
	ExtractSessionToken(raw []byte) string
}

// adapterByName resolves a schema name to its adapter instance.
func adapterByName(name string) (Adapter, error) {
	switch name {
	case "chat-completion":
		return chatCompletionAdapter{}, nil
	case "message-array":
		return messageArrayAdapter{}, nil
	case "generation-metadata":
		return generationMetadataAdapter{}, nil
	case "local-http":
		return localHTTPAdapter{}, nil
	case "local-process":
		return localProcessAdapter{}, nil
	}
	return nil, llmerr.New(llmerr.KindValidation, "unknown adapter: "+name, nil)
}
