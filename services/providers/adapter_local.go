package providers

import (
	"encoding/json"
	"strings"

	"github.com/modelrelay/modelrelay/internal/llmerr"
)

// localHTTPAdapter speaks the chat-completion schema against a local
// inference server. Local runtimes report no token counts, so usage is
// always nil and the caller estimates.
type localHTTPAdapter struct{}

func (localHTTPAdapter) Name() string { return "local-http" }

func (a localHTTPAdapter) BuildRequest(in BuildInput) (*WireRequest, error) {
	msgs := make([]chatMessage, 0, 2)
	if in.SystemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: in.SystemPrompt})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: in.Prompt})

	body, err := json.Marshal(chatCompletionRequest{Model: in.Model, Messages: msgs})
	if err != nil {
		return nil, llmerr.New(llmerr.KindInternal, "failed to marshal request", err)
	}
	return &WireRequest{
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}, nil
}

func (a localHTTPAdapter) ExtractResponseText(raw []byte) (string, error) {
	return chatCompletionAdapter{}.ExtractResponseText(raw)
}

func (a localHTTPAdapter) ExtractTokenUsage(raw []byte) *TokenUsage {
	return nil
}

// localProcessAdapter builds an argument vector for a command-line agent
// and parses its stdout, which may be a JSON document or raw text.
type localProcessAdapter struct{}

func (localProcessAdapter) Name() string { return "local-process" }

type localProcessOutput struct {
	Result    string `json:"result"`
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	// Some tool versions emit camelCase.
	SessionIDAlt string `json:"sessionId"`
}

func (a localProcessAdapter) BuildRequest(in BuildInput) (*WireRequest, error) {
	args := []string{"--print", "--output-format", "json"}
	if in.Model != "" {
		args = append(args, "--model", in.Model)
	}
	if in.SystemPrompt != "" {
		args = append(args, "--system-prompt", in.SystemPrompt)
	}
	if in.SessionToken != "" {
		args = append(args, "--resume", in.SessionToken)
	}
	args = append(args, in.Prompt)
	return &WireRequest{Args: args}, nil
}

func (a localProcessAdapter) ExtractResponseText(raw []byte) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "", llmerr.New(llmerr.KindExtraction, "empty process output", nil)
	}

	var out localProcessOutput
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		if out.Result != "" {
			return out.Result, nil
		}
		if out.Response != "" {
			return out.Response, nil
		}
		return "", llmerr.New(llmerr.KindExtraction, "no result or response field in process JSON", nil)
	}

	// Raw text output.
	return trimmed, nil
}

func (a localProcessAdapter) ExtractTokenUsage(raw []byte) *TokenUsage {
	var out struct {
		Usage *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.Usage == nil {
		return nil
	}
	return &TokenUsage{
		InputTokens:  out.Usage.InputTokens,
		OutputTokens: out.Usage.OutputTokens,
	}
}

// ExtractSessionToken implements SessionAdapter. The field name varies
// across tool versions: session_id with a sessionId fallback.
func (a localProcessAdapter) ExtractSessionToken(raw []byte) string {
	var out localProcessOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return ""
	}
	if out.SessionID != "" {
		return out.SessionID
	}
	return out.SessionIDAlt
}
