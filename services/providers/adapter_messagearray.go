package providers

import (
	"encoding/json"

	"github.com/modelrelay/modelrelay/internal/llmerr"
)

// messageArrayAdapter speaks the message-array JSON schema:
// content[0].text with usage.input_tokens/output_tokens, credential in an
// x-api-key header and a top-level system field.
type messageArrayAdapter struct{}

func (messageArrayAdapter) Name() string { return "message-array" }

type messageArrayRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type messageArrayResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

const messageArrayMaxTokens = 4096

func (a messageArrayAdapter) BuildRequest(in BuildInput) (*WireRequest, error) {
	body, err := json.Marshal(messageArrayRequest{
		Model:     in.Model,
		MaxTokens: messageArrayMaxTokens,
		System:    in.SystemPrompt,
		Messages:  []chatMessage{{Role: "user", Content: in.Prompt}},
	})
	if err != nil {
		return nil, llmerr.New(llmerr.KindInternal, "failed to marshal request", err)
	}

	return &WireRequest{
		Headers: map[string]string{
			"Content-Type":      "application/json",
			"x-api-key":         in.Credential,
			"anthropic-version": "2023-06-01",
		},
		Body: body,
	}, nil
}

func (a messageArrayAdapter) ExtractResponseText(raw []byte) (string, error) {
	var resp messageArrayResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", llmerr.New(llmerr.KindExtraction, "response is not valid JSON", err)
	}
	for _, block := range resp.Content {
		if block.Text != "" {
			return block.Text, nil
		}
	}
	return "", llmerr.New(llmerr.KindExtraction, "no content[].text in response", nil)
}

func (a messageArrayAdapter) ExtractTokenUsage(raw []byte) *TokenUsage {
	var resp messageArrayResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Usage == nil {
		return nil
	}
	return &TokenUsage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
}
