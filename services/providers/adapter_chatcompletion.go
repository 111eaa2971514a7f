package providers

import (
	"encoding/json"

	"github.com/modelrelay/modelrelay/internal/llmerr"
)

// chatCompletionAdapter speaks the chat-completion JSON schema:
// choices[0].message.content with usage.prompt_tokens/completion_tokens.
type chatCompletionAdapter struct{}

func (chatCompletionAdapter) Name() string { return "chat-completion" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (a chatCompletionAdapter) BuildRequest(in BuildInput) (*WireRequest, error) {
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
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + in.Credential,
		},
		Body: body,
	}, nil
}

func (a chatCompletionAdapter) ExtractResponseText(raw []byte) (string, error) {
	var resp chatCompletionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", llmerr.New(llmerr.KindExtraction, "response is not valid JSON", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", llmerr.New(llmerr.KindExtraction, "no choices[0].message.content in response", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

func (a chatCompletionAdapter) ExtractTokenUsage(raw []byte) *TokenUsage {
	var resp chatCompletionResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Usage == nil {
		return nil
	}
	return &TokenUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
}

// ExtractErrorMessage pulls the provider's own error message from a failed
// chat-completion response body, or empty when absent.
func ExtractErrorMessage(raw []byte) string {
	var resp struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ""
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return resp.Error.Message
	}
	return resp.Message
}
