package providers

import (
	"encoding/json"

	"github.com/modelrelay/modelrelay/internal/llmerr"
)

// generationMetadataAdapter speaks the generation-metadata JSON schema:
// candidates[0].content.parts[0].text with usageMetadata token counts and
// the credential in an x-goog-api-key header.
type generationMetadataAdapter struct{}

func (generationMetadataAdapter) Name() string { return "generation-metadata" }

type generationPart struct {
	Text string `json:"text"`
}

type generationContent struct {
	Parts []generationPart `json:"parts"`
	Role  string           `json:"role,omitempty"`
}

type generationRequest struct {
	Contents          []generationContent `json:"contents"`
	SystemInstruction *generationContent  `json:"systemInstruction,omitempty"`
}

type generationResponse struct {
	Candidates []struct {
		Content generationContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (a generationMetadataAdapter) BuildRequest(in BuildInput) (*WireRequest, error) {
	req := generationRequest{
		Contents: []generationContent{
			{Role: "user", Parts: []generationPart{{Text: in.Prompt}}},
		},
	}
	if in.SystemPrompt != "" {
		req.SystemInstruction = &generationContent{Parts: []generationPart{{Text: in.SystemPrompt}}}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, llmerr.New(llmerr.KindInternal, "failed to marshal request", err)
	}

	return &WireRequest{
		Headers: map[string]string{
			"Content-Type":   "application/json",
			"x-goog-api-key": in.Credential,
		},
		Body: body,
	}, nil
}

func (a generationMetadataAdapter) ExtractResponseText(raw []byte) (string, error) {
	var resp generationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", llmerr.New(llmerr.KindExtraction, "response is not valid JSON", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", llmerr.New(llmerr.KindExtraction, "no candidates[0].content.parts in response", nil)
	}
	text := resp.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", llmerr.New(llmerr.KindExtraction, "empty candidate text in response", nil)
	}
	return text, nil
}

func (a generationMetadataAdapter) ExtractTokenUsage(raw []byte) *TokenUsage {
	var resp generationResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.UsageMetadata == nil {
		return nil
	}
	return &TokenUsage{
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
	}
}
