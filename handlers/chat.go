package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/modelrelay/modelrelay/app"
	"github.com/modelrelay/modelrelay/services/dispatch"
	"github.com/modelrelay/modelrelay/utils"
)

// ChatRequest is a single-prompt dispatch request.
type ChatRequest struct {
	ProviderID     string `json:"provider_id" validate:"required"`
	Prompt         string `json:"prompt" validate:"required"`
	SystemPrompt   string `json:"system_prompt,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatUsage reports token counts for one exchange.
type ChatUsage struct {
	InputTokens  int  `json:"input_tokens"`
	OutputTokens int  `json:"output_tokens"`
	Estimated    bool `json:"estimated"`
}

// ChatResponse is the normalized dispatch result.
type ChatResponse struct {
	RequestID    string    `json:"request_id"`
	ProviderID   string    `json:"provider_id"`
	ResponseText string    `json:"response_text"`
	Usage        ChatUsage `json:"usage"`
	CostToDate   float64   `json:"cost_to_date"`
	SessionToken string    `json:"session_token,omitempty"`
	LatencyMS    int64     `json:"latency_ms"`
}

// ChatCompletion dispatches a prompt to the requested provider
func ChatCompletion(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			_ = utils.WriteBadRequest(w, "invalid JSON body", nil)
			return
		}

		if err := utils.ValidateStruct(req); err != nil {
			var vErr *utils.ValidationError
			if errors.As(err, &vErr) {
				_ = utils.WriteBadRequest(w, vErr.Message, vErr.Details())
				return
			}
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}

		result, err := deps.Dispatcher.Call(r.Context(), dispatch.CallRequest{
			ProviderID:     req.ProviderID,
			Prompt:         req.Prompt,
			SystemPrompt:   req.SystemPrompt,
			ConversationID: req.ConversationID,
		})
		if err != nil {
			deps.Logger.Warn("dispatch failed",
				zap.String("provider", req.ProviderID),
				zap.Error(err))
			HandleDispatchError(w, err, deps.Logger)
			return
		}

		resp := ChatResponse{
			RequestID:    result.RequestID.String(),
			ProviderID:   result.ProviderID,
			ResponseText: result.ResponseText,
			Usage: ChatUsage{
				Estimated: result.Usage == nil,
			},
			CostToDate:   result.Recorded.Cost,
			SessionToken: result.SessionToken,
			LatencyMS:    result.Latency.Milliseconds(),
		}
		if result.Usage != nil {
			resp.Usage.InputTokens = result.Usage.InputTokens
			resp.Usage.OutputTokens = result.Usage.OutputTokens
		}

		if err := utils.WriteOK(w, resp); err != nil {
			deps.Logger.Error("failed to write chat response", zap.Error(err))
		}
	}
}
