package openai

import "github.com/flemzord/threadline/internal/backend"

// --- OpenAI API request/response types (unexported, serialization only) ---

type completionRequest struct {
	Model            string   `json:"model"`
	Prompt           string   `json:"prompt"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	User             string   `json:"user,omitempty"`
	Stream           bool     `json:"stream,omitempty"`
}

type completionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
	Usage   *completionUsage   `json:"usage,omitempty"`
	Error   *apiErrorBody      `json:"error,omitempty"`
	Detail  any                `json:"detail,omitempty"`
}

type completionChoice struct {
	Text         string  `json:"text"`
	Index        int     `json:"index"`
	FinishReason *string `json:"finish_reason"`
}

type completionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

type apiError struct {
	Error *apiErrorBody `json:"error"`
}

// --- Converter functions ---

// toRequest merges request parameters over the configured defaults.
func (b *Backend) toRequest(req backend.CompletionRequest, stream bool) completionRequest {
	model := req.Params.Model
	if model == "" {
		model = b.config.Model
	}
	return completionRequest{
		Model:            model,
		Prompt:           req.Prompt,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Params.Temperature,
		TopP:             req.Params.TopP,
		PresencePenalty:  req.Params.PresencePenalty,
		FrequencyPenalty: req.Params.FrequencyPenalty,
		Stop:             req.Params.Stop,
		User:             req.Params.User,
		Stream:           stream,
	}
}

// fromResponse converts a decoded response. ok is false when the payload
// carries no completion choice.
func fromResponse(resp *completionResponse) (backend.CompletionResponse, bool) {
	if len(resp.Choices) == 0 {
		return backend.CompletionResponse{}, false
	}
	choice := resp.Choices[0]
	return backend.CompletionResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Text:         choice.Text,
		FinishReason: mapFinishReason(choice.FinishReason),
		Usage:        fromUsage(resp.Usage),
	}, true
}

func fromUsage(u *completionUsage) *backend.TokenUsage {
	if u == nil {
		return nil
	}
	return &backend.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

func mapFinishReason(reason *string) backend.FinishReason {
	if reason == nil {
		return ""
	}
	return backend.FinishReason(*reason)
}
