package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// HTTPProvider calls a generic OpenAI-compatible chat-completions
// endpoint. It carries no SDK because, by definition, a generic HTTP
// provider has none to wrap — it exists precisely for backends the
// module has no dedicated client for.
type HTTPProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewHTTPProvider(baseURL, apiKey, model string) *HTTPProvider {
	return &HTTPProvider{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

func (p *HTTPProvider) Name() string { return "http" }

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []chatCompletionMessage `json:"messages"`
	Temperature float64                 `json:"temperature,omitempty"`
	MaxTokens   int                     `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *HTTPProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]chatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, chatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return GenerateResponse{}, newError(ErrorMalformed, p.Name(), req.CorrelationID, "marshal request: "+err.Error(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return GenerateResponse{}, newError(ErrorRequestFailed, p.Name(), req.CorrelationID, err.Error(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, newError(ErrorRequestFailed, p.Name(), req.CorrelationID, err.Error(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return GenerateResponse{}, newError(ErrorRequestFailed, p.Name(), req.CorrelationID, err.Error(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return GenerateResponse{}, newHTTPStatusError(p.Name(), req.CorrelationID, resp.StatusCode, string(respBody), nil)
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return GenerateResponse{}, newError(ErrorMalformed, p.Name(), req.CorrelationID, "decode response: "+err.Error(), err)
	}
	if len(decoded.Choices) == 0 {
		return GenerateResponse{}, newError(ErrorMalformed, p.Name(), req.CorrelationID, "response had no choices", nil)
	}

	return GenerateResponse{
		Content: decoded.Choices[0].Message.Content,
		Usage: TokenUsage{
			InputTokens:  decoded.Usage.PromptTokens,
			OutputTokens: decoded.Usage.CompletionTokens,
			TotalTokens:  decoded.Usage.TotalTokens,
		},
	}, nil
}
