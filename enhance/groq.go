package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const groqDefaultModel = "llama-3.3-70b-versatile"

// GroqProvider talks to Groq's OpenAI-compatible chat completions endpoint.
type GroqProvider struct {
	httpClient *http.Client
	url        string
	apiKey     string
	model      string
}

// NewGroqProvider creates a Groq provider. An empty model falls back to Llama 3.3.
func NewGroqProvider(url, apiKey, model string, timeout time.Duration) *GroqProvider {
	if model == "" || strings.HasPrefix(model, "claude") {
		model = groqDefaultModel
	}
	return &GroqProvider{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		apiKey:     apiKey,
		model:      model,
	}
}

func (g *GroqProvider) Name() string { return "groq" }

type groqRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *GroqProvider) Complete(ctx context.Context, req Request) (Completion, error) {
	bodyBytes, err := json.Marshal(groqRequest{
		Model: g.model,
		Messages: []groqMessage{
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return Completion{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("groq request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, err
	}

	var groqResp groqResponse
	if err := json.Unmarshal(respBytes, &groqResp); err != nil {
		return Completion{}, fmt.Errorf("parse groq response (status %d): %w", resp.StatusCode, err)
	}
	if groqResp.Error != nil {
		return Completion{}, fmt.Errorf("groq error: %s", groqResp.Error.Message)
	}
	if resp.StatusCode >= 300 {
		return Completion{}, fmt.Errorf("groq returned status %d", resp.StatusCode)
	}
	if len(groqResp.Choices) == 0 {
		return Completion{}, fmt.Errorf("groq returned no choices")
	}

	return Completion{
		Text:         groqResp.Choices[0].Message.Content,
		InputTokens:  groqResp.Usage.PromptTokens,
		OutputTokens: groqResp.Usage.CompletionTokens,
	}, nil
}
