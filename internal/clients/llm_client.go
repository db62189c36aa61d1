package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/marketsignal/internal/domain"
	"github.com/vadiminshakov/marketsignal/internal/services/promptbuilder"
	"github.com/vadiminshakov/marketsignal/pkg/retrier"
)

const (
	// DefaultLLMBaseURL is the OpenRouter API root.
	DefaultLLMBaseURL = "https://openrouter.ai/api/v1"
	// DefaultLLMModel is used when no model is configured.
	DefaultLLMModel = "qwen/qwen3-coder:free"

	chatCompletionsPath = "/chat/completions"
	defaultTimeout      = 60 * time.Second
	defaultMaxRetries   = 2
	defaultRetryDelay   = 2 * time.Second
	defaultTemperature  = 0.7
	defaultMaxTokens    = 800
	appTitle            = "marketsignal"
)

// OpenAICompatibleClient asks an OpenAI-compatible chat completion API for a chart opinion.
type OpenAICompatibleClient struct {
	apiURL        string
	apiKey        string
	model         string
	httpClient    *http.Client
	promptBuilder *promptbuilder.PromptBuilder
	retrier       *retrier.Retrier
	logger        *zap.Logger
}

// LLMOption configures an OpenAICompatibleClient.
type LLMOption func(*OpenAICompatibleClient)

// WithLLMHTTPClient overrides the HTTP client.
func WithLLMHTTPClient(client *http.Client) LLMOption {
	return func(c *OpenAICompatibleClient) {
		c.httpClient = client
	}
}

// WithLLMRetrier overrides the retry policy.
func WithLLMRetrier(r *retrier.Retrier) LLMOption {
	return func(c *OpenAICompatibleClient) {
		c.retrier = r
	}
}

// NewOpenAICompatibleClient creates a new client for OpenAI-compatible APIs.
// baseURL is the API root; "/chat/completions" is appended unless already present.
func NewOpenAICompatibleClient(
	baseURL, apiKey, model string,
	promptBuilder *promptbuilder.PromptBuilder,
	logger *zap.Logger,
	opts ...LLMOption,
) *OpenAICompatibleClient {
	if baseURL == "" {
		baseURL = DefaultLLMBaseURL
	}
	if model == "" {
		model = DefaultLLMModel
	}

	apiURL := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(apiURL, chatCompletionsPath) {
		apiURL += chatCompletionsPath
	}

	c := &OpenAICompatibleClient{
		apiURL:        apiURL,
		apiKey:        apiKey,
		model:         model,
		promptBuilder: promptBuilder,
		logger:        logger,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	c.retrier = retrier.New(
		retrier.WithMaxRetries(defaultMaxRetries),
		retrier.WithInitialInterval(defaultRetryDelay),
		retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			c.logger.Warn("retrying analyst request",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}),
	)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Model returns the configured model identifier.
func (c *OpenAICompatibleClient) Model() string {
	return c.model
}

// chatRequest represents the request structure for OpenAI-compatible APIs
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents the response structure from OpenAI-compatible APIs
type chatResponse struct {
	ID      string    `json:"id"`
	Model   string    `json:"model"`
	Choices []choice  `json:"choices"`
	Usage   usage     `json:"usage"`
	Error   *apiError `json:"error,omitempty"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// AnalyzeChart briefs the LLM with the chart and indicators and parses its reply.
func (c *OpenAICompatibleClient) AnalyzeChart(ctx context.Context, in promptbuilder.ChartAnalysisInput) (*domain.ExternalOpinion, error) {
	if c.apiKey == "" {
		return nil, errors.New("LLM API key is empty")
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []message{
			{
				Role:    "system",
				Content: promptbuilder.SystemPrompt,
			},
			{
				Role:    "user",
				Content: c.promptBuilder.BuildUserPrompt(in),
			},
		},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}

	text, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (string, error) {
		return c.sendRequest(ctx, reqBody)
	})
	if err != nil {
		return nil, errors.Wrap(err, "analyst request failed")
	}

	parsed := promptbuilder.ParseAnalysis(text)
	confidence := parsed.Confidence

	return &domain.ExternalOpinion{
		Model:         c.model,
		Analysis:      text,
		TradingSignal: parsed.Signal,
		Confidence:    &confidence,
		KeyInsights:   parsed.Insights,
	}, nil
}

func (c *OpenAICompatibleClient) sendRequest(ctx context.Context, reqBody chatRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", retrier.Permanent(errors.Wrap(err, "failed to marshal request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", retrier.Permanent(errors.Wrap(err, "failed to create HTTP request"))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("X-Title", appTitle)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := errors.Errorf("LLM API returned status %d: %s", resp.StatusCode, string(body))
		// client errors other than throttling will not improve on retry
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", retrier.Permanent(statusErr)
		}
		return "", statusErr
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal response")
	}

	if chatResp.Error != nil {
		return "", errors.Errorf("LLM API error: %s (type: %s, code: %v)",
			chatResp.Error.Message, chatResp.Error.Type, chatResp.Error.Code)
	}

	if len(chatResp.Choices) == 0 {
		return "", errors.New("LLM API returned no choices")
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("LLM API returned empty content")
	}

	c.logger.Debug("analyst reply received",
		zap.String("model", chatResp.Model),
		zap.Int("total_tokens", chatResp.Usage.TotalTokens),
	)

	return content, nil
}
