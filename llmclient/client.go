// Package llmclient talks to the OpenAI-compatible generation and embedding
// servers. Generation and embeddings may live on different hosts; embedding
// hosts are keyed by provider name so knowledge bases indexed with different
// models can each be queried with the right one.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kbreply/config"
	kberrors "kbreply/errors"

	"go.uber.org/zap"
)

// Message is a single chat turn sent to the generation server.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"` // Per-request temperature override
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Content string `json:"content"`
}

type embeddingResponse []struct {
	Embedding [][]float32 `json:"embedding"`
}

type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.LLMRequestTimeout},
		logger:     logger,
	}
}

// Chat performs a non-streaming chat completion call against the generation host.
// temperature is optional; pass nil to use server default.
func (c *Client) Chat(ctx context.Context, messages []Message, temperature *float64) (string, error) {
	reqBody := chatRequest{
		Messages:    messages,
		Stream:      false,
		Temperature: temperature,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", strings.TrimRight(c.cfg.GenerationLLMHost, "/"))

	bodyBytes, err := c.postWithRetry(ctx, url, jsonBody)
	if err != nil {
		return "", kberrors.WrapError(err, "chat completion")
	}

	var cr chatResponse
	if err := json.Unmarshal(bodyBytes, &cr); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("no response choices from llm server")
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// Embed generates an embedding vector for the provided text using the
// embedding host configured for the given provider.
func (c *Client) Embed(ctx context.Context, text string, provider string) ([]float32, error) {
	host, ok := c.cfg.EmbeddingHosts[provider]
	if !ok {
		host, ok = c.cfg.EmbeddingHosts[c.cfg.DefaultProvider]
		if !ok {
			return nil, fmt.Errorf("no embedding host configured for provider %q: %w",
				provider, kberrors.ErrInvalidConfig)
		}
		c.logger.Debug("Unknown embedding provider, using default",
			zap.String("provider", provider),
			zap.String("default", c.cfg.DefaultProvider))
	}

	reqBody := embeddingRequest{Content: text}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/embeddings", strings.TrimRight(host, "/"))

	bodyBytes, err := c.postWithRetry(ctx, url, jsonBody)
	if err != nil {
		return nil, kberrors.WrapErrorf(err, "embedding via %s", provider)
	}

	var er embeddingResponse
	if err := json.Unmarshal(bodyBytes, &er); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(er) == 0 || len(er[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}
	return er[0].Embedding[0], nil
}

// postWithRetry sends a JSON POST, retrying with backoff while the model
// server reports 503 (model loading).
func (c *Client) postWithRetry(ctx context.Context, url string, jsonBody []byte) ([]byte, error) {
	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		r, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			// Do not retry on context cancellation/deadline
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if r.StatusCode == http.StatusServiceUnavailable {
			// Model loading; retry with backoff
			io.Copy(io.Discard, r.Body)
			r.Body.Close()
			c.logger.Warn("LLM service unavailable, retrying", zap.Int("attempt", attempt+1))
			c.backoffSleep(attempt)
			continue
		}

		resp = r
		break
	}
	if resp == nil {
		return nil, fmt.Errorf("no response from llm server: %w", lastErr)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm server status %s: %s", resp.Status, string(bodyBytes))
	}
	return bodyBytes, nil
}

func (c *Client) backoffSleep(attempt int) {
	// Exponential backoff with configurable jitter and cap
	base := c.cfg.RetryDelaySeconds
	if base <= 0 {
		base = time.Second // config normalization should prevent this
	}
	d := base * time.Duration(1<<attempt)
	maxWait := c.cfg.BackoffMaxSeconds
	if maxWait > 0 && d > maxWait {
		d = maxWait
	}
	jitterRatio := c.cfg.BackoffJitterRatio
	if jitterRatio < 0 || jitterRatio > 1 {
		jitterRatio = 0.1
	}
	jitter := time.Duration(float64(d) * jitterRatio)
	time.Sleep(d - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter+1)))
}
