package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrChatUnavailable is returned when no completion endpoint is configured.
var ErrChatUnavailable = errors.New("chat assistant is not configured")

// Turn is one message sent to a chat completion endpoint.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces the assistant's next message.
type Completer interface {
	Complete(ctx context.Context, turns []Turn) (string, error)
}

// Embedder turns texts into vectors, one per text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMConfig points at an OpenAI-compatible API (Groq, OpenAI, Ollama's /v1).
type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	Temperature    float64
	EmbeddingURL   string
	EmbeddingModel string
	Timeout        time.Duration
}

// LLMClient calls /chat/completions and /embeddings.
type LLMClient struct {
	cfg    LLMConfig
	client *http.Client
}

// NewLLMClient returns nil when cfg.BaseURL is empty.
func NewLLMClient(cfg LLMConfig) *LLMClient {
	if cfg.BaseURL == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.EmbeddingURL = strings.TrimRight(cfg.EmbeddingURL, "/")
	return &LLMClient{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type completionRequest struct {
	Model       string  `json:"model"`
	Messages    []Turn  `json:"messages"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message Turn `json:"message"`
	} `json:"choices"`
}

func (c *LLMClient) Complete(ctx context.Context, turns []Turn) (string, error) {
	start := time.Now()
	var resp completionResponse
	err := c.post(ctx, c.cfg.BaseURL+"/chat/completions", completionRequest{
		Model:       c.cfg.Model,
		Messages:    turns,
		Temperature: c.cfg.Temperature,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	slog.DebugContext(ctx, "chat completion finished", "model", c.cfg.Model, "elapsed", time.Since(start))
	return resp.Choices[0].Message.Content, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *LLMClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.cfg.EmbeddingURL == "" {
		return nil, fmt.Errorf("embeddings: no endpoint configured")
	}
	var resp embeddingResponse
	if err := c.post(ctx, c.cfg.EmbeddingURL+"/embeddings", embeddingRequest{Model: c.cfg.EmbeddingModel, Input: texts}, &resp); err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("embeddings: missing vector %d", i)
		}
	}
	return out, nil
}

func (c *LLMClient) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
