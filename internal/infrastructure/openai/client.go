// Package openai содержит клиентов OpenAI-совместимого API: извлечение карточек товара
// из изображений (chat completions) и векторизацию текста (embeddings).
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/jitter"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/goccy/go-json"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	maxErrorBody   = 512
)

// errRetryable помечает ответы, после которых запрос имеет смысл повторить (429, 5xx, сетевые ошибки).
var errRetryable = errors.New("retryable")

// Client выполняет JSON-запросы к API с повторами и экспоненциальной задержкой.
type Client struct {
	baseURL     string
	apiKey      string
	http        *http.Client
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	logger      logger.Logger
}

func NewClient(c *cfg.OpenAICfg, logger logger.Logger) *Client {
	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      c.APIKey,
		http:        &http.Client{Timeout: c.Timeout},
		maxRetries:  maxRetries,
		baseBackoff: 1 * time.Second,
		maxBackoff:  30 * time.Second,
		logger:      logger,
	}
}

// postJSON отправляет body на path и декодирует ответ в out. Повторяет только временные ошибки.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	const op = "openai.Client.postJSON"

	payload, err := json.Marshal(body)
	if err != nil {
		return e.Wrap(op, err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		lastErr = c.do(ctx, path, payload, out)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, errRetryable) || attempt == c.maxRetries-1 {
			break
		}

		sleepTime := jitter.ExponentialBackoff(c.baseBackoff, c.maxBackoff, attempt, jitter.DefaultJitter)
		c.logger.Warnf("openai %s failed, retrying in %v (attempt %d): %v", path, sleepTime, attempt+1, lastErr)

		if err := jitter.Sleep(ctx, sleepTime); err != nil {
			return e.Wrap(op, errors.Join(err, lastErr))
		}
	}

	return e.Wrap(op, lastErr)
}

func (c *Client) do(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %w", errRetryable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", errRetryable, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s: %s", errRetryable, resp.Status, truncate(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", resp.Status, truncate(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
