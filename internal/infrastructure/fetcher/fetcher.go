// Package fetcher скачивает файлы товаров по URL для извлечения карточек.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/jitter"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
)

const (
	maxRedirects    = 5
	defaultFileName = "remote-file"
)

var errRetryable = errors.New("retryable")

// Fetcher выполняет GET с повторами временных ошибок и ограничением размера ответа.
type Fetcher struct {
	http        *http.Client
	allowed     map[string]struct{}
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	logger      logger.Logger
}

func NewFetcher(c *cfg.FetchCfg, logger logger.Logger) *Fetcher {
	allowed := make(map[string]struct{}, len(c.AllowedHosts))
	for _, h := range c.AllowedHosts {
		allowed[strings.ToLower(h)] = struct{}{}
	}

	f := &Fetcher{
		allowed:     allowed,
		maxRetries:  max(c.MaxRetries, 1),
		baseBackoff: 500 * time.Millisecond,
		maxBackoff:  10 * time.Second,
		logger:      logger,
	}
	f.http = &http.Client{
		Timeout: c.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("%w: too many redirects", e.ErrRemoteFile)
			}
			return f.checkURL(req.URL)
		},
	}

	return f
}

// Fetch скачивает файл не больше maxBytes байт. Имя файла берётся из пути URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, maxBytes int64) (*domain.Image, error) {
	const op = "fetcher.Fetcher.Fetch"

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrRemoteFile, err))
	}
	if err := f.checkURL(u); err != nil {
		return nil, e.Wrap(op, err)
	}

	var lastErr error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		var img *domain.Image
		img, lastErr = f.get(ctx, u, maxBytes)
		if lastErr == nil {
			return img, nil
		}
		if !errors.Is(lastErr, errRetryable) || attempt == f.maxRetries-1 {
			break
		}

		sleepTime := jitter.ExponentialBackoff(f.baseBackoff, f.maxBackoff, attempt, jitter.DefaultJitter)
		f.logger.Warnf("fetch %s failed, retrying in %v (attempt %d): %v", u.Redacted(), sleepTime, attempt+1, lastErr)

		if err := jitter.Sleep(ctx, sleepTime); err != nil {
			return nil, e.Wrap(op, errors.Join(err, lastErr))
		}
	}

	if errors.Is(lastErr, e.ErrValidation) {
		return nil, e.Wrap(op, lastErr)
	}
	return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrRemoteFile, lastErr))
}

func (f *Fetcher) get(ctx context.Context, u *url.URL, maxBytes int64) (*domain.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrRemoteFile, err)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		if errors.Is(err, e.ErrValidation) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errRetryable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: %s", errRetryable, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", e.ErrRemoteFile, resp.Status)
	}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", e.ErrFileTooLarge, resp.ContentLength)
	}

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", errRetryable, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", e.ErrFileTooLarge, maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file content", e.ErrRemoteFile)
	}

	return &domain.Image{
		Name:     fileName(u),
		Data:     data,
		MimeType: resp.Header.Get("Content-Type"),
	}, nil
}

// checkURL допускает только http(s) и, если список задан, только разрешённые хосты.
func (f *Fetcher) checkURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q is not allowed", e.ErrRemoteFile, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: host is empty", e.ErrRemoteFile)
	}
	if len(f.allowed) == 0 {
		return nil
	}
	if _, ok := f.allowed[host]; !ok {
		return fmt.Errorf("%w: host %q is not allowed", e.ErrRemoteFile, host)
	}
	return nil
}

func fileName(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return defaultFileName
	}
	return name
}
