package usecase_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/repository/memory"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"golang.org/x/image/bmp"
)

const testDimension = 3

// mapVectorizer возвращает заранее заданные векторы по тексту.
type mapVectorizer struct {
	vectors map[string][]float32
	err     error
}

func (m *mapVectorizer) Embed(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	vec, ok := m.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return append([]float32(nil), vec...), nil
}

// failingStore отказывает в записи товаров с заданным описанием.
type failingStore struct {
	*memory.IndexRepo
	failOn string
}

func (s *failingStore) Upsert(ctx context.Context, p *domain.Product) error {
	if p.Description == s.failOn {
		return errors.New("connection reset by peer")
	}
	return s.IndexRepo.Upsert(ctx, p)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ProductEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events []domain.ProductEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) byType(t domain.EventType) []domain.ProductEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.ProductEvent, 0)
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type memoryConfirmations struct {
	mu     sync.Mutex
	seq    int
	tokens map[string]struct{}
}

func newMemoryConfirmations() *memoryConfirmations {
	return &memoryConfirmations{tokens: make(map[string]struct{})}
}

func (c *memoryConfirmations) Issue(_ context.Context) (string, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	token := fmt.Sprintf("token-%d", c.seq)
	c.tokens[token] = struct{}{}
	return token, time.Minute, nil
}

func (c *memoryConfirmations) Consume(_ context.Context, token string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tokens[token]; !ok {
		return false, nil
	}
	delete(c.tokens, token)
	return true, nil
}

func newIngestion(store usecase.IndexStore, vectorizer usecase.Vectorizer, dimension int) *usecase.IngestionUseCase {
	return usecase.NewIngestionUC(store, vectorizer, nil, nil, nil, &cfg.IngestCfg{MaxConcurrent: 4}, dimension, logger.NewNopLogger())
}

func strPtr(s string) *string { return &s }

// pngBytes кодирует минимальное валидное PNG-изображение.
func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// bmpBytes кодирует то же изображение в BMP.
func bmpBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		t.Fatalf("encode bmp: %v", err)
	}
	return buf.Bytes()
}

type zipEntry struct {
	name string
	data []byte
}

// buildZip собирает архив из записей в заданном порядке. Имена с "/" на конце создаются как каталоги.
func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, entry := range entries {
		f, err := w.Create(entry.name)
		if err != nil {
			t.Fatalf("create %s: %v", entry.name, err)
		}
		if len(entry.data) > 0 {
			if _, err := f.Write(entry.data); err != nil {
				t.Fatalf("write %s: %v", entry.name, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}
