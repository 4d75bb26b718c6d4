package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/repository/memory"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/google/uuid"
)

var catalogVectors = map[string][]float32{
	"mug":        {1, 0, 0},
	"cup":        {0.9, 0.1, 0},
	"teapot":     {0.7, 0.3, 0},
	"bottle":     {0.1, 0.9, 0},
	"bike":       {0, 0, 1},
	"coffee cup": {1, 0.05, 0},
	"nothing":    {0, 0, 0},
}

type recommendFixture struct {
	store *memory.IndexRepo
	uc    *usecase.RecommendationUseCase
	ids   map[string]string
}

func newRecommendFixture(t *testing.T, maxK int) *recommendFixture {
	t.Helper()

	store := memory.NewIndexRepo(testDimension)
	vectorizer := &mapVectorizer{vectors: catalogVectors}
	ingestion := newIngestion(store, vectorizer, testDimension)

	names := []string{"mug", "cup", "teapot", "bottle", "bike"}
	inputs := make([]usecase.NewProductInput, 0, len(names))
	for _, n := range names {
		inputs = append(inputs, usecase.NewProductInput{Name: n, Description: n})
	}
	ids := insertAll(t, ingestion, inputs...)

	byName := make(map[string]string, len(names))
	for i, n := range names {
		byName[n] = ids[i]
	}

	uc := usecase.NewRecommendationUC(store, vectorizer, &cfg.RecommendCfg{DefaultK: 2, MaxK: maxK}, testDimension, logger.NewNopLogger())
	return &recommendFixture{store: store, uc: uc, ids: byName}
}

func names(items []domain.Recommendation) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestRecommendByIDExcludesSource(t *testing.T) {
	f := newRecommendFixture(t, 10)

	res, err := f.uc.RecommendByID(context.Background(), &usecase.RecommendByIDReq{ProductID: f.ids["mug"], K: 3})
	if err != nil {
		t.Fatalf("RecommendByID: %v", err)
	}

	got := names(res.Items)
	want := []string{"cup", "teapot", "bottle"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}

	for i := 1; i < len(res.Items); i++ {
		if res.Items[i].Score > res.Items[i-1].Score {
			t.Errorf("scores not descending: %v", res.Items)
		}
	}
	for _, it := range res.Items {
		if it.ProductID == f.ids["mug"] {
			t.Error("source product present in its own recommendations")
		}
	}
}

func TestRecommendByIDReturnsEverythingElseWhenKIsLarge(t *testing.T) {
	f := newRecommendFixture(t, 50)

	res, err := f.uc.RecommendByID(context.Background(), &usecase.RecommendByIDReq{ProductID: f.ids["bike"], K: 50})
	if err != nil {
		t.Fatalf("RecommendByID: %v", err)
	}
	if len(res.Items) != 4 {
		t.Errorf("got %d items, want 4", len(res.Items))
	}
}

func TestRecommendByIDUnknown(t *testing.T) {
	f := newRecommendFixture(t, 10)

	for _, id := range []string{uuid.NewString(), "definitely-not-an-id"} {
		if _, err := f.uc.RecommendByID(context.Background(), &usecase.RecommendByIDReq{ProductID: id}); !errors.Is(err, e.ErrNotFound) {
			t.Errorf("id %q: expected ErrNotFound, got %v", id, err)
		}
	}
	if _, err := f.uc.RecommendByID(context.Background(), &usecase.RecommendByIDReq{ProductID: ""}); !errors.Is(err, e.ErrEmptyID) {
		t.Errorf("expected ErrEmptyID, got %v", err)
	}
}

func TestRecommendK(t *testing.T) {
	f := newRecommendFixture(t, 3)

	tests := []struct {
		name    string
		k       int
		want    int
		wantErr error
	}{
		{"default", 0, 2, nil},
		{"explicit", 1, 1, nil},
		{"clamped to max", 100, 3, nil},
		{"negative", -1, 0, e.ErrInvalidK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.uc.RecommendByQuery(context.Background(), &usecase.RecommendByQueryReq{Text: "coffee cup", K: tt.k})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) || !errors.Is(err, e.ErrValidation) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("RecommendByQuery: %v", err)
			}
			if len(res.Items) != tt.want {
				t.Errorf("got %d items, want %d", len(res.Items), tt.want)
			}
		})
	}
}

func TestRecommendByQuery(t *testing.T) {
	f := newRecommendFixture(t, 10)

	res, err := f.uc.RecommendByQuery(context.Background(), &usecase.RecommendByQueryReq{Text: "coffee cup", K: 2})
	if err != nil {
		t.Fatalf("RecommendByQuery: %v", err)
	}

	got := names(res.Items)
	if len(got) != 2 || got[0] != "mug" || got[1] != "cup" {
		t.Errorf("got %v, want [mug cup]", got)
	}
}

func TestRecommendByQueryValidation(t *testing.T) {
	f := newRecommendFixture(t, 10)

	for _, text := range []string{"", "   \n\t"} {
		_, err := f.uc.RecommendByQuery(context.Background(), &usecase.RecommendByQueryReq{Text: text})
		if !errors.Is(err, e.ErrInvalidQuery) {
			t.Errorf("text %q: expected ErrInvalidQuery, got %v", text, err)
		}
		if e.Kind(err) != "invalid_query" {
			t.Errorf("kind = %q, want invalid_query", e.Kind(err))
		}
	}

	if _, err := f.uc.RecommendByQuery(context.Background(), &usecase.RecommendByQueryReq{Text: "nothing"}); !errors.Is(err, e.ErrEmbedding) {
		t.Errorf("zero vector query: expected ErrEmbedding, got %v", err)
	}
	if _, err := f.uc.RecommendByQuery(context.Background(), &usecase.RecommendByQueryReq{Text: "unknown words"}); !errors.Is(err, e.ErrEmbedding) {
		t.Errorf("vectorizer failure: expected ErrEmbedding, got %v", err)
	}
}

func TestRecommendOnEmptyIndex(t *testing.T) {
	store := memory.NewIndexRepo(testDimension)
	uc := usecase.NewRecommendationUC(store, &mapVectorizer{vectors: catalogVectors}, &cfg.RecommendCfg{DefaultK: 5, MaxK: 10}, testDimension, logger.NewNopLogger())

	res, err := uc.RecommendByQuery(context.Background(), &usecase.RecommendByQueryReq{Text: "mug"})
	if err != nil {
		t.Fatalf("RecommendByQuery: %v", err)
	}
	if len(res.Items) != 0 {
		t.Errorf("expected no items, got %v", res.Items)
	}
}

func TestRecommendDoesNotModifyIndex(t *testing.T) {
	f := newRecommendFixture(t, 10)
	before := f.store.Len()

	for i := 0; i < 3; i++ {
		if _, err := f.uc.RecommendByID(context.Background(), &usecase.RecommendByIDReq{ProductID: f.ids["cup"]}); err != nil {
			t.Fatalf("RecommendByID: %v", err)
		}
	}

	if f.store.Len() != before {
		t.Errorf("index size changed from %d to %d", before, f.store.Len())
	}
}
