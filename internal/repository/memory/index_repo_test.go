package memory

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/pkg/e"
)

func seed(t *testing.T, r *IndexRepo, items map[string][]float32) {
	t.Helper()
	for id, vec := range items {
		if err := r.Upsert(context.Background(), domain.NewProduct(id, "name-"+id, "desc", vec, nil)); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
}

func TestKNNQueryOrderingAndExclusion(t *testing.T) {
	r := NewIndexRepo(2)
	seed(t, r, map[string][]float32{
		"a": {1, 0},
		"b": {0.9, 0.1},
		"c": {0, 1},
		"d": {2, 0}, // та же близость, что у "a"
		"q": {1, 0},
	})

	got, err := r.KNNQuery(context.Background(), []float32{1, 0}, 3, []string{"q"})
	if err != nil {
		t.Fatalf("KNNQuery: %v", err)
	}

	want := []string{"a", "d", "b"}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ProductID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ProductID, id)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("results not sorted by score: %v", got)
		}
	}
	if got[0].Name != "name-a" {
		t.Errorf("name not propagated: %q", got[0].Name)
	}
}

func TestKNNQueryBounds(t *testing.T) {
	r := NewIndexRepo(2)
	seed(t, r, map[string][]float32{"a": {1, 0}, "b": {0, 1}})

	got, err := r.KNNQuery(context.Background(), []float32{1, 1}, 10, nil)
	if err != nil {
		t.Fatalf("KNNQuery: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected all 2 records, got %d", len(got))
	}

	got, err = r.KNNQuery(context.Background(), []float32{1, 1}, 0, nil)
	if err != nil || len(got) != 0 {
		t.Errorf("k=0 must return empty result, got %v, %v", got, err)
	}

	got, err = r.KNNQuery(context.Background(), []float32{1, 1}, 5, []string{"a", "b"})
	if err != nil || len(got) != 0 {
		t.Errorf("all excluded must return empty result, got %v, %v", got, err)
	}
}

func TestUpsertIsIdempotentAndPreservesCreatedAt(t *testing.T) {
	r := NewIndexRepo(2)
	first := domain.NewProduct("a", "n", "d", []float32{1, 0}, nil)
	if err := r.Upsert(context.Background(), first); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second := domain.NewProduct("a", "n2", "d2", []float32{0, 1}, nil)
	if err := r.Upsert(context.Background(), second); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if r.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", r.Len())
	}
	found, _ := r.Get(context.Background(), []string{"a"})
	if found["a"].Name != "n2" || !found["a"].CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("unexpected stored record %+v", found["a"])
	}
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	r := NewIndexRepo(3)
	err := r.Upsert(context.Background(), domain.NewProduct("a", "n", "d", []float32{1, 0}, nil))
	if !errors.Is(err, e.ErrVectorDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestDeleteAll(t *testing.T) {
	r := NewIndexRepo(2)
	seed(t, r, map[string][]float32{"a": {1, 0}, "b": {0, 1}})

	n, err := r.DeleteAll(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("DeleteAll = %d, %v", n, err)
	}

	n, err = r.DeleteAll(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("DeleteAll on empty index = %d, %v", n, err)
	}
}

func TestCanceledContextIsIndexUnavailable(t *testing.T) {
	r := NewIndexRepo(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Get(ctx, []string{"a"}); !errors.Is(err, e.ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	s, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if err != nil || s != 0 {
		t.Errorf("orthogonal = %v, %v", s, err)
	}

	s, err = CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6})
	if err != nil || math.Abs(float64(s)-1) > 1e-6 {
		t.Errorf("parallel = %v, %v", s, err)
	}

	if _, err := CosineSimilarity([]float32{1}, []float32{1, 2}); !errors.Is(err, e.ErrVectorDimensionMismatch) {
		t.Errorf("expected mismatch error, got %v", err)
	}
	if _, err := CosineSimilarity([]float32{0, 0}, []float32{1, 2}); !errors.Is(err, e.ErrZeroVector) {
		t.Errorf("expected zero vector error, got %v", err)
	}
}
