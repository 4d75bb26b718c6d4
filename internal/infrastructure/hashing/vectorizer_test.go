package hashing

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/DRSN-tech/go-recommender/internal/repository/memory"
	"github.com/DRSN-tech/go-recommender/pkg/e"
)

func TestEmbedIsDeterministic(t *testing.T) {
	v := NewVectorizer(64)
	texts := []string{
		"red ceramic coffee mug",
		"Красная керамическая кружка для кофе",
		"Stainless steel water bottle, 750 ml",
	}

	for _, text := range texts {
		a, err := v.Embed(context.Background(), text)
		if err != nil {
			t.Fatalf("Embed(%q): %v", text, err)
		}
		b, err := NewVectorizer(64).Embed(context.Background(), text)
		if err != nil {
			t.Fatalf("Embed(%q): %v", text, err)
		}
		if len(a) != 64 {
			t.Fatalf("dimension = %d, want 64", len(a))
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("Embed(%q) not deterministic at %d: %v != %v", text, i, a[i], b[i])
			}
		}
	}
}

func TestEmbedIsNormalized(t *testing.T) {
	vec, err := NewVectorizer(32).Embed(context.Background(), "wooden dining table")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("norm^2 = %v, want 1", norm)
	}
}

func TestEmbedRejectsEmptyText(t *testing.T) {
	v := NewVectorizer(16)
	for _, text := range []string{"", "   ", "the and of", "!!! ???"} {
		if _, err := v.Embed(context.Background(), text); !errors.Is(err, e.ErrEmbedding) {
			t.Errorf("Embed(%q): expected ErrEmbedding, got %v", text, err)
		}
	}
}

func TestSimilarTextsScoreHigher(t *testing.T) {
	v := NewVectorizer(256)
	ctx := context.Background()

	query, _ := v.Embed(ctx, "red coffee mug")
	near, _ := v.Embed(ctx, "large red coffee mug with handle")
	far, _ := v.Embed(ctx, "mountain bike tires")

	sClose, err := memory.CosineSimilarity(query, near)
	if err != nil {
		t.Fatalf("similarity: %v", err)
	}
	sFar, err := memory.CosineSimilarity(query, far)
	if err != nil {
		t.Fatalf("similarity: %v", err)
	}
	if sClose <= sFar {
		t.Errorf("expected related text to score higher: close=%v far=%v", sClose, sFar)
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("The Quick, brown fox - и 42 зайца!")
	want := []string{"quick", "brown", "fox", "42", "зайца"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}
