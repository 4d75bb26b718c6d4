package e

import (
	"context"
	"errors"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"empty description", Wrap("op", ErrEmptyDescription), "validation_error"},
		{"invalid query", Wrap("op", ErrInvalidQuery), "invalid_query"},
		{"not found", Wrap("op", ErrNotFound), "not_found"},
		{"embedding", As(ErrEmbedding, errors.New("model down")), "embedding_error"},
		{"unit timeout", ErrUnitTimeout, "extraction_error"},
		{"index", As(ErrIndexUnavailable, context.DeadlineExceeded), "index_unavailable"},
		{"empty archive", ErrEmptyArchive, "empty_archive"},
		{"unknown", errors.New("boom"), "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAsKeepsCause(t *testing.T) {
	cause := context.DeadlineExceeded
	err := As(ErrIndexUnavailable, cause)

	if !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable in chain")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain")
	}
	if again := As(ErrIndexUnavailable, err); again != err {
		t.Errorf("As should not re-wrap an already tagged error")
	}
	if As(ErrEmbedding, nil) != nil {
		t.Errorf("As(nil) must stay nil")
	}
}
