package redis

import (
	"context"
	"testing"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/repository/redis/converter"
	"github.com/DRSN-tech/go-recommender/pkg/clients"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/alicebob/miniredis/v2"
)

func newTestRepo(t *testing.T, ttl time.Duration) (*ConfirmationRepo, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	redisCfg := &cfg.RedisCfg{Addr: srv.Addr(), ConfirmationTTL: ttl}
	client := clients.NewRedisClient(redisCfg)
	t.Cleanup(func() { _ = client.Close() })

	return NewConfirmationRepo(client, converter.NewTokenConverter(), redisCfg, logger.NewNopLogger()), srv
}

func TestConfirmationRepoSingleUse(t *testing.T) {
	repo, _ := newTestRepo(t, time.Minute)
	ctx := context.Background()

	token, ttl, err := repo.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" || ttl != time.Minute {
		t.Fatalf("unexpected token %q ttl %v", token, ttl)
	}

	ok, err := repo.Consume(ctx, token)
	if err != nil || !ok {
		t.Fatalf("first consume: ok=%v err=%v", ok, err)
	}

	ok, err = repo.Consume(ctx, token)
	if err != nil || ok {
		t.Fatalf("second consume must fail: ok=%v err=%v", ok, err)
	}
}

func TestConfirmationRepoExpiry(t *testing.T) {
	repo, srv := newTestRepo(t, time.Minute)
	ctx := context.Background()

	token, _, err := repo.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	srv.FastForward(2 * time.Minute)

	ok, err := repo.Consume(ctx, token)
	if err != nil || ok {
		t.Fatalf("expired token must not be accepted: ok=%v err=%v", ok, err)
	}
}

func TestConfirmationRepoUnknownToken(t *testing.T) {
	repo, _ := newTestRepo(t, 0)

	for _, token := range []string{"", "never-issued"} {
		ok, err := repo.Consume(context.Background(), token)
		if err != nil || ok {
			t.Errorf("token %q: ok=%v err=%v", token, ok, err)
		}
	}
	if repo.ttl != defaultConfirmationTTL {
		t.Errorf("expected default ttl, got %v", repo.ttl)
	}
}

func TestConfirmationRepoCorruptedValue(t *testing.T) {
	repo, srv := newTestRepo(t, time.Minute)

	if err := srv.Set(repo.tokenKey("forged"), "not-json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ok, err := repo.Consume(context.Background(), "forged")
	if err != nil || ok {
		t.Fatalf("corrupted value must not confirm: ok=%v err=%v", ok, err)
	}
}

func TestConfirmationRepoUnavailable(t *testing.T) {
	repo, srv := newTestRepo(t, time.Minute)
	srv.Close()

	if _, _, err := repo.Issue(context.Background()); err == nil {
		t.Fatal("expected error when redis is down")
	}
}
