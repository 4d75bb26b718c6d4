package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/repository/redis/converter"
	"github.com/DRSN-tech/go-recommender/pkg/clients"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

const defaultConfirmationTTL = 5 * time.Minute

// ConfirmationRepo хранит одноразовые токены подтверждения delete-all.
// Погашение атомарно (GETDEL), поэтому токен срабатывает не более одного раза.
type ConfirmationRepo struct {
	client *clients.RedisClient
	conv   converter.TokenConverter
	ttl    time.Duration
	logger logger.Logger
	now    func() time.Time
}

func NewConfirmationRepo(client *clients.RedisClient, conv converter.TokenConverter,
	cfg *cfg.RedisCfg, logger logger.Logger) *ConfirmationRepo {
	ttl := cfg.ConfirmationTTL
	if ttl <= 0 {
		ttl = defaultConfirmationTTL
	}

	return &ConfirmationRepo{
		client: client,
		conv:   conv,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Issue создаёт новый токен с TTL.
func (c *ConfirmationRepo) Issue(ctx context.Context) (string, time.Duration, error) {
	token := uuid.NewString()

	data, err := c.conv.Marshal(token, c.now(), c.ttl)
	if err != nil {
		return "", 0, e.Wrap(whereami.WhereAmI(), err)
	}

	ok, err := c.client.Client.SetNX(ctx, c.tokenKey(token), data, c.ttl).Result()
	if err != nil {
		return "", 0, e.Wrap(whereami.WhereAmI(), err)
	}
	if !ok {
		return "", 0, fmt.Errorf("%s: token %s already issued", whereami.WhereAmI(), token)
	}

	return token, c.ttl, nil
}

// Consume гасит токен; false, если токена нет, он истёк или уже использован.
func (c *ConfirmationRepo) Consume(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	data, err := c.client.Client.GetDel(ctx, c.tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return false, nil
		}
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	if _, err := c.conv.Unmarshal(data, token); err != nil {
		c.logger.Warnf("Corrupted confirmation token value: %v", e.Wrap(whereami.WhereAmI(), err))
		return false, nil
	}

	return true, nil
}

// tokenKey возвращает Redis-ключ токена
func (c *ConfirmationRepo) tokenKey(token string) string {
	return "confirm:delete-all:" + token
}
