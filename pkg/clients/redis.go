package clients

import (
	"context"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

const redisClientName = "go-recommender"

// RedisClient - клиент хранилища токенов подтверждения.
type RedisClient struct {
	Client *r.Client
}

func NewRedisClient(redisCfg *cfg.RedisCfg) *RedisClient {
	opts := &r.Options{
		Addr:                  redisCfg.Addr,
		Username:              redisCfg.User,
		Password:              redisCfg.Password,
		DB:                    redisCfg.DB,
		ClientName:            redisClientName,
		MaxRetries:            redisCfg.MaxRetries,
		DialTimeout:           redisCfg.DialTimeout,
		ReadTimeout:           redisCfg.Timeout,
		WriteTimeout:          redisCfg.Timeout,
		ContextTimeoutEnabled: true,
	}
	return &RedisClient{Client: r.NewClient(opts)}
}

// Ping проверяет доступность Redis при старте.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	return c.Client.Close()
}
