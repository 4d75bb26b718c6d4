package converter

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// TokenConverter сериализует токены подтверждения для хранения в Redis.
type TokenConverter struct{}

func NewTokenConverter() TokenConverter {
	return TokenConverter{}
}

func (TokenConverter) Marshal(token string, issuedAt time.Time, ttl time.Duration) ([]byte, error) {
	return json.Marshal(TokenRedisModel{
		Token:      token,
		IssuedAtMs: issuedAt.UnixMilli(),
		TTLMs:      ttl.Milliseconds(),
	})
}

// Unmarshal проверяет, что значение относится к ожидаемому токену.
func (TokenConverter) Unmarshal(data []byte, token string) (*TokenRedisModel, error) {
	var model TokenRedisModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, err
	}
	if model.Token != token {
		return nil, fmt.Errorf("token mismatch: stored %q", model.Token)
	}

	return &model, nil
}
