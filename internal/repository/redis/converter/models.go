package converter

// TokenRedisModel - значение ключа токена подтверждения delete-all.
type TokenRedisModel struct {
	Token      string `json:"token"`
	IssuedAtMs int64  `json:"issued_at_ms"`
	TTLMs      int64  `json:"ttl_ms"`
}
