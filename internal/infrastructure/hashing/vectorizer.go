// Package hashing реализует локальный детерминированный векторизатор на основе hashing trick.
// Не требует сети и обучения; подходит для разработки и тестов.
package hashing

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/cespare/xxhash/v2"
)

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {},
	"that": {}, "the": {}, "this": {}, "to": {}, "with": {},
	"и": {}, "в": {}, "во": {}, "на": {}, "с": {}, "со": {}, "по": {}, "для": {}, "из": {}, "к": {}, "о": {}, "а": {},
}

// Vectorizer раскладывает токены и биграммы по корзинам вектора через xxhash.
// Знак вклада берётся из старшего бита хэша, что уменьшает смещение от коллизий.
type Vectorizer struct {
	dimension int
}

func NewVectorizer(dimension int) *Vectorizer {
	return &Vectorizer{dimension: dimension}
}

// Embed возвращает L2-нормированный вектор. Для текста без значимых токенов возвращает e.ErrEmbedding.
func (v *Vectorizer) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "hashing.Vectorizer.Embed"

	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(op, e.As(e.ErrEmbedding, err))
	}
	if v.dimension <= 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: dimension must be positive", e.ErrEmbedding))
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: text has no meaningful tokens", e.ErrEmbedding))
	}

	acc := make([]float64, v.dimension)
	for i, tok := range tokens {
		v.add(acc, tok, 1.0)
		if i > 0 {
			v.add(acc, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, x := range acc {
		norm += x * x
	}
	if norm == 0 {
		// все вклады взаимно погасились
		return nil, e.Wrap(op, e.ErrZeroVector)
	}
	norm = math.Sqrt(norm)

	out := make([]float32, v.dimension)
	for i, x := range acc {
		out[i] = float32(x / norm)
	}

	return out, nil
}

func (v *Vectorizer) add(acc []float64, feature string, weight float64) {
	h := xxhash.Sum64String(feature)
	idx := h % uint64(v.dimension)
	if h>>63 == 1 {
		weight = -weight
	}
	acc[idx] += weight
}

// Tokenize приводит текст к нижнему регистру и выделяет токены из букв и цифр без стоп-слов.
func Tokenize(text string) []string {
	raw := tokenRe.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if _, stop := stopWords[t]; stop {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}
