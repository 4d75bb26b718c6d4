package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// productNamespace - пространство имён UUIDv5 для идентификаторов, выводимых из внешнего кода товара.
var productNamespace = uuid.MustParse("6f1c3b1e-8a47-5d4e-9b4a-2f0f6b1d7c3a")

const maxDisplayNameRunes = 80

// MetadataImageKeys - ключ метаданных со списком ключей архивных изображений через запятую.
const MetadataImageKeys = "image_keys"

// Metadata - открытый набор вспомогательных атрибутов товара.
// При обновлении товара переданная Metadata целиком заменяет сохранённую.
type Metadata map[string]string

// Clone возвращает независимую копию.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Product описывает запись каталога, хранящуюся в индексе.
// Embedding всегда вычислен из текущего Description.
type Product struct {
	ID          string // uuid
	Name        string
	Description string
	Embedding   []float32
	Metadata    Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewProduct(id, name, description string, embedding []float32, metadata Metadata) *Product {
	now := time.Now().UTC()
	return &Product{
		ID:          id,
		Name:        name,
		Description: description,
		Embedding:   embedding,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone возвращает глубокую копию продукта.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	c.Embedding = append([]float32(nil), p.Embedding...)
	c.Metadata = p.Metadata.Clone()
	return &c
}

// ImageKeys возвращает ключи архивных изображений записи.
func (p *Product) ImageKeys() []string {
	if p == nil {
		return nil
	}
	raw := p.Metadata[MetadataImageKeys]
	if raw == "" {
		return nil
	}
	keys := make([]string, 0, strings.Count(raw, ",")+1)
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// StaleImageKeys возвращает ключи изображений previous, на которые current больше не ссылается.
func StaleImageKeys(previous, current *Product) []string {
	old := previous.ImageKeys()
	if len(old) == 0 {
		return nil
	}
	kept := make(map[string]struct{})
	for _, k := range current.ImageKeys() {
		kept[k] = struct{}{}
	}
	stale := make([]string, 0, len(old))
	for _, k := range old {
		if _, ok := kept[k]; !ok {
			stale = append(stale, k)
		}
	}
	return stale
}

// NewProductID генерирует новый идентификатор. Если задан внешний код товара,
// идентификатор детерминированно выводится из него, и повторная загрузка перезаписывает ту же запись.
func NewProductID(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(productNamespace, []byte(code)).String()
}

// DisplayName возвращает name или, если он пуст, усечённое описание.
func DisplayName(name, description string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}

	description = strings.Join(strings.Fields(description), " ")
	if utf8.RuneCountInString(description) <= maxDisplayNameRunes {
		return description
	}
	runes := []rune(description)
	return strings.TrimSpace(string(runes[:maxDisplayNameRunes])) + "…"
}
