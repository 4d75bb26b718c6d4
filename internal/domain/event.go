package domain

import "time"

// EventType - тип события изменения каталога.
type EventType string

const (
	EventUpsert    EventType = "upsert"
	EventDelete    EventType = "delete"
	EventDeleteAll EventType = "delete_all"
)

// ProductEvent публикуется после подтверждённой записи в индекс.
type ProductEvent struct {
	ID         string
	Type       EventType
	ProductID  string // пусто для delete_all
	Affected   uint64
	OccurredAt time.Time
}
