package domain

import (
	"strings"
	"time"
)

// UnitState - состояние единицы извлечения внутри одного запуска.
type UnitState string

const (
	UnitDispatched UnitState = "DISPATCHED"
	UnitExtracted  UnitState = "EXTRACTED"
	UnitFailed     UnitState = "FAILED"
)

// FailureStage - этап, на котором единица архива завершилась ошибкой.
type FailureStage string

const (
	StageExtraction FailureStage = "extraction"
	StageIngestion  FailureStage = "ingestion"
)

// ExtractionUnit - одна папка товара внутри архива.
type ExtractionUnit struct {
	Ref      string   // имя папки верхнего уровня, оно же провизорный идентификатор
	Position int      // порядковый номер в архиве
	Images   []Image  // изображения папки
	Problems []string // проблемы с файлами, обнаруженные при распаковке
}

// Candidate - карточка товара, извлечённая из изображений.
type Candidate struct {
	Name             string
	Code             string
	ShortDescription string
	LongDescription  string
	ImageFormat      string
}

// Description собирает текст описания из краткого и полного описаний.
func (c Candidate) Description() string {
	short := strings.TrimSpace(c.ShortDescription)
	long := strings.TrimSpace(c.LongDescription)

	switch {
	case short == "":
		return long
	case long == "":
		return short
	case strings.Contains(long, short):
		return long
	default:
		return short + "\n\n" + long
	}
}

// FailureEntry - запись о неуспешной единице архива. Это данные, а не сбой операции.
type FailureEntry struct {
	UnitRef string       `json:"unit_ref"`
	Stage   FailureStage `json:"stage"`
	Reason  string       `json:"reason"`
	Kind    string       `json:"kind"`
}

// ExtractionRun - итог одного запуска обработки архива, сохраняемый в журнал.
type ExtractionRun struct {
	ID                 string
	ArchiveName        string
	Units              int
	InsertedIDs        []string
	ExtractionFailures []FailureEntry
	IngestionFailures  []FailureEntry
	StartedAt          time.Time
	FinishedAt         time.Time
}
