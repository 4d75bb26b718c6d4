package converter

import (
	"github.com/DRSN-tech/go-recommender/internal/domain"
)

// RunConverter преобразует запуск обработки архива между domain и моделями PostgreSQL.
type RunConverter struct{}

func NewRunConverter() RunConverter {
	return RunConverter{}
}

// ToModel возвращает модель запуска и его ошибки в сквозной нумерации:
// сначала ошибки извлечения, затем ошибки записи в индекс.
func (RunConverter) ToModel(run *domain.ExtractionRun) (*RunModel, []*FailureModel) {
	inserted := run.InsertedIDs
	if inserted == nil {
		inserted = []string{}
	}

	model := &RunModel{
		ID:          run.ID,
		ArchiveName: run.ArchiveName,
		Units:       run.Units,
		InsertedIDs: inserted,
		StartedAt:   run.StartedAt.UTC(),
		FinishedAt:  run.FinishedAt.UTC(),
	}

	failures := make([]*FailureModel, 0, len(run.ExtractionFailures)+len(run.IngestionFailures))
	for _, group := range [][]domain.FailureEntry{run.ExtractionFailures, run.IngestionFailures} {
		for _, f := range group {
			failures = append(failures, &FailureModel{
				RunID:    run.ID,
				Position: len(failures),
				UnitRef:  f.UnitRef,
				Stage:    string(f.Stage),
				Reason:   f.Reason,
				Kind:     f.Kind,
			})
		}
	}

	return model, failures
}

// ToEntity собирает запуск из модели и ошибок, упорядоченных по Position.
func (RunConverter) ToEntity(model *RunModel, failures []*FailureModel) *domain.ExtractionRun {
	run := &domain.ExtractionRun{
		ID:                 model.ID,
		ArchiveName:        model.ArchiveName,
		Units:              model.Units,
		InsertedIDs:        model.InsertedIDs,
		ExtractionFailures: []domain.FailureEntry{},
		IngestionFailures:  []domain.FailureEntry{},
		StartedAt:          model.StartedAt,
		FinishedAt:         model.FinishedAt,
	}
	if run.InsertedIDs == nil {
		run.InsertedIDs = []string{}
	}

	for _, f := range failures {
		entry := domain.FailureEntry{
			UnitRef: f.UnitRef,
			Stage:   domain.FailureStage(f.Stage),
			Reason:  f.Reason,
			Kind:    f.Kind,
		}
		if entry.Stage == domain.StageIngestion {
			run.IngestionFailures = append(run.IngestionFailures, entry)
		} else {
			run.ExtractionFailures = append(run.ExtractionFailures, entry)
		}
	}

	return run
}
