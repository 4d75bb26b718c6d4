package pgdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/tr"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

const uniqueViolation = "23505"

// RunJournalRepo хранит итоги запусков обработки архивов в PostgreSQL.
type RunJournalRepo struct {
	pool *pgxpool.Pool
	conv converter.RunConverter
}

func NewRunJournalRepo(pool *pgxpool.Pool, conv converter.RunConverter) *RunJournalRepo {
	return &RunJournalRepo{
		pool: pool,
		conv: conv,
	}
}

// SaveRun записывает запуск и его ошибки одной транзакцией.
func (r *RunJournalRepo) SaveRun(ctx context.Context, run *domain.ExtractionRun) (err error) {
	const op = "RunJournalRepo.SaveRun"

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, r.pool)
	if err != nil {
		return e.Wrap(op, err)
	}
	defer func() {
		if err != nil && tx.IsActive() {
			_ = tx.Rollback(ctx)
		}
	}()

	var raw any = tx.Transaction()
	pgxTx, ok := raw.(pgx.Tx)
	if !ok {
		return e.Wrap(op, e.ErrTransactionNotFound)
	}
	ctx = tr.WithTx(ctx, pgxTx)

	model, failures := r.conv.ToModel(run)
	if err = r.insertRun(ctx, model); err != nil {
		return e.Wrap(op, err)
	}
	if err = r.insertFailures(ctx, failures); err != nil {
		return e.Wrap(op, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

// GetRun возвращает e.ErrNotFound, если запуска нет.
func (r *RunJournalRepo) GetRun(ctx context.Context, runID string) (*domain.ExtractionRun, error) {
	const op = "RunJournalRepo.GetRun"

	query := `
		SELECT id::text, archive_name, units, inserted_ids, started_at, finished_at
		FROM extraction_runs
		WHERE id = $1;
	`

	var model converter.RunModel
	if err := r.pool.QueryRow(ctx, query, runID).Scan(
		&model.ID,
		&model.ArchiveName,
		&model.Units,
		&model.InsertedIDs,
		&model.StartedAt,
		&model.FinishedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(op, fmt.Errorf("%w: run %s", e.ErrNotFound, runID))
		}
		return nil, e.Wrap(op, err)
	}

	failures, err := r.getFailures(ctx, runID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return r.conv.ToEntity(&model, failures), nil
}

func (r *RunJournalRepo) insertRun(ctx context.Context, model *converter.RunModel) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		INSERT INTO extraction_runs (
			id,
			archive_name,
			units,
			inserted_ids,
			started_at,
			finished_at
		) VALUES ($1, $2, $3, $4, $5, $6);
	`

	if _, err := tx.Exec(ctx, query,
		model.ID,
		model.ArchiveName,
		model.Units,
		model.InsertedIDs,
		model.StartedAt,
		model.FinishedAt,
	); err != nil {
		if postgresDuplicate(err) {
			return fmt.Errorf("%s: run with id %s already exists", whereami.WhereAmI(), model.ID)
		}
		return fmt.Errorf("%s: failed to insert run: %w", whereami.WhereAmI(), err)
	}

	return nil
}

func (r *RunJournalRepo) insertFailures(ctx context.Context, failures []*converter.FailureModel) error {
	if len(failures) == 0 {
		return nil
	}

	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	rows := make([][]any, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []any{f.RunID, f.Position, f.UnitRef, f.Stage, f.Reason, f.Kind})
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"extraction_failures"},
		[]string{"run_id", "position", "unit_ref", "stage", "reason", "kind"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("%s: failed to insert failures: %w", whereami.WhereAmI(), err)
	}

	return nil
}

func (r *RunJournalRepo) getFailures(ctx context.Context, runID string) ([]*converter.FailureModel, error) {
	query := `
		SELECT run_id::text, position, unit_ref, stage, reason, kind
		FROM extraction_failures
		WHERE run_id = $1
		ORDER BY position;
	`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	failures, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[converter.FailureModel])
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return failures, nil
}

func postgresDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
