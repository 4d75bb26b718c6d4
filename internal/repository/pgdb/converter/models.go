package converter

import "time"

// RunModel представляет запись таблицы extraction_runs в PostgreSQL.
type RunModel struct {
	ID          string    `db:"id"`
	ArchiveName string    `db:"archive_name"`
	Units       int       `db:"units"`
	InsertedIDs []string  `db:"inserted_ids"`
	StartedAt   time.Time `db:"started_at"`
	FinishedAt  time.Time `db:"finished_at"`
}

// FailureModel представляет запись таблицы extraction_failures в PostgreSQL.
type FailureModel struct {
	RunID    string `db:"run_id"`
	Position int    `db:"position"`
	UnitRef  string `db:"unit_ref"`
	Stage    string `db:"stage"`
	Reason   string `db:"reason"`
	Kind     string `db:"kind"`
}
