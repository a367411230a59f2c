package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"adjutant.org/internal/ids"
)

// PGStore implements Store on PostgreSQL. The uniqueness of live
// (target_handle, run_at) pairs is enforced by a partial unique index, so
// the upsert in Create is race-free across concurrent callers.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Open dials PostgreSQL with pool defaults tuned for this service's low
// request volume.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

const jobColumns = `id, job_type, target_handle, run_at, status, created_by, coalesce(last_error,''), metadata, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, job Job) (Job, error) {
	if err := validate(job); err != nil {
		return Job{}, err
	}
	meta, err := json.Marshal(job.Metadata)
	if err != nil {
		return Job{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		insert into jobs(id, job_type, target_handle, run_at, status, created_by, metadata)
		values ($1,$2,$3,$4,'SCHEDULED',$5,$6)
		on conflict (target_handle, run_at) where status in ('SCHEDULED','IN_PROGRESS')
		do update set created_by = excluded.created_by,
		              metadata   = excluded.metadata,
		              updated_at = now()
		returning `+jobColumns,
		ids.New(), job.Type, job.TargetHandle, job.RunAt.UTC(), job.CreatedBy, meta,
	)
	return scanJob(row)
}

func (s *PGStore) Claim(ctx context.Context, id string) (Job, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		update jobs set status = 'IN_PROGRESS', updated_at = now()
		where id = $1 and status = 'SCHEDULED'
		returning `+jobColumns, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, err
	}
	return job, true, nil
}

func (s *PGStore) MarkDone(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		update jobs set status = 'DONE', updated_at = now()
		where id = $1 and status in ('SCHEDULED','IN_PROGRESS')
	`, id)
	return err
}

func (s *PGStore) MarkFailed(ctx context.Context, id string, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		update jobs set status = 'FAILED', last_error = nullif($2,''), updated_at = now()
		where id = $1 and status in ('SCHEDULED','IN_PROGRESS')
	`, id, reason)
	return err
}

func (s *PGStore) ListScheduled(ctx context.Context) ([]Job, error) {
	return s.query(ctx, `
		select `+jobColumns+` from jobs
		where status = 'SCHEDULED' order by run_at asc
	`)
}

func (s *PGStore) ListLive(ctx context.Context) ([]Job, error) {
	return s.query(ctx, `
		select `+jobColumns+` from jobs
		where status in ('SCHEDULED','IN_PROGRESS') order by run_at asc
	`)
}

func (s *PGStore) query(ctx context.Context, q string) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job  Job
		meta []byte
	)
	err := row.Scan(&job.ID, &job.Type, &job.TargetHandle, &job.RunAt, &job.Status,
		&job.CreatedBy, &job.LastError, &meta, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return Job{}, err
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &job.Metadata)
	}
	return job, nil
}
