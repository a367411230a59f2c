package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGRegistry stores the operator set in the operators table.
type PGRegistry struct {
	db *sql.DB
}

func NewPGRegistry(db *sql.DB) *PGRegistry {
	return &PGRegistry{db: db}
}

func (r *PGRegistry) IsOperator(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`select 1 from operators where id = $1`, normalizeID(id)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query operator: %w", err)
	}
	return true, nil
}

func (r *PGRegistry) Add(ctx context.Context, id, addedBy string) error {
	id = normalizeID(id)
	if id == "" {
		return errors.New("operator id is required")
	}
	_, err := r.db.ExecContext(ctx,
		`insert into operators (id, added_by, added_at)
		 values ($1, nullif($2, ''), now())
		 on conflict (id) do nothing`, id, addedBy)
	if err != nil {
		return fmt.Errorf("insert operator: %w", err)
	}
	return nil
}

func (r *PGRegistry) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`delete from operators where id = $1`, normalizeID(id))
	if err != nil {
		return fmt.Errorf("delete operator: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotOperator
	}
	return nil
}

func (r *PGRegistry) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`select id from operators order by id`)
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan operator: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operators: %w", err)
	}
	return out, nil
}
