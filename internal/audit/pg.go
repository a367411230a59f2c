package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

var errActionRequired = errors.New("audit: action name is required")

// PGRecorder appends entries to the audit_entries table. Rows are never
// updated or deleted.
type PGRecorder struct {
	db *sql.DB
}

var _ Recorder = (*PGRecorder)(nil)

func NewPGRecorder(db *sql.DB) *PGRecorder {
	return &PGRecorder{db: db}
}

func (r *PGRecorder) Record(ctx context.Context, entry Entry) error {
	if err := normalize(&entry); err != nil {
		return err
	}
	var details []byte
	if len(entry.Details) > 0 {
		var err error
		details, err = json.Marshal(entry.Details)
		if err != nil {
			return err
		}
	}
	_, err := r.db.ExecContext(ctx, `
		insert into audit_entries(id, at, actor, action, target, details)
		values ($1,$2,nullif($3,''),$4,nullif($5,''),$6)
	`, entry.ID, entry.At, entry.Actor, entry.Action, entry.Target, details)
	return err
}
