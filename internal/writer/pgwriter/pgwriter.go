// Package pgwriter inserts records, one row and one INSERT per record,
// into a Postgres records table,
// grounded on backend/data/conn.go + backend/jobs/securitiesTable.go's
// pgx query style and services/backend/internal/data/retry.go's
// ExecWithRetry backoff, adapted into internal/errpolicy.
package pgwriter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oceantech/rvdaq/internal/errpolicy"
	"github.com/oceantech/rvdaq/internal/formats"
	"github.com/oceantech/rvdaq/internal/record"
)

// insertSQL targets a wide records table a PostgresWriter expects to
// already exist (schema migration is out of this module's scope, per
// spec.md's exclusion of config/deployment tooling).
const insertSQL = `INSERT INTO records (data_id, message_type, ts, fields) VALUES ($1, $2, $3, $4)`

// PostgresWriter inserts one row per DASRecord into a wide
// records(data_id, message_type, ts, fields jsonb) table.
type PostgresWriter struct {
	pool  *pgxpool.Pool
	retry *errpolicy.RetryPolicy
}

// NewPostgresWriter wraps an already-constructed *pgxpool.Pool (ownership
// stays with the caller).
func NewPostgresWriter(pool *pgxpool.Pool) *PostgresWriter {
	return &PostgresWriter{
		pool:  pool,
		retry: errpolicy.NewRetryPolicy("pgwriter"),
	}
}

func (w *PostgresWriter) InputFormat() formats.Format { return formats.JSONRecord }

func (w *PostgresWriter) CanAccept(source formats.Format) bool {
	return formats.JSONRecord.CanAccept(source)
}

// Write inserts rec as a single row, retrying transient connection
// errors per internal/errpolicy.
func (w *PostgresWriter) Write(rec any) error {
	recs, err := record.Normalize(rec)
	if err != nil {
		return fmt.Errorf("pgwriter: normalize: %w", err)
	}
	ctx := context.Background()
	for _, r := range recs {
		r := r
		fieldsJSON, err := json.Marshal(r.Fields)
		if err != nil {
			return fmt.Errorf("pgwriter: marshal fields: %w", err)
		}
		err = w.retry.Do(ctx, func() error {
			_, execErr := w.pool.Exec(ctx, insertSQL, r.DataID, r.MessageType, r.Timestamp, fieldsJSON)
			return execErr
		})
		if err != nil {
			return err
		}
	}
	return nil
}
