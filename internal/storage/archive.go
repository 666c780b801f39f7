package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/you/reserveq/internal/domain"
)

// Archive persists terminal job states to Postgres for audit. The queue and
// ledger never read from it.
type Archive struct{ db *pgxpool.Pool }

func New(db *pgxpool.Pool) *Archive { return &Archive{db} }

// Record inserts the job's terminal snapshot. Re-recording the same job is a
// no-op, so it is safe to call from racing terminal paths.
func (a *Archive) Record(ctx context.Context, j domain.Job) error {
	_, err := a.db.Exec(ctx, `insert into job_archive(
id, topic, job_id, payload, state, progress, failure_reason, finished_at
) values ($1,$2,$3,$4,$5,$6,$7,now())
on conflict (topic, job_id) do nothing`,
		uuid.NewString(), j.Topic, j.ID, []byte(j.Payload), string(j.State), j.Progress, j.FailureReason,
	)
	return errors.Wrap(err, "record job")
}
