package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hejijunhao/vitals/internal/output"
)

// Schema creates the predictions table used by Output.
const Schema = `CREATE TABLE IF NOT EXISTS predictions (
    run_id          TEXT             NOT NULL,
    pat_id          TEXT             NOT NULL,
    body_temp       DOUBLE PRECISION NOT NULL,
    blood_pres_sys  DOUBLE PRECISION NOT NULL,
    blood_pres_dia  DOUBLE PRECISION NOT NULL,
    heart_rate      DOUBLE PRECISION NOT NULL,
    resp_rate       DOUBLE PRECISION NOT NULL,
    time_stmp       TEXT             NOT NULL,
    predic          TEXT             NOT NULL,
    created_at      TIMESTAMPTZ      NOT NULL DEFAULT now()
)`

const insertPrediction = `INSERT INTO predictions
    (run_id, pat_id, body_temp, blood_pres_sys, blood_pres_dia, heart_rate, resp_rate, time_stmp, predic)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// db is the subset of *pgxpool.Pool used by Output.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Output mirrors predictions into a Postgres table, one row per prediction.
type Output struct {
	db    db
	close func()
}

// Open connects to the database at connString and ensures the schema exists.
func Open(ctx context.Context, connString string) (*Output, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgres output: connect: %w", err)
	}
	o := &Output{db: pool, close: pool.Close}
	if err := o.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return o, nil
}

// New wraps an existing pool. The caller owns the pool.
func New(pool *pgxpool.Pool) *Output {
	return &Output{db: pool}
}

// EnsureSchema creates the predictions table if it does not exist.
func (o *Output) EnsureSchema(ctx context.Context) error {
	if _, err := o.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres output: schema: %w", err)
	}
	return nil
}

// Write inserts every prediction of the batch in a single round trip.
func (o *Output) Write(ctx context.Context, batch output.Batch) error {
	if len(batch.Predictions) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, r := range output.Records(batch) {
		b.Queue(insertPrediction,
			r.RunID, r.PatientID,
			r.BodyTemp, r.BloodPresSys, r.BloodPresDia, r.HeartRate, r.RespRate,
			r.Timestamp, r.Prediction)
	}

	results := o.db.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("postgres output: insert %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("postgres output: %w", err)
	}
	return nil
}

// Close releases the pool if Output opened it.
func (o *Output) Close() error {
	if o.close != nil {
		o.close()
	}
	return nil
}
