package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/kortex-hq/radar-cli/internal/model"
)

// pgPool is the subset of pgxpool.Pool the store uses. Narrowed to an
// interface so tests can substitute pgxmock.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore implements Store backed by pgxpool.
type PostgresStore struct {
	pool    pgPool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS candidates (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project_id       TEXT NOT NULL,
	company_name     TEXT NOT NULL,
	industry         TEXT NOT NULL DEFAULT '',
	headcount        TEXT NOT NULL DEFAULT '',
	location         TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	buying_signals   JSONB NOT NULL DEFAULT '[]',
	match_score      INTEGER NOT NULL DEFAULT 0,
	match_explanation TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'pending',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_candidates_project_status ON candidates(project_id, status);
CREATE INDEX IF NOT EXISTS idx_candidates_project_score ON candidates(project_id, match_score DESC);

CREATE TABLE IF NOT EXISTS project_data (
	project_id TEXT NOT NULL,
	user_id    TEXT NOT NULL DEFAULT '',
	data_type  TEXT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (project_id, data_type)
);

CREATE TABLE IF NOT EXISTS feedback_events (
	id           TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL,
	candidate_id TEXT NOT NULL,
	action       TEXT NOT NULL,
	result       JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_feedback_events_project ON feedback_events(project_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateCandidate(ctx context.Context, c *model.Candidate) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = model.StatusPending
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	signals, err := marshalSignals(c.BuyingSignals)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO candidates (id, project_id, company_name, industry, headcount, location, description, buying_signals, match_score, match_explanation, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.ProjectID, c.CompanyName, c.Industry, c.Headcount, c.Location,
		c.Description, signals, c.MatchScore, c.MatchExplanation, string(c.Status), now, now,
	)
	return eris.Wrap(err, "postgres: insert candidate")
}

const candidateColumns = `id, project_id, company_name, industry, headcount, location, description, buying_signals, match_score, match_explanation, status, created_at, updated_at`

func (s *PostgresStore) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)

	c, err := scanCandidate(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: candidate %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get candidate %s", id)
	}
	return c, nil
}

func (s *PostgresStore) ListCandidates(ctx context.Context, filter CandidateFilter) ([]model.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE project_id = $1`
	args := []any{filter.ProjectID}
	argIdx := 2

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		query += fmt.Sprintf(` AND status = ANY($%d)`, argIdx)
		args = append(args, statuses)
		argIdx++
	}
	if filter.ExcludeID != "" {
		query += fmt.Sprintf(` AND id <> $%d`, argIdx)
		args = append(args, filter.ExcludeID)
		argIdx++
	}
	if filter.MinScore > 0 {
		query += fmt.Sprintf(` AND match_score >= $%d`, argIdx)
		args = append(args, filter.MinScore)
		argIdx++
	}
	query += ` ORDER BY match_score DESC, created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list candidates")
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate candidates")
	}
	return out, nil
}

func (s *PostgresStore) UpdateCandidateScore(ctx context.Context, id string, score int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE candidates SET match_score = $1, updated_at = $2 WHERE id = $3`,
		score, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update score %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: candidate %s", id)
	}
	return nil
}

func (s *PostgresStore) ArchiveCandidate(ctx context.Context, id string, score int, explanation string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE candidates SET match_score = $1, status = $2, match_explanation = $3, updated_at = $4 WHERE id = $5`,
		score, string(model.StatusArchived), explanation, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: archive candidate %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: candidate %s", id)
	}
	return nil
}

func (s *PostgresStore) SetCandidateStatus(ctx context.Context, id string, status model.CandidateStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE candidates SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: candidate %s", id)
	}
	return nil
}

// BulkUpsertCandidates inserts or refreshes candidates in one round trip via
// a pgx batch. Conflicting ids keep their status but take the new
// descriptive fields and score.
func (s *PostgresStore) BulkUpsertCandidates(ctx context.Context, candidates []model.Candidate) (int64, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for i := range candidates {
		c := &candidates[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.Status == "" {
			c.Status = model.StatusPending
		}
		signals, err := marshalSignals(c.BuyingSignals)
		if err != nil {
			return 0, err
		}
		batch.Queue(
			`INSERT INTO candidates (id, project_id, company_name, industry, headcount, location, description, buying_signals, match_score, match_explanation, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 ON CONFLICT (id) DO UPDATE SET
				company_name = EXCLUDED.company_name,
				industry = EXCLUDED.industry,
				headcount = EXCLUDED.headcount,
				location = EXCLUDED.location,
				description = EXCLUDED.description,
				buying_signals = EXCLUDED.buying_signals,
				match_score = EXCLUDED.match_score,
				match_explanation = EXCLUDED.match_explanation,
				updated_at = EXCLUDED.updated_at`,
			c.ID, c.ProjectID, c.CompanyName, c.Industry, c.Headcount, c.Location,
			c.Description, signals, c.MatchScore, c.MatchExplanation, string(c.Status), now, now,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	var total int64
	for range candidates {
		tag, err := results.Exec()
		if err != nil {
			return total, eris.Wrap(err, "postgres: bulk upsert candidates")
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context, projectID string) (map[model.CandidateStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM candidates WHERE project_id = $1 GROUP BY status`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by status")
	}
	defer rows.Close()

	counts := make(map[model.CandidateStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan count")
		}
		counts[model.CandidateStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate counts")
	}
	return counts, nil
}

func (s *PostgresStore) GetWeights(ctx context.Context, projectID string) (*model.PreferenceWeights, time.Time, error) {
	var data []byte
	var version time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT data, updated_at FROM project_data WHERE project_id = $1 AND data_type = $2`,
		projectID, DataTypeWeights,
	).Scan(&data, &version)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return model.NewPreferenceWeights(), time.Time{}, nil
		}
		return nil, time.Time{}, eris.Wrapf(err, "postgres: get weights %s", projectID)
	}

	w := model.NewPreferenceWeights()
	if err := json.Unmarshal(data, w); err != nil {
		return nil, time.Time{}, eris.Wrap(err, "postgres: unmarshal weights")
	}
	w.Normalize()
	return w, version, nil
}

func (s *PostgresStore) SaveWeights(ctx context.Context, projectID, userID string, w *model.PreferenceWeights, version time.Time) error {
	data, err := json.Marshal(w)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal weights")
	}
	now := time.Now().UTC()

	if version.IsZero() {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO project_data (project_id, user_id, data_type, data, updated_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (project_id, data_type) DO NOTHING`,
			projectID, userID, DataTypeWeights, data, now,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert weights")
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(ErrConflict, "postgres: weights %s", projectID)
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE project_data SET data = $1, user_id = $2, updated_at = $3
		 WHERE project_id = $4 AND data_type = $5 AND updated_at = $6`,
		data, userID, now, projectID, DataTypeWeights, version,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update weights")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrConflict, "postgres: weights %s", projectID)
	}
	return nil
}

func (s *PostgresStore) GetAgencyVector(ctx context.Context, projectID string) (*model.AgencyVector, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM project_data WHERE project_id = $1 AND data_type = $2`,
		projectID, DataTypeAgencyVector,
	).Scan(&data)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get agency vector %s", projectID)
	}

	v := model.NewAgencyVector()
	if err := json.Unmarshal(data, v); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal agency vector")
	}
	return v, nil
}

func (s *PostgresStore) SetAgencyVector(ctx context.Context, projectID, userID string, v *model.AgencyVector) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal agency vector")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO project_data (project_id, user_id, data_type, data, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (project_id, data_type) DO UPDATE SET data = EXCLUDED.data, user_id = EXCLUDED.user_id, updated_at = EXCLUDED.updated_at`,
		projectID, userID, DataTypeAgencyVector, data, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: set agency vector")
}

func (s *PostgresStore) GetFeedbackResult(ctx context.Context, eventID string) (*model.RippleResult, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT result FROM feedback_events WHERE id = $1`, eventID,
	).Scan(&data)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get feedback event %s", eventID)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var r model.RippleResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal feedback result")
	}
	return &r, nil
}

func (s *PostgresStore) RecordFeedback(ctx context.Context, ev FeedbackEvent) error {
	data, err := json.Marshal(ev.Result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal feedback result")
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO feedback_events (id, project_id, candidate_id, action, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.ProjectID, ev.CandidateID, string(ev.Action), data, ev.CreatedAt,
	)
	return eris.Wrap(err, "postgres: record feedback")
}

// scanCandidate reads one candidate row.
func scanCandidate(row pgx.Row) (*model.Candidate, error) {
	var c model.Candidate
	var signals []byte
	var status string
	err := row.Scan(
		&c.ID, &c.ProjectID, &c.CompanyName, &c.Industry, &c.Headcount,
		&c.Location, &c.Description, &signals, &c.MatchScore,
		&c.MatchExplanation, &status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = model.CandidateStatus(status)
	if len(signals) > 0 {
		if err := json.Unmarshal(signals, &c.BuyingSignals); err != nil {
			return nil, eris.Wrap(err, "unmarshal buying signals")
		}
	}
	return &c, nil
}

func marshalSignals(signals []string) ([]byte, error) {
	if signals == nil {
		signals = []string{}
	}
	data, err := json.Marshal(signals)
	if err != nil {
		return nil, eris.Wrap(err, "marshal buying signals")
	}
	return data, nil
}
