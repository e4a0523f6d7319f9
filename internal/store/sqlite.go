package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/kortex-hq/radar-cli/internal/model"
)

// timeFormat is how timestamps are serialized in SQLite. Version comparison
// for the weights CAS relies on exact string equality, so every write and
// read goes through this one format.
const timeFormat = time.RFC3339Nano

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS candidates (
	id                TEXT PRIMARY KEY,
	project_id        TEXT NOT NULL,
	company_name      TEXT NOT NULL,
	industry          TEXT NOT NULL DEFAULT '',
	headcount         TEXT NOT NULL DEFAULT '',
	location          TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	buying_signals    TEXT NOT NULL DEFAULT '[]',
	match_score       INTEGER NOT NULL DEFAULT 0,
	match_explanation TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'pending',
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_candidates_project_status ON candidates(project_id, status);

CREATE TABLE IF NOT EXISTS project_data (
	project_id TEXT NOT NULL,
	user_id    TEXT NOT NULL DEFAULT '',
	data_type  TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (project_id, data_type)
);

CREATE TABLE IF NOT EXISTS feedback_events (
	id           TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL,
	candidate_id TEXT NOT NULL,
	action       TEXT NOT NULL,
	result       TEXT,
	created_at   TEXT NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCandidate(ctx context.Context, c *model.Candidate) error {
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO candidates (id, project_id, company_name, industry, headcount, location, description, buying_signals, match_score, match_explanation, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.CompanyName, c.Industry, c.Headcount, c.Location,
		c.Description, string(signals), c.MatchScore, c.MatchExplanation,
		string(c.Status), now.Format(timeFormat), now.Format(timeFormat),
	)
	return eris.Wrap(err, "sqlite: insert candidate")
}

func (s *SQLiteStore) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)

	c, err := scanSQLiteCandidate(row.Scan)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: candidate %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get candidate %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, filter CandidateFilter) ([]model.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE project_id = ?`
	args := []any{filter.ProjectID}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	if filter.ExcludeID != "" {
		query += ` AND id <> ?`
		args = append(args, filter.ExcludeID)
	}
	if filter.MinScore > 0 {
		query += ` AND match_score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY match_score DESC, created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list candidates")
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		c, err := scanSQLiteCandidate(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate candidates")
	}
	return out, nil
}

func (s *SQLiteStore) UpdateCandidateScore(ctx context.Context, id string, score int) error {
	return s.execOne(ctx, "sqlite: update score",
		`UPDATE candidates SET match_score = ?, updated_at = ? WHERE id = ?`,
		score, time.Now().UTC().Format(timeFormat), id)
}

func (s *SQLiteStore) ArchiveCandidate(ctx context.Context, id string, score int, explanation string) error {
	return s.execOne(ctx, "sqlite: archive candidate",
		`UPDATE candidates SET match_score = ?, status = ?, match_explanation = ?, updated_at = ? WHERE id = ?`,
		score, string(model.StatusArchived), explanation, time.Now().UTC().Format(timeFormat), id)
}

func (s *SQLiteStore) SetCandidateStatus(ctx context.Context, id string, status model.CandidateStatus) error {
	return s.execOne(ctx, "sqlite: set status",
		`UPDATE candidates SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(timeFormat), id)
}

// execOne runs an update that must touch exactly one row.
func (s *SQLiteStore) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrap(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, op)
	}
	if n == 0 {
		return eris.Wrap(ErrNotFound, op)
	}
	return nil
}

func (s *SQLiteStore) BulkUpsertCandidates(ctx context.Context, candidates []model.Candidate) (int64, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin bulk upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC().Format(timeFormat)
	var total int64
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
			return total, err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO candidates (id, project_id, company_name, industry, headcount, location, description, buying_signals, match_score, match_explanation, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
				company_name = excluded.company_name,
				industry = excluded.industry,
				headcount = excluded.headcount,
				location = excluded.location,
				description = excluded.description,
				buying_signals = excluded.buying_signals,
				match_score = excluded.match_score,
				match_explanation = excluded.match_explanation,
				updated_at = excluded.updated_at`,
			c.ID, c.ProjectID, c.CompanyName, c.Industry, c.Headcount, c.Location,
			c.Description, string(signals), c.MatchScore, c.MatchExplanation,
			string(c.Status), now, now,
		)
		if err != nil {
			return total, eris.Wrap(err, "sqlite: bulk upsert candidate")
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return total, eris.Wrap(err, "sqlite: commit bulk upsert")
	}
	return total, nil
}

func (s *SQLiteStore) CountByStatus(ctx context.Context, projectID string) (map[model.CandidateStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM candidates WHERE project_id = ? GROUP BY status`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by status")
	}
	defer rows.Close()

	counts := make(map[model.CandidateStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		counts[model.CandidateStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate counts")
	}
	return counts, nil
}

func (s *SQLiteStore) GetWeights(ctx context.Context, projectID string) (*model.PreferenceWeights, time.Time, error) {
	var data, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT data, updated_at FROM project_data WHERE project_id = ? AND data_type = ?`,
		projectID, DataTypeWeights,
	).Scan(&data, &updatedAt)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return model.NewPreferenceWeights(), time.Time{}, nil
		}
		return nil, time.Time{}, eris.Wrapf(err, "sqlite: get weights %s", projectID)
	}

	version, err := time.Parse(timeFormat, updatedAt)
	if err != nil {
		return nil, time.Time{}, eris.Wrap(err, "sqlite: parse weights version")
	}

	w := model.NewPreferenceWeights()
	if err := json.Unmarshal([]byte(data), w); err != nil {
		return nil, time.Time{}, eris.Wrap(err, "sqlite: unmarshal weights")
	}
	w.Normalize()
	return w, version, nil
}

func (s *SQLiteStore) SaveWeights(ctx context.Context, projectID, userID string, w *model.PreferenceWeights, version time.Time) error {
	data, err := json.Marshal(w)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal weights")
	}
	now := time.Now().UTC().Format(timeFormat)

	if version.IsZero() {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO project_data (project_id, user_id, data_type, data, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (project_id, data_type) DO NOTHING`,
			projectID, userID, DataTypeWeights, string(data), now,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert weights")
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return eris.Wrapf(ErrConflict, "sqlite: weights %s", projectID)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE project_data SET data = ?, user_id = ?, updated_at = ?
		 WHERE project_id = ? AND data_type = ? AND updated_at = ?`,
		string(data), userID, now, projectID, DataTypeWeights, version.Format(timeFormat),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update weights")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return eris.Wrapf(ErrConflict, "sqlite: weights %s", projectID)
	}
	return nil
}

func (s *SQLiteStore) GetAgencyVector(ctx context.Context, projectID string) (*model.AgencyVector, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM project_data WHERE project_id = ? AND data_type = ?`,
		projectID, DataTypeAgencyVector,
	).Scan(&data)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get agency vector %s", projectID)
	}

	v := model.NewAgencyVector()
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal agency vector")
	}
	return v, nil
}

func (s *SQLiteStore) SetAgencyVector(ctx context.Context, projectID, userID string, v *model.AgencyVector) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal agency vector")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO project_data (project_id, user_id, data_type, data, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (project_id, data_type) DO UPDATE SET data = excluded.data, user_id = excluded.user_id, updated_at = excluded.updated_at`,
		projectID, userID, DataTypeAgencyVector, string(data), time.Now().UTC().Format(timeFormat),
	)
	return eris.Wrap(err, "sqlite: set agency vector")
}

func (s *SQLiteStore) GetFeedbackResult(ctx context.Context, eventID string) (*model.RippleResult, error) {
	var data sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM feedback_events WHERE id = ?`, eventID,
	).Scan(&data)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get feedback event %s", eventID)
	}
	if !data.Valid || data.String == "" {
		return nil, nil
	}

	var r model.RippleResult
	if err := json.Unmarshal([]byte(data.String), &r); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal feedback result")
	}
	return &r, nil
}

func (s *SQLiteStore) RecordFeedback(ctx context.Context, ev FeedbackEvent) error {
	data, err := json.Marshal(ev.Result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal feedback result")
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feedback_events (id, project_id, candidate_id, action, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.ProjectID, ev.CandidateID, string(ev.Action), string(data), ev.CreatedAt.Format(timeFormat),
	)
	return eris.Wrap(err, "sqlite: record feedback")
}

// scanSQLiteCandidate reads one candidate row via the given scan function.
func scanSQLiteCandidate(scan func(...any) error) (*model.Candidate, error) {
	var c model.Candidate
	var signals, status, createdAt, updatedAt string
	err := scan(
		&c.ID, &c.ProjectID, &c.CompanyName, &c.Industry, &c.Headcount,
		&c.Location, &c.Description, &signals, &c.MatchScore,
		&c.MatchExplanation, &status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = model.CandidateStatus(status)
	if signals != "" {
		if err := json.Unmarshal([]byte(signals), &c.BuyingSignals); err != nil {
			return nil, eris.Wrap(err, "unmarshal buying signals")
		}
	}
	if c.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, eris.Wrap(err, "parse created_at")
	}
	if c.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, eris.Wrap(err, "parse updated_at")
	}
	return &c, nil
}
