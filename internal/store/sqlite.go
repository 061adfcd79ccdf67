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

	"github.com/sells-group/acquire-cli/internal/model"
)

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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS raw_listings (
	id               TEXT PRIMARY KEY,
	business_id      TEXT NOT NULL,
	marketplace      TEXT NOT NULL,
	listing_url      TEXT NOT NULL,
	scrape_timestamp DATETIME NOT NULL,
	raw_html         TEXT NOT NULL,
	raw_text         TEXT NOT NULL,
	listing_category TEXT,
	seller_country   TEXT,
	asking_price_raw TEXT,
	revenue_raw      TEXT,
	profit_raw       TEXT,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS canonical_records (
	id           TEXT PRIMARY KEY,
	business_id  TEXT NOT NULL,
	version      INTEGER NOT NULL,
	agent_run_id TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	record       TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (business_id, version)
);

CREATE TABLE IF NOT EXISTS scoring_records (
	id              TEXT PRIMARY KEY,
	business_id     TEXT NOT NULL,
	record_version  INTEGER NOT NULL,
	agent_run_id    TEXT NOT NULL,
	components      TEXT NOT NULL,
	total_score     REAL NOT NULL,
	tier            TEXT NOT NULL,
	top_buy_reasons TEXT NOT NULL,
	top_risks       TEXT NOT NULL,
	rationale       TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS follow_up_questions (
	id              TEXT PRIMARY KEY,
	business_id     TEXT NOT NULL,
	record_version  INTEGER NOT NULL,
	agent_run_id    TEXT NOT NULL,
	question        TEXT NOT NULL,
	category        TEXT NOT NULL,
	priority        TEXT NOT NULL,
	source_field    TEXT NOT NULL,
	response_status TEXT NOT NULL DEFAULT 'pending',
	seller_response TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS agent_executions (
	id           TEXT PRIMARY KEY,
	agent_run_id TEXT NOT NULL,
	business_id  TEXT NOT NULL,
	stage        TEXT NOT NULL,
	model        TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	error        TEXT,
	token_usage  TEXT NOT NULL,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_raw_listings_business ON raw_listings(business_id, scrape_timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_canonical_business_version ON canonical_records(business_id, version DESC);
CREATE INDEX IF NOT EXISTS idx_scoring_business ON scoring_records(business_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_scoring_tier ON scoring_records(tier, total_score DESC);
CREATE INDEX IF NOT EXISTS idx_questions_business ON follow_up_questions(business_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_executions_run ON agent_executions(agent_run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertRawListing(ctx context.Context, l *model.RawListing) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO raw_listings
			(id, business_id, marketplace, listing_url, scrape_timestamp, raw_html, raw_text,
			 listing_category, seller_country, asking_price_raw, revenue_raw, profit_raw, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.BusinessID, l.Marketplace, l.ListingURL, l.ScrapeTimestamp, l.RawHTML, l.RawText,
		l.ListingCategory, l.SellerCountry, l.AskingPriceRaw, l.RevenueRaw, l.ProfitRaw, l.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert raw listing for %s", l.BusinessID)
}

func (s *SQLiteStore) LatestRawListing(ctx context.Context, businessID string) (*model.RawListing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, business_id, marketplace, listing_url, scrape_timestamp, raw_html, raw_text,
			listing_category, seller_country, asking_price_raw, revenue_raw, profit_raw, created_at
		 FROM raw_listings WHERE business_id = ?
		 ORDER BY scrape_timestamp DESC LIMIT 1`,
		businessID,
	)

	var l model.RawListing
	var category, country, price, revenue, profit sql.NullString
	err := row.Scan(&l.ID, &l.BusinessID, &l.Marketplace, &l.ListingURL, &l.ScrapeTimestamp,
		&l.RawHTML, &l.RawText, &category, &country, &price, &revenue, &profit, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest raw listing for %s", businessID)
	}
	l.ListingCategory = category.String
	l.SellerCountry = country.String
	l.AskingPriceRaw = price.String
	l.RevenueRaw = revenue.String
	l.ProfitRaw = profit.String
	return &l, nil
}

func (s *SQLiteStore) LatestCanonicalMeta(ctx context.Context, businessID string) (int, string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT version, content_hash FROM canonical_records
		 WHERE business_id = ? ORDER BY version DESC LIMIT 1`,
		businessID,
	)
	var version int
	var hash string
	err := row.Scan(&version, &hash)
	if err == sql.ErrNoRows {
		return 0, "", ErrNotFound
	}
	if err != nil {
		return 0, "", eris.Wrapf(err, "sqlite: latest canonical meta for %s", businessID)
	}
	return version, hash, nil
}

func (s *SQLiteStore) InsertCanonicalRecord(ctx context.Context, rec *model.CanonicalRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal canonical record")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO canonical_records (id, business_id, version, agent_run_id, content_hash, record, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.BusinessID, rec.Version, rec.AgentRunID, rec.ContentHash, string(recordJSON), rec.CreatedAt,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrVersionConflict
		}
		return eris.Wrapf(err, "sqlite: insert canonical record %s v%d", rec.BusinessID, rec.Version)
	}
	return nil
}

func (s *SQLiteStore) GetCanonicalRecord(ctx context.Context, businessID string, version int) (*model.CanonicalRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record FROM canonical_records WHERE business_id = ? AND version = ?`,
		businessID, version,
	)
	var recordJSON string
	err := row.Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get canonical record %s v%d", businessID, version)
	}

	var rec model.CanonicalRecord
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal canonical record")
	}
	return &rec, nil
}

func (s *SQLiteStore) InsertScoringRecord(ctx context.Context, sr *model.ScoringRecord) error {
	if sr.ID == "" {
		sr.ID = uuid.New().String()
	}
	if sr.CreatedAt.IsZero() {
		sr.CreatedAt = time.Now().UTC()
	}
	components, err := json.Marshal(sr.Components)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal components")
	}
	reasons, err := json.Marshal(sr.TopBuyReasons)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal buy reasons")
	}
	risks, err := json.Marshal(sr.TopRisks)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal risks")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scoring_records
			(id, business_id, record_version, agent_run_id, components, total_score, tier,
			 top_buy_reasons, top_risks, rationale, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sr.ID, sr.BusinessID, sr.RecordVersion, sr.AgentRunID, string(components), sr.TotalScore,
		string(sr.Tier), string(reasons), string(risks), sr.Rationale, sr.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert scoring record %s v%d", sr.BusinessID, sr.RecordVersion)
}

func (s *SQLiteStore) LatestScoringRecord(ctx context.Context, businessID string) (*model.ScoringRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, business_id, record_version, agent_run_id, components, total_score, tier,
			top_buy_reasons, top_risks, rationale, created_at
		 FROM scoring_records WHERE business_id = ?
		 ORDER BY created_at DESC LIMIT 1`,
		businessID,
	)
	sr, err := scanScoringRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest scoring record for %s", businessID)
	}
	return sr, nil
}

func (s *SQLiteStore) ListScoringRecords(ctx context.Context, filter ScoreFilter) ([]model.ScoringRecord, error) {
	query := `SELECT id, business_id, record_version, agent_run_id, components, total_score, tier,
		top_buy_reasons, top_risks, rationale, created_at
	 FROM scoring_records WHERE 1=1`
	var args []any

	if filter.Tier != "" {
		query += ` AND tier = ?`
		args = append(args, string(filter.Tier))
	}
	if filter.MinScore > 0 {
		query += ` AND total_score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY total_score DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scoring records")
	}
	defer rows.Close()

	var records []model.ScoringRecord
	for rows.Next() {
		sr, err := scanScoringRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan scoring record")
		}
		records = append(records, *sr)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list scoring records iterate")
}

func (s *SQLiteStore) InsertFollowUpQuestion(ctx context.Context, q *model.FollowUpQuestion) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	if q.ResponseStatus == "" {
		q.ResponseStatus = model.ResponsePending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO follow_up_questions
			(id, business_id, record_version, agent_run_id, question, category, priority,
			 source_field, response_status, seller_response, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.BusinessID, q.RecordVersion, q.AgentRunID, q.Question, q.Category,
		string(q.Priority), q.SourceField, q.ResponseStatus, q.SellerResponse, q.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert follow-up question for %s", q.BusinessID)
}

func (s *SQLiteStore) ListFollowUpQuestions(ctx context.Context, businessID string) ([]model.FollowUpQuestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, business_id, record_version, agent_run_id, question, category, priority,
			source_field, response_status, seller_response, created_at
		 FROM follow_up_questions WHERE business_id = ?
		 ORDER BY created_at DESC`,
		businessID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list follow-up questions for %s", businessID)
	}
	defer rows.Close()

	var questions []model.FollowUpQuestion
	for rows.Next() {
		var q model.FollowUpQuestion
		var response sql.NullString
		err := rows.Scan(&q.ID, &q.BusinessID, &q.RecordVersion, &q.AgentRunID, &q.Question,
			&q.Category, &q.Priority, &q.SourceField, &q.ResponseStatus, &response, &q.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan follow-up question")
		}
		q.SellerResponse = response.String
		questions = append(questions, q)
	}
	return questions, eris.Wrap(rows.Err(), "sqlite: list follow-up questions iterate")
}

func (s *SQLiteStore) LogAgentExecution(ctx context.Context, e *model.AgentExecution) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	usage, err := json.Marshal(e.TokenUsage)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal token usage")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agent_executions
			(id, agent_run_id, business_id, stage, model, outcome, error, token_usage, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AgentRunID, e.BusinessID, e.Stage, e.Model, e.Outcome, e.Error,
		string(usage), e.StartedAt, e.FinishedAt,
	)
	return eris.Wrapf(err, "sqlite: log agent execution %s/%s", e.AgentRunID, e.Stage)
}

// helpers

// isSQLiteUniqueViolation detects UNIQUE constraint errors from the driver.
// modernc.org/sqlite surfaces them as plain errors carrying the constraint
// message, so string matching is the reliable check.
func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanScoringRecord(row scannable) (*model.ScoringRecord, error) {
	var sr model.ScoringRecord
	var components, reasons, risks string
	var rationale sql.NullString

	err := row.Scan(&sr.ID, &sr.BusinessID, &sr.RecordVersion, &sr.AgentRunID, &components,
		&sr.TotalScore, &sr.Tier, &reasons, &risks, &rationale, &sr.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(components), &sr.Components); err != nil {
		return nil, eris.Wrap(err, "unmarshal components")
	}
	if err := json.Unmarshal([]byte(reasons), &sr.TopBuyReasons); err != nil {
		return nil, eris.Wrap(err, "unmarshal buy reasons")
	}
	if err := json.Unmarshal([]byte(risks), &sr.TopRisks); err != nil {
		return nil, eris.Wrap(err, "unmarshal risks")
	}
	sr.Rationale = rationale.String
	return &sr, nil
}
