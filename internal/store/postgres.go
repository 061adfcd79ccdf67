package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/acquire-cli/internal/db"
	"github.com/sells-group/acquire-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_listing": `INSERT INTO raw_listings
		(id, business_id, marketplace, listing_url, scrape_timestamp, raw_html, raw_text,
		 listing_category, seller_country, asking_price_raw, revenue_raw, profit_raw, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
	"latest_canonical_meta": `SELECT version, content_hash FROM canonical_records
		WHERE business_id = $1 ORDER BY version DESC LIMIT 1`,
	"insert_canonical": `INSERT INTO canonical_records
		(id, business_id, version, agent_run_id, content_hash, record, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"get_canonical": `SELECT record FROM canonical_records WHERE business_id = $1 AND version = $2`,
	"insert_scoring": `INSERT INTO scoring_records
		(id, business_id, record_version, agent_run_id, components, total_score, tier,
		 top_buy_reasons, top_risks, rationale, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"insert_question": `INSERT INTO follow_up_questions
		(id, business_id, record_version, agent_run_id, question, category, priority,
		 source_field, response_status, seller_response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"log_execution": `INSERT INTO agent_executions
		(id, agent_run_id, business_id, stage, model, outcome, error, token_usage, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
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

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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

// NewPostgresFromPool wraps an existing pool. Tests use this with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., bulk ingest).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS raw_listings (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	business_id      TEXT NOT NULL,
	marketplace      TEXT NOT NULL,
	listing_url      TEXT NOT NULL,
	scrape_timestamp TIMESTAMPTZ NOT NULL,
	raw_html         TEXT NOT NULL,
	raw_text         TEXT NOT NULL,
	listing_category TEXT,
	seller_country   TEXT,
	asking_price_raw TEXT,
	revenue_raw      TEXT,
	profit_raw       TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS canonical_records (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	business_id  TEXT NOT NULL,
	version      INTEGER NOT NULL,
	agent_run_id TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	record       JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (business_id, version)
);

CREATE TABLE IF NOT EXISTS scoring_records (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	business_id     TEXT NOT NULL,
	record_version  INTEGER NOT NULL,
	agent_run_id    TEXT NOT NULL,
	components      JSONB NOT NULL,
	total_score     DOUBLE PRECISION NOT NULL,
	tier            TEXT NOT NULL,
	top_buy_reasons JSONB NOT NULL,
	top_risks       JSONB NOT NULL,
	rationale       TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS follow_up_questions (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	business_id     TEXT NOT NULL,
	record_version  INTEGER NOT NULL,
	agent_run_id    TEXT NOT NULL,
	question        TEXT NOT NULL,
	category        TEXT NOT NULL,
	priority        TEXT NOT NULL,
	source_field    TEXT NOT NULL,
	response_status TEXT NOT NULL DEFAULT 'pending',
	seller_response TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS agent_executions (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	agent_run_id TEXT NOT NULL,
	business_id  TEXT NOT NULL,
	stage        TEXT NOT NULL,
	model        TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	error        TEXT,
	token_usage  JSONB NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_raw_listings_business ON raw_listings(business_id, scrape_timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_canonical_business_version ON canonical_records(business_id, version DESC);
CREATE INDEX IF NOT EXISTS idx_scoring_business ON scoring_records(business_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_scoring_tier ON scoring_records(tier, total_score DESC);
CREATE INDEX IF NOT EXISTS idx_questions_business ON follow_up_questions(business_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_executions_run ON agent_executions(agent_run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

func (s *PostgresStore) InsertRawListing(ctx context.Context, l *model.RawListing) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, "insert_listing",
		l.ID, l.BusinessID, l.Marketplace, l.ListingURL, l.ScrapeTimestamp, l.RawHTML, l.RawText,
		nullable(l.ListingCategory), nullable(l.SellerCountry), nullable(l.AskingPriceRaw),
		nullable(l.RevenueRaw), nullable(l.ProfitRaw), l.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert raw listing for %s", l.BusinessID)
}

// BulkInsertRawListings loads an ingest batch through COPY plus an id-keyed
// upsert, so re-running the same file overwrites instead of duplicating.
func (s *PostgresStore) BulkInsertRawListings(ctx context.Context, listings []model.RawListing) (int64, error) {
	columns := []string{
		"id", "business_id", "marketplace", "listing_url", "scrape_timestamp",
		"raw_html", "raw_text", "listing_category", "seller_country",
		"asking_price_raw", "revenue_raw", "profit_raw", "created_at",
	}
	rows := make([][]any, 0, len(listings))
	for i := range listings {
		l := &listings[i]
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = time.Now().UTC()
		}
		if l.ScrapeTimestamp.IsZero() {
			l.ScrapeTimestamp = l.CreatedAt
		}
		rows = append(rows, []any{
			l.ID, l.BusinessID, l.Marketplace, l.ListingURL, l.ScrapeTimestamp,
			l.RawHTML, l.RawText, nullable(l.ListingCategory), nullable(l.SellerCountry),
			nullable(l.AskingPriceRaw), nullable(l.RevenueRaw), nullable(l.ProfitRaw), l.CreatedAt,
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "raw_listings",
		Columns:      columns,
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk insert raw listings")
	}
	return n, nil
}

func (s *PostgresStore) LatestRawListing(ctx context.Context, businessID string) (*model.RawListing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, business_id, marketplace, listing_url, scrape_timestamp, raw_html, raw_text,
			COALESCE(listing_category, ''), COALESCE(seller_country, ''),
			COALESCE(asking_price_raw, ''), COALESCE(revenue_raw, ''), COALESCE(profit_raw, ''),
			created_at
		 FROM raw_listings WHERE business_id = $1
		 ORDER BY scrape_timestamp DESC LIMIT 1`,
		businessID,
	)

	var l model.RawListing
	err := row.Scan(&l.ID, &l.BusinessID, &l.Marketplace, &l.ListingURL, &l.ScrapeTimestamp,
		&l.RawHTML, &l.RawText, &l.ListingCategory, &l.SellerCountry, &l.AskingPriceRaw,
		&l.RevenueRaw, &l.ProfitRaw, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest raw listing for %s", businessID)
	}
	return &l, nil
}

func (s *PostgresStore) LatestCanonicalMeta(ctx context.Context, businessID string) (int, string, error) {
	row := s.pool.QueryRow(ctx, "latest_canonical_meta", businessID)

	var version int
	var hash string
	err := row.Scan(&version, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", ErrNotFound
	}
	if err != nil {
		return 0, "", eris.Wrapf(err, "postgres: latest canonical meta for %s", businessID)
	}
	return version, hash, nil
}

func (s *PostgresStore) InsertCanonicalRecord(ctx context.Context, rec *model.CanonicalRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal canonical record")
	}

	_, err = s.pool.Exec(ctx, "insert_canonical",
		rec.ID, rec.BusinessID, rec.Version, rec.AgentRunID, rec.ContentHash, recordJSON, rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrVersionConflict
		}
		return eris.Wrapf(err, "postgres: insert canonical record %s v%d", rec.BusinessID, rec.Version)
	}
	return nil
}

func (s *PostgresStore) GetCanonicalRecord(ctx context.Context, businessID string, version int) (*model.CanonicalRecord, error) {
	row := s.pool.QueryRow(ctx, "get_canonical", businessID, version)

	var recordJSON []byte
	err := row.Scan(&recordJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get canonical record %s v%d", businessID, version)
	}

	var rec model.CanonicalRecord
	if err := json.Unmarshal(recordJSON, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal canonical record")
	}
	return &rec, nil
}

func (s *PostgresStore) InsertScoringRecord(ctx context.Context, sr *model.ScoringRecord) error {
	if sr.ID == "" {
		sr.ID = uuid.New().String()
	}
	if sr.CreatedAt.IsZero() {
		sr.CreatedAt = time.Now().UTC()
	}
	components, err := json.Marshal(sr.Components)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal components")
	}
	reasons, err := json.Marshal(sr.TopBuyReasons)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal buy reasons")
	}
	risks, err := json.Marshal(sr.TopRisks)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal risks")
	}

	_, err = s.pool.Exec(ctx, "insert_scoring",
		sr.ID, sr.BusinessID, sr.RecordVersion, sr.AgentRunID, components, sr.TotalScore,
		string(sr.Tier), reasons, risks, nullable(sr.Rationale), sr.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert scoring record %s v%d", sr.BusinessID, sr.RecordVersion)
}

func (s *PostgresStore) LatestScoringRecord(ctx context.Context, businessID string) (*model.ScoringRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, business_id, record_version, agent_run_id, components, total_score, tier,
			top_buy_reasons, top_risks, COALESCE(rationale, ''), created_at
		 FROM scoring_records WHERE business_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		businessID,
	)
	sr, err := scanPgScoringRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest scoring record for %s", businessID)
	}
	return sr, nil
}

func (s *PostgresStore) ListScoringRecords(ctx context.Context, filter ScoreFilter) ([]model.ScoringRecord, error) {
	query := `SELECT id, business_id, record_version, agent_run_id, components, total_score, tier,
		top_buy_reasons, top_risks, COALESCE(rationale, ''), created_at
	 FROM scoring_records WHERE 1=1`
	var args []any
	argNum := 1

	if filter.Tier != "" {
		query += fmt.Sprintf(` AND tier = $%d`, argNum)
		args = append(args, string(filter.Tier))
		argNum++
	}
	if filter.MinScore > 0 {
		query += fmt.Sprintf(` AND total_score >= $%d`, argNum)
		args = append(args, filter.MinScore)
		argNum++
	}
	query += ` ORDER BY total_score DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argNum)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scoring records")
	}
	defer rows.Close()

	var records []model.ScoringRecord
	for rows.Next() {
		sr, err := scanPgScoringRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan scoring record")
		}
		records = append(records, *sr)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list scoring records iterate")
}

func (s *PostgresStore) InsertFollowUpQuestion(ctx context.Context, q *model.FollowUpQuestion) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	if q.ResponseStatus == "" {
		q.ResponseStatus = model.ResponsePending
	}
	_, err := s.pool.Exec(ctx, "insert_question",
		q.ID, q.BusinessID, q.RecordVersion, q.AgentRunID, q.Question, q.Category,
		string(q.Priority), q.SourceField, q.ResponseStatus, nullable(q.SellerResponse), q.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert follow-up question for %s", q.BusinessID)
}

func (s *PostgresStore) ListFollowUpQuestions(ctx context.Context, businessID string) ([]model.FollowUpQuestion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, business_id, record_version, agent_run_id, question, category, priority,
			source_field, response_status, COALESCE(seller_response, ''), created_at
		 FROM follow_up_questions WHERE business_id = $1
		 ORDER BY created_at DESC`,
		businessID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list follow-up questions for %s", businessID)
	}
	defer rows.Close()

	var questions []model.FollowUpQuestion
	for rows.Next() {
		var q model.FollowUpQuestion
		err := rows.Scan(&q.ID, &q.BusinessID, &q.RecordVersion, &q.AgentRunID, &q.Question,
			&q.Category, &q.Priority, &q.SourceField, &q.ResponseStatus, &q.SellerResponse, &q.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan follow-up question")
		}
		questions = append(questions, q)
	}
	return questions, eris.Wrap(rows.Err(), "postgres: list follow-up questions iterate")
}

func (s *PostgresStore) LogAgentExecution(ctx context.Context, e *model.AgentExecution) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	usage, err := json.Marshal(e.TokenUsage)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal token usage")
	}
	_, err = s.pool.Exec(ctx, "log_execution",
		e.ID, e.AgentRunID, e.BusinessID, e.Stage, e.Model, e.Outcome, nullable(e.Error),
		usage, e.StartedAt, e.FinishedAt,
	)
	return eris.Wrapf(err, "postgres: log agent execution %s/%s", e.AgentRunID, e.Stage)
}

// helpers

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// nullable maps empty strings to NULL so optional text columns stay NULL
// instead of accumulating empty strings.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanPgScoringRecord(row pgx.Row) (*model.ScoringRecord, error) {
	var sr model.ScoringRecord
	var components, reasons, risks []byte

	err := row.Scan(&sr.ID, &sr.BusinessID, &sr.RecordVersion, &sr.AgentRunID, &components,
		&sr.TotalScore, &sr.Tier, &reasons, &risks, &sr.Rationale, &sr.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(components, &sr.Components); err != nil {
		return nil, eris.Wrap(err, "unmarshal components")
	}
	if err := json.Unmarshal(reasons, &sr.TopBuyReasons); err != nil {
		return nil, eris.Wrap(err, "unmarshal buy reasons")
	}
	if err := json.Unmarshal(risks, &sr.TopRisks); err != nil {
		return nil, eris.Wrap(err, "unmarshal risks")
	}
	return &sr, nil
}
