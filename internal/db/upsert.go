package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes one idempotent batch load: which table, which
// columns, and which key decides whether a row replaces an earlier one.
type UpsertConfig struct {
	// Table is the target, optionally schema-qualified ("analytics.scoring_records").
	Table string

	// Columns are the columns every row supplies, in row order.
	Columns []string

	// ConflictKeys are the columns of the unique constraint that makes a
	// reload overwrite instead of duplicate.
	ConflictKeys []string

	// UpdateCols limits which columns a conflicting row overwrites. Nil
	// means every non-key column.
	UpdateCols []string
}

func (cfg UpsertConfig) validate() error {
	if len(cfg.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	return nil
}

// overwriteCols resolves the columns a conflicting row rewrites,
// defaulting to everything outside the conflict key.
func (cfg UpsertConfig) overwriteCols() []string {
	if cfg.UpdateCols != nil {
		return cfg.UpdateCols
	}
	keys := make(map[string]bool, len(cfg.ConflictKeys))
	for _, k := range cfg.ConflictKeys {
		keys[k] = true
	}
	cols := make([]string, 0, len(cfg.Columns))
	for _, c := range cfg.Columns {
		if !keys[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// stagingTable derives a session-local temp table name from the target.
func (cfg UpsertConfig) stagingTable() string {
	return "_stage_" + strings.ReplaceAll(cfg.Table, ".", "_")
}

func (cfg UpsertConfig) createStagingSQL() string {
	var b strings.Builder
	b.WriteString("CREATE TEMP TABLE ")
	b.WriteString(pgx.Identifier{cfg.stagingTable()}.Sanitize())
	b.WriteString(" (LIKE ")
	b.WriteString(tableIdent(cfg.Table))
	b.WriteString(" INCLUDING DEFAULTS) ON COMMIT DROP")
	return b.String()
}

func (cfg UpsertConfig) mergeSQL() string {
	cols := columnList(cfg.Columns)

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(cfg.Table))
	b.WriteString(" (")
	b.WriteString(cols)
	b.WriteString(") SELECT ")
	b.WriteString(cols)
	b.WriteString(" FROM ")
	b.WriteString(pgx.Identifier{cfg.stagingTable()}.Sanitize())
	b.WriteString(" ON CONFLICT (")
	b.WriteString(columnList(cfg.ConflictKeys))
	b.WriteString(") DO UPDATE SET ")
	for i, col := range cfg.overwriteCols() {
		if i > 0 {
			b.WriteString(", ")
		}
		ident := pgx.Identifier{col}.Sanitize()
		b.WriteString(ident)
		b.WriteString(" = EXCLUDED.")
		b.WriteString(ident)
	}
	return b.String()
}

// BulkUpsert loads rows through a temp staging table and merges them into the
// target with INSERT ... ON CONFLICT, all in one transaction. COPY gives the
// batch a single round trip; the merge makes reloading the same batch a no-op
// beyond refreshed column values.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, cfg.createStagingSQL()); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create staging table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{cfg.stagingTable()}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into staging table for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, cfg.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}

	return tag.RowsAffected(), nil
}

// tableIdent quotes a table name, keeping any schema qualifier intact.
func tableIdent(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// columnList renders column names as a quoted, comma-separated list.
func columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
