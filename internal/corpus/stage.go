package corpus

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const captureIndexesSQL = `
SELECT i.relname, pg_get_indexdef(i.oid)
FROM pg_index x
JOIN pg_class i ON i.oid = x.indexrelid
JOIN pg_class t ON t.oid = x.indrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
WHERE n.nspname = $1 AND t.relname = $2 AND NOT x.indisprimary
ORDER BY i.relname`

// Stage rebuilds the shadow tables with every version except the target
// one. It runs in a single transaction, so a failure leaves nothing behind
// and the next attempt starts from the same clean state.
//
// Secondary indexes of the live chunk table are captured into the returned
// Plan and left off the shadow chunk table until Swap.
func (s *Store) Stage(ctx context.Context, version int) (_ *Plan, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, storeErr("stage", fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	defs, err := captureIndexDefs(ctx, tx, s.tables.Schema, s.tables.Chunks)
	if err != nil {
		return nil, storeErr("stage", err)
	}

	t := s.tables
	steps := []struct {
		name string
		sql  string
		args []any
	}{
		{"drop shadow chunks", `DROP TABLE IF EXISTS ` + t.stagingChunks(), nil},
		{"drop shadow pages", `DROP TABLE IF EXISTS ` + t.stagingPages(), nil},
		{"create shadow pages", `CREATE TABLE ` + t.stagingPages() + ` (LIKE ` + t.livePages() + ` INCLUDING ALL)`, nil},
		{"create shadow chunks", `CREATE TABLE ` + t.stagingChunks() + ` (LIKE ` + t.liveChunks() + ` INCLUDING ALL EXCLUDING INDEXES)`, nil},
		{"add shadow chunks primary key", `ALTER TABLE ` + t.stagingChunks() + ` ADD PRIMARY KEY (id)`, nil},
		{"copy pages", `INSERT INTO ` + t.stagingPages() + ` OVERRIDING SYSTEM VALUE
			SELECT * FROM ` + t.livePages() + ` WHERE version <> $1`, []any{version}},
		{"copy chunks", `INSERT INTO ` + t.stagingChunks() + ` OVERRIDING SYSTEM VALUE
			SELECT c.* FROM ` + t.liveChunks() + ` c
			JOIN ` + t.livePages() + ` p ON p.id = c.page_id
			WHERE p.version <> $1`, []any{version}},
		{"link shadow chunks to pages", `ALTER TABLE ` + t.stagingChunks() + `
			ADD FOREIGN KEY (page_id) REFERENCES ` + t.stagingPages() + ` (id) ON DELETE CASCADE`, nil},
		{"reset pages sequence", resetSequenceSQL(t.stagingPages()), nil},
		{"reset chunks sequence", resetSequenceSQL(t.stagingChunks()), nil},
	}

	for _, step := range steps {
		tag, err := tx.Exec(ctx, step.sql, step.args...)
		if err != nil {
			return nil, storeErr("stage", fmt.Errorf("%s: %w", step.name, err))
		}
		if tag.Insert() {
			s.logger.Info("staged rows", "step", step.name, "rows", tag.RowsAffected(), "version_excluded", version)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("stage", fmt.Errorf("commit: %w", err))
	}

	s.logger.Info("shadow tables ready", "version", version, "deferred_indexes", len(defs))
	return &Plan{Version: version, IndexDefs: defs}, nil
}

// resetSequenceSQL moves the identity sequence past the largest copied id.
func resetSequenceSQL(table string) string {
	return `SELECT setval(pg_get_serial_sequence('` + table + `', 'id'), COALESCE(MAX(id), 0) + 1, false) FROM ` + table
}

func captureIndexDefs(ctx context.Context, tx pgx.Tx, schema, table string) ([]IndexDef, error) {
	rows, err := tx.Query(ctx, captureIndexesSQL, schema, table)
	if err != nil {
		return nil, fmt.Errorf("capture indexes: %w", err)
	}
	defer rows.Close()

	var defs []IndexDef
	for rows.Next() {
		var d IndexDef
		if err := rows.Scan(&d.Name, &d.Definition); err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("capture indexes: %w", err)
	}
	return defs, nil
}
