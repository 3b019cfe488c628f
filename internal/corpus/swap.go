package corpus

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const (
	markedIndexesSQL = `
SELECT indexname FROM pg_indexes
WHERE schemaname = $1 AND tablename = ANY($2) AND strpos(indexname, $3) > 0
ORDER BY indexname`

	markedConstraintsSQL = `
SELECT t.relname, c.conname
FROM pg_constraint c
JOIN pg_class t ON t.oid = c.conrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
WHERE n.nspname = $1 AND t.relname = ANY($2) AND strpos(c.conname, $3) > 0
ORDER BY t.relname, c.conname`

	markedSequencesSQL = `
SELECT DISTINCT s.relname
FROM pg_class s
JOIN pg_depend d ON d.objid = s.oid
JOIN pg_class t ON t.oid = d.refobjid
JOIN pg_namespace n ON n.oid = t.relnamespace
WHERE s.relkind = 'S' AND n.nspname = $1 AND t.relname = ANY($2) AND strpos(s.relname, $3) > 0
ORDER BY s.relname`
)

// Swap promotes the shadow tables to the live names. Postgres DDL is
// transactional, so the drop, rename, index rebuild and name cleanup commit
// together: readers see either the old tables or the new ones, blocking on
// the exclusive locks meanwhile instead of finding no table at all.
func (s *Store) Swap(ctx context.Context, plan *Plan) (err error) {
	if plan == nil {
		return storeErr("swap", errors.New("no staging plan"))
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return storeErr("swap", fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	t := s.tables
	steps := []string{
		`DROP TABLE ` + t.liveChunks(),
		`DROP TABLE ` + t.livePages(),
		`ALTER TABLE ` + t.stagingChunks() + ` RENAME TO ` + quote(t.Chunks),
		`ALTER TABLE ` + t.stagingPages() + ` RENAME TO ` + quote(t.Pages),
	}
	for _, def := range plan.IndexDefs {
		steps = append(steps, def.Definition)
	}
	for _, q := range steps {
		if _, err := tx.Exec(ctx, q); err != nil {
			return storeErr("swap", fmt.Errorf("%s: %w", q, err))
		}
	}

	if err := s.normaliseNames(ctx, tx); err != nil {
		return storeErr("swap", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("swap", fmt.Errorf("commit: %w", err))
	}

	s.logger.Info("corpus swapped", "version", plan.Version, "indexes_rebuilt", len(plan.IndexDefs))
	return nil
}

// normaliseNames strips the staging marker from indexes, constraints and
// sequences that Postgres named after the shadow tables. Index renames run
// first because renaming an index also renames the constraint it backs.
func (s *Store) normaliseNames(ctx context.Context, tx pgx.Tx) error {
	tables := []string{s.tables.Pages, s.tables.Chunks}
	marker := StagingMarker + "_"
	schema := s.tables.Schema

	indexes, err := collectStrings(ctx, tx, markedIndexesSQL, schema, tables, marker)
	if err != nil {
		return fmt.Errorf("list indexes: %w", err)
	}
	for _, name := range indexes {
		q := `ALTER INDEX ` + s.tables.ident(name) + ` RENAME TO ` + quote(unstaged(name))
		if _, err := tx.Exec(ctx, q); err != nil {
			return fmt.Errorf("rename index %s: %w", name, err)
		}
	}

	rows, err := tx.Query(ctx, markedConstraintsSQL, schema, tables, marker)
	if err != nil {
		return fmt.Errorf("list constraints: %w", err)
	}
	type constraint struct{ table, name string }
	var constraints []constraint
	for rows.Next() {
		var c constraint
		if err := rows.Scan(&c.table, &c.name); err != nil {
			rows.Close()
			return fmt.Errorf("scan constraint: %w", err)
		}
		constraints = append(constraints, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list constraints: %w", err)
	}
	for _, c := range constraints {
		q := `ALTER TABLE ` + s.tables.ident(c.table) + ` RENAME CONSTRAINT ` + quote(c.name) + ` TO ` + quote(unstaged(c.name))
		if _, err := tx.Exec(ctx, q); err != nil {
			return fmt.Errorf("rename constraint %s: %w", c.name, err)
		}
	}

	sequences, err := collectStrings(ctx, tx, markedSequencesSQL, schema, tables, marker)
	if err != nil {
		return fmt.Errorf("list sequences: %w", err)
	}
	for _, name := range sequences {
		q := `ALTER SEQUENCE ` + s.tables.ident(name) + ` RENAME TO ` + quote(unstaged(name))
		if _, err := tx.Exec(ctx, q); err != nil {
			return fmt.Errorf("rename sequence %s: %w", name, err)
		}
	}

	s.logger.Debug("names normalised", "indexes", len(indexes), "constraints", len(constraints), "sequences", len(sequences))
	return nil
}

// collectStrings drains a single-column result before the caller issues
// further statements on the same connection.
func collectStrings(ctx context.Context, tx pgx.Tx, sql string, args ...any) ([]string, error) {
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
