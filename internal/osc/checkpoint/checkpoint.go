// Package checkpoint persists chunker progress so an interrupted
// backfill can resume from its last committed primary-key range
// instead of restarting from MIN(pk). Grounded on block-spirit's
// checkpoint-table pattern: a small per-migration bookkeeping table
// that survives a crashed or killed process.
package checkpoint

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nethalo/dbsafe-osc/internal/osc/sqlhelper"
	"github.com/nethalo/dbsafe-osc/internal/oscerr"
)

// tableName returns the checkpoint table name for a given origin
// table, scoped so multiple migrations don't collide.
func tableName(origin string) string {
	base := origin
	for i := len(origin) - 1; i >= 0; i-- {
		if origin[i] == '.' {
			base = origin[i+1:]
			break
		}
	}
	return "dbosc_chkpnt_" + base
}

// Store reads and writes the checkpoint row for a single migration.
type Store struct {
	db     *sql.DB
	helper *sqlhelper.SQLHelper
	origin string
	table  string
}

// New builds a Store scoped to origin. When origin is schema-qualified
// the checkpoint table is created in that same schema; otherwise it is
// left unqualified.
func New(db *sql.DB, helper *sqlhelper.SQLHelper, origin string) *Store {
	schema := ""
	for i := len(origin) - 1; i >= 0; i-- {
		if origin[i] == '.' {
			schema = origin[:i]
			break
		}
	}
	table := tableName(origin)
	if schema != "" {
		table = schema + "." + table
	}
	return &Store{db: db, helper: helper, origin: origin, table: table}
}

// Ensure creates the checkpoint table if it doesn't already exist.
func (s *Store) Ensure(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INT NOT NULL PRIMARY KEY DEFAULT 1,
		low_watermark BIGINT NOT NULL,
		rows_copied BIGINT NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) %s`, s.helper.QuoteTable(s.table), s.helper.Annotation())

	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return oscerr.Wrap(s.origin, oscerr.PhaseChunk, oscerr.KindDriver, fmt.Errorf("creating checkpoint table: %w", err))
	}
	return nil
}

// Save upserts the current low watermark and cumulative row count.
func (s *Store) Save(ctx context.Context, lowWatermark, rowsCopied int64) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (id, low_watermark, rows_copied) VALUES (1, ?, ?)
		ON DUPLICATE KEY UPDATE low_watermark = VALUES(low_watermark), rows_copied = rows_copied + VALUES(rows_copied)`,
		s.helper.QuoteTable(s.table))

	if _, err := s.db.ExecContext(ctx, stmt, lowWatermark, rowsCopied); err != nil {
		return oscerr.Wrap(s.origin, oscerr.PhaseChunk, oscerr.KindDriver, fmt.Errorf("saving checkpoint: %w", err))
	}
	return nil
}

// Load returns the last saved low watermark. found is false if no
// checkpoint has been saved yet, meaning the backfill should start
// from MIN(pk) as usual.
func (s *Store) Load(ctx context.Context) (low int64, found bool, err error) {
	query := fmt.Sprintf("SELECT low_watermark FROM %s WHERE id = 1", s.helper.QuoteTable(s.table))

	row := s.db.QueryRowContext(ctx, query)
	if err := row.Scan(&low); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, oscerr.Wrap(s.origin, oscerr.PhaseChunk, oscerr.KindDriver, fmt.Errorf("loading checkpoint: %w", err))
	}
	return low, true, nil
}

// Drop removes the checkpoint table, called after a migration
// completes successfully.
func (s *Store) Drop(ctx context.Context) error {
	stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s %s", s.helper.QuoteTable(s.table), s.helper.Annotation())
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return oscerr.Wrap(s.origin, oscerr.PhaseChunk, oscerr.KindDriver, fmt.Errorf("dropping checkpoint table: %w", err))
	}
	return nil
}
