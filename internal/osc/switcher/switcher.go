// Package switcher performs the final cutover from an origin table to
// its backfilled shadow copy, either via a single atomic RENAME TABLE
// (AtomicSwitcher) or, on servers/flavors that can't guarantee that,
// via LOCK TABLES plus sequential renames (LockedSwitcher).
package switcher

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"

	"github.com/nethalo/dbsafe-osc/internal/osc/sqlhelper"
	"github.com/nethalo/dbsafe-osc/internal/oscerr"
)

// erLockWaitTimeout is MySQL error 1205, ER_LOCK_WAIT_TIMEOUT — the
// only error this package retries on. Everything else is fatal.
const erLockWaitTimeout = 1205

// RetryPolicy bounds how long a switcher retries a statement that
// failed with a lock-wait timeout before giving up.
type RetryPolicy struct {
	RetrySleep time.Duration
	MaxRetries int
}

// DefaultRetryPolicy matches the defaults dbsafe-osc ships with.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{RetrySleep: 10 * time.Millisecond, MaxRetries: 600}
}

// Switcher performs the cutover from origin to shadow.
type Switcher interface {
	Run(ctx context.Context) error
}

// archiveName builds the name the origin table is renamed to before
// the shadow table takes its place, so it can be inspected or dropped
// after the fact instead of being destroyed in the same statement.
func archiveName(origin string, now time.Time) string {
	base := origin
	for i := len(origin) - 1; i >= 0; i-- {
		if origin[i] == '.' {
			base = origin[i+1:]
			break
		}
	}
	return fmt.Sprintf("dbosc_archive_%s_%s", now.UTC().Format("20060102150405"), base)
}

// qualifiedArchive places archive in origin's schema, so the rename
// never moves the table into the connection's default database.
func qualifiedArchive(origin, archive string) string {
	for i := len(origin) - 1; i >= 0; i-- {
		if origin[i] == '.' {
			return origin[:i+1] + archive
		}
	}
	return archive
}

// withRetry runs op repeatedly while it keeps failing with
// ER_LOCK_WAIT_TIMEOUT, up to retry.MaxRetries attempts, sleeping
// retry.RetrySleep (via an exponential-free constant backoff) between
// attempts. Any other error returns immediately.
func withRetry(ctx context.Context, retry RetryPolicy, op func() error) error {
	attempts := 0
	bo := backoff.NewConstantBackOff(retry.RetrySleep)

	for {
		err := op()
		if err == nil {
			return nil
		}

		var mysqlErr *mysql.MySQLError
		if !errors.As(err, &mysqlErr) || mysqlErr.Number != erLockWaitTimeout {
			return err
		}

		attempts++
		if attempts >= retry.MaxRetries {
			return fmt.Errorf("exceeded %d retries on lock wait timeout: %w", retry.MaxRetries, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
}

// AtomicSwitcher swaps origin and shadow with a single RENAME TABLE
// statement covering both moves, which MySQL/Percona/Aurora execute
// as one atomic data-dictionary operation — no window where neither
// name (or both names) resolve to a table.
type AtomicSwitcher struct {
	db      *sql.DB
	helper  *sqlhelper.SQLHelper
	origin  string
	shadow  string
	archive string
	retry   RetryPolicy
	now     func() time.Time
}

// NewAtomicSwitcher builds an AtomicSwitcher. now defaults to
// time.Now when nil; tests supply a fixed clock for deterministic
// archive names.
func NewAtomicSwitcher(db *sql.DB, helper *sqlhelper.SQLHelper, origin, shadow string, retry RetryPolicy, now func() time.Time) *AtomicSwitcher {
	if now == nil {
		now = time.Now
	}
	return &AtomicSwitcher{db: db, helper: helper, origin: origin, shadow: shadow, retry: retry, now: now}
}

// ArchiveName returns the name origin will be renamed to. Exposed so
// callers can report it before Run executes.
func (s *AtomicSwitcher) ArchiveName() string {
	if s.archive == "" {
		s.archive = archiveName(s.origin, s.now())
	}
	return s.archive
}

func (s *AtomicSwitcher) Run(ctx context.Context) error {
	archive := qualifiedArchive(s.origin, s.ArchiveName())
	stmt := fmt.Sprintf("RENAME TABLE %s TO %s, %s TO %s %s",
		s.helper.QuoteTable(s.origin), s.helper.QuoteTable(archive),
		s.helper.QuoteTable(s.shadow), s.helper.QuoteTable(s.origin),
		s.helper.Annotation())

	err := withRetry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, stmt)
		return err
	})
	if err != nil {
		return classifyError(s.origin, err)
	}
	return nil
}

// LockedSwitcher performs the cutover under LOCK TABLES and two
// sequential renames, for flavors (MariaDB) that don't guarantee a
// multi-table RENAME is atomic. If the second rename fails after the
// first succeeded, it attempts to rename the archive back to origin
// before surfacing the error, so the table is never left missing.
type LockedSwitcher struct {
	db      *sql.DB
	helper  *sqlhelper.SQLHelper
	origin  string
	shadow  string
	archive string
	retry   RetryPolicy
	now     func() time.Time
}

// NewLockedSwitcher builds a LockedSwitcher.
func NewLockedSwitcher(db *sql.DB, helper *sqlhelper.SQLHelper, origin, shadow string, retry RetryPolicy, now func() time.Time) *LockedSwitcher {
	if now == nil {
		now = time.Now
	}
	return &LockedSwitcher{db: db, helper: helper, origin: origin, shadow: shadow, retry: retry, now: now}
}

// ArchiveName returns the name origin will be renamed to.
func (s *LockedSwitcher) ArchiveName() string {
	if s.archive == "" {
		s.archive = archiveName(s.origin, s.now())
	}
	return s.archive
}

func (s *LockedSwitcher) Run(ctx context.Context) error {
	archive := qualifiedArchive(s.origin, s.ArchiveName())
	origin := s.helper.QuoteTable(s.origin)
	shadow := s.helper.QuoteTable(s.shadow)
	archiveQ := s.helper.QuoteTable(archive)

	lockStmt := fmt.Sprintf("LOCK TABLES %s WRITE, %s WRITE", origin, shadow)
	if _, err := s.db.ExecContext(ctx, lockStmt); err != nil {
		return classifyError(s.origin, fmt.Errorf("acquiring lock tables: %w", err))
	}
	defer func() {
		_, _ = s.db.ExecContext(ctx, "UNLOCK TABLES")
	}()

	archiveStmt := fmt.Sprintf("ALTER TABLE %s RENAME TO %s %s", origin, archiveQ, s.helper.Annotation())
	err := withRetry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, archiveStmt)
		return err
	})
	if err != nil {
		return classifyError(s.origin, fmt.Errorf("renaming origin to archive: %w", err))
	}

	promoteStmt := fmt.Sprintf("ALTER TABLE %s RENAME TO %s %s", shadow, origin, s.helper.Annotation())
	err = withRetry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, promoteStmt)
		return err
	})
	if err != nil {
		// Best-effort recovery: put the origin name back on the
		// original table rather than leaving it stuck under archive.
		recoverStmt := fmt.Sprintf("ALTER TABLE %s RENAME TO %s %s", archiveQ, origin, s.helper.Annotation())
		if _, recoverErr := s.db.ExecContext(ctx, recoverStmt); recoverErr != nil {
			return classifyError(s.origin, fmt.Errorf(
				"renaming shadow to origin failed (%v), and recovery rename also failed (%v)", err, recoverErr))
		}
		return classifyError(s.origin, fmt.Errorf("renaming shadow to origin: %w (recovered origin table)", err))
	}

	return nil
}

func classifyError(table string, err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == erLockWaitTimeout {
		return oscerr.Wrap(table, oscerr.PhaseSwitch, oscerr.KindContention, err)
	}
	return oscerr.Wrap(table, oscerr.PhaseSwitch, oscerr.KindDriver, err)
}
