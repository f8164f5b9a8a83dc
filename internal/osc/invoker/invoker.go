// Package invoker orchestrates a single online schema change end to
// end: create the shadow table, install mirroring triggers, backfill
// existing rows, and cut over — tearing down triggers no matter how
// the migration callback or the backfill ends.
package invoker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/nethalo/dbsafe-osc/internal/mysql"
	"github.com/nethalo/dbsafe-osc/internal/osc/checkpoint"
	"github.com/nethalo/dbsafe-osc/internal/osc/chunker"
	"github.com/nethalo/dbsafe-osc/internal/osc/entangler"
	"github.com/nethalo/dbsafe-osc/internal/osc/intersection"
	"github.com/nethalo/dbsafe-osc/internal/osc/sqlhelper"
	"github.com/nethalo/dbsafe-osc/internal/osc/switcher"
	"github.com/nethalo/dbsafe-osc/internal/oscerr"
	"github.com/nethalo/dbsafe-osc/internal/osclog"
	"github.com/nethalo/dbsafe-osc/internal/oscsummary"
)

// erTableExists is MySQL error 1050, ER_TABLE_EXISTS_ERROR — the
// signal that a shadow table collided with one already in the catalog.
const erTableExists = 1050

// Migration is the caller-supplied callback that mutates the shadow
// table — typically running the ALTER TABLE the operator actually
// wants applied — before the backfill and cutover happen.
type Migration func(ctx context.Context, shadowTable string) error

// Option configures an Invoker run. Zero values fall back to the
// package defaults matching `dbsafe-osc config init`.
type Option struct {
	Stride               int
	Throttle             time.Duration
	RetrySleepTime       time.Duration
	MaxRetries           int
	TemporaryTableSuffix string
	// AtomicSwitch overrides flavor/version auto-detection when set.
	AtomicSwitch *bool
	// Entangler, when explicitly set to false, bypasses the shadow
	// table/trigger/chunker machinery entirely and runs the migration
	// directly against origin — for changes dbsafe's own `plan`
	// classifier already knows are INSTANT or LOCK=NONE INPLACE.
	Entangler *bool
	// Checkpoint enables resumable backfill via internal/osc/checkpoint.
	Checkpoint bool
}

func (o Option) stride() int {
	if o.Stride > 0 {
		return o.Stride
	}
	return chunker.DefaultConfig().Stride
}

func (o Option) throttle() time.Duration {
	if o.Throttle > 0 {
		return o.Throttle
	}
	return chunker.DefaultConfig().Throttle
}

func (o Option) retryPolicy() switcher.RetryPolicy {
	rp := switcher.DefaultRetryPolicy()
	if o.RetrySleepTime > 0 {
		rp.RetrySleep = o.RetrySleepTime
	}
	if o.MaxRetries > 0 {
		rp.MaxRetries = o.MaxRetries
	}
	return rp
}

func (o Option) tempSuffix() string {
	if o.TemporaryTableSuffix != "" {
		return o.TemporaryTableSuffix
	}
	return "_new"
}

func (o Option) useEntangler() bool {
	return o.Entangler == nil || *o.Entangler
}

// Invoker runs a single migration against a single origin table.
type Invoker struct {
	db     *sql.DB
	origin string
	opt    Option
	logger *logrus.Logger
}

// New builds an Invoker. origin should be schema-qualified
// ("mydb.users") so the shadow table and triggers land in the same
// schema. A nil logger discards all log output.
func New(db *sql.DB, origin string, opt Option, logger *logrus.Logger) *Invoker {
	if logger == nil {
		logger = osclog.Discard()
	}
	return &Invoker{db: db, origin: origin, opt: opt, logger: logger}
}

// SetLogger replaces the Invoker's logger after construction.
func (i *Invoker) SetLogger(l *logrus.Logger) {
	if l != nil {
		i.logger = l
	}
}

// TemporaryTable creates the shadow table — origin's bare name plus
// the configured suffix, in origin's schema — via CREATE TABLE S LIKE
// O, and returns its name. It fails with a precondition error if S
// already exists (at most one in-flight migration per origin table).
func (i *Invoker) TemporaryTable(ctx context.Context) (string, error) {
	helper, err := sqlhelper.New(i.db)
	if err != nil {
		return "", oscerr.Wrap(i.origin, oscerr.PhaseShadowCreate, oscerr.KindDriver, err)
	}
	return i.createShadowTable(ctx, helper)
}

func (i *Invoker) shadowTable() string {
	schema, table := splitTable(i.origin)
	shadow := table + i.opt.tempSuffix()
	if schema == "" {
		return shadow
	}
	return schema + "." + shadow
}

func splitTable(name string) (schema, table string) {
	for idx := len(name) - 1; idx >= 0; idx-- {
		if name[idx] == '.' {
			return name[:idx], name[idx+1:]
		}
	}
	return "", name
}

// Execute runs the full migration:
//
//  1. create the shadow table as a structural copy of origin
//  2. adjust session lock-wait timeouts
//  3. run migration against the shadow table
//  4. install mirroring triggers on origin (unless bypassed)
//  5. backfill existing rows from origin into shadow
//  6. determine atomic-switch mode
//  7. cut over from origin to shadow
//
// If opt.Entangler is explicitly false, shadow-table creation and
// steps 2 onward are skipped and migration is run directly against
// origin.
func (i *Invoker) Execute(ctx context.Context, migration Migration) (*oscsummary.RunSummary, error) {
	start := time.Now()
	helper, err := sqlhelper.New(i.db)
	if err != nil {
		return nil, oscerr.Wrap(i.origin, oscerr.PhaseShadowCreate, oscerr.KindDriver, err)
	}

	if !i.opt.useEntangler() {
		i.logger.WithField("table", i.origin).Info("entangler bypassed, running migration directly against origin")
		if err := migration(ctx, i.origin); err != nil {
			return nil, oscerr.Wrap(i.origin, oscerr.PhaseMigrateCallback, oscerr.KindDriver, err)
		}
		return &oscsummary.RunSummary{Origin: i.origin, Bypassed: true, Duration: time.Since(start)}, nil
	}

	i.logger.WithField("origin", i.origin).Info("creating shadow table")
	shadow, err := i.createShadowTable(ctx, helper)
	if err != nil {
		return nil, err
	}
	i.logger.WithFields(logrus.Fields{"origin": i.origin, "shadow": shadow}).Info("shadow table created")

	if restore := i.tightenLockWaits(); restore != nil {
		defer restore()
	}

	if err := migration(ctx, shadow); err != nil {
		return nil, oscerr.Wrap(i.origin, oscerr.PhaseMigrateCallback, oscerr.KindDriver, err)
	}

	pk, err := helper.ExtractPrimaryKey(i.origin)
	if err != nil {
		return nil, err
	}

	originCols, err := helper.Columns(i.origin)
	if err != nil {
		return nil, err
	}
	shadowCols, err := helper.Columns(shadow)
	if err != nil {
		return nil, err
	}
	cols := intersection.Columns(originCols, shadowCols)

	ent := entangler.New(i.db, helper, i.origin, shadow, pk, cols, i.logger)

	summary := &oscsummary.RunSummary{Origin: i.origin, Shadow: shadow, TriggersUsed: true}

	runErr := ent.Run(ctx, func(ctx context.Context) error {
		ck := chunker.New(i.db, helper, i.origin, shadow, pk, cols, chunker.Config{
			Stride:   i.opt.stride(),
			Throttle: i.opt.throttle(),
		})

		var cp *checkpoint.Store
		if i.opt.Checkpoint {
			cp = checkpoint.New(i.db, helper, i.origin)
			if err := cp.Ensure(ctx); err != nil {
				return err
			}
		}
		ck.OnProgress(func(p chunker.Progress) {
			summary.RowsCopied += p.RowsCopied
			if cp != nil {
				if err := cp.Save(ctx, p.High, p.RowsCopied); err != nil {
					i.logger.WithError(err).Warn("checkpoint: failed to save progress")
				}
			}
		})

		i.logger.WithField("table", i.origin).Info("backfilling rows")
		if err := ck.Run(ctx); err != nil {
			return err
		}

		if cp != nil {
			if err := cp.Drop(ctx); err != nil {
				i.logger.WithError(err).Warn("checkpoint: failed to drop checkpoint table")
			}
		}

		sw, archive, method := i.selectSwitcher(helper)
		summary.Archive, summary.SwitchMethod = archive, method
		return i.runCutover(ctx, sw)
	})
	if runErr != nil {
		return nil, runErr
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

// Resume continues a migration whose backfill was interrupted
// mid-chunk (process killed, host rebooted). It requires that
// opt.Checkpoint was set on the original run and that the shadow
// table and its checkpoint row still exist: the shadow table's
// structure is assumed to already carry the migration (the callback
// already ran on a previous attempt), so Resume does not invoke
// migration again. It reinstalls mirroring triggers — a crash doesn't
// run the deferred teardown — before continuing the backfill from the
// last saved low watermark.
func (i *Invoker) Resume(ctx context.Context) (*oscsummary.RunSummary, error) {
	start := time.Now()
	if !i.opt.Checkpoint {
		return nil, oscerr.Wrap(i.origin, oscerr.PhaseChunk, oscerr.KindPrecondition,
			fmt.Errorf("resume requires the original run to have used Option.Checkpoint"))
	}

	helper, err := sqlhelper.New(i.db)
	if err != nil {
		return nil, oscerr.Wrap(i.origin, oscerr.PhaseShadowCreate, oscerr.KindDriver, err)
	}

	shadow := i.shadowTable()
	cp := checkpoint.New(i.db, helper, i.origin)
	low, found, err := cp.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, oscerr.Wrap(i.origin, oscerr.PhaseChunk, oscerr.KindPrecondition,
			fmt.Errorf("no checkpoint found for %s, nothing to resume", i.origin))
	}

	pk, err := helper.ExtractPrimaryKey(i.origin)
	if err != nil {
		return nil, err
	}
	originCols, err := helper.Columns(i.origin)
	if err != nil {
		return nil, err
	}
	shadowCols, err := helper.Columns(shadow)
	if err != nil {
		return nil, err
	}
	cols := intersection.Columns(originCols, shadowCols)

	ent := entangler.New(i.db, helper, i.origin, shadow, pk, cols, i.logger)

	if restore := i.tightenLockWaits(); restore != nil {
		defer restore()
	}

	summary := &oscsummary.RunSummary{Origin: i.origin, Shadow: shadow, TriggersUsed: true, Resumed: true}

	runErr := ent.Run(ctx, func(ctx context.Context) error {
		ck := chunker.New(i.db, helper, i.origin, shadow, pk, cols, chunker.Config{
			Stride:   i.opt.stride(),
			Throttle: i.opt.throttle(),
		})
		ck.OnProgress(func(p chunker.Progress) {
			summary.RowsCopied += p.RowsCopied
			if err := cp.Save(ctx, p.High, p.RowsCopied); err != nil {
				i.logger.WithError(err).Warn("checkpoint: failed to save progress")
			}
		})

		i.logger.WithFields(logrus.Fields{"table": i.origin, "resume_from": low}).Info("resuming backfill")
		if err := ck.ResumeFrom(ctx, low); err != nil {
			return err
		}

		if err := cp.Drop(ctx); err != nil {
			i.logger.WithError(err).Warn("checkpoint: failed to drop checkpoint table")
		}

		sw, archive, method := i.selectSwitcher(helper)
		summary.Archive, summary.SwitchMethod = archive, method
		return i.runCutover(ctx, sw)
	})
	if runErr != nil {
		return nil, runErr
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

// tightenLockWaits reads the server's global lock-wait timeouts and
// tightens the session to min(global-2, 100) before any mutation, so
// the engine times out on a row/metadata lock and retries in its own
// backoff rather than piling up behind the server's global timeout.
// It returns a function that restores the prior session values, or
// nil if the adjustment failed (logged as a warning, not fatal — the
// run proceeds with whatever timeouts the session already had).
func (i *Invoker) tightenLockWaits() func() {
	snap, err := mysql.SetSessionTimeouts(i.db)
	if err != nil {
		i.logger.WithError(err).Warn("could not tighten session lock-wait timeouts")
		return nil
	}
	return func() {
		if err := snap.Restore(i.db); err != nil {
			i.logger.WithError(err).Warn("failed to restore session lock-wait timeouts")
		}
	}
}

// runCutover performs the final rename/lock-rename swap.
func (i *Invoker) runCutover(ctx context.Context, sw switcher.Switcher) error {
	i.logger.WithField("table", i.origin).Info("cutting over")
	return sw.Run(ctx)
}

func (i *Invoker) selectSwitcher(helper *sqlhelper.SQLHelper) (sw switcher.Switcher, archive, method string) {
	atomic := helper.SupportsAtomicSwitch()
	if i.opt.AtomicSwitch != nil {
		atomic = *i.opt.AtomicSwitch
	}

	shadow := i.shadowTable()
	retry := i.opt.retryPolicy()
	if atomic {
		a := switcher.NewAtomicSwitcher(i.db, helper, i.origin, shadow, retry, nil)
		return a, a.ArchiveName(), "atomic"
	}
	l := switcher.NewLockedSwitcher(i.db, helper, i.origin, shadow, retry, nil)
	return l, l.ArchiveName(), "locked"
}

// createShadowTable creates this Invoker's shadow table via CREATE
// TABLE S LIKE O. It does not drop any existing S first: a collision
// with an already-present shadow table means either another migration
// is already in flight against this origin, or a prior crashed run
// left its shadow behind for inspection — either way S must be
// dropped by the operator before a new run can proceed (I6).
func (i *Invoker) createShadowTable(ctx context.Context, helper *sqlhelper.SQLHelper) (string, error) {
	shadow := i.shadowTable()
	createStmt := fmt.Sprintf("CREATE TABLE %s LIKE %s %s", helper.QuoteTable(shadow), helper.QuoteTable(i.origin), helper.Annotation())
	if _, err := i.db.ExecContext(ctx, createStmt); err != nil {
		var mysqlErr *mysqldriver.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == erTableExists {
			return "", oscerr.Wrap(i.origin, oscerr.PhaseShadowCreate, oscerr.KindPrecondition,
				fmt.Errorf("shadow table %s already exists: %w", shadow, err))
		}
		return "", oscerr.Wrap(i.origin, oscerr.PhaseShadowCreate, oscerr.KindDriver,
			fmt.Errorf("creating shadow table: %w", err))
	}
	return shadow, nil
}
