// Package chunker backfills rows from an origin table into its shadow
// copy in bounded primary-key ranges, so a large table never sits
// behind one long-running INSERT ... SELECT.
package chunker

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nethalo/dbsafe-osc/internal/osc/sqlhelper"
	"github.com/nethalo/dbsafe-osc/internal/oscerr"
	"golang.org/x/time/rate"
)

// Config controls chunk size and the pace of the backfill.
type Config struct {
	// Stride is the width of each primary-key range copied per chunk.
	Stride int
	// Throttle is the minimum delay between chunks, used to cap
	// replication lag and InnoDB buffer pool churn on busy tables.
	Throttle time.Duration
}

// DefaultConfig matches the defaults an operator gets from `dbsafe-osc
// config init` when they don't override stride/throttle.
func DefaultConfig() Config {
	return Config{Stride: 2000, Throttle: 100 * time.Millisecond}
}

// Progress reports how far a chunker run has gotten, for callers that
// want to log or checkpoint between chunks.
type Progress struct {
	Low, High  int64
	RowsCopied int64
}

// Chunker copies existing rows from origin into shadow, oldest primary
// key first, in Config.Stride-sized ranges.
type Chunker struct {
	db      *sql.DB
	helper  *sqlhelper.SQLHelper
	origin  string
	shadow  string
	pk      string
	columns []string
	cfg     Config
	limiter *rate.Limiter

	// onProgress, if set, is called after each committed chunk. Used by
	// the checkpoint package to persist a resumable low-watermark.
	onProgress func(Progress)
}

// New builds a Chunker. columns is the intersection of origin and
// shadow columns. pk must be the column returned by
// sqlhelper.ExtractPrimaryKey for origin.
func New(db *sql.DB, helper *sqlhelper.SQLHelper, origin, shadow, pk string, columns []string, cfg Config) *Chunker {
	c := &Chunker{
		db: db, helper: helper, origin: origin, shadow: shadow, pk: pk, columns: columns, cfg: cfg,
	}
	if cfg.Throttle > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.Throttle), 1)
	}
	return c
}

// OnProgress registers a callback invoked after each chunk commits.
func (c *Chunker) OnProgress(fn func(Progress)) {
	c.onProgress = fn
}

// ResumeFrom starts the backfill at low instead of MIN(pk), for
// continuing a previously interrupted run from a checkpoint.
func (c *Chunker) ResumeFrom(ctx context.Context, low int64) error {
	_, max, err := c.bounds(ctx)
	if err != nil {
		return err
	}
	if max == nil {
		return nil
	}
	return c.copyRange(ctx, low, *max)
}

// Run copies every row currently in origin into shadow. It takes a
// MIN/MAX(pk) snapshot once at the start — rows inserted after that
// snapshot arrive via the entangler's mirroring triggers, not here.
func (c *Chunker) Run(ctx context.Context) error {
	min, max, err := c.bounds(ctx)
	if err != nil {
		return err
	}
	if min == nil || max == nil {
		// Empty table: nothing to backfill.
		return nil
	}
	return c.copyRange(ctx, *min, *max)
}

func (c *Chunker) bounds(ctx context.Context) (min, max *int64, err error) {
	query := fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s",
		c.helper.QuoteColumn(c.pk), c.helper.QuoteColumn(c.pk), c.helper.QuoteTable(c.origin))

	var lo, hi sql.NullInt64
	if err := c.db.QueryRowContext(ctx, query).Scan(&lo, &hi); err != nil {
		return nil, nil, oscerr.Wrap(c.origin, oscerr.PhaseChunk, oscerr.KindDriver, err)
	}
	if !lo.Valid || !hi.Valid {
		return nil, nil, nil
	}
	return &lo.Int64, &hi.Int64, nil
}

func (c *Chunker) copyRange(ctx context.Context, low, high int64) error {
	stride := int64(c.cfg.Stride)
	if stride <= 0 {
		stride = int64(DefaultConfig().Stride)
	}

	cols := c.quotedColumnList()
	pk := c.helper.QuoteColumn(c.pk)
	origin := c.helper.QuoteTable(c.origin)
	shadow := c.helper.QuoteTable(c.shadow)

	for lo := low; lo <= high; lo += stride {
		hi := lo + stride - 1
		if hi > high {
			hi = high
		}

		stmt := fmt.Sprintf("INSERT IGNORE INTO %s (%s) %s\nSELECT %s FROM %s WHERE %s BETWEEN ? AND ?",
			shadow, cols, c.helper.Annotation(), cols, origin, pk)

		res, err := c.db.ExecContext(ctx, stmt, lo, hi)
		if err != nil {
			return oscerr.Wrap(c.origin, oscerr.PhaseChunk, oscerr.KindCopy, err)
		}

		if c.onProgress != nil {
			n, _ := res.RowsAffected()
			c.onProgress(Progress{Low: lo, High: hi, RowsCopied: n})
		}

		if err := c.throttle(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chunker) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return oscerr.Wrap(c.origin, oscerr.PhaseChunk, oscerr.KindCopy, err)
	}
	return nil
}

func (c *Chunker) quotedColumnList() string {
	quoted := make([]string, len(c.columns))
	for i, col := range c.columns {
		quoted[i] = c.helper.QuoteColumn(col)
	}
	return strings.Join(quoted, ", ")
}
