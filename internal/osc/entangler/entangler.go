// Package entangler installs the INSERT/UPDATE/DELETE triggers that
// mirror writes from an origin table onto its shadow copy while a
// chunked backfill runs, and guarantees their removal afterward.
package entangler

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nethalo/dbsafe-osc/internal/osc/sqlhelper"
	"github.com/nethalo/dbsafe-osc/internal/oscerr"
	"github.com/sirupsen/logrus"
)

// Entangler installs and removes the three mirroring triggers for a
// single origin/shadow table pair.
type Entangler struct {
	db      *sql.DB
	helper  *sqlhelper.SQLHelper
	origin  string
	shadow  string
	pk      string
	columns []string
	logger  *logrus.Logger
}

// New builds an Entangler. columns is the intersection of origin and
// shadow columns — the set safe to reference from both sides. pk is
// the origin's primary key column (as returned by
// sqlhelper.ExtractPrimaryKey), used by the DELETE trigger to identify
// which shadow row to remove — it need not be the first element of
// columns.
func New(db *sql.DB, helper *sqlhelper.SQLHelper, origin, shadow, pk string, columns []string, logger *logrus.Logger) *Entangler {
	return &Entangler{db: db, helper: helper, origin: origin, shadow: shadow, pk: pk, columns: columns, logger: logger}
}

func (e *Entangler) triggerNames() (ins, upd, del string) {
	base := triggerBaseName(e.origin)
	return "dbosc_ins_" + base, "dbosc_upd_" + base, "dbosc_del_" + base
}

// triggerBaseName strips a schema qualifier so the generated trigger
// name stays a bare identifier regardless of how origin was specified.
func triggerBaseName(table string) string {
	if i := strings.LastIndex(table, "."); i >= 0 {
		return table[i+1:]
	}
	return table
}

// Run installs the mirroring triggers, invokes inner, and removes the
// triggers before returning — whether inner succeeded or not. Stale
// triggers left behind by a prior crashed run are dropped first so a
// retry never collides with them.
func (e *Entangler) Run(ctx context.Context, inner func(context.Context) error) error {
	if err := e.dropTriggers(ctx); err != nil {
		return oscerr.Wrap(e.origin, oscerr.PhaseEntangle, oscerr.KindMirroring, err)
	}

	if err := e.installTriggers(ctx); err != nil {
		return oscerr.Wrap(e.origin, oscerr.PhaseEntangle, oscerr.KindMirroring, err)
	}

	defer func() {
		if err := e.dropTriggers(ctx); err != nil {
			e.logger.WithError(err).WithField("table", e.origin).
				Error("entangler: failed to remove mirroring triggers")
		}
	}()

	return inner(ctx)
}

func (e *Entangler) installTriggers(ctx context.Context) error {
	ins, upd, del := e.triggerNames()
	origin := e.helper.QuoteTable(e.origin)
	shadow := e.helper.QuoteTable(e.shadow)
	cols := e.quotedColumnList()
	newCols := e.prefixedColumnList("NEW")
	oldPK := e.pk

	stmts := []string{
		fmt.Sprintf("CREATE TRIGGER %s AFTER INSERT ON %s FOR EACH ROW %s\n"+
			"REPLACE INTO %s (%s) VALUES (%s)",
			e.helper.QuoteColumn(ins), origin, e.helper.Annotation(), shadow, cols, newCols),
		fmt.Sprintf("CREATE TRIGGER %s AFTER UPDATE ON %s FOR EACH ROW %s\n"+
			"REPLACE INTO %s (%s) VALUES (%s)",
			e.helper.QuoteColumn(upd), origin, e.helper.Annotation(), shadow, cols, newCols),
		fmt.Sprintf("CREATE TRIGGER %s AFTER DELETE ON %s FOR EACH ROW %s\n"+
			"DELETE IGNORE FROM %s WHERE %s = OLD.%s",
			e.helper.QuoteColumn(del), origin, e.helper.Annotation(), shadow,
			e.helper.QuoteColumn(oldPK), e.helper.QuoteColumn(oldPK)),
	}

	for _, stmt := range stmts {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("installing trigger: %w", err)
		}
	}
	return nil
}

func (e *Entangler) dropTriggers(ctx context.Context) error {
	ins, upd, del := e.triggerNames()
	for _, name := range []string{ins, upd, del} {
		stmt := fmt.Sprintf("DROP TRIGGER IF EXISTS %s", e.helper.QuoteColumn(name))
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("dropping trigger %s: %w", name, err)
		}
	}
	return nil
}

func (e *Entangler) quotedColumnList() string {
	quoted := make([]string, len(e.columns))
	for i, c := range e.columns {
		quoted[i] = e.helper.QuoteColumn(c)
	}
	return strings.Join(quoted, ", ")
}

func (e *Entangler) prefixedColumnList(alias string) string {
	quoted := make([]string, len(e.columns))
	for i, c := range e.columns {
		quoted[i] = alias + "." + e.helper.QuoteColumn(c)
	}
	return strings.Join(quoted, ", ")
}
