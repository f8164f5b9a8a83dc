// Package sqlhelper centralizes the dialect-specific knowledge the rest
// of internal/osc needs: identifier quoting, primary key discovery,
// column listing, and whether this server flavor supports an atomic
// multi-table RENAME. It's the MySQL-facing equivalent of what
// internal/mysql's metadata/version helpers already do for dbsafe's
// plan command, narrowed to what the engine actually needs mid-run.
package sqlhelper

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/nethalo/dbsafe-osc/internal/mysql"
	"github.com/nethalo/dbsafe-osc/internal/oscerr"
)

// annotation is appended as a trailing comment to every statement the
// engine issues, so an operator tailing the general query log or
// process list can tell engine traffic apart from application traffic.
const annotation = "/* dbsafe-osc */"

// integerColumnTypes are the COLUMN_TYPE prefixes ExtractPrimaryKey
// accepts for a single-column integer primary key.
var integerColumnTypes = []string{
	"tinyint", "smallint", "mediumint", "int", "bigint",
}

// SQLHelper wraps a connection and server version with the dialect
// operations the OSC engine performs repeatedly. It does not own the
// *sql.DB — callers are responsible for closing it.
type SQLHelper struct {
	db      *sql.DB
	version mysql.ServerVersion
}

// New builds a SQLHelper from a live connection, querying the server
// version once up front.
func New(db *sql.DB) (*SQLHelper, error) {
	v, err := mysql.GetServerVersion(db)
	if err != nil {
		return nil, fmt.Errorf("sqlhelper: %w", err)
	}
	return &SQLHelper{db: db, version: v}, nil
}

// Annotation returns the trailing comment appended to engine SQL.
func (h *SQLHelper) Annotation() string { return annotation }

// VersionString returns the human-readable server version.
func (h *SQLHelper) VersionString() string { return h.version.String() }

// SupportsAtomicSwitch reports whether this server flavor/version
// supports a single atomic multi-table RENAME TABLE statement.
// MariaDB's RENAME TABLE is not guaranteed atomic across all versions
// in the way MySQL/Percona/Aurora's is, so it's excluded outright;
// everything else needs at least 5.5 (RENAME TABLE has been atomic on
// a single InnoDB data dictionary since then) or to be Aurora, which
// always satisfies the guarantee regardless of its reported patch.
func (h *SQLHelper) SupportsAtomicSwitch() bool {
	if h.version.Flavor == "mariadb" {
		return false
	}
	return h.version.AtLeast(5, 5, 0) || h.version.IsAurora()
}

// ExtractPrimaryKey returns the single integer-typed column that forms
// table's primary key. It is an error for the table to have no primary
// key, a composite primary key, or a primary key over a non-integer
// column — the chunker requires a scalar, ordered key to compute
// bounded ranges.
func (h *SQLHelper) ExtractPrimaryKey(table string) (string, error) {
	db, schema := splitTable(table)

	rows, err := h.db.Query(`
		SELECT k.COLUMN_NAME, c.COLUMN_TYPE
		FROM information_schema.KEY_COLUMN_USAGE k
		JOIN information_schema.COLUMNS c
			ON c.TABLE_SCHEMA = k.TABLE_SCHEMA
			AND c.TABLE_NAME = k.TABLE_NAME
			AND c.COLUMN_NAME = k.COLUMN_NAME
		WHERE k.TABLE_SCHEMA = ? AND k.TABLE_NAME = ? AND k.CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY k.ORDINAL_POSITION
	`, db, schema)
	if err != nil {
		return "", oscerr.Wrap(table, oscerr.PhaseShadowCreate, oscerr.KindDriver, err)
	}
	defer rows.Close()

	type pkCol struct{ name, colType string }
	var cols []pkCol
	for rows.Next() {
		var c pkCol
		if err := rows.Scan(&c.name, &c.colType); err != nil {
			return "", oscerr.Wrap(table, oscerr.PhaseShadowCreate, oscerr.KindDriver, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return "", oscerr.Wrap(table, oscerr.PhaseShadowCreate, oscerr.KindDriver, err)
	}

	if len(cols) == 0 {
		return "", oscerr.Wrap(table, oscerr.PhaseShadowCreate, oscerr.KindPrecondition,
			fmt.Errorf("table has no primary key"))
	}
	if len(cols) > 1 {
		return "", oscerr.Wrap(table, oscerr.PhaseShadowCreate, oscerr.KindPrecondition,
			fmt.Errorf("composite primary keys are not supported (got %d columns)", len(cols)))
	}
	if !isIntegerType(cols[0].colType) {
		return "", oscerr.Wrap(table, oscerr.PhaseShadowCreate, oscerr.KindPrecondition,
			fmt.Errorf("primary key column %q has non-integer type %q", cols[0].name, cols[0].colType))
	}
	return cols[0].name, nil
}

func isIntegerType(columnType string) bool {
	lower := strings.ToLower(columnType)
	for _, prefix := range integerColumnTypes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Columns returns the ordinal-ordered column names of table.
func (h *SQLHelper) Columns(table string) ([]string, error) {
	db, name := splitTable(table)

	rows, err := h.db.Query(`
		SELECT COLUMN_NAME
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`, db, name)
	if err != nil {
		return nil, oscerr.Wrap(table, oscerr.PhaseShadowCreate, oscerr.KindDriver, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, oscerr.Wrap(table, oscerr.PhaseShadowCreate, oscerr.KindDriver, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, oscerr.Wrap(table, oscerr.PhaseShadowCreate, oscerr.KindDriver, err)
	}
	if len(cols) == 0 {
		return nil, oscerr.Wrap(table, oscerr.PhaseShadowCreate, oscerr.KindPrecondition,
			fmt.Errorf("table not found or has no columns"))
	}
	return cols, nil
}

// QuoteTable quotes a possibly schema-qualified table name for safe
// interpolation into a SQL statement.
func (h *SQLHelper) QuoteTable(name string) string {
	db, tbl := splitTable(name)
	if db == "" {
		return escapeIdentifier(tbl)
	}
	return escapeIdentifier(db) + "." + escapeIdentifier(tbl)
}

// QuoteColumn quotes a single column identifier.
func (h *SQLHelper) QuoteColumn(name string) string {
	return escapeIdentifier(name)
}

// splitTable splits a "db.table" or bare "table" reference. The first
// return value is empty when name carries no schema qualifier — in
// that case callers fall back to the connection's default database.
func splitTable(name string) (schema, table string) {
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// escapeIdentifier mirrors internal/mysql's identifier escaping:
// backtick-wrap and double any embedded backticks.
func escapeIdentifier(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}
