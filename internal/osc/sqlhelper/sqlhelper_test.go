package sqlhelper

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMockHelper(t *testing.T, version string) (*SQLHelper, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectQuery("SELECT VERSION()").
		WillReturnRows(sqlmock.NewRows([]string{"VERSION()"}).AddRow(version))

	h, err := New(db)
	require.NoError(t, err)
	return h, mock, func() { db.Close() }
}

func TestSupportsAtomicSwitch(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    bool
	}{
		{"mysql 8.0", "8.0.35", true},
		{"percona 5.7", "5.7.44-47-log", true},
		{"mariadb 10.6", "10.6.16-MariaDB", false},
		{"aurora mysql", "8.0.mysql_aurora.3.04.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, closeFn := newMockHelper(t, tt.version)
			defer closeFn()
			require.Equal(t, tt.want, h.SupportsAtomicSwitch())
		})
	}
}

func TestExtractPrimaryKey(t *testing.T) {
	h, mock, closeFn := newMockHelper(t, "8.0.35")
	defer closeFn()

	mock.ExpectQuery("SELECT k.COLUMN_NAME, c.COLUMN_TYPE").
		WithArgs("mydb", "users").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE"}).
			AddRow("id", "bigint(20) unsigned"))

	pk, err := h.ExtractPrimaryKey("mydb.users")
	require.NoError(t, err)
	require.Equal(t, "id", pk)
}

func TestExtractPrimaryKey_NoPK(t *testing.T) {
	h, mock, closeFn := newMockHelper(t, "8.0.35")
	defer closeFn()

	mock.ExpectQuery("SELECT k.COLUMN_NAME, c.COLUMN_TYPE").
		WithArgs("mydb", "users").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE"}))

	_, err := h.ExtractPrimaryKey("mydb.users")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no primary key")
}

func TestExtractPrimaryKey_Composite(t *testing.T) {
	h, mock, closeFn := newMockHelper(t, "8.0.35")
	defer closeFn()

	mock.ExpectQuery("SELECT k.COLUMN_NAME, c.COLUMN_TYPE").
		WithArgs("mydb", "users").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE"}).
			AddRow("tenant_id", "int(11)").
			AddRow("id", "bigint(20)"))

	_, err := h.ExtractPrimaryKey("mydb.users")
	require.Error(t, err)
	require.Contains(t, err.Error(), "composite")
}

func TestExtractPrimaryKey_NonInteger(t *testing.T) {
	h, mock, closeFn := newMockHelper(t, "8.0.35")
	defer closeFn()

	mock.ExpectQuery("SELECT k.COLUMN_NAME, c.COLUMN_TYPE").
		WithArgs("mydb", "users").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE"}).
			AddRow("uuid", "char(36)"))

	_, err := h.ExtractPrimaryKey("mydb.users")
	require.Error(t, err)
	require.Contains(t, err.Error(), "non-integer")
}

func TestQuoteTable(t *testing.T) {
	h, _, closeFn := newMockHelper(t, "8.0.35")
	defer closeFn()

	require.Equal(t, "`users`", h.QuoteTable("users"))
	require.Equal(t, "`my db`.`users`", h.QuoteTable("my db.users"))
	require.Equal(t, "`my``db`", h.QuoteTable("my`db"))
}
