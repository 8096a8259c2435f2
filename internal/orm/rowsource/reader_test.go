package rowsource

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/ormmeta/internal/orm/conventions"
	"github.com/conduit-lang/ormmeta/internal/orm/members"
	"github.com/conduit-lang/ormmeta/internal/orm/metadata"
)

type invoice struct {
	ID         int
	CustomerID *int
	Total      float64
	Note       string `orm:"column=memo"`
}

func invoiceEntityType(t *testing.T, opts ...metadata.ModelOption) *metadata.EntityType {
	t.Helper()
	model := metadata.NewModel(opts...)
	require.NoError(t, conventions.Discover(model, members.MustOf[invoice]()))
	_, err := model.Freeze()
	require.NoError(t, err)
	return model.FindEntityType("invoice")
}

func setupMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func invoiceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "customer_id", "total", "memo", "extra"}).
		AddRow(int64(1), int64(7), 12.5, "first", "x").
		AddRow(int64(2), nil, 3.0, "second", "y")
}

func TestQuery_MaterializesRows(t *testing.T) {
	et := invoiceEntityType(t)
	db, mock := setupMock(t)
	mock.ExpectQuery(`SELECT (.+) FROM invoices`).WillReturnRows(invoiceRows())

	got, err := Query(context.Background(), db, et, "SELECT * FROM invoices")
	require.NoError(t, err)
	require.Len(t, got, 2)

	first, ok := got[0].(*invoice)
	require.True(t, ok)
	assert.Equal(t, 1, first.ID)
	require.NotNil(t, first.CustomerID)
	assert.Equal(t, 7, *first.CustomerID)
	assert.Equal(t, 12.5, first.Total)
	assert.Equal(t, "first", first.Note)

	second := got[1].(*invoice)
	assert.Equal(t, 2, second.ID)
	assert.Nil(t, second.CustomerID)
	assert.Equal(t, "second", second.Note)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewReader_IndexMapFollowsColumns(t *testing.T) {
	et := invoiceEntityType(t)
	db, mock := setupMock(t)
	mock.ExpectQuery(`SELECT`).WillReturnRows(invoiceRows())

	rows, err := db.Query("SELECT")
	require.NoError(t, err)
	reader, err := NewReader(rows, et)
	require.NoError(t, err)
	defer reader.Close()

	// CustomerID, ID, Note, Total in property order
	assert.Equal(t, []int{1, 0, 3, 2}, reader.IndexMap())
	assert.Equal(t, []string{"id", "customer_id", "total", "memo", "extra"}, reader.Columns())

	_, err = reader.Entity()
	assert.ErrorIs(t, err, ErrNoRow)

	require.True(t, reader.Next())
	values := reader.Values()
	assert.Equal(t, 5, values.Len())
	assert.Equal(t, 1, values.Value(0))
	assert.Equal(t, "x", values.Value(4))

	entity, err := reader.Entity()
	require.NoError(t, err)
	assert.Equal(t, "first", entity.(*invoice).Note)
}

func TestNewReader_MissingColumn(t *testing.T) {
	et := invoiceEntityType(t)
	db, mock := setupMock(t)
	mock.ExpectQuery(`SELECT`).WillReturnRows(sqlmock.NewRows([]string{"id", "total"}).AddRow(int64(1), 2.0))

	rows, err := db.Query("SELECT")
	require.NoError(t, err)
	defer rows.Close()

	_, err = NewReader(rows, et)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "CustomerID, memo")
	assert.Contains(t, err.Error(), "'invoice'")
}

func TestMapColumns(t *testing.T) {
	et := invoiceEntityType(t)

	tests := []struct {
		name    string
		columns []string
		want    []int
		wantErr string
	}{
		{name: "exact names", columns: []string{"CustomerID", "ID", "memo", "Total"}, want: []int{0, 1, 2, 3}},
		{name: "snake case", columns: []string{"TOTAL", "customer_id", "id", "Memo"}, want: []int{1, 2, 3, 0}},
		{name: "first duplicate wins", columns: []string{"id", "ID", "customer_id", "memo", "total"}, want: []int{2, 0, 3, 4}},
		{name: "missing", columns: []string{"id"}, wantErr: "CustomerID, memo, Total"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MapColumns(et, tt.columns)
			if tt.wantErr != "" {
				assert.ErrorIs(t, err, ErrMissingColumn)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMissingColumns(t *testing.T) {
	model := metadata.NewModel()
	require.NoError(t, conventions.Discover(model, members.MustOf[invoice]()))
	et := model.FindEntityType("invoice")
	_, err := et.AddProperty("Audit", reflect.TypeOf(""), metadata.Explicit)
	require.NoError(t, err)

	assert.Empty(t, MissingColumns(et, []string{"audit", "customer_id", "ID", "MEMO", "total"}))
	assert.Equal(t, []string{"Audit", "memo"}, MissingColumns(et, []string{"id", "customer_id", "total"}))
}

func TestReadAll_ScanError(t *testing.T) {
	et := invoiceEntityType(t)
	db, mock := setupMock(t)
	mock.ExpectQuery(`SELECT`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "customer_id", "total", "memo"}).
			AddRow("abc", nil, 1.0, "bad"))

	rows, err := db.Query("SELECT")
	require.NoError(t, err)
	_, err = ReadAll(rows, et)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan invoice row")
}

func TestReadAll_RowError(t *testing.T) {
	et := invoiceEntityType(t)
	db, mock := setupMock(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery(`SELECT`).WillReturnRows(invoiceRows().RowError(1, boom))

	rows, err := db.Query("SELECT")
	require.NoError(t, err)
	_, err = ReadAll(rows, et)
	assert.ErrorIs(t, err, boom)
}

func TestQuery_PropagatesQueryError(t *testing.T) {
	et := invoiceEntityType(t)
	db, mock := setupMock(t)
	mock.ExpectQuery(`SELECT`).WillReturnError(sql.ErrConnDone)

	_, err := Query(context.Background(), db, et, "SELECT")
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestCollect(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	et := invoiceEntityType(t, metadata.WithLogger(zap.New(core)))
	db, mock := setupMock(t)
	mock.ExpectQuery(`SELECT`).WillReturnRows(invoiceRows())

	rows, err := db.Query("SELECT")
	require.NoError(t, err)
	invoices, err := Collect[invoice](rows, et)
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, 3.0, invoices[1].Total)

	materialized := logs.FilterMessage("rows materialized").All()
	require.Len(t, materialized, 1)
	assert.Equal(t, int64(2), materialized[0].ContextMap()["count"])
}

func TestQuery_SQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE invoices (
			id INTEGER PRIMARY KEY,
			customer_id INTEGER,
			total REAL NOT NULL,
			memo TEXT NOT NULL
		)
	`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO invoices (id, customer_id, total, memo) VALUES (1, 42, 9.5, 'paid'), (2, NULL, 0, 'draft')`)
	require.NoError(t, err)

	et := invoiceEntityType(t)
	invoices, err := Query(context.Background(), db, et, "SELECT memo, total, customer_id, id FROM invoices ORDER BY id")
	require.NoError(t, err)
	require.Len(t, invoices, 2)

	paid := invoices[0].(*invoice)
	assert.Equal(t, invoice{ID: 1, CustomerID: paid.CustomerID, Total: 9.5, Note: "paid"}, *paid)
	require.NotNil(t, paid.CustomerID)
	assert.Equal(t, 42, *paid.CustomerID)

	draft := invoices[1].(*invoice)
	assert.Nil(t, draft.CustomerID)
	assert.Equal(t, "draft", draft.Note)
}
