package rowsource

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/ormmeta/internal/orm/metadata"
)

var (
	// ErrMissingColumn is returned when a mapped property has no result column
	ErrMissingColumn = errors.New("required column not present in the result")

	// ErrNoRow is returned when reading an entity before Next or after the last row
	ErrNoRow = errors.New("no current row")
)

// Reader reads entities of one entity type from a result set
type Reader struct {
	rows        Rows
	entityType  *metadata.EntityType
	columns     []string
	indexMap    []int
	materialize metadata.Materializer
	logger      *zap.Logger

	dest   []any
	values metadata.Values
	onRow  bool
	err    error
}

// NewReader matches the result columns to the properties of et and compiles
// the materializer for that column order. Columns without a property are
// scanned and ignored.
func NewReader(rows Rows, et *metadata.EntityType) (*Reader, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	indexMap, err := MapColumns(et, columns)
	if err != nil {
		return nil, err
	}

	dest := make([]any, len(columns))
	for _, p := range et.Properties() {
		col := indexMap[p.PropertyIndexes().Index]
		if col >= 0 && dest[col] == nil {
			dest[col] = reflect.New(p.ClrType()).Interface()
		}
	}
	for i := range dest {
		if dest[i] == nil {
			dest[i] = new(any)
		}
	}

	materialize, err := metadata.MaterializerFor(et, indexMap)
	if err != nil {
		return nil, err
	}

	logger := et.Model().Logger()
	logger.Debug("row reader opened",
		zap.String("entity_type", et.Name()),
		zap.Strings("columns", columns),
		zap.Ints("index_map", indexMap))

	return &Reader{
		rows:        rows,
		entityType:  et,
		columns:     columns,
		indexMap:    indexMap,
		materialize: materialize,
		logger:      logger,
		dest:        dest,
		values:      make(metadata.Values, len(columns)),
	}, nil
}

// Next advances to the next row and scans it. It returns false at the end
// of the result set or on error; Err reports which.
func (r *Reader) Next() bool {
	r.onRow = false
	if r.err != nil || !r.rows.Next() {
		return false
	}
	if err := r.rows.Scan(r.dest...); err != nil {
		r.err = fmt.Errorf("scan %s row: %w", r.entityType.Name(), err)
		return false
	}
	for i, d := range r.dest {
		r.values[i] = reflect.ValueOf(d).Elem().Interface()
	}
	r.onRow = true
	return true
}

// Values returns the current row in column order. The buffer is reused by Next.
func (r *Reader) Values() metadata.ValueBuffer { return r.values }

// Entity materializes the current row into a new instance
func (r *Reader) Entity() (any, error) {
	if !r.onRow {
		return nil, ErrNoRow
	}
	return r.materialize(r.values)
}

// Columns returns the result column names
func (r *Reader) Columns() []string { return append([]string(nil), r.columns...) }

// IndexMap returns, by property ordinal, the column read for each property or -1
func (r *Reader) IndexMap() []int { return append([]int(nil), r.indexMap...) }

// Err returns the first scan error or the error of the underlying rows
func (r *Reader) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

// Close closes the underlying rows
func (r *Reader) Close() error { return r.rows.Close() }

// ReadAll materializes every row and closes rows
func ReadAll(rows Rows, et *metadata.EntityType) ([]any, error) {
	defer rows.Close()

	reader, err := NewReader(rows, et)
	if err != nil {
		return nil, err
	}
	var out []any
	for reader.Next() {
		entity, err := reader.Entity()
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	reader.logger.Debug("rows materialized",
		zap.String("entity_type", et.Name()),
		zap.Int("count", len(out)))
	return out, nil
}

// Collect is ReadAll for an entity type backed by the struct type T
func Collect[T any](rows Rows, et *metadata.EntityType) ([]*T, error) {
	entities, err := ReadAll(rows, et)
	if err != nil {
		return nil, err
	}
	out := make([]*T, len(entities))
	for i, e := range entities {
		typed, ok := e.(*T)
		if !ok {
			return nil, fmt.Errorf("entity type '%s' materializes %T, not %T", et.Name(), e, typed)
		}
		out[i] = typed
	}
	return out, nil
}

// Query runs query through database/sql and materializes the result
func Query(ctx context.Context, q Queryer, et *metadata.EntityType, query string, args ...any) ([]any, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return ReadAll(rows, et)
}

// QueryPgx runs query through pgx and materializes the result
func QueryPgx(ctx context.Context, q PgxQueryer, et *metadata.EntityType, query string, args ...any) ([]any, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return ReadAll(FromPgx(rows), et)
}

// MapColumns returns, by property ordinal, the position in columns of the
// column of each property of et, or -1. Columns are matched to the property
// column name ignoring case and underscores, so customer_id maps CustomerID.
// Every property backed by a Go member must have a column; the missing ones
// are reported together with ErrMissingColumn.
func MapColumns(et *metadata.EntityType, columns []string) ([]int, error) {
	byColumn := make(map[string]int, len(columns))
	for i, c := range columns {
		key := normalizeColumn(c)
		if _, dup := byColumn[key]; !dup {
			byColumn[key] = i
		}
	}

	indexMap := make([]int, et.Counts().PropertyCount)
	for i := range indexMap {
		indexMap[i] = -1
	}
	var missing []string
	for _, p := range et.Properties() {
		col, ok := byColumn[normalizeColumn(p.ColumnName())]
		if !ok {
			if !p.IsShadowProperty() {
				missing = append(missing, p.ColumnName())
			}
			continue
		}
		indexMap[p.PropertyIndexes().Index] = col
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s for entity type '%s'", ErrMissingColumn, strings.Join(missing, ", "), et.Name())
	}
	return indexMap, nil
}

// MissingColumns returns the column names of the properties of et, shadow
// properties included, that are not among columns
func MissingColumns(et *metadata.EntityType, columns []string) []string {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[normalizeColumn(c)] = true
	}
	var missing []string
	for _, p := range et.Properties() {
		if !present[normalizeColumn(p.ColumnName())] {
			missing = append(missing, p.ColumnName())
		}
	}
	return missing
}

func normalizeColumn(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}
