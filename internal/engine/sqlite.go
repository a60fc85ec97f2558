package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	_ "modernc.org/sqlite"

	"github.com/bawdo/datashell/internal/quoting"
	"github.com/bawdo/datashell/internal/render"
)

var _ Backend = (*SQLiteBackend)(nil)

// registration records where a dataset was loaded from.
type registration struct {
	kind   string
	source string
	rows   int
}

// SQLiteBackend is a Backend over a private in-memory SQLite database.
type SQLiteBackend struct {
	db       *sql.DB
	datasets map[string]registration
	maxRows  int
}

// Option configures a SQLiteBackend.
type Option func(*SQLiteBackend)

// WithMaxRows caps the rows kept in any rendered result.
func WithMaxRows(n int) Option {
	return func(b *SQLiteBackend) {
		if n > 0 {
			b.maxRows = n
		}
	}
}

// NewSQLiteBackend opens the in-memory database. Every statement runs on a
// single connection so that tables persist for the backend's lifetime.
func NewSQLiteBackend(opts ...Option) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	b := &SQLiteBackend{
		db:       db,
		datasets: make(map[string]registration),
		maxRows:  render.DefaultMaxRows,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Close releases the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// Connect loads a dataset into a table named opts.Name, replacing any
// previous table of that name. Relational sources are not loaded; they
// return a notice instead of an error.
func (b *SQLiteBackend) Connect(ctx context.Context, opts ConnectOpts) (render.Displayable, error) {
	if opts.Conn == nil {
		return nil, &ConnectError{Name: opts.Name, Source: "-", Err: fmt.Errorf("no source given")}
	}
	if rc, ok := opts.Conn.(RelationalConn); ok {
		return relationalNotice(rc), nil
	}
	fail := func(err error) error {
		return &ConnectError{Name: opts.Name, Source: opts.Conn.Source(), Err: err}
	}
	if strings.TrimSpace(opts.Name) == "" {
		return nil, fail(fmt.Errorf("dataset name is empty"))
	}

	var ds *dataset
	var err error
	switch c := opts.Conn.(type) {
	case CSVConn:
		ds, err = loadCSV(ctx, c.File)
	case NDJSONConn:
		ds, err = loadNDJSON(ctx, c.File)
	case ParquetConn:
		ds, err = loadParquet(ctx, c.Filename)
	default:
		err = fmt.Errorf("unsupported source kind %s", opts.Conn.Kind())
	}
	if err != nil {
		return nil, fail(err)
	}
	replaced, err := b.store(ctx, opts.Name, ds)
	if err != nil {
		return nil, fail(err)
	}

	if replaced != "" {
		delete(b.datasets, replaced)
	}
	b.datasets[opts.Name] = registration{
		kind:   opts.Conn.Kind(),
		source: opts.Conn.Source(),
		rows:   len(ds.rows),
	}
	return render.Notice(fmt.Sprintf("registered dataset %q (%s, %s, %s)",
		opts.Name, opts.Conn.Kind(), pluralRows(len(ds.rows)), humanize.Bytes(uint64(ds.bytes)))), nil
}

func pluralRows(n int) string {
	if n == 1 {
		return "1 row"
	}
	return fmt.Sprintf("%d rows", n)
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// lookupTable resolves name to a table or view the way SQLite resolves
// identifiers, ignoring ASCII case. It returns the name as stored and the
// object type, or sql.ErrNoRows.
func lookupTable(ctx context.Context, q rowQuerier, name string) (stored, typ string, err error) {
	err = q.QueryRowContext(ctx,
		"SELECT name, type FROM sqlite_master WHERE type IN ('table', 'view') AND name = ? COLLATE NOCASE",
		name).Scan(&stored, &typ)
	return stored, typ, err
}

// store writes ds into a fresh table inside one transaction. An existing
// table or view with the same name in any letter case is dropped first;
// its stored name is returned.
func (b *SQLiteBackend) store(ctx context.Context, name string, ds *dataset) (string, error) {
	table := quoting.DoubleQuote(name)
	defs := make([]string, len(ds.columns))
	marks := make([]string, len(ds.columns))
	for i, c := range ds.columns {
		defs[i] = quoting.DoubleQuote(c) + " " + ds.types[i].String()
		marks[i] = "?"
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	existing, typ, err := lookupTable(ctx, tx, name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		existing = ""
	case err != nil:
		return "", err
	default:
		if _, err := tx.ExecContext(ctx, "DROP "+strings.ToUpper(typ)+" "+quoting.DoubleQuote(existing)); err != nil {
			return "", err
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))); err != nil {
		return "", err
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, strings.Join(marks, ", ")))
	if err != nil {
		return "", err
	}
	defer func() { _ = stmt.Close() }()
	for _, row := range ds.rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return "", err
		}
	}
	return existing, tx.Commit()
}

// List enumerates every table and view with the kind it was loaded as.
// Tables created through plain SQL are listed as "table" or "view".
func (b *SQLiteBackend) List(ctx context.Context) (render.Displayable, error) {
	const q = "SELECT name, type FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name"
	rows, err := b.db.QueryContext(ctx, q)
	if err != nil {
		return nil, queryError(q, err)
	}
	defer func() { _ = rows.Close() }()

	t := &render.Table{Columns: []string{"name", "kind", "source", "rows"}}
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, queryError(q, err)
		}
		reg, ok := b.datasets[name]
		if !ok {
			t.Rows = append(t.Rows, []string{name, typ, "sql", "-"})
			continue
		}
		t.Rows = append(t.Rows, []string{name, reg.kind, reg.source, fmt.Sprint(reg.rows)})
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(q, err)
	}
	return t, nil
}

// column is one entry of a table's declared schema.
type column struct {
	name     string
	declType string
	notNull  bool
}

// columns resolves name and returns its stored name and declared schema,
// or a NotFoundError.
func (b *SQLiteBackend) columns(ctx context.Context, name string) (string, []column, error) {
	stored, _, err := lookupTable(ctx, b.db, name)
	if errors.Is(err, sql.ErrNoRows) {
		b.forget(name)
		return "", nil, &NotFoundError{Name: name}
	}
	if err != nil {
		return "", nil, queryError("schema "+name, err)
	}

	const q = "SELECT name, type, \"notnull\" FROM pragma_table_info(?) ORDER BY cid"
	rows, err := b.db.QueryContext(ctx, q, stored)
	if err != nil {
		return "", nil, queryError(q, err)
	}
	defer func() { _ = rows.Close() }()
	var cols []column
	for rows.Next() {
		var c column
		if err := rows.Scan(&c.name, &c.declType, &c.notNull); err != nil {
			return "", nil, queryError(q, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return "", nil, queryError(q, err)
	}
	return stored, cols, nil
}

// forget drops a registration whose table was removed through SQL.
func (b *SQLiteBackend) forget(name string) {
	for k := range b.datasets {
		if strings.EqualFold(k, name) {
			delete(b.datasets, k)
		}
	}
}

// Schema reports column names and declared types in declaration order.
func (b *SQLiteBackend) Schema(ctx context.Context, name string) (render.Displayable, error) {
	_, cols, err := b.columns(ctx, name)
	if err != nil {
		return nil, err
	}
	t := &render.Table{Columns: []string{"column_name", "data_type", "is_nullable"}}
	for _, c := range cols {
		nullable := "YES"
		if c.notNull {
			nullable = "NO"
		}
		declType := c.declType
		if declType == "" {
			declType = "ANY"
		}
		t.Rows = append(t.Rows, []string{c.name, declType, nullable})
	}
	return t, nil
}

// Head returns the first n rows of a dataset.
func (b *SQLiteBackend) Head(ctx context.Context, name string, n int) (render.Displayable, error) {
	stored, _, err := b.columns(ctx, name)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = DefaultHeadRows
	}
	q := fmt.Sprintf("SELECT * FROM %s LIMIT ?", quoting.DoubleQuote(stored))
	return b.query(ctx, q, n)
}

// Query runs an arbitrary statement. Statements without result columns
// render as an empty table.
func (b *SQLiteBackend) Query(ctx context.Context, query string) (render.Displayable, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &QueryError{Query: query, Msg: "empty query"}
	}
	return b.query(ctx, query)
}

func (b *SQLiteBackend) query(ctx context.Context, q string, args ...any) (render.Displayable, error) {
	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, queryError(q, err)
	}
	defer func() { _ = rows.Close() }()
	t, err := render.FromRows(rows, b.maxRows)
	if err != nil {
		return nil, queryError(q, err)
	}
	return t, nil
}
