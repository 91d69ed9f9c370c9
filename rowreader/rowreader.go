// Copyright (c) 2021 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

// Package rowreader reads the rows of a single table of an application
// database as ordered column name / value pairs.
package rowreader

import (
	"fmt"
	"strings"

	"crawshaw.io/sqlite"
	"github.com/pkg/errors"
)

// SourceUnavailableError is returned if the database or the table can not be
// opened or the table misses a required column.
type SourceUnavailableError struct {
	Path  string
	Table string
	Err   error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s (table %s) unavailable: %s", e.Path, e.Table, e.Err)
}

// Cause returns the underlying error.
func (e *SourceUnavailableError) Cause() error { return e.Err }

// Unwrap returns the underlying error.
func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// Column is a single named value of a row. Value is an int64, float64,
// string, []byte or nil, depending on the SQLite storage class.
type Column struct {
	Name  string
	Value interface{}
}

// RawRow is a database row in column order.
type RawRow []Column

// Get returns the value of the named column.
func (r RawRow) Get(name string) (interface{}, bool) {
	for _, column := range r {
		if column.Name == name {
			return column.Value, true
		}
	}
	return nil, false
}

// Rows iterates over the rows of a table. It holds the database connection
// until the rows are exhausted or Close is called.
type Rows struct {
	path  string
	table string
	conn  *sqlite.Conn
	stmt  *sqlite.Stmt
	row   RawRow
	err   error
}

// Open opens the database at path read-only and prepares a select on all
// columns of table. Every name in required must be a column of the table.
func Open(path, table string, required []string) (*Rows, error) {
	unavailable := func(err error) error {
		return &SourceUnavailableError{Path: path, Table: table, Err: err}
	}

	conn, err := sqlite.OpenConn(path, sqlite.SQLITE_OPEN_READONLY|sqlite.SQLITE_OPEN_URI|sqlite.SQLITE_OPEN_NOMUTEX)
	if err != nil {
		return nil, unavailable(err)
	}

	columns, err := tableColumns(conn, table)
	if err != nil {
		conn.Close() // nolint:errcheck
		return nil, unavailable(err)
	}
	if len(columns) == 0 {
		conn.Close() // nolint:errcheck
		return nil, unavailable(errors.New("table does not exist"))
	}
	var missing []string
	for _, name := range required {
		if !columns[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		conn.Close() // nolint:errcheck
		return nil, unavailable(fmt.Errorf("missing columns %s", strings.Join(missing, ", ")))
	}

	stmt, _, err := conn.PrepareTransient(fmt.Sprintf("SELECT * FROM %s", quote(table))) // #nosec
	if err != nil {
		conn.Close() // nolint:errcheck
		return nil, unavailable(err)
	}

	return &Rows{path: path, table: table, conn: conn, stmt: stmt}, nil
}

// Next advances to the next row. It returns false when the rows are
// exhausted or an error occurred, in which case the connection is released.
func (r *Rows) Next() bool {
	if r.stmt == nil {
		return false
	}
	hasRow, err := r.stmt.Step()
	if err != nil {
		r.err = &SourceUnavailableError{Path: r.path, Table: r.table, Err: err}
		r.Close() // nolint:errcheck
		return false
	}
	if !hasRow {
		r.Close() // nolint:errcheck
		return false
	}

	r.row = make(RawRow, r.stmt.ColumnCount())
	for i := range r.row {
		r.row[i] = Column{Name: r.stmt.ColumnName(i), Value: columnValue(r.stmt, i)}
	}
	return true
}

// Row returns the current row.
func (r *Rows) Row() RawRow {
	return r.row
}

// Err returns the error that stopped the iteration, if any.
func (r *Rows) Err() error {
	return r.err
}

// Close releases the statement and the connection. It is safe to call
// Close more than once.
func (r *Rows) Close() error {
	if r.conn == nil {
		return nil
	}
	var err error
	if r.stmt != nil {
		err = r.stmt.Finalize()
		r.stmt = nil
	}
	if cerr := r.conn.Close(); err == nil {
		err = cerr
	}
	r.conn = nil
	return err
}

// Each calls fn for every row of table in storage order. The connection is
// released on every return path, also if fn fails or panics.
func Each(path, table string, required []string, fn func(RawRow) error) (err error) {
	rows, err := Open(path, table, required)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rows.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "could not close database")
		}
	}()

	for rows.Next() {
		if err := fn(rows.Row()); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Tables lists the tables of the database at path.
func Tables(path string) (tables []string, err error) {
	conn, err := sqlite.OpenConn(path, sqlite.SQLITE_OPEN_READONLY|sqlite.SQLITE_OPEN_URI|sqlite.SQLITE_OPEN_NOMUTEX)
	if err != nil {
		return nil, &SourceUnavailableError{Path: path, Err: err}
	}
	defer conn.Close() // nolint:errcheck

	stmt, _, err := conn.PrepareTransient("SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	for {
		if hasRow, err := stmt.Step(); err != nil {
			stmt.Finalize() // nolint:errcheck
			return nil, err
		} else if !hasRow {
			break
		}
		tables = append(tables, stmt.GetText("name"))
	}
	return tables, stmt.Finalize()
}

func tableColumns(conn *sqlite.Conn, table string) (map[string]bool, error) {
	stmt, _, err := conn.PrepareTransient(fmt.Sprintf("PRAGMA table_info (%s)", quote(table)))
	if err != nil {
		return nil, err
	}

	columns := map[string]bool{}
	for {
		if hasRow, err := stmt.Step(); err != nil {
			stmt.Finalize() // nolint:errcheck
			return nil, err
		} else if !hasRow {
			break
		}
		columns[stmt.GetText("name")] = true
	}
	return columns, stmt.Finalize()
}

func columnValue(stmt *sqlite.Stmt, i int) interface{} {
	switch stmt.ColumnType(i) {
	case sqlite.SQLITE_INTEGER:
		return stmt.ColumnInt64(i)
	case sqlite.SQLITE_FLOAT:
		return stmt.ColumnFloat(i)
	case sqlite.SQLITE_TEXT:
		return stmt.ColumnText(i)
	case sqlite.SQLITE_BLOB:
		b := make([]byte, stmt.ColumnLen(i))
		stmt.ColumnBytes(i, b)
		return b
	default:
		return nil
	}
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
