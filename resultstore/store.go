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

// Package resultstore stores extraction results, messages, detections and
// timeline events, as JSON elements in a SQLite based forensicstore.
package resultstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"github.com/fatih/structs"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/viberextract"
	"github.com/forensicanalysis/viberextract/goflatten"
)

const storeVersion = 2
const elementaryApplicationID = 1701602669
const discriminator = "type"

// Element types written by the extraction.
const (
	TypeMessage       = "viber-message"
	TypeDetection     = "viber-detection"
	TypeTimelineEvent = "timeline-event"
)

// JSONElement is a single entry in the database.
type JSONElement []byte

// MarshalJSON returns the element unchanged.
func (e JSONElement) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("null"), nil
	}
	return e, nil
}

// Store is a forensicstore for extraction results. Every element is a JSON
// object with a type attribute. Keys of stored elements must not contain
// dots.
type Store struct {
	cursor *sqlite.Conn
	types  *typeMap
}

var ErrStoreExists = fmt.Errorf("store already exists")
var ErrStoreNotExists = fmt.Errorf("store does not exist")

// New creates a new store.
func New(url string) (*Store, error) {
	return open(url, true)
}

// Open opens an existing store.
func Open(url string) (*Store, error) {
	return open(url, false)
}

func pragma(conn *sqlite.Conn, name string) (int64, error) {
	stmt, _, err := conn.PrepareTransient("PRAGMA " + name)
	if err != nil {
		return 0, err
	}
	if _, err = stmt.Step(); err != nil {
		stmt.Finalize() // nolint:errcheck
		return 0, err
	}
	i := stmt.GetInt64(name)
	return i, stmt.Finalize()
}

func setPragma(conn *sqlite.Conn, name string, i int64) error {
	return exec(conn, "PRAGMA "+name+" = "+fmt.Sprint(i))
}

func open(url string, create bool) (*Store, error) { // nolint:gocyclo
	if url != ":memory:" {
		url = strings.TrimRight(url, "/")

		exists := true
		if _, err := os.Stat(url); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			exists = false
		}

		if create && exists {
			return nil, ErrStoreExists
		}
		if !create && !exists {
			return nil, ErrStoreNotExists
		}

		if create {
			if err := os.MkdirAll(filepath.Dir(url), 0750); err != nil {
				return nil, err
			}
		}
	}

	cursor, err := sqlite.OpenConn(url, 0)
	if err != nil {
		return nil, err
	}
	store := &Store{cursor: cursor, types: newTypeMap()}

	if create {
		err = setPragma(store.cursor, "application_id", elementaryApplicationID)
		if err != nil {
			store.cursor.Close() // nolint:errcheck
			return nil, err
		}

		err = setPragma(store.cursor, "user_version", storeVersion)
		if err != nil {
			store.cursor.Close() // nolint:errcheck
			return nil, err
		}

		err = exec(store.cursor, "CREATE VIRTUAL TABLE `elements` "+
			"USING fts5(id UNINDEXED, json, insert_time UNINDEXED, tokenize=\"unicode61 tokenchars '/.'\")")
		if err != nil {
			store.cursor.Close() // nolint:errcheck
			return nil, err
		}
	} else if err := store.checkFormat(); err != nil {
		store.cursor.Close() // nolint:errcheck
		return nil, err
	}

	if err := exec(store.cursor, sqlarTable); err != nil {
		store.cursor.Close() // nolint:errcheck
		return nil, err
	}

	if err := store.setupTypes(); err != nil {
		store.cursor.Close() // nolint:errcheck
		return nil, err
	}

	return store, nil
}

func (store *Store) checkFormat() error {
	applicationID, err := pragma(store.cursor, "application_id")
	if err != nil {
		return err
	}
	if applicationID != elementaryApplicationID {
		msg := "wrong file format (application_id is %d, requires %d)"
		return fmt.Errorf(msg, applicationID, elementaryApplicationID)
	}

	version, err := pragma(store.cursor, "user_version")
	if err != nil {
		return err
	}
	if version != storeVersion {
		msg := "wrong file format (user_version is %d, requires %d)"
		return fmt.Errorf(msg, version, storeVersion)
	}
	return nil
}

/* ################################
#   API
################################ */

// Insert adds a single element.
func (store *Store) Insert(element JSONElement) (string, error) {
	nestedElement := map[string]interface{}{}
	if err := json.Unmarshal(element, &nestedElement); err != nil {
		return "", err
	}
	if key, ok := dottedKey(nestedElement); ok {
		return "", fmt.Errorf("element must not contain dots in keys ('%s')", key)
	}

	flatElement, err := goflatten.Flatten(nestedElement)
	if err != nil {
		return "", errors.Wrap(err, "could not flatten element")
	}

	elementType, ok := nestedElement[discriminator].(string)
	if !ok || elementType == "" {
		return "", errors.New("element requires type")
	}
	id, ok := nestedElement["id"].(string)
	if !ok {
		id = elementType + "--" + uuid.New().String()
		nestedElement["id"] = id
		flatElement["id"] = id

		element, err = json.Marshal(nestedElement)
		if err != nil {
			return "", err
		}
	}

	store.types.addAll(elementType, flatElement)

	query := "INSERT INTO `elements` (id, json, insert_time) VALUES ($id, $json, $time)"
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return "", errors.Wrap(err, fmt.Sprintf("could not prepare statement %s", query))
	}
	stmt.SetText("$id", id)
	stmt.SetText("$json", string(element))
	stmt.SetText("$time", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	_, err = stmt.Step()
	if err != nil {
		return "", errors.Wrap(err, fmt.Sprint("could not exec statement", query))
	}
	if err := stmt.Reset(); err != nil {
		return "", err
	}

	return id, nil
}

// InsertBatch adds a set of elements.
func (store *Store) InsertBatch(elements []JSONElement) ([]string, error) {
	var ids []string
	for _, element := range elements {
		id, err := store.Insert(element)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// InsertStruct converts a Go struct to a map with snake case keys and
// inserts it as an element of the given type.
func (store *Store) InsertStruct(elementType string, element interface{}) (string, error) {
	m := lower(structs.Map(element)).(map[string]interface{})
	m[discriminator] = elementType
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return store.Insert(b)
}

// InsertRecord inserts a message record. The flattened metadata keys of
// the record are stored as nested objects.
func (store *Store) InsertRecord(elementType string, record *viberextract.MessageRecord) (string, error) {
	nested, err := record.Nested(viberextract.TextColumn)
	if err != nil {
		return "", errors.Wrap(err, "could not unflatten record")
	}
	nested[discriminator] = elementType
	b, err := json.Marshal(nested)
	if err != nil {
		return "", err
	}
	return store.Insert(b)
}

// InsertResult stores all records, detections and timeline events of a run.
func (store *Store) InsertResult(result *viberextract.Result) error {
	for _, record := range result.Records {
		if _, err := store.InsertRecord(TypeMessage, record); err != nil {
			return err
		}
	}
	for _, record := range result.Detected {
		if _, err := store.InsertRecord(TypeDetection, record); err != nil {
			return err
		}
	}
	for _, event := range result.Timeline {
		if _, err := store.InsertStruct(TypeTimelineEvent, event); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a single element.
func (store *Store) Get(id string) (element JSONElement, err error) {
	stmt, err := store.cursor.Prepare("SELECT json FROM `elements` WHERE id=$id")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$id", id)

	elements, err := store.rowsToElements(stmt)
	if err != nil {
		return nil, err
	}
	if len(elements) > 0 {
		return elements[0], nil
	}
	return nil, errors.New("element does not exist")
}

// Select retrieves all elements of a type in insertion order.
func (store *Store) Select(elementType string) (elements []JSONElement, err error) {
	stmt, err := store.cursor.Prepare("SELECT json FROM `elements` WHERE json_extract(json, '$." + discriminator + "') = $type ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$type", elementType)
	return store.rowsToElements(stmt)
}

// All returns every element in insertion order.
func (store *Store) All() (elements []JSONElement, err error) {
	stmt, err := store.cursor.Prepare("SELECT json FROM `elements` ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	return store.rowsToElements(stmt)
}

// Search runs a full text search over all elements.
func (store *Store) Search(q string) (elements []JSONElement, err error) {
	stmt, err := store.cursor.Prepare("SELECT json FROM elements WHERE elements = $query")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$query", q)
	return store.rowsToElements(stmt)
}

// Close creates a view for every element type and closes the database.
func (store *Store) Close() error {
	if store.types.changed {
		_ = store.createViews()
	}
	return store.cursor.Close()
}

func (store *Store) createViews() error {
	for typeName := range store.types.all() {
		err := exec(store.cursor, fmt.Sprintf("DROP VIEW IF EXISTS '%s'", typeName))
		if err != nil {
			return err
		}
		var columns []string
		for _, field := range store.types.fields(typeName) {
			columns = append(columns, fmt.Sprintf("json_extract(json, '$.%s') as '%s'", field, field))
		}
		err = exec(store.cursor,
			fmt.Sprintf("CREATE VIEW '%s' AS SELECT %s FROM elements WHERE json_extract(json, '$.%s') = '%s'",
				typeName, strings.Join(columns, ", "), discriminator, typeName),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

/* ################################
#   Intern
################################ */

func (store *Store) rowsToElements(stmt *sqlite.Stmt) (elements []JSONElement, err error) {
	elements = []JSONElement{}
	for {
		if hasRow, err := stmt.Step(); err != nil {
			stmt.Reset() // nolint:errcheck
			return nil, err
		} else if !hasRow {
			break
		}
		elements = append(elements, JSONElement(stmt.GetText("json")))
	}
	return elements, stmt.Reset()
}

// setupTypes reads the fields of the existing views, so reopened stores
// keep all columns when the views are recreated.
func (store *Store) setupTypes() error {
	stmt, err := store.cursor.Prepare("SELECT name FROM sqlite_master WHERE type = 'view'")
	if err != nil {
		return err
	}
	var views []string
	for {
		if hasRow, err := stmt.Step(); err != nil {
			stmt.Reset() // nolint:errcheck
			return err
		} else if !hasRow {
			break
		}
		views = append(views, stmt.GetText("name"))
	}
	if err := stmt.Reset(); err != nil {
		return err
	}

	for _, name := range views {
		pragmaStmt, _, err := store.cursor.PrepareTransient(fmt.Sprintf("PRAGMA table_info (\"%s\")", name))
		if err != nil {
			return err
		}
		for {
			if hasRow, err := pragmaStmt.Step(); err != nil {
				pragmaStmt.Finalize() // nolint:errcheck
				return err
			} else if !hasRow {
				break
			}
			store.types.add(name, pragmaStmt.GetText("name"))
		}
		if err := pragmaStmt.Finalize(); err != nil {
			return err
		}
	}
	store.types.changed = false
	return nil
}

// Type returns the type of an element.
func Type(element JSONElement) string {
	return gjson.GetBytes(element, discriminator).String()
}

func exec(conn *sqlite.Conn, query string) error {
	stmt, _, err := conn.PrepareTransient(query)
	if err != nil {
		return err
	}
	if _, err = stmt.Step(); err != nil {
		stmt.Finalize() // nolint:errcheck
		return err
	}
	return stmt.Finalize()
}
