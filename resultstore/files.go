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

package resultstore

import (
	"io"
	"io/ioutil"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Source files are kept in a sqlite archive table, so the store can be
// opened with `sqlite3 -A`. Content is stored uncompressed (sz equals the
// blob length).
const sqlarTable = `CREATE TABLE IF NOT EXISTS sqlar(
  name TEXT PRIMARY KEY,  -- name of the file
  mode INT,               -- access permissions
  mtime INT,              -- last modification time
  sz INT,                 -- original file size
  data BLOB               -- content
);`

// StoreFile copies the file srcPath from fs into the archive as name.
func (store *Store) StoreFile(fs afero.Fs, srcPath, name string) error {
	name = normalizeFilename(name)
	if name == "" {
		return errors.New("file name must not be empty")
	}

	src, err := fs.Open(srcPath)
	if err != nil {
		return errors.Wrapf(err, "could not open %s", srcPath)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return err
	}

	stmt, err := store.cursor.Prepare("INSERT INTO sqlar (name, mode, mtime, sz, data) VALUES ($name, $mode, $mtime, $sz, $data)")
	if err != nil {
		return err
	}
	stmt.SetText("$name", name)
	stmt.SetInt64("$mode", int64(info.Mode()))
	stmt.SetInt64("$mtime", info.ModTime().Unix())
	stmt.SetInt64("$sz", info.Size())
	stmt.SetZeroBlob("$data", info.Size())
	if _, err := stmt.Step(); err != nil {
		stmt.Reset() // nolint:errcheck
		return errors.Wrapf(err, "could not add %s", name)
	}
	if err := stmt.Reset(); err != nil {
		return err
	}

	blob, err := store.cursor.OpenBlob("", "sqlar", "data", store.cursor.LastInsertRowID(), true)
	if err != nil {
		return err
	}
	if _, err := io.CopyN(blob, src, info.Size()); err != nil {
		blob.Close() // nolint:errcheck
		return errors.Wrapf(err, "could not copy %s", srcPath)
	}
	return blob.Close()
}

// LoadFile returns the content of an archived file.
func (store *Store) LoadFile(name string) ([]byte, error) {
	stmt, err := store.cursor.Prepare("SELECT rowid FROM sqlar WHERE name = $name")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$name", normalizeFilename(name))
	hasRow, err := stmt.Step()
	if err != nil {
		stmt.Reset() // nolint:errcheck
		return nil, err
	}
	if !hasRow {
		stmt.Reset() // nolint:errcheck
		return nil, errors.Errorf("file %s does not exist", name)
	}
	rowID := stmt.GetInt64("rowid")
	if err := stmt.Reset(); err != nil {
		return nil, err
	}

	blob, err := store.cursor.OpenBlob("", "sqlar", "data", rowID, false)
	if err != nil {
		return nil, err
	}
	defer blob.Close()
	return ioutil.ReadAll(blob)
}

// Files lists the names of all archived files.
func (store *Store) Files() ([]string, error) {
	stmt, err := store.cursor.Prepare("SELECT name FROM sqlar ORDER BY name")
	if err != nil {
		return nil, err
	}
	var names []string
	for {
		if hasRow, err := stmt.Step(); err != nil {
			stmt.Reset() // nolint:errcheck
			return nil, err
		} else if !hasRow {
			break
		}
		names = append(names, stmt.GetText("name"))
	}
	return names, stmt.Reset()
}

func normalizeFilename(name string) string {
	name = path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimPrefix(name, "/")
}
