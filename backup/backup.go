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

// Package backup locates application databases in iOS backups and file
// system dumps.
package backup

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forensicanalysis/fsdoublestar"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ErrDatabaseNotFound is returned if none of the candidates exists.
var ErrDatabaseNotFound = errors.New("database not found")

// Locator finds files in an extracted backup.
type Locator struct {
	Fs afero.Fs
}

// NewLocator creates a Locator on the operating system file system.
func NewLocator() *Locator {
	return &Locator{Fs: afero.NewOsFs()}
}

// Find returns the path of the first backup file with one of the backup ids,
// stored as <root>/<id[0:2]>/<id>. If none exists, the first file matching
// one of the root path patterns below root is returned.
func (l *Locator) Find(root string, backupIDs, rootPaths []string) (string, error) {
	for _, id := range backupIDs {
		if len(id) < 2 {
			continue
		}
		path := filepath.Join(root, id[0:2], id)
		if ok, err := l.isFile(path); err != nil {
			return "", err
		} else if ok {
			return path, nil
		}
	}

	dump := &rootFS{fs: l.Fs, root: root}
	for _, pattern := range rootPaths {
		matches, err := fsdoublestar.Glob(dump, strings.TrimPrefix(filepath.ToSlash(pattern), "/"))
		if err != nil {
			return "", errors.Wrapf(err, "could not glob %s", pattern)
		}
		sort.Strings(matches)
		for _, match := range matches {
			path := filepath.Join(root, filepath.FromSlash(match))
			if ok, err := l.isFile(path); err != nil {
				return "", err
			} else if ok {
				return path, nil
			}
		}
	}

	return "", errors.Wrapf(ErrDatabaseNotFound, "in %s", root)
}

func (l *Locator) isFile(path string) (bool, error) {
	info, err := l.Fs.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "could not stat %s", path)
	}
	return !info.IsDir(), nil
}
