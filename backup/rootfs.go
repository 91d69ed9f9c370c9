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

package backup

import (
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// rootFS exposes the directory root of an afero.Fs as an io/fs.FS with
// unrooted, slash separated names.
type rootFS struct {
	fs   afero.Fs
	root string
}

func (r *rootFS) path(op, name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	return filepath.Join(r.root, filepath.FromSlash(name)), nil
}

// Open opens the named file below root.
func (r *rootFS) Open(name string) (fs.File, error) {
	path, err := r.path("open", name)
	if err != nil {
		return nil, err
	}
	return r.fs.Open(path)
}

// Stat returns the file info of the named file below root.
func (r *rootFS) Stat(name string) (fs.FileInfo, error) {
	path, err := r.path("stat", name)
	if err != nil {
		return nil, err
	}
	return r.fs.Stat(path)
}

// ReadDir returns the entries of the named directory sorted by name.
func (r *rootFS) ReadDir(name string) ([]fs.DirEntry, error) {
	path, err := r.path("readdir", name)
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(r.fs, path)
	if err != nil {
		return nil, err
	}
	entries := make([]fs.DirEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, fs.FileInfoToDirEntry(info))
	}
	return entries, nil
}
