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
	"sort"
	"sync"
)

// typeMap records the fields seen per element type. The fields become the
// columns of the per type views.
type typeMap struct {
	sync.RWMutex
	changed bool
	types   map[string]map[string]bool
}

func newTypeMap() *typeMap {
	return &typeMap{types: map[string]map[string]bool{}}
}

// all returns a copy of the recorded fields.
func (tm *typeMap) all() map[string]map[string]bool {
	tm.RLock()
	defer tm.RUnlock()
	types := make(map[string]map[string]bool, len(tm.types))
	for name, fields := range tm.types {
		types[name] = make(map[string]bool, len(fields))
		for field := range fields {
			types[name][field] = true
		}
	}
	return types
}

// fields returns the sorted fields of a type.
func (tm *typeMap) fields(name string) []string {
	tm.RLock()
	defer tm.RUnlock()
	var fields []string
	for field := range tm.types[name] {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func (tm *typeMap) add(name, field string) {
	tm.Lock()
	defer tm.Unlock()
	tm.addLocked(name, field)
}

func (tm *typeMap) addAll(name string, fields map[string]interface{}) {
	tm.Lock()
	defer tm.Unlock()
	if _, ok := tm.types[name]; !ok {
		tm.types[name] = map[string]bool{}
		tm.changed = true
	}
	for field := range fields {
		tm.addLocked(name, field)
	}
}

func (tm *typeMap) addLocked(name, field string) {
	if _, ok := tm.types[name]; !ok {
		tm.types[name] = map[string]bool{}
	}
	if !tm.types[name][field] {
		tm.types[name][field] = true
		tm.changed = true
	}
}
