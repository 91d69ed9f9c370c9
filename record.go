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

package viberextract

import (
	"encoding/json"
	"strings"

	"github.com/forensicanalysis/viberextract/goflatten"
	"github.com/forensicanalysis/viberextract/rowreader"
)

// MessageRecord is a single normalized message.
type MessageRecord struct {
	PK             int64
	Date           interface{}
	ISODate        string
	Text           string
	Sender         string
	ClientMetadata string

	// Columns holds every column of the source row in storage order.
	Columns rowreader.RawRow
	// Metadata holds the flattened client metadata keyed by
	// <column>.<key> or <column>.<key>.<subkey>.
	Metadata map[string]interface{}
	// Links is nil if the record carries no links field. A non nil, empty
	// slice is a present but empty links field.
	Links            []string
	MatchedIndicator *Indicator
}

// Get returns the value of a flattened metadata key or of an original column.
func (r *MessageRecord) Get(field string) (interface{}, bool) {
	if value, ok := r.Metadata[field]; ok {
		return value, true
	}
	return r.Columns.Get(field)
}

// Clone returns a deep copy of the record that shares no slices or maps
// with r.
func (r *MessageRecord) Clone() *MessageRecord {
	c := *r
	c.Columns = append(rowreader.RawRow(nil), r.Columns...)
	c.Metadata = make(map[string]interface{}, len(r.Metadata))
	for k, v := range r.Metadata {
		c.Metadata[k] = v
	}
	if r.Links != nil {
		c.Links = append([]string{}, r.Links...)
	}
	if r.MatchedIndicator != nil {
		indicator := *r.MatchedIndicator
		c.MatchedIndicator = &indicator
	}
	return &c
}

// Flat returns the record as a flat map of the original columns and the
// derived fields. Null text columns are empty strings.
func (r *MessageRecord) Flat(textColumn string) map[string]interface{} {
	flat := make(map[string]interface{}, len(r.Columns)+len(r.Metadata)+3)
	for _, column := range r.Columns {
		flat[column.Name] = column.Value
	}
	if textColumn != "" {
		flat[textColumn] = r.Text
	}
	flat["isodate"] = r.ISODate
	for k, v := range r.Metadata {
		flat[k] = v
	}
	if r.Links != nil {
		flat["links"] = r.Links
	}
	if r.MatchedIndicator != nil {
		flat["matched_indicator"] = r.MatchedIndicator
	}
	return flat
}

// Nested returns the record with the flattened metadata keys expanded
// into nested objects again. Null values are omitted.
func (r *MessageRecord) Nested(textColumn string) (map[string]interface{}, error) {
	flat := r.Flat(textColumn)
	delete(flat, "links")
	delete(flat, "matched_indicator")
	// the raw metadata column is replaced by its parsed keys
	for k := range r.Metadata {
		if i := strings.Index(k, goflatten.Delimiter); i > 0 {
			if _, ok := flat[k[:i]].(map[string]interface{}); !ok {
				delete(flat, k[:i])
			}
		}
	}
	nested, err := goflatten.Unflatten(flat)
	if err != nil {
		return nil, err
	}
	if r.Links != nil {
		nested["links"] = r.Links
	}
	if r.MatchedIndicator != nil {
		nested["matched_indicator"] = r.MatchedIndicator
	}
	return nested, nil
}

// MarshalJSON encodes the flat representation of the record.
func (r *MessageRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Flat(TextColumn))
}
