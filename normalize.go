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
	"fmt"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/viberextract/goflatten"
	"github.com/forensicanalysis/viberextract/mactime"
	"github.com/forensicanalysis/viberextract/rowreader"
)

// metadataDepth is the number of metadata levels that are flattened.
const metadataDepth = 2

// MetadataParseError is returned if the client metadata of a message is not
// a JSON object.
type MetadataParseError struct {
	PK  int64
	Err error
}

func (e *MetadataParseError) Error() string {
	return fmt.Sprintf("could not parse metadata of message %d: %s", e.PK, e.Err)
}

// Cause returns the underlying error.
func (e *MetadataParseError) Cause() error { return e.Err }

// Unwrap returns the underlying error.
func (e *MetadataParseError) Unwrap() error { return e.Err }

// SchemaError is returned if a known column holds a value of an unexpected
// storage class.
type SchemaError struct {
	Column string
	Value  interface{}
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unexpected value of type %T in column %s", e.Value, e.Column)
}

type columnSetter func(record *MessageRecord, value interface{}) error

// columnTable maps the known column names to the record fields.
func (o Options) columnTable() map[string]columnSetter {
	return map[string]columnSetter{
		PKColumn: func(record *MessageRecord, value interface{}) error {
			switch v := value.(type) {
			case int64:
				record.PK = v
			case nil:
			default:
				return &SchemaError{Column: PKColumn, Value: value}
			}
			return nil
		},
		o.DateColumn: func(record *MessageRecord, value interface{}) error {
			switch value.(type) {
			case int64, float64, nil:
				record.Date = value
			default:
				return &SchemaError{Column: o.DateColumn, Value: value}
			}
			return nil
		},
		o.TextColumn: textSetter(o.TextColumn, func(record *MessageRecord, s string) { record.Text = s }),
		o.SenderColumn: textSetter(o.SenderColumn, func(record *MessageRecord, s string) { record.Sender = s }),
		o.MetadataColumn: textSetter(o.MetadataColumn, func(record *MessageRecord, s string) {
			record.ClientMetadata = s
		}),
	}
}

func textSetter(column string, set func(*MessageRecord, string)) columnSetter {
	return func(record *MessageRecord, value interface{}) error {
		switch v := value.(type) {
		case string:
			set(record, v)
		case []byte:
			set(record, string(v))
		case nil:
			set(record, "")
		default:
			return &SchemaError{Column: column, Value: value}
		}
		return nil
	}
}

// Normalize converts a database row into a message record. It converts the
// timestamp and flattens two levels of the client metadata.
func (e *Extractor) Normalize(row rowreader.RawRow) (*MessageRecord, error) {
	record := &MessageRecord{Columns: row}
	for _, column := range row {
		if set, ok := e.columns[column.Name]; ok {
			if err := set(record, column.Value); err != nil {
				return nil, err
			}
		}
	}

	record.ISODate = mactime.ToISO(record.Date)

	// only a NULL or missing column is an empty object
	metadata := map[string]interface{}{}
	if value, ok := row.Get(e.options.MetadataColumn); ok && value != nil {
		parsed, err := parseMetadata(record.ClientMetadata)
		if err != nil {
			return nil, &MetadataParseError{PK: record.PK, Err: err}
		}
		metadata = parsed
	}
	flat, err := goflatten.FlattenDepth(e.options.MetadataColumn, metadata, metadataDepth)
	if err != nil {
		return nil, &MetadataParseError{PK: record.PK, Err: err}
	}
	record.Metadata = flat

	return record, nil
}

func parseMetadata(raw string) (map[string]interface{}, error) {
	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, err
	}
	metadata, ok := value.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("metadata is a %T, not an object", value)
	}
	return metadata, nil
}
