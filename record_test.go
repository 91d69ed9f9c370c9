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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/viberextract/rowreader"
)

func exampleRecord() *MessageRecord {
	return &MessageRecord{
		PK:      2,
		Date:    int64(647000100),
		ISODate: "2021-07-03 10:15:00.000000",
		Columns: rowreader.RawRow{
			{Name: "Z_PK", Value: int64(2)},
			{Name: "ZDATE", Value: int64(647000100)},
			{Name: "ZTEXT", Value: nil},
		},
		Metadata: map[string]interface{}{
			"ZCLIENTMETADATA.URLMessage.receivedUrl": "https://example.com",
			"ZCLIENTMETADATA.isForward":              0.0,
		},
		Links: []string{},
	}
}

func TestMessageRecord_Get(t *testing.T) {
	record := exampleRecord()

	value, ok := record.Get("ZCLIENTMETADATA.URLMessage.receivedUrl")
	assert.True(t, ok)
	assert.Equal(t, "https://example.com", value)

	value, ok = record.Get("ZDATE")
	assert.True(t, ok)
	assert.Equal(t, int64(647000100), value)

	_, ok = record.Get("ZFROMJID")
	assert.False(t, ok)
}

func TestMessageRecord_Clone(t *testing.T) {
	record := exampleRecord()
	record.MatchedIndicator = &Indicator{Value: "example.com"}

	clone := record.Clone()
	assert.Equal(t, record, clone)

	clone.Columns[0].Value = int64(3)
	clone.Metadata["ZCLIENTMETADATA.isForward"] = 1.0
	clone.MatchedIndicator.Value = "other.com"

	assert.Equal(t, int64(2), record.Columns[0].Value)
	assert.Equal(t, 0.0, record.Metadata["ZCLIENTMETADATA.isForward"])
	assert.Equal(t, "example.com", record.MatchedIndicator.Value)

	record.Links = nil
	assert.Nil(t, record.Clone().Links)
}

func TestMessageRecord_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(exampleRecord())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"Z_PK": 2,
		"ZDATE": 647000100,
		"ZTEXT": "",
		"isodate": "2021-07-03 10:15:00.000000",
		"ZCLIENTMETADATA.URLMessage.receivedUrl": "https://example.com",
		"ZCLIENTMETADATA.isForward": 0,
		"links": []
	}`, string(b))

	record := exampleRecord()
	record.Links = nil
	b, err = json.Marshal(record)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "links")
}

func TestMessageRecord_Nested(t *testing.T) {
	record := exampleRecord()
	record.Links = []string{"https://example.com"}

	nested, err := record.Nested(TextColumn)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"Z_PK":    int64(2),
		"ZDATE":   int64(647000100),
		"ZTEXT":   "",
		"isodate": "2021-07-03 10:15:00.000000",
		"ZCLIENTMETADATA": map[string]interface{}{
			"URLMessage": map[string]interface{}{"receivedUrl": "https://example.com"},
			"isForward":  0.0,
		},
		"links": []string{"https://example.com"},
	}, nested)
}

func TestMessageRecord_Nested_RawMetadata(t *testing.T) {
	record := exampleRecord()
	record.Columns = append(record.Columns, rowreader.Column{
		Name:  "ZCLIENTMETADATA",
		Value: `{"URLMessage": {"receivedUrl": "https://example.com"}, "isForward": 0}`,
	})

	nested, err := record.Nested(TextColumn)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"URLMessage": map[string]interface{}{"receivedUrl": "https://example.com"},
		"isForward":  0.0,
	}, nested["ZCLIENTMETADATA"])
}
