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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerialize(t *testing.T) {
	tests := []struct {
		name   string
		record *MessageRecord
		want   string
	}{
		{"Text", &MessageRecord{Text: "Hi there", Sender: "alice@s.viber"}, "'Hi there' from alice@s.viber"},
		{"Unknown Sender", &MessageRecord{Text: "Hi there"}, "'Hi there' from Unknown"},
		{"Newlines", &MessageRecord{Text: "a\nb\n"}, `'a\nb\n' from Unknown`},
		{"Links", &MessageRecord{Text: "x", Links: []string{"https://a.com", "b.org"}}, "'x' from Unknown - Embedded links: https://a.com, b.org"},
		{"Empty Links", &MessageRecord{Links: []string{}}, "'' from Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Serialize(tt.record)
			assert.Equal(t, tt.want, got.Data)
			assert.Equal(t, ModuleName, got.Module)
			assert.Equal(t, EventMessage, got.Event)
		})
	}
}

func TestToTimeline(t *testing.T) {
	records := []*MessageRecord{
		{ISODate: "2021-07-03 10:15:00.000000", Text: "second"},
		{ISODate: "2021-07-03 10:13:20.000000", Text: "first"},
		{ISODate: "2021-07-03 10:15:00.000000", Text: "second"},
		{ISODate: "2021-07-03 10:15:00.000000", Text: "third"},
	}

	timeline := ToTimeline(records)
	assert.Equal(t, []TimelineEvent{
		{Timestamp: "2021-07-03 10:13:20.000000", Module: ModuleName, Event: EventMessage, Data: "'first' from Unknown"},
		{Timestamp: "2021-07-03 10:15:00.000000", Module: ModuleName, Event: EventMessage, Data: "'second' from Unknown"},
		{Timestamp: "2021-07-03 10:15:00.000000", Module: ModuleName, Event: EventMessage, Data: "'third' from Unknown"},
	}, timeline)

	assert.Equal(t, []TimelineEvent{}, ToTimeline(nil))
}
