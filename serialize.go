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
	"fmt"
	"sort"
	"strings"
)

// EventMessage is the event kind of all Viber timeline events.
const EventMessage = "message"

// UnknownSender is used for messages without a sender.
const UnknownSender = "Unknown"

// TimelineEvent is a single line of a timeline.
type TimelineEvent struct {
	Timestamp string `json:"timestamp"`
	Module    string `json:"module"`
	Event     string `json:"event"`
	Data      string `json:"data"`
}

// Serialize creates the timeline event of a record.
func Serialize(record *MessageRecord) TimelineEvent {
	text := strings.ReplaceAll(record.Text, "\n", `\n`)

	sender := record.Sender
	if sender == "" {
		sender = UnknownSender
	}

	linksText := ""
	if len(record.Links) > 0 {
		linksText = " - Embedded links: " + strings.Join(record.Links, ", ")
	}

	return TimelineEvent{
		Timestamp: record.ISODate,
		Module:    ModuleName,
		Event:     EventMessage,
		Data:      fmt.Sprintf("'%s' from %s%s", text, sender, linksText),
	}
}

// ToTimeline serializes the records, drops duplicate events and sorts the
// events by timestamp. Events with equal timestamps keep their order.
func ToTimeline(records []*MessageRecord) []TimelineEvent {
	timeline := []TimelineEvent{}
	seen := map[TimelineEvent]bool{}
	for _, record := range records {
		event := Serialize(record)
		if seen[event] {
			continue
		}
		seen[event] = true
		timeline = append(timeline, event)
	}
	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Timestamp < timeline[j].Timestamp
	})
	return timeline
}
