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

// Package mactime converts Apple absolute time values, seconds since
// 2001-01-01 00:00:00 UTC, into ISO 8601 timestamps.
package mactime

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Layout is the timestamp layout used for all converted values.
const Layout = "2006-01-02 15:04:05.000000"

// NoTimestamp is returned for absent, zero and unconvertible values.
const NoTimestamp = ""

// Offset is the number of seconds between the unix epoch and the Apple epoch.
const Offset = 978307200

var epoch = time.Unix(Offset, 0).UTC()

// larger values overflow time.Duration
const maxSeconds = 9e9

// ToTime converts an Apple absolute time value into a UTC time. Supported
// values are int64, int, float64 and numeric strings. Integers with 18
// digits use a finer resolution and are reduced to their first 9 digits.
func ToTime(value interface{}) (time.Time, bool) {
	var seconds float64
	switch v := value.(type) {
	case int64:
		seconds = float64(truncate(v))
	case int:
		seconds = float64(truncate(int64(v)))
	case float64:
		seconds = v
	case string:
		v = strings.TrimSpace(v)
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			seconds = float64(truncate(i))
		} else if f, err := strconv.ParseFloat(v, 64); err == nil {
			seconds = f
		} else {
			return time.Time{}, false
		}
	default:
		return time.Time{}, false
	}

	if seconds == 0 || math.IsNaN(seconds) || math.Abs(seconds) > maxSeconds {
		return time.Time{}, false
	}

	whole, frac := math.Modf(seconds)
	nanos := math.Round(frac*1e6) * 1e3
	return epoch.Add(time.Duration(whole) * time.Second).Add(time.Duration(nanos)), true
}

// ToISO converts an Apple absolute time value into a timestamp string or
// NoTimestamp.
func ToISO(value interface{}) string {
	t, ok := ToTime(value)
	if !ok {
		return NoTimestamp
	}
	return t.Format(Layout)
}

// FromTime returns the Apple absolute time of t in seconds.
func FromTime(t time.Time) float64 {
	return float64(t.UnixNano())/1e9 - Offset
}

func truncate(i int64) int64 {
	s := strconv.FormatInt(i, 10)
	if len(s) == 18 {
		truncated, _ := strconv.ParseInt(s[:9], 10, 64)
		return truncated
	}
	return i
}
