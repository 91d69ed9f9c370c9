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
	"strings"

	"mvdan.cc/xurls/v2"
)

var linkPattern = xurls.Relaxed() // nolint:gochecknoglobals

// ExtractLinks returns all links found in the given fields of the record.
// Fields are searched in the given order and each field only once; absent,
// empty and non-text fields are skipped.
func ExtractLinks(record *MessageRecord, fields []string) []string {
	links := []string{}
	seen := map[string]bool{}
	for _, field := range fields {
		if seen[field] {
			continue
		}
		seen[field] = true

		value, ok := record.Get(field)
		if !ok {
			continue
		}
		var text string
		switch v := value.(type) {
		case string:
			text = v
		case []byte:
			text = string(v)
		default:
			continue
		}
		if text == "" {
			continue
		}
		links = append(links, linkPattern.FindAllString(text, -1)...)
	}
	return links
}

// FilterLinks removes all links that start with one of the prefixes.
func FilterLinks(links, prefixes []string) []string {
	filtered := make([]string, 0, len(links))
	for _, link := range links {
		if !hasAnyPrefix(link, prefixes) {
			filtered = append(filtered, link)
		}
	}
	return filtered
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// UniqueLinks removes duplicate links, the first occurrence of each link
// keeps its position.
func UniqueLinks(links []string) []string {
	unique := make([]string, 0, len(links))
	seen := make(map[string]bool, len(links))
	for _, link := range links {
		if !seen[link] {
			seen[link] = true
			unique = append(unique, link)
		}
	}
	return unique
}
