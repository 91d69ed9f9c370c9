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
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Indicator describes the indicator of compromise that matched a record.
type Indicator struct {
	Value     string `json:"value"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	STIX2File string `json:"stix2_file_name"`
}

// Indicators checks links against indicators of compromise.
type Indicators interface {
	// CheckDomains returns the first indicator that matches one of the
	// links or nil.
	CheckDomains(links []string) (*Indicator, error)
}

// CheckIndicators checks the links of every record that has a links field.
// It returns copies of the matching records with their MatchedIndicator
// set, the records passed in are not modified.
func CheckIndicators(records []*MessageRecord, indicators Indicators, logger *zap.Logger) ([]*MessageRecord, error) {
	detected := []*MessageRecord{}
	if indicators == nil {
		return detected, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, record := range records {
		if record.Links == nil {
			continue
		}
		logger.Debug("checking links against indicators", zap.Int64("pk", record.PK), zap.Strings("links", record.Links))

		indicator, err := indicators.CheckDomains(record.Links)
		if err != nil {
			return nil, errors.Wrapf(err, "could not check links of message %d", record.PK)
		}
		if indicator == nil || indicator.Value == "" {
			continue
		}

		match := record.Clone()
		match.MatchedIndicator = indicator
		detected = append(detected, match)
		logger.Warn("found a known suspicious domain",
			zap.Int64("pk", record.PK),
			zap.String("indicator", indicator.Value),
			zap.String("collection", indicator.Name))
	}
	return detected, nil
}
