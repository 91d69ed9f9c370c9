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

// Package viberextract extracts Viber messages from the Contacts.data
// database of an iOS backup, recovers the links embedded in them and checks
// those links against indicators of compromise.
//
// Extractor.Extract makes a single sequential pass over the ZVIBERMESSAGE
// table with rowreader.Each. Every row is converted by Extractor.Normalize
// into a MessageRecord with an isodate and flattened ZCLIENTMETADATA keys.
// The links of ZTEXT and ZCLIENTMETADATA.URLMessage.receivedUrl are then
// collected with ExtractLinks, and internal media links are dropped with
// FilterLinks. Extractor.Run additionally matches the records with
// CheckIndicators and builds the timeline with ToTimeline.
package viberextract

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/forensicanalysis/viberextract/rowreader"
)

// ModuleName is the module name used in timeline events.
const ModuleName = "Viber"

// Column names of the ZVIBERMESSAGE table.
const (
	Table          = "ZVIBERMESSAGE"
	PKColumn       = "Z_PK"
	DateColumn     = "ZDATE"
	TextColumn     = "ZTEXT"
	SenderColumn   = "ZFROMJID"
	MetadataColumn = "ZCLIENTMETADATA"
)

// BackupIDs are the file ids of the Viber database in iOS backups.
var BackupIDs = []string{ // nolint:gochecknoglobals
	"83b9310399a905c7781f95580174f321cd18fd97",
}

// RootPaths are the locations of the Viber database in full file system dumps.
var RootPaths = []string{ // nolint:gochecknoglobals
	"private/var/mobile/Containers/*/com.viber/*/Contacts.data",
}

// ExcludedURLPrefixes are internal media links that are never reported.
var ExcludedURLPrefixes = []string{ // nolint:gochecknoglobals
	"https://mmg-fna.whatsapp.net/",
	"https://mmg.whatsapp.net/",
}

// LinkFields are the fields that are searched for links, in order.
var LinkFields = []string{ // nolint:gochecknoglobals
	TextColumn,
	MetadataColumn + ".URLMessage.receivedUrl",
}

// Options configures an Extractor.
type Options struct {
	Table          string
	DateColumn     string
	TextColumn     string
	SenderColumn   string
	MetadataColumn string

	LinkFields          []string
	ExcludedURLPrefixes []string

	// UniqueLinks removes duplicate links of a record. Without it every
	// link found is kept in discovery order.
	UniqueLinks bool
}

// DefaultOptions returns the options for the Viber ZVIBERMESSAGE table.
func DefaultOptions() Options {
	return Options{
		Table:               Table,
		DateColumn:          DateColumn,
		TextColumn:          TextColumn,
		SenderColumn:        SenderColumn,
		MetadataColumn:      MetadataColumn,
		LinkFields:          append([]string{}, LinkFields...),
		ExcludedURLPrefixes: append([]string{}, ExcludedURLPrefixes...),
		UniqueLinks:         true,
	}
}

func (o Options) requiredColumns() []string {
	return []string{o.DateColumn, o.TextColumn}
}

// Extractor turns the rows of a Viber database into message records.
type Extractor struct {
	options Options
	columns map[string]columnSetter
	log     *zap.Logger
}

// Result contains all records of a run, the records that matched an
// indicator and the timelines of both.
type Result struct {
	Records          []*MessageRecord
	Detected         []*MessageRecord
	Timeline         []TimelineEvent
	TimelineDetected []TimelineEvent
}

// New creates an Extractor. A nil logger discards all log messages.
func New(options Options, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		options: options,
		columns: options.columnTable(),
		log:     logger.With(zap.String("module", ModuleName)),
	}
}

// Options returns the options of the extractor.
func (e *Extractor) Options() Options {
	return e.options
}

// Extract reads all messages of the database at path in storage order.
func (e *Extractor) Extract(path string) ([]*MessageRecord, error) {
	records := []*MessageRecord{}
	err := rowreader.Each(path, e.options.Table, e.options.requiredColumns(), func(row rowreader.RawRow) error {
		record, err := e.Normalize(row)
		if err != nil {
			return err
		}
		e.attachLinks(record)
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("extracted Viber messages", zap.Int("count", len(records)))
	return records, nil
}

// Run extracts all messages, checks them against the indicators and
// builds the timelines. indicators may be nil.
func (e *Extractor) Run(path string, indicators Indicators) (*Result, error) {
	e.log.Info("found Viber database", zap.String("path", path))

	records, err := e.Extract(path)
	if err != nil {
		return nil, err
	}

	detected, err := CheckIndicators(records, indicators, e.log)
	if err != nil {
		return nil, errors.Wrap(err, "could not check indicators")
	}

	return &Result{
		Records:          records,
		Detected:         detected,
		Timeline:         ToTimeline(records),
		TimelineDetected: ToTimeline(detected),
	}, nil
}

func (e *Extractor) attachLinks(record *MessageRecord) {
	links := FilterLinks(ExtractLinks(record, e.options.LinkFields), e.options.ExcludedURLPrefixes)
	if len(links) == 0 && strings.TrimSpace(record.Text) != "" {
		return
	}
	if e.options.UniqueLinks {
		links = UniqueLinks(links)
	}
	record.Links = links
}
