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

// Package indicators loads indicators of compromise from STIX2 bundles and
// matches links against the domain indicators.
package indicators

import (
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/forensicanalysis/viberextract"
)

// TypeDomain is the indicator type of domain indicators.
const TypeDomain = "domain"

const domainPattern = "domain-name:value"

// Collection is a named set of indicators, usually loaded from a single
// STIX2 file.
type Collection struct {
	Name      string
	STIX2File string
	Domains   []string
}

type domainRef struct {
	collection *Collection
	value      string
}

// Indicators holds indicator collections. It implements
// viberextract.Indicators.
type Indicators struct {
	Fs  afero.Fs
	log *zap.Logger

	collections []*Collection

	mu      sync.Mutex
	domains []domainRef
	matcher *ahocorasick.Matcher
}

// New creates an empty set of indicators that reads files from the
// operating system.
func New(logger *zap.Logger) *Indicators {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indicators{Fs: afero.NewOsFs(), log: logger}
}

// Collections returns all loaded collections.
func (i *Indicators) Collections() []*Collection {
	return i.collections
}

// Count returns the number of domain indicators.
func (i *Indicators) Count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.domains)
}

// ParseSTIX2 loads the indicators of a STIX2 bundle file.
func (i *Indicators) ParseSTIX2(path string) error {
	data, err := afero.ReadFile(i.Fs, path)
	if err != nil {
		return errors.Wrap(err, "could not read indicators file")
	}
	return i.ParseSTIX2Bytes(filepath.Base(path), data)
}

// ParseSTIX2Bytes loads the indicators of a STIX2 bundle. The collection
// is named after the first malware object of the bundle or after name.
func (i *Indicators) ParseSTIX2Bytes(name string, data []byte) error {
	if !gjson.ValidBytes(data) {
		return errors.Errorf("%s is not a valid STIX2 bundle", name)
	}
	objects := gjson.GetBytes(data, "objects")
	if !objects.IsArray() {
		return errors.Errorf("%s contains no STIX2 objects", name)
	}

	collection := &Collection{Name: name, STIX2File: name}
	if malware := gjson.GetBytes(data, `objects.#(type=="malware").name`); malware.Exists() {
		collection.Name = malware.String()
	}

	objects.ForEach(func(_, object gjson.Result) bool {
		if object.Get("type").String() != "indicator" {
			return true
		}
		key, value, ok := parsePattern(object.Get("pattern").String())
		if !ok {
			i.log.Debug("skipping indicator with unsupported pattern", zap.String("id", object.Get("id").String()))
			return true
		}
		if key == domainPattern {
			collection.Domains = append(collection.Domains, strings.ToLower(value))
		}
		return true
	})

	i.addCollection(collection)
	i.log.Info("loaded indicators",
		zap.String("collection", collection.Name),
		zap.String("file", name),
		zap.Int("domains", len(collection.Domains)))
	return nil
}

// AddDomain adds a domain indicator to the named collection, creating the
// collection if needed.
func (i *Indicators) AddDomain(collectionName, domain string) {
	for _, collection := range i.collections {
		if collection.Name == collectionName {
			collection.Domains = append(collection.Domains, strings.ToLower(domain))
			i.mu.Lock()
			i.domains = append(i.domains, domainRef{collection: collection, value: strings.ToLower(domain)})
			i.matcher = nil
			i.mu.Unlock()
			return
		}
	}
	i.addCollection(&Collection{Name: collectionName, Domains: []string{strings.ToLower(domain)}})
}

func (i *Indicators) addCollection(collection *Collection) {
	i.collections = append(i.collections, collection)

	i.mu.Lock()
	defer i.mu.Unlock()
	for _, domain := range collection.Domains {
		i.domains = append(i.domains, domainRef{collection: collection, value: domain})
	}
	i.matcher = nil
}

// parsePattern splits a simple STIX2 comparison like
// [domain-name:value = 'example.com'].
func parsePattern(pattern string) (key, value string, ok bool) {
	pattern = strings.Trim(strings.TrimSpace(pattern), "[]")
	parts := strings.SplitN(pattern, "=", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	key = strings.TrimSpace(parts[0])
	value = strings.Trim(strings.TrimSpace(parts[1]), "'")
	if key == "" || value == "" {
		return "", "", false
	}
	return key, value, true
}

// CheckDomains returns the indicator matching the first matching link.
func (i *Indicators) CheckDomains(links []string) (*viberextract.Indicator, error) {
	if i == nil {
		return nil, nil
	}
	for _, link := range links {
		if indicator := i.CheckDomain(link); indicator != nil {
			return indicator, nil
		}
	}
	return nil, nil
}

// CheckDomain matches the host of link and its registrable domain against
// the domain indicators. Links without a parsable host are searched for the
// indicator values instead.
func (i *Indicators) CheckDomain(link string) *viberextract.Indicator {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	host, err := hostname(link)
	if err != nil {
		return i.substringMatch(link)
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		registrable = host
	}

	for _, domain := range i.domains {
		if host == domain.value || registrable == domain.value {
			return domain.indicator()
		}
	}
	return nil
}

func (i *Indicators) substringMatch(link string) *viberextract.Indicator {
	if len(i.domains) == 0 {
		return nil
	}
	if i.matcher == nil {
		values := make([]string, len(i.domains))
		for j, domain := range i.domains {
			values[j] = domain.value
		}
		i.matcher = ahocorasick.NewStringMatcher(values)
	}

	hits := i.matcher.Match([]byte(strings.ToLower(link)))
	if len(hits) == 0 {
		return nil
	}
	first := hits[0]
	for _, hit := range hits {
		if hit < first {
			first = hit
		}
	}
	return i.domains[first].indicator()
}

func (d domainRef) indicator() *viberextract.Indicator {
	return &viberextract.Indicator{
		Value:     d.value,
		Type:      TypeDomain,
		Name:      d.collection.Name,
		STIX2File: d.collection.STIX2File,
	}
}

func hostname(link string) (string, error) {
	if !strings.Contains(link, "://") {
		link = "http://" + link
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", errors.Errorf("no host in %s", link)
	}
	return host, nil
}
