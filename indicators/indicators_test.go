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

package indicators

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const exampleBundle = `{
	"type": "bundle",
	"id": "bundle--5d0092c5-5f74-4287-9642-33f4c354e56d",
	"objects": [
		{
			"type": "malware",
			"id": "malware--2daf9dfc-c8ea-4ec4-bd38-a3b68f1a2ea1",
			"name": "Predator",
			"is_family": false
		},
		{
			"type": "indicator",
			"id": "indicator--2cc7ce4e-6a59-4a01-8b8b-b6c64d6b6b9a",
			"pattern": "[domain-name:value='Evil.Example.org']",
			"pattern_type": "stix"
		},
		{
			"type": "indicator",
			"id": "indicator--a8fe2b76-6b5c-4ee4-a9c6-7f4b9cf2b0d8",
			"pattern": "[domain-name:value = 'kingdom-deals.com']",
			"pattern_type": "stix"
		},
		{
			"type": "indicator",
			"id": "indicator--0a4c8f34-8b6a-4e39-9a64-36e9c5f3f1e7",
			"pattern": "[process:name='bh']",
			"pattern_type": "stix"
		},
		{
			"type": "indicator",
			"id": "indicator--15e4f4d2-6a0b-4d53-a8e4-1b6d7d8d0c11",
			"pattern": "[broken]",
			"pattern_type": "stix"
		}
	]
}`

func loadExample(t *testing.T) *Indicators {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/iocs/predator.stix2", []byte(exampleBundle), 0644))

	indicators := New(nil)
	indicators.Fs = fs
	require.NoError(t, indicators.ParseSTIX2("/iocs/predator.stix2"))
	return indicators
}

func TestIndicators_ParseSTIX2(t *testing.T) {
	indicators := loadExample(t)

	require.Len(t, indicators.Collections(), 1)
	collection := indicators.Collections()[0]
	assert.Equal(t, "Predator", collection.Name)
	assert.Equal(t, "predator.stix2", collection.STIX2File)
	assert.Equal(t, []string{"evil.example.org", "kingdom-deals.com"}, collection.Domains)
	assert.Equal(t, 2, indicators.Count())
}

func TestIndicators_ParseSTIX2Bytes_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"Invalid JSON", `{"objects": [`},
		{"No Objects", `{"type": "bundle"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, New(nil).ParseSTIX2Bytes("x.stix2", []byte(tt.data)))
		})
	}

	indicators := New(nil)
	indicators.Fs = afero.NewMemMapFs()
	assert.Error(t, indicators.ParseSTIX2("/missing.stix2"))
}

func TestIndicators_ParseSTIX2Bytes_Unnamed(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	indicators := New(zap.New(core))
	require.NoError(t, indicators.ParseSTIX2Bytes("custom.stix2", []byte(`{"objects": [
		{"type": "indicator", "pattern": "[domain-name:value='a.com']"}
	]}`)))

	assert.Equal(t, "custom.stix2", indicators.Collections()[0].Name)
	require.Equal(t, 1, logs.FilterMessage("loaded indicators").Len())
	assert.Equal(t, int64(1), logs.FilterMessage("loaded indicators").All()[0].ContextMap()["domains"])
}

func TestIndicators_CheckDomain(t *testing.T) {
	indicators := loadExample(t)

	tests := []struct {
		name string
		link string
		want string
	}{
		{"Host", "https://kingdom-deals.com/offer", "kingdom-deals.com"},
		{"Subdomain", "https://www.kingdom-deals.com/offer?id=1", "kingdom-deals.com"},
		{"No Scheme", "kingdom-deals.com/offer", "kingdom-deals.com"},
		{"Upper Case", "HTTPS://EVIL.EXAMPLE.ORG/", "evil.example.org"},
		{"Port", "http://evil.example.org:8080/x", "evil.example.org"},
		{"Other Domain", "https://example.org", ""},
		{"Similar Domain", "https://notkingdom-deals.com", ""},
		{"Path Only", "https://tinyurl.com/kingdom-deals.com", ""},
		{"Unparsable", "http://%zz.kingdom-deals.com/", "kingdom-deals.com"},
		{"Empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := indicators.CheckDomain(tt.link)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Value)
			assert.Equal(t, TypeDomain, got.Type)
			assert.Equal(t, "Predator", got.Name)
			assert.Equal(t, "predator.stix2", got.STIX2File)
		})
	}
}

func TestIndicators_CheckDomains(t *testing.T) {
	indicators := loadExample(t)
	indicators.AddDomain("extra", "tinyurl.com")

	got, err := indicators.CheckDomains([]string{"https://example.com", "https://tinyurl.com/2p8nd4mj", "https://kingdom-deals.com"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tinyurl.com", got.Value)
	assert.Equal(t, "extra", got.Name)

	got, err = indicators.CheckDomains(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	var empty *Indicators
	got, err = empty.CheckDomains([]string{"https://kingdom-deals.com"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIndicators_AddDomain(t *testing.T) {
	indicators := loadExample(t)
	indicators.AddDomain("Predator", "Second.Example.NET")

	require.Len(t, indicators.Collections(), 1)
	assert.Equal(t, 3, indicators.Count())
	got := indicators.CheckDomain("https://second.example.net")
	require.NotNil(t, got)
	assert.Equal(t, "Predator", got.Name)

	// the substring matcher is rebuilt after the update
	got = indicators.CheckDomain("http://%zz.second.example.net")
	require.NotNil(t, got)
	assert.Equal(t, "second.example.net", got.Value)
}

func Test_parsePattern(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		wantKey   string
		wantValue string
		wantOK    bool
	}{
		{"Domain", "[domain-name:value = 'example.com']", "domain-name:value", "example.com", true},
		{"No Spaces", "[domain-name:value='example.com']", "domain-name:value", "example.com", true},
		{"No Comparison", "[domain-name:value]", "", "", false},
		{"Empty Value", "[domain-name:value = '']", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, value, ok := parsePattern(tt.pattern)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantValue, value)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
