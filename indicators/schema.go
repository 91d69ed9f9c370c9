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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/forensicanalysis/stixgo"
	"github.com/pkg/errors"
	"github.com/qri-io/jsonschema"
	"github.com/tidwall/gjson"
)

const schemaBase = "http://raw.githubusercontent.com/oasis-open/cti-stix2-json-schemas/stix2.1/schemas/"

// object schemas are looked up in this order
var schemaDirs = []string{"sdos", "sros", "observables", "common"} // nolint:gochecknoglobals

// nolint:gochecknoglobals
var (
	schemaOnce sync.Once
	schemaErr  error
)

func loadSchemas() error {
	schemaOnce.Do(func() {
		registry := jsonschema.GetSchemaRegistry()
		for name, content := range stixgo.FS {
			// convert to draft/2019-09
			content = bytes.ReplaceAll(content, []byte(`"definitions"`), []byte(`"$defs"`))
			content = bytes.ReplaceAll(content, []byte(`"#/definitions/`), []byte(`"#/$defs/`))
			content = bytes.ReplaceAll(content,
				[]byte(`"$schema": "http://json-schema.org/draft-07/schema#",`),
				[]byte(`"$schema": "https://json-schema.org/draft/2019-09/schema#",`),
			)

			schema := &jsonschema.Schema{}
			if err := json.Unmarshal(content, schema); err != nil {
				schemaErr = errors.Wrapf(err, "unmarshal error %s", name)
				return
			}

			id, ok := schema.JSONProp("$id").(*jsonschema.ID)
			if !ok {
				schemaErr = errors.Errorf("schema %s has no $id", name)
				return
			}
			schema.Resolve(nil, string(*id))
			registry.Register(schema)
		}
	})
	return schemaErr
}

func knownSchema(objectType string) *jsonschema.Schema {
	registry := jsonschema.GetSchemaRegistry()
	for _, dir := range schemaDirs {
		if schema := registry.GetKnown(schemaBase + dir + "/" + objectType + ".json"); schema != nil {
			return schema
		}
	}
	return nil
}

// Validate checks the objects of a STIX2 bundle against the STIX2 JSON
// schemas. Objects of unknown types are not checked.
func Validate(bundle []byte) (flaws []string, err error) {
	if !gjson.ValidBytes(bundle) {
		return nil, errors.New("bundle is not valid JSON")
	}
	objects := gjson.GetBytes(bundle, "objects")
	if !objects.IsArray() {
		return []string{"bundle has no objects"}, nil
	}

	if err := loadSchemas(); err != nil {
		return nil, err
	}

	flaws = []string{}
	objects.ForEach(func(_, object gjson.Result) bool {
		objectType := object.Get("type")
		if !objectType.Exists() {
			flaws = append(flaws, "object needs to have a type")
			return true
		}
		schema := knownSchema(objectType.String())
		if schema == nil {
			return true
		}
		errs, verr := schema.ValidateBytes(context.Background(), []byte(object.Raw))
		if verr != nil {
			err = verr
			return false
		}
		for _, e := range errs {
			flaws = append(flaws, fmt.Sprintf("failed to validate %s: %s", object.Get("id").String(), e))
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return flaws, nil
}
