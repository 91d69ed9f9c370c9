// Copyright (c) 2019 Nguyễn Quốc Đính
// Copyright (c) 2019 Siemens AG
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
// Author(s): Nguyễn Quốc Đính, Jonas Plum
//
// This code was adapted from
// https://github.com/nqd/flat/blob/master/flat.go

// Package goflatten provides functions to flatten and unflatten Go maps.
package goflatten

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/imdario/mergo"
)

// Delimiter separates the key levels of a flattened key.
const Delimiter = "."

// ErrKeyCollision is returned if two different paths flatten to the same key,
// e.g. {"a.b": 1, "a": {"b": 2}}.
var ErrKeyCollision = errors.New("flattened key collision")

// Flatten the map, it returns a map one level deep
// regardless of how nested the original map was.
// Slices are flattened with their index as key, nil values are dropped.
func Flatten(nested map[string]interface{}) (flatmap map[string]interface{}, err error) {
	return flatten("", nested, -1, true)
}

// FlattenDepth flattens at most depth levels of nested maps below prefix.
// Maps below that level, slices and nil values are kept as they are.
// FlattenDepth("a", {"b": {"c": {"d": 1}}}, 2) returns {"a.b.c": {"d": 1}}.
func FlattenDepth(prefix string, nested map[string]interface{}, depth int) (flatmap map[string]interface{}, err error) {
	if depth < 1 {
		return nil, fmt.Errorf("invalid depth %d", depth)
	}
	flatmap = make(map[string]interface{})
	for _, k := range Keys(nested) {
		fm, err := flatten(join(prefix, k), nested[k], depth-1, false)
		if err != nil {
			return nil, err
		}
		if err := update(flatmap, fm); err != nil {
			return nil, err
		}
	}
	return flatmap, nil
}

// Keys returns the keys of a flat map in sorted order.
func Keys(flatmap map[string]interface{}) []string {
	keys := make([]string, 0, len(flatmap))
	for k := range flatmap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + Delimiter + key
}

// flatten descends depth more levels, or without limit if depth is negative.
func flatten(prefix string, nested interface{}, depth int, full bool) (flatmap map[string]interface{}, err error) {
	flatmap = make(map[string]interface{})

	if nested == nil {
		if !full {
			flatmap[prefix] = nil
		}
		return flatmap, nil
	}

	value := reflect.ValueOf(nested)
	if depth == 0 {
		flatmap[prefix] = nested
		return flatmap, nil
	}

	switch value.Type().Kind() {
	case reflect.Map:
		mapKeys := value.MapKeys()
		sort.Slice(mapKeys, func(i, j int) bool {
			return fmt.Sprint(mapKeys[i].Interface()) < fmt.Sprint(mapKeys[j].Interface())
		})
		for _, k := range mapKeys {
			fm1, fe := flatten(join(prefix, fmt.Sprint(k.Interface())), value.MapIndex(k).Interface(), depth-1, full)
			if fe != nil {
				return nil, fe
			}
			if fe = update(flatmap, fm1); fe != nil {
				return nil, fe
			}
		}
	case reflect.Slice:
		if !full {
			flatmap[prefix] = nested
			return flatmap, nil
		}
		for i := 0; i < value.Len(); i++ {
			fm1, fe := flatten(join(prefix, strconv.Itoa(i)), value.Index(i).Interface(), depth-1, full)
			if fe != nil {
				return nil, fe
			}
			if fe = update(flatmap, fm1); fe != nil {
				return nil, fe
			}
		}
	default:
		flatmap[prefix] = nested
	}
	return flatmap, nil
}

// update is the function that update to map with from
// example:
// to = {"hi": "there"}
// from = {"foo": "bar"}
// then, to = {"hi": "there", "foo": "bar"}
// A key that is already in to is a collision.
func update(to map[string]interface{}, from map[string]interface{}) error {
	for _, kt := range Keys(from) {
		if _, ok := to[kt]; ok {
			return fmt.Errorf("%w: %s", ErrKeyCollision, kt)
		}
		to[kt] = from[kt]
	}
	return nil
}

// Unflatten the map, it returns a nested map of a map.
// Maps whose keys are exactly 0..n-1 become slices.
func Unflatten(flat map[string]interface{}) (nested map[string]interface{}, err error) {
	nested = make(map[string]interface{})

	for k, v := range flat {
		temp := uf(k, v).(map[string]interface{})
		err = mergo.Merge(&nested, temp)
		if err != nil {
			return
		}
	}

	walk(reflect.ValueOf(nested))

	return
}

func uf(k string, v interface{}) (n interface{}) {
	n = v

	keys := strings.Split(k, Delimiter)

	for i := len(keys) - 1; i >= 0; i-- {
		temp := make(map[string]interface{})
		temp[keys[i]] = n
		n = temp
	}

	return
}

func walk(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Array, reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			element := v.Index(i)
			if w := walk(element); w.IsValid() {
				element.Set(w)
			}
		}
		return v
	case reflect.Map:
		mapKeys := v.MapKeys()
		for _, k := range mapKeys {
			// nil values stay untouched, an invalid value would delete the key
			if w := walk(v.MapIndex(k)); w.IsValid() {
				v.SetMapIndex(k, w)
			}
		}

		isList := len(mapKeys) > 0
		list := make([]interface{}, len(mapKeys))
		seen := make([]bool, len(mapKeys))
		for _, k := range mapKeys {
			j, err := strconv.Atoi(k.String())
			if err != nil || j < 0 || j > len(mapKeys)-1 || seen[j] {
				isList = false
				break
			}
			seen[j] = true
			list[j] = v.MapIndex(k).Interface()
		}
		if isList {
			return reflect.ValueOf(list)
		}
		return v
	default:
		return v
	}
}
