// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package yahoo

import (
	"strconv"

	"github.com/stockparfait/errors"
)

// Presence checks for generic JSON values as decoded by encoding/json into
// interface{}. Each returns an error describing the first mismatch.

func asMap(v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.Reason("expected a JSON object, got %T", v)
	}
	return m, nil
}

func lookupValue(v any, key string) (any, error) {
	m, err := asMap(v)
	if err != nil {
		return nil, errors.Annotate(err, "cannot look up '%s'", key)
	}
	val, ok := m[key]
	if !ok {
		return nil, errors.Reason("missing key '%s'", key)
	}
	return val, nil
}

func lookupMap(v any, key string) (map[string]any, error) {
	val, err := lookupValue(v, key)
	if err != nil {
		return nil, err
	}
	m, err := asMap(val)
	if err != nil {
		return nil, errors.Annotate(err, "value of '%s'", key)
	}
	return m, nil
}

func lookupSlice(v any, key string) ([]any, error) {
	val, err := lookupValue(v, key)
	if err != nil {
		return nil, err
	}
	s, ok := val.([]any)
	if !ok {
		return nil, errors.Reason("value of '%s' is not a list: %T", key, val)
	}
	return s, nil
}

func lookupString(v any, key string) (string, error) {
	val, err := lookupValue(v, key)
	if err != nil {
		return "", err
	}
	s, ok := val.(string)
	if !ok {
		return "", errors.Reason("value of '%s' is not a string: %T", key, val)
	}
	return s, nil
}

func firstMap(s []any) (map[string]any, error) {
	if len(s) == 0 {
		return nil, errors.Reason("empty list")
	}
	m, err := asMap(s[0])
	if err != nil {
		return nil, errors.Annotate(err, "first list element")
	}
	return m, nil
}

// number extracts a numeric value. Besides plain JSON numbers, it accepts
// numeric strings and the {"raw": 1.23, "fmt": "1.23"} objects the API uses
// for formatted fields.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case map[string]any:
		if raw, ok := n["raw"]; ok {
			return number(raw)
		}
	}
	return 0, false
}

// copyMap creates a shallow copy, so normalization never alters the raw
// payload.
func copyMap(m map[string]any) map[string]any {
	res := make(map[string]any, len(m))
	for k, v := range m {
		res[k] = v
	}
	return res
}
