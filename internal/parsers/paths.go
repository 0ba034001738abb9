package parsers

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Lookup walks a dot-separated path of object keys. The empty path is the
// document itself.
func Lookup(body []byte, path string) (json.RawMessage, bool) {
	raw := json.RawMessage(bytes.TrimSpace(body))
	if len(raw) == 0 {
		return nil, false
	}
	if path == "" {
		return raw, true
	}
	for _, key := range strings.Split(path, ".") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, false
		}
		next, ok := obj[key]
		if !ok {
			return nil, false
		}
		raw = json.RawMessage(bytes.TrimSpace(next))
	}
	return raw, true
}

// FirstObject tries candidate paths in order and returns the first one that
// holds a JSON object containing at least one of the required keys. With no
// required keys any object matches.
func FirstObject(body []byte, paths []string, required ...string) (json.RawMessage, string, bool) {
	for _, p := range paths {
		raw, ok := Lookup(body, p)
		if !ok || !isObject(raw) {
			continue
		}
		if len(required) == 0 || hasAnyKey(raw, required) {
			return raw, p, true
		}
	}
	return nil, "", false
}

func isObject(raw json.RawMessage) bool {
	return len(raw) > 0 && raw[0] == '{'
}

func hasAnyKey(raw json.RawMessage, keys []string) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok && string(v) != "null" {
			return true
		}
	}
	return false
}

// Number coerces loosely typed JSON numbers ("12.5", 12.5, json.Number).
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// FlexFloat decodes a JSON number that upstreams sometimes send as a string.
type FlexFloat struct {
	Value float64
	Valid bool
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	f.Value, f.Valid = Number(v)
	return nil
}

// Ptr returns nil for absent values.
func (f FlexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}
