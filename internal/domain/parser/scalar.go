package parser

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// decodeScalar returns the JSON value held by raw, with numbers kept as
// json.Number. Absent or undecodable input yields nil.
func decodeScalar(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// intValue reads a whole number from a JSON number or a numeric string.
func intValue(raw json.RawMessage) (int64, bool) {
	switch v := decodeScalar(raw).(type) {
	case json.Number:
		return wholeNumber(v.String())
	case string:
		return wholeNumber(strings.TrimSpace(v))
	}
	return 0, false
}

// wholeNumber parses s as an integer, truncating finite decimals that fit
// in an int64.
func wholeNumber(s string) (int64, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < -(1<<63) || f >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

func intOr(raw json.RawMessage, def int) int {
	n, ok := intValue(raw)
	if !ok || n > math.MaxInt || n < math.MinInt {
		return def
	}
	return int(n)
}

func optString(raw json.RawMessage) *string {
	s, ok := decodeScalar(raw).(string)
	if !ok {
		return nil
	}
	return &s
}

func stringOr(raw json.RawMessage, def string) string {
	if s := optString(raw); s != nil {
		return *s
	}
	return def
}

func boolOr(raw json.RawMessage, def bool) bool {
	b, ok := decodeScalar(raw).(bool)
	if !ok {
		return def
	}
	return b
}

// items splits a JSON array into its elements. Anything else is empty.
func items(raw json.RawMessage) []json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var out []json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// objects decodes every element of a JSON array into T, skipping the
// elements that do not fit.
func objects[T any](raw json.RawMessage) []T {
	elems := items(raw)
	out := make([]T, 0, len(elems))
	for _, elem := range elems {
		var v T
		if err := json.Unmarshal(elem, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// object decodes an optional JSON object; null, absent or mistyped input
// yields nil.
func object[T any](raw json.RawMessage) *T {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

func intList(raw json.RawMessage) []int {
	elems := items(raw)
	out := make([]int, 0, len(elems))
	for _, elem := range elems {
		n, ok := intValue(elem)
		if !ok || n > math.MaxInt || n < math.MinInt {
			continue
		}
		out = append(out, int(n))
	}
	return out
}

func stringList(raw json.RawMessage) []string {
	elems := items(raw)
	out := make([]string, 0, len(elems))
	for _, elem := range elems {
		if s := optString(elem); s != nil {
			out = append(out, *s)
		}
	}
	return out
}
