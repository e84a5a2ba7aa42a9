package game

import (
	"encoding/json"
	"maps"
	"math"
	"strconv"
	"strings"
)

// Options is the open-ended settings bag of a room (grid size, difficulty,
// strictMoves...). Values arrive from JSON, so numbers are float64.
type Options map[string]any

func (o Options) Clone() Options {
	out := make(Options, len(o))
	maps.Copy(out, o)
	return out
}

// Merge overlays other onto a copy of o.
func (o Options) Merge(other Options) Options {
	out := o.Clone()
	maps.Copy(out, other)
	return out
}

// Int reads key as an integer. Numeric strings are accepted. Missing, zero or
// unparseable values yield def.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case float64:
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return def
		}
		return int(v)
	case int:
		if v == 0 {
			return def
		}
		return v
	case int64:
		if v == 0 {
			return def
		}
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil || n == 0 {
			return def
		}
		return int(n)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n == 0 {
			return def
		}
		return n
	default:
		return def
	}
}

func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Bool reads key as a boolean. "true"/"false" strings are accepted.
func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}
