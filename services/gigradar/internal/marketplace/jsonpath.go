package marketplace

import (
	"encoding/json"
	"strconv"
	"strings"
)

// dig walks a decoded JSON tree along keys, returning nil on any miss.
func dig(node interface{}, keys ...string) interface{} {
	for _, key := range keys {
		obj, ok := node.(map[string]interface{})
		if !ok {
			return nil
		}
		node = obj[key]
	}
	return node
}

// leftTrimmed returns path, then path without its first key, and so on
// down to the last key alone.
func leftTrimmed(path ...string) [][]string {
	chains := make([][]string, 0, len(path))
	for i := range path {
		chains = append(chains, path[i:])
	}
	return chains
}

// firstArray returns the first non-null array found along chains.
func firstArray(tree interface{}, chains [][]string) ([]interface{}, bool) {
	for _, chain := range chains {
		if arr, ok := dig(tree, chain...).([]interface{}); ok {
			return arr, true
		}
	}
	return nil, false
}

func firstObject(tree interface{}, chains [][]string) (map[string]interface{}, bool) {
	for _, chain := range chains {
		if obj, ok := dig(tree, chain...).(map[string]interface{}); ok {
			return obj, true
		}
	}
	return nil, false
}

func str(node interface{}, keys ...string) string {
	switch v := dig(node, keys...).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// num reads a number that upstream may encode as a JSON number or a string.
func num(node interface{}, keys ...string) (float64, bool) {
	switch v := dig(node, keys...).(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(v, ",", "")), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func numOrZero(node interface{}, keys ...string) float64 {
	f, _ := num(node, keys...)
	return f
}

func floatPtr(node interface{}, keys ...string) *float64 {
	if f, ok := num(node, keys...); ok {
		return &f
	}
	return nil
}

func intPtr(node interface{}, keys ...string) *int {
	if f, ok := num(node, keys...); ok {
		n := int(f)
		return &n
	}
	return nil
}

func boolean(node interface{}, keys ...string) bool {
	b, _ := dig(node, keys...).(bool)
	return b
}

// labels collects a string field from every object in an array, dropping empties.
func labels(node interface{}, field ...string) []string {
	arr, ok := node.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		for _, f := range field {
			if s := str(item, f); s != "" {
				out = append(out, s)
				break
			}
		}
	}
	return out
}
