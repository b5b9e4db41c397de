package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Lookup returns the value under key. A present null yields (nil, true).
func Lookup(obj Object, key string) (interface{}, bool) {
	if obj == nil {
		return nil, false
	}
	v, ok := obj[key]
	return v, ok
}

// Path walks a dotted path of nested objects.
func Path(root Object, path string) (interface{}, bool) {
	var current interface{} = root
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(Object)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}

// AsObject converts v to an object if it is one.
func AsObject(v interface{}) (Object, bool) {
	m, ok := v.(Object)
	return m, ok
}

// Container returns the keyed container under key. Absent, null, list and
// scalar values all mean "no entries" and return false.
func Container(obj Object, key string) (Object, bool) {
	v, ok := Lookup(obj, key)
	if !ok {
		return nil, false
	}
	m, ok := v.(Object)
	return m, ok
}

// ToInt coerces a decoded scalar to an int.
func ToInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i), true
		}
		if f, err := val.Float64(); err == nil && !math.IsNaN(f) {
			return int(f), true
		}
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f), true
		}
	}
	return 0, false
}

// Int reads an integer field.
func Int(obj Object, key string) (int, bool) {
	v, ok := Lookup(obj, key)
	if !ok || v == nil {
		return 0, false
	}
	return ToInt(v)
}

// IntOr reads an integer field, falling back to def.
func IntOr(obj Object, key string, def int) int {
	if i, ok := Int(obj, key); ok {
		return i
	}
	return def
}

// OptInt reads an integer field that may be null or absent.
func OptInt(obj Object, key string) *int {
	i, ok := Int(obj, key)
	if !ok {
		return nil
	}
	return &i
}

// ToString renders a scalar the way an identifier is written. Null and
// containers yield "".
func ToString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == math.Trunc(val) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	}
	return ""
}

// String reads a string field, "" when absent or null.
func String(obj Object, key string) string {
	v, _ := Lookup(obj, key)
	return ToString(v)
}

// RequiredString reads a non-empty string field.
func RequiredString(obj Object, key string) (string, bool) {
	s := String(obj, key)
	return s, s != ""
}

// StringList reads a list of scalars as strings. A keyed container is
// accepted too and its values are taken in key order.
func StringList(obj Object, key string) []string {
	v, ok := Lookup(obj, key)
	if !ok {
		return nil
	}
	var out []string
	switch val := v.(type) {
	case List:
		for _, item := range val {
			if s := ToString(item); s != "" {
				out = append(out, s)
			}
		}
	case Object:
		for _, k := range SortedKeys(val) {
			if s := ToString(val[k]); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// SortedKeys returns the keys of obj with integer keys in numeric order
// ahead of the others, which are sorted lexically.
func SortedKeys(obj Object) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aErr := strconv.Atoi(keys[i])
		b, bErr := strconv.Atoi(keys[j])
		switch {
		case aErr == nil && bErr == nil:
			if a != b {
				return a < b
			}
			return keys[i] < keys[j]
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}
