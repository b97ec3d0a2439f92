// Package field normalises loosely typed image field values.
//
// A field may arrive as an attachment ID, a post ID, a numeric string,
// a URL/guid string, a list wrapping any of these, or a map carrying an
// "ID" or "guid" key. Parse classifies the value without touching the
// database; the service layer performs the lookups a Ref calls for.
package field

import (
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"metargb/media-service/internal/models"
)

// Kind tells the resolver which lookup a Ref needs
type Kind int

const (
	// KindEmpty never resolves
	KindEmpty Kind = iota
	// KindPostID is a post ID that may be an attachment or carry a featured image
	KindPostID
	// KindID is an attachment ID taken as-is from a structured field
	KindID
	// KindGUID is matched exactly against attachment guids
	KindGUID
)

func (k Kind) String() string {
	switch k {
	case KindPostID:
		return "post_id"
	case KindID:
		return "id"
	case KindGUID:
		return "guid"
	default:
		return "empty"
	}
}

// Ref is a classified image field
type Ref struct {
	Kind Kind
	ID   int64
	GUID string
}

var (
	integerRegex = regexp.MustCompile(`^[+-]?[0-9]+$`)
	leadingInt   = regexp.MustCompile(`^\s*[+-]?[0-9]+`)
)

// Parse classifies v
func Parse(v any) Ref {
	switch t := v.(type) {
	case nil:
		return Ref{}
	case Ref:
		return t
	case string:
		return parseString(t)
	case []byte:
		return parseString(string(t))
	case json.Number:
		return parseNumber(t)
	case bool:
		// true is not numeric, so it is looked up as the guid "1"
		if !t {
			return Ref{}
		}
		return Ref{Kind: KindGUID, GUID: "1"}
	case float64:
		return parseFloat(t)
	case float32:
		return parseFloat(float64(t))
	case models.Post:
		return structuredID(t.ID)
	case *models.Post:
		if t == nil {
			return Ref{}
		}
		return structuredID(t.ID)
	case models.Attachment:
		return structuredID(t.ID)
	case *models.Attachment:
		if t == nil {
			return Ref{}
		}
		return structuredID(t.ID)
	case map[string]any:
		return parseMap(func(key string) (any, bool) {
			val, ok := t[key]
			return val, ok && val != nil
		})
	case []any:
		if len(t) == 0 || t[0] == nil {
			return Ref{}
		}
		return Parse(t[0])
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return postID(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Ref{}
		}
		return postID(int64(u))
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return Ref{}
		}
		first := rv.Index(0)
		if isNil(first) {
			return Ref{}
		}
		return Parse(first.Interface())
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Ref{}
		}
		return parseMap(func(key string) (any, bool) {
			val := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
			if !val.IsValid() || isNil(val) {
				return nil, false
			}
			return val.Interface(), true
		})
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Ref{}
		}
		return Parse(rv.Elem().Interface())
	}

	return Ref{}
}

func parseString(s string) Ref {
	if s == "" || s == "0" {
		return Ref{}
	}
	if !strings.Contains(s, ".") {
		trimmed := strings.TrimSpace(s)
		if integerRegex.MatchString(trimmed) {
			id, err := strconv.ParseInt(trimmed, 10, 64)
			if err != nil {
				return Ref{}
			}
			return postID(id)
		}
	}
	return Ref{Kind: KindGUID, GUID: s}
}

// parseNumber treats a decoded JSON number by value, so 12.0 is post 12
func parseNumber(n json.Number) Ref {
	if i, err := n.Int64(); err == nil {
		return postID(i)
	}
	if f, err := n.Float64(); err == nil {
		return parseFloat(f)
	}
	return parseString(n.String())
}

func parseFloat(f float64) Ref {
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return Ref{}
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return postID(int64(f))
	}
	return Ref{Kind: KindGUID, GUID: strconv.FormatFloat(f, 'f', -1, 64)}
}

// parseMap applies the "0", then "ID", then "guid" precedence
func parseMap(get func(key string) (any, bool)) Ref {
	if first, ok := get("0"); ok {
		return Parse(first)
	}
	if id, ok := get("ID"); ok {
		return structuredID(toInt(id))
	}
	if guid, ok := get("guid"); ok {
		return Parse(guid)
	}
	return Ref{}
}

func postID(id int64) Ref {
	if id == 0 {
		return Ref{}
	}
	return Ref{Kind: KindPostID, ID: id}
}

func structuredID[T int64 | uint64](id T) Ref {
	if id <= 0 || uint64(id) > math.MaxInt64 {
		return Ref{}
	}
	return Ref{Kind: KindID, ID: int64(id)}
}

// toInt mirrors a loose integer cast: leading digits of strings, truncated floats
func toInt(v any) int64 {
	switch t := v.(type) {
	case string:
		m := leadingInt.FindString(t)
		if m == "" {
			return 0
		}
		n, err := strconv.ParseInt(strings.TrimSpace(m), 10, 64)
		if err != nil {
			return 0
		}
		return n
	case json.Number:
		return toInt(t.String())
	case bool:
		if t {
			return 1
		}
		return 0
	case float64:
		return int64(t)
	case float32:
		return int64(t)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return 0
		}
		return int64(rv.Uint())
	}
	return 0
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}
