package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// KeySeparator defines the delimiter used between canonical key segments.
const KeySeparator = "::"

// Key is an ordered sequence of segments identifying a cached query, for
// example Key{"users", "42"}. Two keys address the same entry exactly when
// their canonical encodings match, so segment values must encode
// deterministically.
type Key []any

// KeyCodec turns structured keys into canonical strings for entry lookups
// and decides prefix containment for invalidation.
type KeyCodec interface {
	Encode(key Key) (string, error)
	MatchesPrefix(fullKey, prefixKey string) bool
}

// NewKeyCodec creates the default reflection-based codec. It produces stable
// encodings across runs by sorting map keys and walking struct fields in
// declaration order, so semantically identical segments canonicalize
// identically regardless of property order.
func NewKeyCodec() KeyCodec {
	return &defaultKeyCodec{}
}

type defaultKeyCodec struct{}

// Encode joins the key's segments with KeySeparator after deterministic
// stringification. A segment that is, or contains, a function, a channel, or
// a reference cycle yields a *KeyError.
func (c *defaultKeyCodec) Encode(key Key) (string, error) {
	if len(key) == 0 {
		return "", &KeyError{Index: 0, Reason: "key has no segments"}
	}

	parts := make([]string, len(key))
	for i, segment := range key {
		encoded, err := c.encodeValue(segment, make(map[uintptr]bool))
		if err != nil {
			return "", &KeyError{Index: i, Reason: err.Error()}
		}
		parts[i] = encoded
	}

	return strings.Join(parts, KeySeparator), nil
}

// MatchesPrefix reports whether fullKey addresses the entry named by
// prefixKey or one nested under it: exact equality, or prefixKey followed by
// the separator.
func (c *defaultKeyCodec) MatchesPrefix(fullKey, prefixKey string) bool {
	if fullKey == prefixKey {
		return true
	}
	return strings.HasPrefix(fullKey, prefixKey+KeySeparator)
}

// encodeValue stringifies a single segment. seen tracks the reference chain
// of the current walk so cycles are reported instead of recursing forever;
// entries are removed on the way out, which keeps shared (diamond) references
// legal.
func (c *defaultKeyCodec) encodeValue(v any, seen map[uintptr]bool) (string, error) {
	if v == nil {
		return "nil", nil
	}

	rv := reflect.ValueOf(v)
	rt := reflect.TypeOf(v)

	switch rt.Kind() {
	case reflect.Func:
		return "", errors.New("functions are not encodable")

	case reflect.Chan:
		return "", errors.New("channels are not encodable")

	case reflect.Ptr:
		if rv.IsNil() {
			return "nil", nil
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return "", errors.New("segment contains a cycle")
		}
		seen[ptr] = true
		encoded, err := c.encodeValue(rv.Elem().Interface(), seen)
		delete(seen, ptr)
		return encoded, err

	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil", nil
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return "", errors.New("segment contains a cycle")
		}
		seen[ptr] = true
		encoded, err := c.encodeList(rv, "slice", seen)
		delete(seen, ptr)
		return encoded, err

	case reflect.Array:
		return c.encodeList(rv, "array", seen)

	case reflect.Map:
		if rv.IsNil() {
			return "map:nil", nil
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return "", errors.New("segment contains a cycle")
		}
		seen[ptr] = true
		encoded, err := c.encodeMap(rv, seen)
		delete(seen, ptr)
		return encoded, err

	case reflect.Struct:
		return c.encodeStruct(rv, rt, seen)
	}

	if isBasicKind(rt.Kind()) {
		return fmt.Sprintf("%v", v), nil
	}

	return c.jsonFallback(v)
}

// encodeList handles slices and arrays recursively.
func (c *defaultKeyCodec) encodeList(rv reflect.Value, label string, seen map[uintptr]bool) (string, error) {
	length := rv.Len()
	parts := make([]string, length)

	for i := 0; i < length; i++ {
		encoded, err := c.encodeValue(rv.Index(i).Interface(), seen)
		if err != nil {
			return "", err
		}
		parts[i] = encoded
	}

	return fmt.Sprintf("%s[%d]:{%s}", label, length, strings.Join(parts, ",")), nil
}

// encodeMap serializes key-value pairs and sorts them so iteration order
// never leaks into the canonical form.
func (c *defaultKeyCodec) encodeMap(rv reflect.Value, seen map[uintptr]bool) (string, error) {
	keys := rv.MapKeys()
	pairs := make([]string, 0, len(keys))

	for _, k := range keys {
		keyStr, err := c.encodeValue(k.Interface(), seen)
		if err != nil {
			return "", err
		}
		valueStr, err := c.encodeValue(rv.MapIndex(k).Interface(), seen)
		if err != nil {
			return "", err
		}
		pairs = append(pairs, keyStr+"="+valueStr)
	}
	sort.Strings(pairs)

	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ",")), nil
}

// encodeStruct walks exported fields in declaration order.
func (c *defaultKeyCodec) encodeStruct(rv reflect.Value, rt reflect.Type, seen map[uintptr]bool) (string, error) {
	numFields := rv.NumField()
	parts := make([]string, 0, numFields)

	for i := 0; i < numFields; i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		fieldValue := rv.Field(i)
		if !fieldValue.CanInterface() {
			continue
		}
		encoded, err := c.encodeValue(fieldValue.Interface(), seen)
		if err != nil {
			return "", err
		}
		parts = append(parts, field.Name+":"+encoded)
	}

	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ",")), nil
}

// isBasicKind checks whether a kind stringifies stably via %v.
func isBasicKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	default:
		return false
	}
}

// jsonFallback covers the remaining kinds; anything json cannot express is
// rejected rather than encoded unstably.
func (c *defaultKeyCodec) jsonFallback(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("segment of type %s is not encodable", reflect.TypeOf(v))
	}
	return "json:" + string(data), nil
}
