// Package canonical implements deterministic byte encoding of JSON-shaped
// values for hash-chain commitments.
//
// Two implementations on different platforms must produce byte-identical
// output for equal values: object keys are sorted lexicographically at
// every nesting level, numbers are emitted as their shortest round-trip
// decimal representation, and no optional whitespace is ever written. The
// record hash is taken over this byte string, so a one-byte difference
// here breaks verification across the whole chain.
package canonical

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ErrNotFinite is returned when a float value is NaN or infinite.
var ErrNotFinite = errors.New("canonical: value is not finite")

// ErrUnsupportedType is returned for Go values with no canonical JSON form.
var ErrUnsupportedType = errors.New("canonical: unsupported value type")

// Encode serializes v into its canonical byte form.
//
// v must be built from the JSON-shaped primitives: nil, bool, string,
// float64/int/int64/uint64 numbers, []any, map[string]any, or anything
// implementing Marshaler. Struct values are not accepted directly; callers
// convert to one of these shapes first (typically via the HashableFields or
// CanonicalValue methods on the event/checkpoint/proof types).
func Encode(v any) ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf, err := appendValue(buf, v)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Marshaler lets a type provide its own JSON-shaped representation prior
// to canonical encoding (e.g. an event record returning its non-hashed
// field set as a map).
type Marshaler interface {
	CanonicalValue() any
}

func appendValue(buf []byte, v any) ([]byte, error) {
	if m, ok := v.(Marshaler); ok {
		return appendValue(buf, m.CanonicalValue())
	}

	switch val := v.(type) {
	case nil:
		return append(buf, "null"...), nil
	case bool:
		if val {
			return append(buf, "true"...), nil
		}
		return append(buf, "false"...), nil
	case string:
		return appendString(buf, val), nil
	case float64:
		return appendFloat(buf, val)
	case float32:
		return appendFloat(buf, float64(val))
	case int:
		return strconv.AppendInt(buf, int64(val), 10), nil
	case int32:
		return strconv.AppendInt(buf, int64(val), 10), nil
	case int64:
		return strconv.AppendInt(buf, val, 10), nil
	case uint:
		return strconv.AppendUint(buf, uint64(val), 10), nil
	case uint32:
		return strconv.AppendUint(buf, uint64(val), 10), nil
	case uint64:
		return strconv.AppendUint(buf, val, 10), nil
	case []any:
		return appendArray(buf, val)
	case map[string]any:
		return appendObject(buf, val)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

func appendFloat(buf []byte, f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, ErrNotFinite
	}
	// Integral values below 1e15 are written as plain integers; everything
	// else uses the shortest round-trip 'g' form, which switches to
	// exponent notation (e.g. 1e-05) where encoding/json would not.
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.AppendInt(buf, int64(f), 10), nil
	}
	return strconv.AppendFloat(buf, f, 'g', -1, 64), nil
}

func appendArray(buf []byte, arr []any) ([]byte, error) {
	buf = append(buf, '[')
	for i, elem := range arr {
		if i > 0 {
			buf = append(buf, ',')
		}
		var err error
		buf, err = appendValue(buf, elem)
		if err != nil {
			return nil, err
		}
	}
	return append(buf, ']'), nil
}

func appendObject(buf []byte, obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf = append(buf, '{')
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendString(buf, k)
		buf = append(buf, ':')
		var err error
		buf, err = appendValue(buf, obj[k])
		if err != nil {
			return nil, err
		}
	}
	return append(buf, '}'), nil
}

// appendString writes a JSON-escaped, double-quoted string.
func appendString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for _, r := range s {
		switch r {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		default:
			if r < 0x20 {
				buf = append(buf, fmt.Sprintf(`\u%04x`, r)...)
			} else {
				buf = append(buf, string(r)...)
			}
		}
	}
	return append(buf, '"')
}
