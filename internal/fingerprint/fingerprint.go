// Package fingerprint computes deterministic digests of structured
// descriptions.
//
// A description is first normalized to a tree of maps, slices and scalars
// and then serialized as compact JSON with every mapping's keys sorted.
// Two descriptions that differ only in key order therefore have the same
// canonical bytes and the same digest. Values that have no stable encoding
// are rejected rather than hashed.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// Digest is a hex encoded SHA-256 of a canonical description
type Digest string

// String returns the string representation of the Digest.
func (d Digest) String() string {
	return string(d)
}

// Of returns the digest of v
func Of(v any) (Digest, error) {
	canonical, err := Canonical(v)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)

	return Digest(hex.EncodeToString(sum[:])), nil
}

// Canonical returns the canonical serialization of v
func Canonical(v any) ([]byte, error) {
	normalized, err := Normalize(v)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := encode(buf, normalized); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Normalize converts v into nested map[string]any, []any, string, bool,
// json.Number and nil values. Structs are converted through their JSON
// encoding so that field tags decide the key names.
func Normalize(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string, bool:
		return val, nil
	case json.Number:
		return val, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			n, err := Normalize(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = n
		}

		return out, nil
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("unsupported mapping key %v of type %T", k, k)
			}

			n, err := Normalize(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			out[key] = n
		}

		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			n, err := Normalize(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = n
		}

		return out, nil
	}

	return normalizeReflect(v)
}

func normalizeReflect(v any) (any, error) {
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return json.Number(strconv.FormatInt(rv.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return json.Number(strconv.FormatUint(rv.Uint(), 10)), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("unsupported float value %v", f)
		}

		return json.Number(strconv.FormatFloat(f, 'g', -1, 64)), nil
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
	}

	// Structs, typed maps and slices go through their JSON form
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to decode %T: %w", v, err)
	}

	return Normalize(generic)
}

func encode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeScalar(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')

		return nil
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')

		return nil
	default:
		return encodeScalar(buf, val)
	}
}

func encodeScalar(buf *bytes.Buffer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	buf.Write(data)

	return nil
}
