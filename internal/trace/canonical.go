package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Float64 marks a float for canonical serialization. Raw float64 values
// are rejected by MarshalCanonical because decimal formatting is not
// bit-exact; a Float64 is rendered as the 16-hex-digit IEEE-754 bit
// pattern of the value, so equal bits always produce equal bytes.
type Float64 float64

// quiet NaN bit pattern; all NaN payloads collapse to this so a digest
// never depends on which NaN a platform produced.
const canonicalNaN = 0x7ff8000000000000

func (f Float64) canonical() string {
	bits := math.Float64bits(float64(f))
	if f != f {
		bits = canonicalNaN
	}
	return fmt.Sprintf("%016x", bits)
}

// MarshalCanonical produces RFC 8785-style canonical JSON for hashing.
// This is the only serialization used for digest computation.
//
// Key differences from standard json.Marshal:
//  1. Object keys sorted bytewise (digest payloads use ASCII keys, so
//     this matches the RFC's UTF-16 code unit ordering)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. Floats must be wrapped in Float64 and come out as bit patterns
//  5. No null (returns error)
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return marshalCanonicalString(buf, val)
	case Float64:
		return marshalCanonicalString(buf, val.canonical())
	case int:
		fmt.Fprintf(buf, "%d", val)
	case int32:
		fmt.Fprintf(buf, "%d", val)
	case int64:
		fmt.Fprintf(buf, "%d", val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case float64, float32:
		return fmt.Errorf("raw floats are forbidden in canonical JSON, wrap in Float64: %v", val)
	case []any:
		return marshalCanonicalArray(buf, val)
	case map[string]any:
		return marshalCanonicalObject(buf, val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// marshalCanonicalString writes a canonical JSON string: NFC normalized,
// no HTML escaping, and U+2028/U+2029 kept literal per RFC 8785.
func marshalCanonicalString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var enc bytes.Buffer
	e := json.NewEncoder(&enc)
	e.SetEscapeHTML(false)
	if err := e.Encode(normalized); err != nil {
		return err
	}

	// json.Encoder adds a trailing newline, remove it.
	out := enc.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}

	// Go's encoder escapes U+2028/U+2029 for JavaScript embedding; RFC
	// 8785 wants them literal. A literal backslash in the input encodes
	// as \\, so escape sequences in the output always start on an even
	// backslash boundary and a pairwise scan is enough to tell a real
	//   from the text "u2028" after an escaped backslash.
	buf.Write(unescapeSeparators(out))
	return nil
}

func unescapeSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		if data[i] != '\\' || i+1 >= len(data) {
			out = append(out, data[i])
			i++
			continue
		}
		switch {
		case data[i+1] == '\\':
			out = append(out, '\\', '\\')
			i += 2
		case data[i+1] == 'u' && i+6 <= len(data) &&
			data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9'):
			if data[i+5] == '8' {
				out = append(out, " "...)
			} else {
				out = append(out, " "...)
			}
			i += 6
		default:
			// Some other escape (\", \n, \uXXXX); copy the lead pair and
			// let the loop carry the rest through verbatim.
			out = append(out, data[i], data[i+1])
			i += 2
		}
	}
	return out
}

func marshalCanonicalArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonical(buf, elem); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func marshalCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonicalString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := marshalCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}
