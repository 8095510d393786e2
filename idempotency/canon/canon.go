// Package canon canonicalizes arbitrary JSON-like values into a stable
// byte representation so that two logically equivalent payloads hash to the
// same idempotency key (spec.md §3, §4.1, invariant P7). Object keys are
// sorted ascending by codepoint, arrays preserve order, numbers are
// normalized to their shortest unambiguous decimal form, and strings are
// NFC-normalized.
package canon

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Marshal renders v into its canonical byte form.
func Marshal(v any) []byte {
	var b strings.Builder
	write(&b, v)
	return []byte(b.String())
}

func write(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case map[string]any:
		writeObject(b, val)
	case []any:
		writeArray(b, val)
	case string:
		writeString(b, val)
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case float64:
		b.WriteString(normalizeFloat(val))
	case int:
		b.WriteString(strconv.Itoa(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case json.RawMessage:
		// Raw JSON (such as a tool call's params) is decoded first so its
		// object keys are sorted like any other map; bytes that are not valid
		// JSON are written as a string.
		var decoded any
		if err := json.Unmarshal(val, &decoded); err != nil {
			writeString(b, string(val))
			return
		}
		write(b, decoded)
	default:
		// Fallback for types outside the JSON value set: render via Sprintf so
		// the key derivation never panics on unexpected inputs.
		writeString(b, fmt.Sprintf("%v", val))
	}
}

func writeObject(b *strings.Builder, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		writeString(b, k)
		b.WriteByte(':')
		write(b, m[k])
	}
	b.WriteByte('}')
}

func writeArray(b *strings.Builder, a []any) {
	b.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			b.WriteByte(',')
		}
		write(b, v)
	}
	b.WriteByte(']')
}

func writeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	b.WriteString(strings.ReplaceAll(norm.NFC.String(s), `"`, `\"`))
	b.WriteByte('"')
}

// normalizeFloat renders a float64 in its shortest unambiguous decimal form
// so that e.g. 1 and 1.0 (both decoded as float64 from JSON) canonicalize
// identically, and whole numbers drop a trailing ".0".
func normalizeFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
