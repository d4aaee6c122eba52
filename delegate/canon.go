package delegate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Canon produces a best-effort canonicalization of value for structural
// hashing, mirroring ai/orchestration/delegation.py's _canon: object keys
// are kept as they are (CanonSignature sorts them when rendering), string
// values are trimmed, list order is preserved, everything else passes
// through unchanged.
//
// Canon is idempotent: Canon(Canon(v)) == Canon(v) for any value it accepts,
// since maps are rebuilt with the same keys and canonicalized values, and
// trimming an already-trimmed string changes nothing.
func Canon(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = Canon(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = Canon(val)
		}
		return out
	case string:
		return strings.TrimSpace(v)
	default:
		return v
	}
}

// CanonSignature renders Canon(value) into a deterministic string suitable
// for use as a structural-dedup map key, matching the Python original's
// str(_canon(value)) by instead using sorted-key JSON (stable and, unlike
// Python's str(dict), independent of hash-seed iteration order).
func CanonSignature(value any) string {
	return canonString(Canon(value))
}

func canonString(v any) string {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(fmt.Sprintf("%q:", k))
			b.WriteString(canonString(t[k]))
		}
		b.WriteByte('}')
		return b.String()
	case []any:
		var b strings.Builder
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(canonString(e))
		}
		b.WriteByte(']')
		return b.String()
	default:
		enc, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(enc)
	}
}
