package kv

import (
	"strings"
)

// Parse splits newline-delimited "key=value" text into a map. Each line is
// split on its first '=' and both sides are trimmed. Lines without '=' or
// with an empty key are dropped. A later duplicate key wins.
func Parse(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(value)
	}
	return out
}

// ParseTokens parses whitespace-delimited "key=value" tokens, as emitted
// inside the feature block of read_features. Tokens without '=' or with an
// empty key are dropped.
func ParseTokens(text string) map[string]string {
	out := make(map[string]string)
	for _, tok := range strings.Fields(text) {
		key, value, ok := strings.Cut(tok, "=")
		if !ok || key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// SerializeArgs returns one "key=value" token per key, in the order given.
// A key missing from m is emitted with an empty value.
func SerializeArgs(m map[string]string, keys []string) []string {
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, k+"="+m[k])
	}
	return args
}

// Pick returns the restriction of m to keys. Keys absent from m are omitted.
func Pick(m map[string]string, keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Clone returns a shallow copy of m. A nil map clones to an empty map.
func Clone(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
