package config

import (
	"maps"
	"slices"
	"strings"
)

// Any key whose last segment ends in one of these is treated as a secret.
var secretSuffixes = []string{"api_key", "token", "secret", "password"}

// IsSecretKey reports whether the dot key holds a credential.
func IsSecretKey(key string) bool {
	leaf := key[strings.LastIndexByte(key, '.')+1:]
	for _, s := range secretSuffixes {
		if strings.HasSuffix(leaf, s) {
			return true
		}
	}
	return false
}

// Flatten turns nested maps into dot keys: {"http": {"listen": ":8088"}}
// becomes {"http.listen": ":8088"}. Empty nested maps disappear.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if prefix != "" {
				k = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(k, child)
				continue
			}
			out[k] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten is the inverse of Flatten. A scalar sitting where a dot key
// needs a map is replaced by the map.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, v := range flat {
		parts := strings.Split(key, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return out
}

// Keys returns the keys of a flat map in lexical order.
func Keys(flat map[string]any) []string {
	return slices.Sorted(maps.Keys(flat))
}

// Mask hides all but the last four characters of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) > 4 {
		s = s[len(s)-4:]
	}
	return "***" + s
}

// MaskSecrets returns a copy of flat with string secrets passed through
// Mask. Non-string values are kept as they are.
func MaskSecrets(flat map[string]any) map[string]any {
	out := maps.Clone(flat)
	if out == nil {
		out = map[string]any{}
	}
	for k, v := range out {
		if s, ok := v.(string); ok && IsSecretKey(k) {
			out[k] = Mask(s)
		}
	}
	return out
}
