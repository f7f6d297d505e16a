package dialog

import (
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"slices"
	"strconv"
	"strings"
	"time"
)

// IsRFC3339 reports whether s parses as an RFC3339 timestamp.
func IsRFC3339(s string) bool {
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

// IsAddress reports whether s is a bare email address.
func IsAddress(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// normalize converts a proposed raw value into the slot's canonical Go
// type. A nil result with a nil error means "nothing supplied".
func normalize(spec SlotSpec, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch spec.Type {
	case SlotText:
		s, err := asString(raw)
		if err != nil || s == "" {
			return nil, err
		}
		return s, nil

	case SlotAddress:
		s, err := asString(raw)
		if err != nil || s == "" {
			return nil, err
		}
		return parseAddress(s)

	case SlotAddressList:
		items, err := asStrings(raw)
		if err != nil {
			return nil, err
		}
		var out []string
		for _, item := range items {
			if item == "" {
				continue
			}
			addr, err := parseAddress(item)
			if err != nil {
				return nil, err
			}
			out = append(out, addr)
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil

	case SlotTime:
		s, err := asString(raw)
		if err != nil || s == "" {
			return nil, err
		}
		if !IsRFC3339(s) {
			return nil, fmt.Errorf("%q is not an RFC3339 timestamp", s)
		}
		return s, nil

	case SlotEnum:
		s, err := asString(raw)
		if err != nil || s == "" {
			return nil, err
		}
		s = strings.ToLower(s)
		if !slices.Contains(spec.Choices, s) {
			return nil, fmt.Errorf("%q is not one of %s", s, strings.Join(spec.Choices, ", "))
		}
		return s, nil

	case SlotInt:
		n, err := asInt(raw)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("%d must be positive", n)
		}
		return n, nil

	case SlotBool:
		return asBool(raw)
	}
	return nil, fmt.Errorf("unsupported slot type %d", spec.Type)
}

func parseAddress(s string) (string, error) {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return "", fmt.Errorf("%q is not an email address", s)
	}
	return addr.Address, nil
}

func asString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case fmt.Stringer:
		return strings.TrimSpace(v.String()), nil
	}
	return "", fmt.Errorf("expected text, got %T", raw)
}

func asStrings(raw any) ([]string, error) {
	switch v := raw.(type) {
	case string:
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	case []string:
		out := make([]string, len(v))
		for i := range v {
			out[i] = strings.TrimSpace(v[i])
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, err := asString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of addresses, got %T", raw)
}

func asInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not a whole number", v)
		}
		return int(v), nil
	case json.Number:
		n, err := strconv.Atoi(v.String())
		if err != nil {
			return 0, fmt.Errorf("%q is not a whole number", v)
		}
		return n, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%q is not a whole number", v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("expected a number, got %T", raw)
}

func asBool(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%q is not true or false", v)
		}
		return b, nil
	}
	return nil, fmt.Errorf("expected true or false, got %T", raw)
}

func sameValue(a, b any) bool {
	switch av := a.(type) {
	case []string:
		bv, ok := b.([]string)
		return ok && slices.Equal(av, bv)
	default:
		return a == b
	}
}

func cloneValue(v any) any {
	if list, ok := v.([]string); ok {
		return slices.Clone(list)
	}
	return v
}
