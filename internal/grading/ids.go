package grading

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FlexID is a content identifier that may arrive as a JSON string or number.
// Both forms decode to the same canonical string, so 3, 3.0 and "3" are equal.
type FlexID string

func (id *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return fmt.Errorf("id must not be null")
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexID(CanonicalID(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or a number")
	}
	*id = FlexID(CanonicalID(n.String()))
	return nil
}

// CanonicalID trims s and rewrites plain decimal numbers in a canonical text
// form: no sign for zero, no "+", no leading zeros and no trailing fraction
// zeros. The rewrite is textual so large integers keep every digit.
func CanonicalID(s string) string {
	s = strings.TrimSpace(s)
	sign, body := "", s
	switch {
	case strings.HasPrefix(body, "-"):
		sign, body = "-", body[1:]
	case strings.HasPrefix(body, "+"):
		body = body[1:]
	}
	intPart, frac, hasDot := strings.Cut(body, ".")
	if !isDigits(intPart) && !(hasDot && intPart == "" && frac != "") {
		return s
	}
	if hasDot && !isDigits(frac) {
		return s
	}
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	frac = strings.TrimRight(frac, "0")
	out := intPart
	if frac != "" {
		out += "." + frac
	}
	if out == "0" {
		return out
	}
	return sign + out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// canonicalKeys rewrites map keys with CanonicalID. Two keys naming the same id are an error.
func canonicalKeys[V any](m map[string]V) (map[string]V, error) {
	out := make(map[string]V, len(m))
	for k, v := range m {
		ck := CanonicalID(k)
		if _, dup := out[ck]; dup {
			return nil, fmt.Errorf("duplicate id %q", ck)
		}
		out[ck] = v
	}
	return out, nil
}
