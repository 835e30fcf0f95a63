package grading

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ValidationError reports a response whose shape does not fit its item type.
type ValidationError struct {
	ItemID string `json:"itemId"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.ItemID == "" {
		return "invalid response: " + e.Reason
	}
	return fmt.Sprintf("invalid response for item %s: %s", e.ItemID, e.Reason)
}

// Answers holds decoded responses keyed by item id.
type Answers map[string]any

// ValidateResponses decodes every raw response against its item. Unknown
// item ids and malformed values fail with *ValidationError. Missing and null
// responses are left out and grade as unanswered.
func (r *Registry) ValidateResponses(items []Item, raw map[string]json.RawMessage) (Answers, error) {
	checkers, err := r.checkers(items)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(items))
	for i, it := range items {
		index[it.ID] = i
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Answers, len(raw))
	for _, k := range keys {
		i, ok := index[k]
		if !ok {
			return nil, &ValidationError{ItemID: k, Reason: "no such item"}
		}
		v := bytes.TrimSpace(raw[k])
		if len(v) == 0 || bytes.Equal(v, []byte("null")) {
			continue
		}
		val, err := checkers[i].Decode(v)
		if err != nil {
			return nil, &ValidationError{ItemID: k, Reason: err.Error()}
		}
		out[k] = val
	}
	return out, nil
}
