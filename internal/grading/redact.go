package grading

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Redact returns a copy of the item whose spec no longer reveals the answer.
// Learners receive redacted items while an attempt is open.
func Redact(it Item) (Item, error) {
	if len(it.Spec) == 0 {
		return it, nil
	}
	var spec map[string]any
	dec := json.NewDecoder(bytes.NewReader(it.Spec))
	dec.UseNumber()
	if err := dec.Decode(&spec); err != nil {
		return it, fmt.Errorf("item %s: %w", it.ID, err)
	}

	switch it.Type {
	case MultipleChoice:
		delete(spec, "correctIndex")
	case TrueFalse:
		delete(spec, "correct")
	case MultipleSelect:
		delete(spec, "correctIndices")
	case FillBlank:
		if blanks, ok := spec["blanks"].([]any); ok {
			spec["blankCount"] = len(blanks)
		}
		delete(spec, "blanks")
	case ShortAnswer:
		delete(spec, "acceptedAnswers")
	case DragDrop:
		spec["draggables"] = sortedKeys(spec["placements"])
		delete(spec, "placements")
	case Hotspot:
		if regions, ok := spec["regions"].([]any); ok {
			for _, r := range regions {
				if m, ok := r.(map[string]any); ok {
					delete(m, "correct")
				}
			}
		}
	case Sequence:
		spec["items"] = sortedValues(spec["order"])
		delete(spec, "order")
	case Matching:
		if m, ok := spec["correctMatch"].(map[string]any); ok {
			spec["left"] = sortedKeys(m)
			right := make([]any, 0, len(m))
			for _, v := range m {
				right = append(right, v)
			}
			spec["right"] = sortedValues(right)
		}
		delete(spec, "correctMatch")
	case Timeline:
		spec["eventIds"] = sortedKeys(spec["events"])
		delete(spec, "events")
	case Simulation:
		delete(spec, "maxPoints")
		if scenes, ok := spec["scenes"].(map[string]any); ok {
			for _, sc := range scenes {
				scene, ok := sc.(map[string]any)
				if !ok {
					continue
				}
				choices, _ := scene["choices"].([]any)
				for _, c := range choices {
					if m, ok := c.(map[string]any); ok {
						delete(m, "correct")
						delete(m, "points")
					}
				}
			}
		}
	}

	b, err := json.Marshal(spec)
	if err != nil {
		return it, err
	}
	it.Spec = b
	return it, nil
}

func sortedKeys(v any) []string {
	m, _ := v.(map[string]any)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sortedValues renders ids as canonical strings and drops duplicates.
func sortedValues(v any) []string {
	list, _ := v.([]any)
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, x := range list {
		id := CanonicalID(fmt.Sprint(x))
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
