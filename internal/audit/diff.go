package audit

import (
	"bytes"
	"encoding/json"
	"sort"
)

// FieldChange is the before/after pair of one top-level field.
type FieldChange struct {
	Field string          `json:"field"`
	Old   json.RawMessage `json:"old"`
	New   json.RawMessage `json:"new"`
}

// Changes compares the top-level fields of two JSON object snapshots.
// A missing snapshot (create or delete) counts as an empty object. Fields are
// returned sorted by name. updatedAt is bookkeeping and never reported.
func Changes(oldValues, newValues json.RawMessage) ([]FieldChange, error) {
	before, err := asObject(oldValues)
	if err != nil {
		return nil, err
	}
	after, err := asObject(newValues)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}

	names := make([]string, 0, len(keys))
	for k := range keys {
		if k == "updatedAt" {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	out := []FieldChange{}
	for _, k := range names {
		o, n := before[k], after[k]
		if equalJSON(o, n) {
			continue
		}
		out = append(out, FieldChange{Field: k, Old: orNull(o), New: orNull(n)})
	}
	return out, nil
}

func asObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return map[string]json.RawMessage{}, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func equalJSON(a, b json.RawMessage) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return bytes.Equal(a, b)
	}
	ac, _ := json.Marshal(av)
	bc, _ := json.Marshal(bv)
	return bytes.Equal(ac, bc)
}

func orNull(v json.RawMessage) json.RawMessage {
	if len(v) == 0 {
		return json.RawMessage("null")
	}
	return v
}
