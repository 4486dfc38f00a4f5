package tags

import (
	"sort"
)

// Key addresses a service (Detail empty) or one of its line items.
type Key struct {
	Service string `json:"service" validate:"required"`
	Detail  string `json:"detail,omitempty"`
}

// Selection is a transient set of keys picked for bulk tagging.
type Selection map[Key]struct{}

// NewSelection builds a selection from keys.
func NewSelection(keys ...Key) Selection {
	sel := make(Selection, len(keys))
	for _, k := range keys {
		sel.Add(k)
	}
	return sel
}

// Add selects k.
func (s Selection) Add(k Key) {
	s[k] = struct{}{}
}

// Remove deselects k.
func (s Selection) Remove(k Key) {
	delete(s, k)
}

// Has reports whether k is selected.
func (s Selection) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

// Len returns the number of selected keys.
func (s Selection) Len() int {
	return len(s)
}

// Keys returns the keys ordered by service then detail.
func (s Selection) Keys() []Key {
	keys := make([]Key, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Service != keys[j].Service {
			return keys[i].Service < keys[j].Service
		}
		return keys[i].Detail < keys[j].Detail
	})
	return keys
}
