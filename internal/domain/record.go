package domain

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// StoredRecord is a base notation as held by a record store.
// It is the shape consumed by the resolver, never returned to callers.
type StoredRecord struct {
	// Notation is the base notation the record is stored under.
	Notation string `json:"n"`

	// Children are the literal child notations, in stored order.
	Children []string `json:"c,omitempty"`

	// Refs are related notations outside the hierarchy.
	Refs []string `json:"r,omitempty"`

	// KeyCode points to a shared key table, empty when the notation takes no keys.
	KeyCode string `json:"k,omitempty"`

	// Text maps a language code to the textual correlate.
	Text map[string]string `json:"txt,omitempty"`

	// Keywords maps a language code to the keyword correlates.
	Keywords map[string][]string `json:"kw,omitempty"`
}

// Validate checks the invariants a store must uphold for a record.
func (r *StoredRecord) Validate() error {
	if r.Notation == "" {
		return errors.New("stored record has an empty notation")
	}
	for _, c := range r.Children {
		if c == "" {
			return fmt.Errorf("stored record %q has an empty child", r.Notation)
		}
	}
	for lang := range r.Text {
		if lang == "" {
			return fmt.Errorf("stored record %q has text without a language", r.Notation)
		}
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r *StoredRecord) Clone() *StoredRecord {
	if r == nil {
		return nil
	}
	return &StoredRecord{
		Notation: r.Notation,
		Children: slices.Clone(r.Children),
		Refs:     slices.Clone(r.Refs),
		KeyCode:  r.KeyCode,
		Text:     maps.Clone(r.Text),
		Keywords: cloneKeywords(r.Keywords),
	}
}

// KeyEntry is the contribution of one key suffix to a base record.
type KeyEntry struct {
	Text     map[string]string   `json:"txt,omitempty"`
	Keywords map[string][]string `json:"kw,omitempty"`
}

// KeySet holds every suffix of one key code.
type KeySet map[string]KeyEntry

// Clone returns a deep copy of the key set.
func (ks KeySet) Clone() KeySet {
	if ks == nil {
		return nil
	}
	out := make(KeySet, len(ks))
	for suffix, e := range ks {
		out[suffix] = KeyEntry{
			Text:     maps.Clone(e.Text),
			Keywords: cloneKeywords(e.Keywords),
		}
	}
	return out
}

// Suffixes returns the suffixes of the set in sorted order.
func (ks KeySet) Suffixes() []string {
	return slices.Sorted(maps.Keys(ks))
}

// Record is a fully resolved notation.
type Record struct {
	// Notation is the canonical notation, including any key suffix or
	// named qualifier of the request.
	Notation string `json:"n"`

	// Children holds stored children followed by synthesized key children.
	Children []string `json:"c"`

	// Refs are related notations outside the hierarchy.
	Refs []string `json:"r,omitempty"`

	// Path is the ancestor chain ending with the notation itself.
	Path []string `json:"p"`

	// Text maps a language code to the composed label.
	Text map[string]string `json:"txt"`

	// Keywords maps a language code to the composed keyword list.
	Keywords map[string][]string `json:"kw"`
}

// Label returns the text for lang, falling back to English and then to
// any language, in sorted order, that has a label.
func (r *Record) Label(lang string) string {
	if t, ok := r.Text[lang]; ok {
		return t
	}
	if t, ok := r.Text["en"]; ok {
		return t
	}
	for _, l := range slices.Sorted(maps.Keys(r.Text)) {
		return r.Text[l]
	}
	return ""
}

func cloneKeywords(kw map[string][]string) map[string][]string {
	if kw == nil {
		return nil
	}
	out := make(map[string][]string, len(kw))
	for lang, words := range kw {
		out[lang] = slices.Clone(words)
	}
	return out
}
