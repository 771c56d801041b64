package ingest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sha1n/iconclass-mcp/internal/store"
)

// fields is one parsed DBText block: lower-cased field name to its values,
// continuation lines included.
type fields map[string][]string

func (f fields) first(names ...string) string {
	for _, name := range names {
		if v := f[name]; len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// parseBlocks splits a DBText document into blocks separated by lines that
// start with '$'. Lines starting with '#' are comments. Every other line is
// "FIELD value"; a field of ";" continues the previous field.
func parseBlocks(doc string) []fields {
	var blocks []fields
	cur := fields{}
	last := ""

	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, cur)
		}
		cur = fields{}
		last = ""
	}

	for line := range strings.Lines(doc) {
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "$"):
			flush()
			continue
		case strings.HasPrefix(line, "#"):
			continue
		}

		name, value, ok := strings.Cut(line, " ")
		if !ok || name == "" {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		if name == ";" {
			if last != "" {
				cur[last] = append(cur[last], value)
			}
			continue
		}
		last = strings.ToLower(name)
		cur[last] = append(cur[last], value)
	}
	flush()
	return blocks
}

// Per-language field prefixes. The short forms are the ones DBText dumps
// write; a bare "k" is still the key code.
var (
	textPrefixes    = []string{"txt_", "t_"}
	keywordPrefixes = []string{"kwd_", "k_"}
)

// languageOf returns the language code of a per-language field such as
// "txt_en", "t_en" or "kwd_de", given the accepted prefixes.
func languageOf(field string, prefixes ...string) (string, bool) {
	for _, p := range prefixes {
		if lang, ok := strings.CutPrefix(field, p); ok && lang != "" {
			return lang, true
		}
	}
	return "", false
}

// applyRecordBlock merges a notation block into ds. Text and keyword fields
// inside the block are accepted alongside the separate correlate files.
func applyRecordBlock(ds *store.Dataset, f fields) error {
	n := f.first("n")
	if n == "" {
		return fmt.Errorf("block without a notation field")
	}

	rec := ds.Record(n)
	rec.Children = append(rec.Children, f["c"]...)
	rec.Refs = append(rec.Refs, f["r"]...)
	if k := f.first("k"); k != "" {
		rec.KeyCode = k
	}

	for name, values := range f {
		if lang, ok := languageOf(name, textPrefixes...); ok {
			if rec.Text == nil {
				rec.Text = map[string]string{}
			}
			rec.Text[lang] = strings.Join(values, " ")
			continue
		}
		if lang, ok := languageOf(name, keywordPrefixes...); ok {
			if rec.Keywords == nil {
				rec.Keywords = map[string][]string{}
			}
			rec.Keywords[lang] = append(rec.Keywords[lang], values...)
		}
	}
	return nil
}

// applyKeyBlock merges a key block into ds and returns the (code, suffix)
// pairs it declared. A block lists one code and any number of suffixes.
// Both the "K/S" and the older "CODE/SUFFIX" field names are accepted;
// inline text and keyword fields are only meaningful with a single suffix.
func applyKeyBlock(ds *store.Dataset, f fields) ([][2]string, error) {
	code := f.first("k", "code")
	if code == "" {
		return nil, fmt.Errorf("key block without a code field")
	}
	suffixes := append(slices.Clone(f["s"]), f["suffix"]...)
	if len(suffixes) == 0 {
		return nil, fmt.Errorf("key block %q without a suffix field", code)
	}

	declared := make([][2]string, 0, len(suffixes))
	for _, suffix := range suffixes {
		ds.KeyEntry(code, suffix)
		declared = append(declared, [2]string{code, suffix})
	}
	if len(suffixes) > 1 {
		return declared, nil
	}

	entry := ds.KeyEntry(code, suffixes[0])
	for name, values := range f {
		if lang, ok := languageOf(name, textPrefixes...); ok {
			entry.Text[lang] = strings.Join(values, " ")
			continue
		}
		if lang, ok := languageOf(name, keywordPrefixes...); ok {
			entry.Keywords[lang] = append(entry.Keywords[lang], values...)
		}
	}
	return declared, nil
}
