package resolver

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sha1n/iconclass-mcp/internal/domain"
	"github.com/sha1n/iconclass-mcp/internal/notation"
)

// placeholderPattern matches the bracketed placeholder inside the label of an
// ellipsis record: "(...)" itself, or a word group such as "(with NAME)".
var placeholderPattern = regexp.MustCompile(`\((?:\.\.\.|[\p{L}\p{N}_ ]+?)\)`)

// keyChildren returns base(+s) for every suffix s one character longer than
// key that extends it, sorted.
func keyChildren(base, key string, keys domain.KeySet) []string {
	depth := utf8.RuneCountInString(key) + 1
	var out []string
	for _, s := range keys.Suffixes() {
		if strings.HasPrefix(s, key) && utf8.RuneCountInString(s) == depth {
			out = append(out, notation.WithKey(base, s))
		}
	}
	if out == nil {
		return []string{}
	}
	return out
}

// withKeyText appends the key label to every base label that has one in the
// same language.
func withKeyText(text, keyText map[string]string) map[string]string {
	out := make(map[string]string, len(text))
	for lang, t := range text {
		if kt, ok := keyText[lang]; ok {
			out[lang] = fmt.Sprintf("%s (+ %s)", t, kt)
		} else {
			out[lang] = t
		}
	}
	return out
}

// mergeKeywords unions both keyword maps per language, de-duplicated and sorted.
func mergeKeywords(base, extra map[string][]string) map[string][]string {
	out := make(map[string][]string, len(base))
	for _, kw := range []map[string][]string{base, extra} {
		for lang, words := range kw {
			out[lang] = append(out[lang], words...)
		}
	}
	for lang, words := range out {
		slices.Sort(words)
		out[lang] = slices.Compact(words)
	}
	return out
}

// nameText puts the named qualifier in place of the placeholder in every label.
func nameText(text map[string]string, qualifier string) map[string]string {
	out := make(map[string]string, len(text))
	for lang, t := range text {
		out[lang] = placeholderPattern.ReplaceAllLiteralString(t, qualifier)
	}
	return out
}

// nameChildren rewrites the children of an ellipsis record for the named
// notation it stands in for. Children that end in another bracket group
// without a key have no named counterpart and are dropped.
func nameChildren(children []string, q notation.Segment) []string {
	out := make([]string, 0, len(children))
	for _, c := range children {
		if !strings.Contains(c, notation.KeyOpen) && strings.HasSuffix(c, ")") {
			continue
		}
		out = append(out, substituteEllipsis(c, q))
	}
	return out
}

// substituteEllipsis replaces the ellipsis at the qualifier's position in c,
// or the first ellipsis when c does not extend the placeholder notation.
func substituteEllipsis(c string, q notation.Segment) string {
	end := q.Offset + len(notation.Ellipsis)
	if end <= len(c) && c[q.Offset:end] == notation.Ellipsis {
		return c[:q.Offset] + q.Text + c[end:]
	}
	return strings.Replace(c, notation.Ellipsis, q.Text, 1)
}

func uniqueStrings(in []string) []string {
	return appendUnique(make([]string, 0, len(in)), in...)
}

func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(values))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

func copyText(text map[string]string) map[string]string {
	if text == nil {
		return map[string]string{}
	}
	return maps.Clone(text)
}

func copyKeywords(kw map[string][]string) map[string][]string {
	out := make(map[string][]string, len(kw))
	for lang, words := range kw {
		out[lang] = slices.Clone(words)
	}
	return out
}
