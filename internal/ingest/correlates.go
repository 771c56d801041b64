package ingest

import (
	"strings"
)

// correlateKind tells what a correlate file contributes.
type correlateKind int

const (
	correlateText correlateKind = iota
	correlateKeywords
)

// correlateFile describes a "txt_<lang>" or "kw_<lang>" file. Files whose
// name contains "_keys" address key entries, see keyAddresses.
type correlateFile struct {
	kind     correlateKind
	language string
	keys     bool
}

// classifyCorrelate recognises a correlate file by its base name.
func classifyCorrelate(base string) (correlateFile, bool) {
	name := strings.TrimSuffix(base, ".txt")
	var cf correlateFile
	var rest string
	switch {
	case strings.HasPrefix(name, "txt_"):
		cf.kind, rest = correlateText, name[len("txt_"):]
	case strings.HasPrefix(name, "kw_"):
		cf.kind, rest = correlateKeywords, name[len("kw_"):]
	default:
		return correlateFile{}, false
	}

	lang, tail, _ := strings.Cut(rest, "_")
	if lang == "" {
		return correlateFile{}, false
	}
	cf.language = lang
	cf.keys = strings.Contains("_"+tail, "_keys")
	return cf, true
}

// correlateLine is one "notation|value" line.
type correlateLine struct {
	target string
	value  string
}

// parseCorrelates returns every well formed line of a correlate file.
// Comment lines are ignored; lines that do not have exactly one separator
// are skipped.
func parseCorrelates(doc string) (lines []correlateLine, skipped int) {
	for line := range strings.Lines(doc) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			skipped++
			continue
		}
		lines = append(lines, correlateLine{target: parts[0], value: parts[1]})
	}
	return lines, skipped
}
