package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/sha1n/iconclass-mcp/internal/store"
)

const (
	notationsFile = "notations.txt"
	keysFile      = "keys.txt"
)

// Stats summarises a load.
type Stats struct {
	Files    int `json:"files"`
	Records  int `json:"records"`
	KeyCodes int `json:"keyCodes"`
	Texts    int `json:"texts"`
	Keywords int `json:"keywords"`
	// Skipped counts malformed lines and correlates for unknown targets.
	Skipped int `json:"skipped"`
}

// Loader decodes a source into a dataset.
type Loader struct {
	source Source
	logger *slog.Logger
}

// NewLoader creates a loader reading from src.
func NewLoader(src Source, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{source: src, logger: logger}
}

// Load reads the notations and keys files, then every correlate file, and
// returns the validated dataset.
func (l *Loader) Load(ctx context.Context) (*store.Dataset, Stats, error) {
	var stats Stats

	files, err := l.source.List(ctx)
	if err != nil {
		return nil, stats, err
	}

	var notations, keys string
	var correlates []string
	for _, f := range files {
		base := path.Base(f.Name)
		switch {
		case base == notationsFile:
			notations = f.Name
		case base == keysFile:
			keys = f.Name
		default:
			if _, ok := classifyCorrelate(base); ok {
				correlates = append(correlates, f.Name)
			}
		}
	}
	if notations == "" {
		return nil, stats, fmt.Errorf("no %s in %s", notationsFile, l.source)
	}
	slices.Sort(correlates)

	ds := store.NewDataset()
	if err := l.loadNotations(ctx, ds, notations, &stats); err != nil {
		return nil, stats, err
	}

	keyTargets := newKeyAddresses()
	if keys != "" {
		if err := l.loadKeys(ctx, ds, keys, keyTargets, &stats); err != nil {
			return nil, stats, err
		}
	} else {
		l.logger.WarnContext(ctx, "No keys file found", "source", l.source.String())
	}

	for _, name := range correlates {
		if err := l.loadCorrelates(ctx, ds, name, keyTargets, &stats); err != nil {
			return nil, stats, err
		}
	}

	if err := ds.Validate(); err != nil {
		return nil, stats, err
	}
	stats.Records = len(ds.Records)
	stats.KeyCodes = len(ds.Keys)

	l.logger.InfoContext(ctx, "Loaded data source",
		"source", l.source.String(),
		"files", stats.Files,
		"records", stats.Records,
		"key_codes", stats.KeyCodes,
		"texts", stats.Texts,
		"keywords", stats.Keywords,
		"skipped", stats.Skipped)
	return ds, stats, nil
}

func (l *Loader) read(ctx context.Context, name string, stats *Stats) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rc, err := l.source.Open(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer func() { _ = rc.Close() }()

	doc, err := decode(rc)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	stats.Files++
	return doc, nil
}

func (l *Loader) loadNotations(ctx context.Context, ds *store.Dataset, name string, stats *Stats) error {
	doc, err := l.read(ctx, name, stats)
	if err != nil {
		return err
	}
	for i, block := range parseBlocks(doc) {
		if err := applyRecordBlock(ds, block); err != nil {
			l.logger.DebugContext(ctx, "Skipping notation block", "file", name, "block", i, "error", err)
			stats.Skipped++
		}
	}
	return nil
}

func (l *Loader) loadKeys(ctx context.Context, ds *store.Dataset, name string, targets *keyAddresses, stats *Stats) error {
	doc, err := l.read(ctx, name, stats)
	if err != nil {
		return err
	}
	for i, block := range parseBlocks(doc) {
		declared, err := applyKeyBlock(ds, block)
		if err != nil {
			l.logger.DebugContext(ctx, "Skipping key block", "file", name, "block", i, "error", err)
			stats.Skipped++
			continue
		}
		for _, cs := range declared {
			if addr, ok := targets.add(cs[0], cs[1]); !ok {
				l.logger.WarnContext(ctx, "Ambiguous key address, use code(+suffix) in key correlates",
					"file", name, "address", addr, "code", cs[0], "suffix", cs[1])
			}
		}
	}
	return nil
}

func (l *Loader) loadCorrelates(ctx context.Context, ds *store.Dataset, name string, keyTargets *keyAddresses, stats *Stats) error {
	cf, _ := classifyCorrelate(path.Base(name))
	doc, err := l.read(ctx, name, stats)
	if err != nil {
		return err
	}

	lines, skipped := parseCorrelates(doc)
	stats.Skipped += skipped
	for _, line := range lines {
		text, keywords, ok := l.correlateTarget(ds, cf, line.target, keyTargets)
		if !ok {
			stats.Skipped++
			continue
		}
		switch cf.kind {
		case correlateText:
			text[cf.language] = line.value
			stats.Texts++
		case correlateKeywords:
			keywords[cf.language] = append(keywords[cf.language], line.value)
			stats.Keywords++
		}
	}
	return nil
}

// correlateTarget returns the text and keyword maps a correlate line writes
// to. Correlates for notations or keys that were never declared are dropped.
func (l *Loader) correlateTarget(ds *store.Dataset, cf correlateFile, target string, keyTargets *keyAddresses) (map[string]string, map[string][]string, bool) {
	if cf.keys {
		cs, ok := keyTargets.lookup(target)
		if !ok {
			return nil, nil, false
		}
		e := ds.KeyEntry(cs[0], cs[1])
		return e.Text, e.Keywords, true
	}

	rec, ok := ds.Records[strings.TrimSpace(target)]
	if !ok {
		return nil, nil, false
	}
	if rec.Text == nil {
		rec.Text = map[string]string{}
	}
	if rec.Keywords == nil {
		rec.Keywords = map[string][]string{}
	}
	return rec.Text, rec.Keywords, true
}

// keyAddresses resolves the targets of key correlate lines. An entry is
// addressed by its code followed by its suffix, or explicitly as
// "code(+suffix)". A concatenated address shared by two entries, such as
// "111" for code 1 suffix 11 and code 11 suffix 1, names neither.
type keyAddresses struct {
	entries   map[string][2]string
	ambiguous map[string]bool
}

func newKeyAddresses() *keyAddresses {
	return &keyAddresses{
		entries:   map[string][2]string{},
		ambiguous: map[string]bool{},
	}
}

// add registers an entry. It returns the concatenated address and false when
// that address already names a different entry.
func (a *keyAddresses) add(code, suffix string) (string, bool) {
	cs := [2]string{code, suffix}
	a.entries[code+"(+"+suffix+")"] = cs

	addr := code + suffix
	if a.ambiguous[addr] {
		return addr, false
	}
	if prev, ok := a.entries[addr]; ok && prev != cs {
		delete(a.entries, addr)
		a.ambiguous[addr] = true
		return addr, false
	}
	a.entries[addr] = cs
	return addr, true
}

func (a *keyAddresses) lookup(target string) ([2]string, bool) {
	cs, ok := a.entries[strings.TrimSpace(target)]
	return cs, ok
}
