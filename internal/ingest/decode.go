package ingest

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decode reads r as UTF-8 text, dropping a leading byte order mark.
// Invalid sequences decode to U+FFFD. This is the only place raw bytes are
// turned into text; parsers downstream only see decoded strings.
func decode(r io.Reader) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(r, dec))
	if err != nil {
		return "", fmt.Errorf("failed to decode: %w", err)
	}
	return string(data), nil
}
