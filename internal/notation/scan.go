// Package notation implements the grammar of classification notations:
// scanning into plain runs and bracket groups, decomposition into the
// ancestor path, key-suffix splitting and the spaced display form.
//
// Everything in this package is a pure function of its input string.
package notation

import "strings"

const (
	// Ellipsis is the placeholder group standing for "any qualifier".
	Ellipsis = "(...)"

	// KeyOpen starts a key-suffix group.
	KeyOpen = "(+"
)

// SegmentKind classifies a scanned segment of a notation.
type SegmentKind int

const (
	// SegmentPlain is a run of characters outside any bracket group.
	SegmentPlain SegmentKind = iota
	// SegmentEllipsis is the literal "(...)" group.
	SegmentEllipsis
	// SegmentQualifier is any other bracket group, e.g. a proper name.
	SegmentQualifier
	// SegmentKey is a "(+...)" key-suffix group.
	SegmentKey
)

// String returns the name of the segment kind.
func (k SegmentKind) String() string {
	switch k {
	case SegmentPlain:
		return "plain"
	case SegmentEllipsis:
		return "ellipsis"
	case SegmentQualifier:
		return "qualifier"
	case SegmentKey:
		return "key"
	default:
		return "unknown"
	}
}

// Segment is one scanned piece of a notation. Offset is the byte offset
// of Text within the scanned string.
type Segment struct {
	Kind   SegmentKind
	Text   string
	Offset int
}

// scanState is the state of the segment scanner.
type scanState int

const (
	statePlain scanState = iota
	stateQualifier
	stateKey
)

// Scan splits a notation into alternating plain runs and bracket groups.
//
// A group opens at "(" and closes at the first ")" that follows at least one
// content character (the shortest bracket span). A group that is never
// closed leaves no ")" behind it, so the rest of the input, the opening
// bracket included, is a plain run: malformed input still yields a
// best-effort split.
func Scan(n string) []Segment {
	var (
		segments   []Segment
		state      = statePlain
		plainStart = 0
		groupStart = 0
	)

	for i := 0; i < len(n); i++ {
		c := n[i]
		switch state {
		case statePlain:
			if c != '(' {
				continue
			}
			groupStart = i
			if strings.HasPrefix(n[i:], KeyOpen) {
				state = stateKey
			} else {
				state = stateQualifier
			}
			// the first content character never closes the group
			i++
		case stateQualifier, stateKey:
			if c != ')' {
				continue
			}
			if groupStart > plainStart {
				segments = append(segments, Segment{Kind: SegmentPlain, Text: n[plainStart:groupStart], Offset: plainStart})
			}
			text := n[groupStart : i+1]
			kind := SegmentQualifier
			switch {
			case state == stateKey:
				kind = SegmentKey
			case text == Ellipsis:
				kind = SegmentEllipsis
			}
			segments = append(segments, Segment{Kind: kind, Text: text, Offset: groupStart})
			plainStart = i + 1
			state = statePlain
		}
	}

	if plainStart < len(n) {
		segments = append(segments, Segment{Kind: SegmentPlain, Text: n[plainStart:], Offset: plainStart})
	}
	return segments
}

// FirstQualifier returns the first named qualifier group of n: a bracket
// group that is neither a key suffix nor the ellipsis placeholder.
func FirstQualifier(n string) (Segment, bool) {
	for _, seg := range Scan(n) {
		if seg.Kind == SegmentQualifier && !strings.HasPrefix(seg.Text, "(...") {
			return seg, true
		}
	}
	return Segment{}, false
}

// SubstituteQualifier replaces the given qualifier segment of n with the
// ellipsis placeholder.
func SubstituteQualifier(n string, q Segment) string {
	return n[:q.Offset] + Ellipsis + n[q.Offset+len(q.Text):]
}

// SplitKey splits n at the first "(+" into its base notation and key suffix.
// The key is empty when n carries no suffix. ok is false when the suffix is
// malformed: not closed by a trailing ")", empty, or containing brackets.
func SplitKey(n string) (base, key string, ok bool) {
	idx := strings.Index(n, KeyOpen)
	if idx < 0 {
		return n, "", true
	}
	base = n[:idx]
	rest := n[idx+len(KeyOpen):]
	if !strings.HasSuffix(rest, ")") {
		return base, rest, false
	}
	key = rest[:len(rest)-1]
	if key == "" || strings.ContainsAny(key, "()") {
		return base, key, false
	}
	return base, key, true
}

// WithKey attaches a key suffix to a base notation.
func WithKey(base, key string) string {
	return base + KeyOpen + key + ")"
}
