package notation

// Decompose returns the ancestor path of n, from the root-adjacent notation
// down to n itself.
//
// Every plain character extends the path by one entry. The ellipsis group is
// a single entry. A named qualifier is preceded by its ellipsis form, so the
// placeholder record is always reachable from the path. Each character of a
// key suffix is its own entry: base(+1), base(+12), ...
//
// Decompose never fails; for malformed input it returns a best-effort split.
func Decompose(n string) []string {
	var (
		parts []string
		last  string
	)

	for _, seg := range Scan(n) {
		switch seg.Kind {
		case SegmentKey:
			suffix := seg.Text[len(KeyOpen) : len(seg.Text)-1]
			prefix := last + KeyOpen
			for _, r := range suffix {
				prefix += string(r)
				parts = append(parts, prefix+")")
			}
			if suffix != "" {
				last = parts[len(parts)-1]
			}
		case SegmentEllipsis:
			last += seg.Text
			parts = append(parts, last)
		case SegmentQualifier:
			parts = append(parts, last+Ellipsis)
			last += seg.Text
			parts = append(parts, last)
		default:
			for _, r := range seg.Text {
				last += string(r)
				parts = append(parts, last)
			}
		}
	}

	return parts
}

// Parent returns the direct ancestor of n, or "" for a root notation.
func Parent(n string) string {
	path := Decompose(n)
	if len(path) < 2 {
		return ""
	}
	return path[len(path)-2]
}
