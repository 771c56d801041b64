package notation

import "strings"

// FormatSpaced renders n with the spacing conventionally used when notations
// are printed, e.g. "25F1(+123)" becomes "25 F 1 (+12 3)".
//
// The first characters form a tip ("25 F", "11 HH", or shorter when a bracket
// follows early). The remainder is cut into tokens of at most two characters;
// bracket groups are never split and "(+" is glued to the suffix that follows.
func FormatSpaced(n string) string {
	r := []rune(n)
	if len(r) < 3 {
		return n
	}

	var (
		tip   string
		start int
	)

	switch {
	case runeSlice(r, 1, 3) == KeyOpen:
		tip = string(r[0])
		start = 1
	case runeSlice(r, 2, 4) == KeyOpen || (r[2] == '(' && runeAt(r, 3) != '+'):
		tip = string(r[:2])
		start = 2
	default:
		if len(r) == 3 {
			return string(r[:2]) + " " + string(r[2])
		}
		if r[2] == r[3] {
			// doubled letters stay together: "25 FF"
			tip = string(r[:2]) + " " + string(r[2:4])
			start = 4
		} else {
			tip = string(r[:2]) + " " + string(r[2])
			start = 3
		}
	}

	tokens := tokenize(r[start:])
	tokens = append([]string{tip}, tokens...)

	var sb strings.Builder
	for i, tok := range tokens {
		if tok == "" || tok == " " {
			continue
		}
		sb.WriteString(tok)
		if tok == KeyOpen {
			continue
		}
		if i < len(tokens)-1 && tokens[i+1] == ")" {
			continue
		}
		sb.WriteByte(' ')
	}

	return strings.TrimSpace(sb.String())
}

// tokenize cuts the part of a notation after its tip into display tokens.
func tokenize(rest []rune) []string {
	var (
		tokens  []string
		current []rune
		state   = statePlain
	)

	emit := func() {
		tokens = append(tokens, string(current))
		current = current[:0]
	}

	for _, c := range rest {
		if c == ' ' && state != stateQualifier {
			continue
		}

		if c == '(' {
			state = stateQualifier
			emit()
		}

		current = append(current, c)

		if c == '+' && state == stateQualifier {
			// key suffix characters are grouped like plain ones
			state = stateKey
		}

		if c == ')' {
			state = statePlain
			emit()
		}

		if len(current) >= 2 && state != stateQualifier {
			emit()
		}
	}

	emit()
	return tokens
}

func runeAt(r []rune, i int) rune {
	if i < 0 || i >= len(r) {
		return 0
	}
	return r[i]
}

func runeSlice(r []rune, from, to int) string {
	if from >= len(r) {
		return ""
	}
	if to > len(r) {
		to = len(r)
	}
	return string(r[from:to])
}
