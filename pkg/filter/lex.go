package filter

import "strings"

// rawKeyword is one lexed-but-not-yet-typed term.
type rawKeyword struct {
	column   string
	relation rawRelation
	value    string
	quoted   bool
}

// rawRelation mirrors the relation characters of §4.1 before they are
// translated to types.Relation, which also needs to know whether the
// keyword carried a column name.
type rawRelation int

const (
	relNone rawRelation = iota // no operator seen at all -> APPROX
	relEqual
	relTildeApprox
	relAbove
	relBelow
	relRegexp
)

// lex performs the single left-to-right pass described in the filter
// grammar: whitespace separates tokens outside quotes, '"' toggles
// quoting, and '=' '~' '>' '<' ':' terminate the column portion and fix
// the keyword's relation.
func lex(input string) ([]rawKeyword, error) {
	var (
		out        []rawKeyword
		inQuote    bool
		between    = true
		column     strings.Builder
		value      strings.Builder
		columnDone bool
		quoted     bool
		relation   rawRelation
		haveToken  bool
	)

	finalize := func() {
		if !haveToken {
			return
		}
		col, val := column.String(), value.String()
		if relation == relNone {
			// A token with no relation operator is a bare keyword: its text
			// is the value and it has no column.
			col, val = "", col
		}
		out = append(out, rawKeyword{
			column:   col,
			relation: relation,
			value:    val,
			quoted:   quoted,
		})
		column.Reset()
		value.Reset()
		columnDone = false
		quoted = false
		relation = relNone
		haveToken = false
	}

	isWhitespace := func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	}

	isRelationChar := func(r rune) bool {
		return r == '=' || r == '~' || r == '>' || r == '<' || r == ':'
	}

	relationFor := func(r rune) rawRelation {
		switch r {
		case '=':
			return relEqual
		case '~':
			return relTildeApprox
		case '>':
			return relAbove
		case '<':
			return relBelow
		case ':':
			return relRegexp
		default:
			return relTildeApprox
		}
	}

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if between {
			if isWhitespace(r) {
				continue
			}
			between = false
			haveToken = true
		}

		if inQuote {
			if r == '"' {
				inQuote = false
				continue
			}
			if !columnDone {
				column.WriteRune(r)
			} else {
				value.WriteRune(r)
			}
			continue
		}

		switch {
		case isWhitespace(r):
			finalize()
			between = true
		case r == '"':
			// A leading quote right after a column-delimiter, or at the
			// very start of the token, begins a quoted value.
			inQuote = true
			quoted = true
		case isRelationChar(r) && relation == relNone:
			// "=" / "~" at the very start of the token (no column
			// collected yet) establish an unprefixed exact/approx
			// keyword; any relation char after a column name cuts the
			// column off the same way.
			relation = relationFor(r)
			columnDone = true
		default:
			if !columnDone {
				column.WriteRune(r)
			} else {
				value.WriteRune(r)
			}
		}
	}

	if inQuote {
		return nil, ErrParseAssert
	}
	finalize()

	return out, nil
}
