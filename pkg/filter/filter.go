// Package filter implements the filter-term parser: a small hand-written
// scanner that turns a filter string into a normalized, typed sequence of
// keywords, with time-relative and severity-keyword value substitution,
// integer clamping and duplicate suppression for special columns.
package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vulnscan/scanengine/pkg/types"
)

// ErrParseAssert is returned when the lexer reaches an illegal internal
// state (a quote still open at the end of the input). Production
// callers must treat this as a hard failure; tests treat it as the
// specification.
var ErrParseAssert = errors.New("filter: parse assertion failed")

// Severity constants substituted for the special keyword-like severity
// values recognized in place of a numeric severity (§4.1 step 1). These are
// GVM-style sentinel scores: ordinary severities are in [0,10], so negative
// values can never collide with a real CVSS score.
const (
	SeverityLog           = -2.0
	SeverityFalsePositive = -3.0
	SeverityError         = -4.0
)

// Options carries the process-wide flags §4.1 depends on (§9: never
// module-scoped mutable state — passed in explicitly by the caller).
type Options struct {
	// TableOrderIfSortNotSpecified suppresses the synthesized "sort=name"
	// default when set.
	TableOrderIfSortNotSpecified bool
	// Now is the reference time for time-relative value resolution;
	// defaults to time.Now() when zero, overridable for deterministic tests.
	Now time.Time
}

// uniqueColumns are the special columns that may appear at most once in
// the resulting keyword sequence (§4.1 duplicate suppression). "sort" and
// "sort-reverse" share a slot.
var uniqueColumns = map[string]string{
	"sort":               "sort",
	"sort-reverse":       "sort",
	"first":              "first",
	"rows":               "rows",
	"apply_overrides":    "apply_overrides",
	"delta_states":       "delta_states",
	"levels":             "levels",
	"min_qod":            "min_qod",
	"notes":              "notes",
	"overrides":          "overrides",
	"result_hosts_only":  "result_hosts_only",
	"timezone":           "timezone",
}

var booleanColumns = map[string]bool{
	"apply_overrides":   true,
	"overrides":         true,
	"notes":             true,
	"result_hosts_only": true,
}

var stringOptionColumns = map[string]bool{
	"delta_states": true,
	"levels":       true,
	"sort":         true,
	"sort-reverse": true,
}

var severitySpecials = map[string]float64{
	"log":            SeverityLog,
	"false positive": SeverityFalsePositive,
	"error":          SeverityError,
}

func toRelation(r rawRelation) types.Relation {
	switch r {
	case relEqual:
		return types.RelColEqual
	case relTildeApprox:
		return types.RelColApprox
	case relAbove:
		return types.RelColAbove
	case relBelow:
		return types.RelColBelow
	case relRegexp:
		return types.RelColRegexp
	default:
		return types.RelApprox
	}
}

// Parse converts a filter string into the ordered keyword sequence of §4.1,
// adding the synthesized defaults when absent.
func Parse(input string, opts Options) ([]types.FilterKeyword, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	raws, err := lex(input)
	if err != nil {
		return nil, err
	}

	var result []types.FilterKeyword
	seen := map[string]bool{}

	for _, raw := range raws {
		kw := types.FilterKeyword{
			Column:   strings.ToLower(raw.column),
			Relation: toRelation(raw.relation),
			RawValue: raw.value,
			Quoted:   raw.quoted,
		}

		typeValue(&kw, now)
		clamp(&kw)

		if slot, special := uniqueColumns[kw.Column]; special {
			if seen[slot] {
				continue
			}
			seen[slot] = true
		}

		result = append(result, kw)
	}

	result = synthesizeDefaults(result, seen, opts)

	return result, nil
}

// typeValue implements the post-lex value typing steps of §4.1 point 2.
func typeValue(kw *types.FilterKeyword, now time.Time) {
	col := kw.Column
	raw := kw.RawValue

	if col == "severity" || col == "new_severity" {
		if v, ok := severitySpecials[strings.ToLower(raw)]; ok {
			kw.Type = types.ValDouble
			kw.DoubleValue = v
			kw.Relation = types.RelColEqual
			return
		}
	}

	if secs, ok := parseRelativeTime(raw, now); ok {
		kw.Type = types.ValInteger
		kw.IntValue = secs
		return
	}

	if secs, ok := parseAbsoluteTime(raw); ok {
		kw.Type = types.ValInteger
		kw.IntValue = secs
		return
	}

	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		kw.Type = types.ValInteger
		kw.IntValue = i
		return
	}

	if f, err := strconv.ParseFloat(raw, 64); err == nil && !isInfOrNaN(f) {
		kw.Type = types.ValDouble
		kw.DoubleValue = f
		return
	}

	kw.Type = types.ValString
}

func isInfOrNaN(f float64) bool {
	return f != f || f > 1e308 || f < -1e308
}

// parseRelativeTime recognizes "[-]N<unit>" where unit is one of
// {s,m,h,d,w,M,y}, computing now + N*unit (calendar-month arithmetic for M
// and y, with y meaning 12*N months).
func parseRelativeTime(raw string, now time.Time) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	s := raw
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	if s == "" {
		return 0, false
	}
	unit := s[len(s)-1]
	digits := s[:len(s)-1]
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		n = -n
	}

	var t time.Time
	switch unit {
	case 's':
		t = now.Add(time.Duration(n) * time.Second)
	case 'm':
		t = now.Add(time.Duration(n) * time.Minute)
	case 'h':
		t = now.Add(time.Duration(n) * time.Hour)
	case 'd':
		t = now.AddDate(0, 0, int(n))
	case 'w':
		t = now.AddDate(0, 0, int(n)*7)
	case 'M':
		t = now.AddDate(0, int(n), 0)
	case 'y':
		t = now.AddDate(0, int(n)*12, 0)
	default:
		return 0, false
	}
	return t.Unix(), true
}

var absoluteTimeLayouts = []string{
	"2006-01-02t15:04",
	"2006-01-02t15h04",
	"2006-01-02T15:04",
	"2006-01-02T15h04",
	"2006-01-02",
}

// parseAbsoluteTime tries each strptime-equivalent layout in order,
// returning seconds since epoch in the local zone on the first match.
func parseAbsoluteTime(raw string) (int64, bool) {
	for _, layout := range absoluteTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}

// clamp applies the integer-valued column clamps and string-option
// relation override of §4.1 point 3.
func clamp(kw *types.FilterKeyword) {
	switch kw.Column {
	case "first":
		if kw.Type == types.ValInteger && kw.IntValue < 1 {
			kw.IntValue = 1
		}
	case "rows":
		if kw.Type == types.ValInteger {
			switch {
			case kw.IntValue == 0:
				kw.IntValue = 1
			case kw.IntValue < -2:
				kw.IntValue = -1
			}
		}
	case "min_qod":
		if kw.Type == types.ValInteger {
			if kw.IntValue < 0 {
				kw.IntValue = 0
			} else if kw.IntValue > 100 {
				kw.IntValue = 100
			}
		}
	}

	if booleanColumns[kw.Column] && kw.Type == types.ValInteger {
		if kw.IntValue != 0 {
			kw.IntValue = 1
		}
	}

	if stringOptionColumns[kw.Column] {
		kw.Type = types.ValString
		kw.Relation = types.RelColEqual
	}
}

// synthesizeDefaults appends the three missing specials ("first=1",
// "rows=-2", "sort=name") in that order, honoring the sort-suppression
// flag.
func synthesizeDefaults(result []types.FilterKeyword, seen map[string]bool, opts Options) []types.FilterKeyword {
	if !seen["first"] {
		result = append(result, types.FilterKeyword{
			Column: "first", Relation: types.RelColEqual,
			RawValue: "1", Type: types.ValInteger, IntValue: 1,
		})
	}
	if !seen["rows"] {
		result = append(result, types.FilterKeyword{
			Column: "rows", Relation: types.RelColEqual,
			RawValue: "-2", Type: types.ValInteger, IntValue: -2,
		})
	}
	if !seen["sort"] && !opts.TableOrderIfSortNotSpecified {
		result = append(result, types.FilterKeyword{
			Column: "sort", Relation: types.RelColEqual,
			RawValue: "name", Type: types.ValString,
		})
	}
	return result
}

// String renders a keyword back to its filter-string form, useful for
// logging and for the F1 round-trip invariant.
func String(kw types.FilterKeyword) string {
	var relChar string
	switch kw.Relation {
	case types.RelColEqual:
		relChar = "="
	case types.RelColApprox:
		relChar = "~"
	case types.RelColAbove:
		relChar = ">"
	case types.RelColBelow:
		relChar = "<"
	case types.RelColRegexp:
		relChar = ":"
	default:
		relChar = ""
	}
	return fmt.Sprintf("%s%s%s", kw.Column, relChar, kw.RawValue)
}
