package recurrence

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/teambition/rrule-go"
)

var weekdays = map[string]rrule.Weekday{
	"MO": rrule.MO,
	"TU": rrule.TU,
	"WE": rrule.WE,
	"TH": rrule.TH,
	"FR": rrule.FR,
	"SA": rrule.SA,
	"SU": rrule.SU,
}

var weekdayCodes = [...]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// ordinalPattern matches "1FR", "-2MO" and the signed "+3TU" form
var ordinalPattern = regexp.MustCompile(`^([+-]?)([1-5])([A-Z]{2})$`)

// ordinalPrefix decides which of the two byday shapes a token uses
var ordinalPrefix = regexp.MustCompile(`^[+-]?[0-9]`)

// parseByDay converts a byday value into rrule weekdays.
//
// Two shapes are accepted: a set of weekday codes separated by spaces or
// commas ("MO WE FR"), or a single ordinal token selecting the Nth weekday of
// the month ("1FR", "-1MO").
func parseByDay(value string) ([]rrule.Weekday, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return nil, nil
	}

	if ordinalPrefix.MatchString(value) {
		m := ordinalPattern.FindStringSubmatch(value)
		if m == nil {
			return nil, invalid("byday", value, "cannot parse ordinal weekday")
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, &InvalidRuleError{Field: "byday", Value: value, Message: "cannot parse ordinal", Err: err}
		}
		if m[1] == "-" {
			n = -n
		}
		wd, ok := weekdays[m[3]]
		if !ok {
			return nil, invalid("byday", value, "unknown weekday "+m[3])
		}
		return []rrule.Weekday{wd.Nth(n)}, nil
	}

	tokens := strings.FieldsFunc(value, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
	out := make([]rrule.Weekday, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		wd, ok := weekdays[tok]
		if !ok {
			return nil, invalid("byday", value, "unknown weekday "+tok)
		}
		if seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, wd)
	}
	return out, nil
}

// formatByDay renders rrule weekdays back into the byday text form
func formatByDay(days []rrule.Weekday) string {
	parts := make([]string, 0, len(days))
	for _, wd := range days {
		code := weekdayCodes[wd.Day()]
		if n := wd.N(); n != 0 {
			code = strconv.Itoa(n) + code
		}
		parts = append(parts, code)
	}
	return strings.Join(parts, " ")
}

// validateIntList checks a comma or space separated list of integers in [lo, hi]
func validateIntList(field, value string, lo, hi int) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	tokens := strings.FieldsFunc(value, func(r rune) bool {
		return r == ' ' || r == ','
	})
	for _, tok := range tokens {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return &InvalidRuleError{Field: field, Value: value, Message: "not an integer list", Err: err}
		}
		if n < lo || n > hi {
			return invalid(field, value, "value "+tok+" out of range")
		}
	}
	return nil
}
