package recurrence

import (
	"strconv"
	"strings"

	"github.com/teambition/rrule-go"
)

// ParseRRule converts an iCalendar RRULE value ("FREQ=WEEKLY;COUNT=3;BYDAY=MO")
// into a Rule. The "RRULE:" prefix is optional.
func ParseRRule(value string) (Rule, error) {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "RRULE:")
	if value == "" {
		return Rule{}, invalid("rrule", value, "empty")
	}

	opt, err := rrule.StrToROption(value)
	if err != nil {
		return Rule{}, &InvalidRuleError{Field: "rrule", Value: value, Message: "cannot parse", Err: err}
	}

	var freq Frequency
	for f, rf := range frequencies {
		if rf == opt.Freq {
			freq = f
		}
	}
	if freq == "" {
		return Rule{}, invalid("frequency", value, "unsupported frequency")
	}

	rule := Rule{
		Frequency: freq,
		Interval:  opt.Interval,
		ByDay:     formatByDay(opt.Byweekday),
		ByMonth:   joinInts(opt.Bymonth),
		ByHour:    joinInts(opt.Byhour),
		ByMinute:  joinInts(opt.Byminute),
	}
	if opt.Count > 0 {
		rule.EndRepeatMode = EndByCount
		rule.Count = opt.Count
	} else {
		rule.EndRepeatMode = EndByUntil
		if !opt.Until.IsZero() {
			rule.Until = opt.Until.UTC()
		}
	}

	return rule.Normalize(), nil
}

// FormatRRule renders a rule as an iCalendar RRULE value without the
// "RRULE:" prefix
func FormatRRule(rule Rule) string {
	rule = rule.Normalize()

	parts := []string{
		"FREQ=" + string(rule.Frequency),
		"INTERVAL=" + strconv.Itoa(rule.Interval),
	}
	switch rule.EndRepeatMode {
	case EndByCount:
		parts = append(parts, "COUNT="+strconv.Itoa(rule.Count))
	case EndByUntil:
		if !rule.Until.IsZero() {
			parts = append(parts, "UNTIL="+rule.Until.UTC().Format("20060102T150405Z"))
		}
	}
	if rule.ByDay != "" && rule.Frequency != Daily {
		days := strings.FieldsFunc(strings.ToUpper(rule.ByDay), func(r rune) bool {
			return r == ' ' || r == ','
		})
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	if list := normalizeList(rule.ByMonth); list != "" {
		parts = append(parts, "BYMONTH="+list)
	}
	if list := normalizeList(rule.ByHour); list != "" {
		parts = append(parts, "BYHOUR="+list)
	}
	if list := normalizeList(rule.ByMinute); list != "" {
		parts = append(parts, "BYMINUTE="+list)
	}

	return strings.Join(parts, ";")
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func normalizeList(value string) string {
	return strings.Join(strings.FieldsFunc(value, func(r rune) bool {
		return r == ' ' || r == ','
	}), ",")
}
