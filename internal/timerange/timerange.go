// Package timerange resolves human date expressions into epoch-second
// query ranges. Inputs use DD/MM/YYYY, wall-clock parsing happens in local
// time, outputs are epoch seconds.
package timerange

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Range is an inclusive [From, To] bound in epoch seconds.
type Range struct {
	From int64
	To   int64
}

// Resolve converts a human date expression into a range. Supported forms:
// the keywords "now", "today", "yesterday" and "last month"; a single date
// token "DD/MM/YYYY" with optional " HH:mm:ss"; and a range "A - B" of two
// date tokens. Any parse failure returns nil, never a panic or error.
func Resolve(expression string) *Range {
	return resolveAt(expression, time.Now())
}

func resolveAt(expression string, now time.Time) *Range {
	trimmed := strings.ToLower(strings.TrimSpace(expression))
	if trimmed == "" {
		return nil
	}

	if strings.Contains(trimmed, " - ") {
		fromStr, toStr, _ := strings.Cut(trimmed, " - ")
		from, ok := parseDate(fromStr)
		if !ok {
			return nil
		}
		to, ok := parseDate(toStr)
		if !ok {
			return nil
		}
		return &Range{From: from, To: to}
	}

	switch trimmed {
	case "now":
		ts := now.Unix()
		return &Range{From: ts, To: ts}
	case "today":
		ts := midnight(now).Unix()
		return &Range{From: ts, To: ts}
	case "yesterday":
		ts := midnight(now).Unix() - 86400
		return &Range{From: ts, To: ts}
	case "last month":
		first := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, now.Location())
		return &Range{From: first.Unix(), To: midnight(now).Unix() - 86400}
	}

	ts, ok := parseDate(trimmed)
	if !ok {
		return nil
	}
	return &Range{From: ts, To: ts}
}

var dateSeparators = regexp.MustCompile(`[/\s:]+`)

// parseDate parses "DD/MM/YYYY" with optional "HH:mm:ss" into epoch
// seconds. Impossible calendar dates (e.g. 31/02/2024) are rejected.
func parseDate(s string) (int64, bool) {
	parts := dateSeparators.Split(strings.TrimSpace(s), -1)
	if len(parts) < 3 {
		return 0, false
	}

	nums := make([]int, 6)
	for i := 0; i < 6; i++ {
		if i >= len(parts) || parts[i] == "" {
			nums[i] = 0
			continue
		}
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return 0, false
		}
		nums[i] = n
	}

	day, month, year := nums[0], nums[1], nums[2]
	hour, minute, second := nums[3], nums[4], nums[5]

	if year < 1000 || month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, false
	}
	if hour > 23 || minute > 59 || second > 59 {
		return 0, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
	// time.Date normalizes out-of-range components, so 31/02 silently rolls
	// into March. Round-trip to catch impossible calendar dates.
	if t.Day() != day || t.Month() != time.Month(month) || t.Year() != year {
		return 0, false
	}
	return t.Unix(), true
}

// FormatDate renders an epoch-second timestamp as DD/MM/YYYY, the format
// used for transcript lines and user-facing replies.
func FormatDate(ts int64) string {
	return time.Unix(ts, 0).Format("02/01/2006")
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
