// Package period parses free-text period expressions into analysis periods.
//
// Supported forms:
//
//	ytd [date]                e.g. "ytd", "ytd 1-3-2022"
//	N[dwmy] from|to [date]    e.g. "1m from 1-1-2022", "2w to"
//	date to date              e.g. "1-1-2022 to 1-3-2022"
//
// Dates are day-month-year with "-", "/", "." or space separators. Month
// names may replace the month number, and the day and year may be omitted
// ("mar-2022", "1-3"). An omitted date altogether means today.
package period

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"analastock/internal/model"
)

// ErrUnrecognized means the input matched none of the period forms.
var ErrUnrecognized = errors.New("unrecognized period")

var (
	ytdRe    = regexp.MustCompile(`^ytd(?:\s+(.+))?$`)
	offsetRe = regexp.MustCompile(`^(\d+)\s*([dwmy])\s+(from|to)(?:\s+(.+))?$`)
	rangeRe  = regexp.MustCompile(`^(.+?)\s+(from|to)\s+(.+)$`)
	sepRe    = regexp.MustCompile(`[-/. ]+`)
)

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "september": time.September, "sept": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// Parse interprets a period expression relative to now. The resulting
// period always satisfies from < to and ends no later than today; explicit
// dates may not precede the historical data floor.
func Parse(text string, now time.Time) (model.AnalysisPeriod, error) {
	today := model.DateOf(now)
	text = strings.ToLower(strings.TrimSpace(text))

	if m := ytdRe.FindStringSubmatch(text); m != nil {
		end := today
		if m[1] != "" {
			var err error
			if end, err = parseDate(m[1], today); err != nil {
				return model.AnalysisPeriod{}, err
			}
		}
		start := model.Date(end.Year(), time.January, 1)
		if !start.Before(end) {
			return model.AnalysisPeriod{}, fmt.Errorf("nothing before %s to analyse: %w",
				end.Format("2006-01-02"), model.ErrInvalidRange)
		}
		return model.NewAnalysisPeriod(start, end)
	}

	if m := offsetRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n == 0 {
			return model.AnalysisPeriod{}, fmt.Errorf("bad unit count %q: %w", m[1], model.ErrInvalidRange)
		}
		anchor := today
		if m[4] != "" {
			if anchor, err = parseDate(m[4], today); err != nil {
				return model.AnalysisPeriod{}, err
			}
		}

		var from, to time.Time
		if m[3] == "from" {
			from, to = anchor, offsetDate(anchor, n, m[2][0])
		} else {
			from, to = offsetDate(anchor, -n, m[2][0]), anchor
		}
		return buildPeriod(from, to, today)
	}

	if m := rangeRe.FindStringSubmatch(text); m != nil {
		first, err := parseDate(m[1], today)
		if err != nil {
			return model.AnalysisPeriod{}, err
		}
		second, err := parseDate(m[3], today)
		if err != nil {
			return model.AnalysisPeriod{}, err
		}

		// "A to B" runs A through B; "B from A" is the same period.
		if m[2] == "from" {
			first, second = second, first
		}
		return buildPeriod(first, second, today)
	}

	return model.AnalysisPeriod{}, fmt.Errorf("%w: %q", ErrUnrecognized, text)
}

func buildPeriod(from, to, today time.Time) (model.AnalysisPeriod, error) {
	if to.After(today) {
		return model.AnalysisPeriod{}, fmt.Errorf("period ends in the future (%s): %w",
			to.Format("2006-01-02"), model.ErrInvalidRange)
	}
	return model.NewAnalysisPeriod(from, to)
}

// offsetDate moves a date by n units of d(ays), w(eeks), m(onths) or y(ears).
func offsetDate(base time.Time, n int, unit byte) time.Time {
	switch unit {
	case 'd':
		return base.AddDate(0, 0, n)
	case 'w':
		return base.AddDate(0, 0, 7*n)
	case 'm':
		return addMonths(base, n)
	default: // 'y', the regexp admits nothing else
		return base.AddDate(n, 0, 0)
	}
}

// addMonths steps whole months keeping the day stable: a day below the 28th
// never moves, the last day of a month maps to the last day of the target
// month, and days past the target month's end clamp to it.
func addMonths(base time.Time, n int) time.Time {
	y, m, d := base.Date()
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)

	day := d
	if d >= 28 {
		targetLast := lastDayOfMonth(target.Year(), target.Month())
		if d == lastDayOfMonth(y, m) || d > targetLast {
			day = targetLast
		}
	}
	return time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(year int, month time.Month) int {
	// Day zero of the following month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// parseDate reads a day-month-year date, tolerating "-", "/", "." and
// space separators, month names, a two-digit or omitted year, and an
// omitted day for month-year forms.
func parseDate(s string, today time.Time) (time.Time, error) {
	fields := sepRe.Split(strings.TrimSpace(s), -1)

	var dayStr, monthStr, yearStr string
	switch len(fields) {
	case 3:
		dayStr, monthStr, yearStr = fields[0], fields[1], fields[2]
	case 2:
		first, second := fields[0], fields[1]
		switch {
		case !isNumeric(first):
			// "mar-2022"
			dayStr, monthStr, yearStr = "1", first, second
		case isNumeric(second) && len(second) == 4:
			// "03-2022"
			dayStr, monthStr, yearStr = "1", first, second
		default:
			// "1-3" or "1-mar", current year
			dayStr, monthStr = first, second
		}
	default:
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrUnrecognized, s)
	}

	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad day %q", ErrUnrecognized, dayStr)
	}

	var month time.Month
	if isNumeric(monthStr) {
		m, _ := strconv.Atoi(monthStr)
		month = time.Month(m)
	} else {
		var ok bool
		if month, ok = monthNames[monthStr]; !ok {
			return time.Time{}, fmt.Errorf("%w: bad month %q", ErrUnrecognized, monthStr)
		}
	}

	year := today.Year()
	if yearStr != "" {
		if year, err = strconv.Atoi(yearStr); err != nil {
			return time.Time{}, fmt.Errorf("%w: bad year %q", ErrUnrecognized, yearStr)
		}
		if year < 100 {
			year += (today.Year() / 100) * 100
		}
	}

	if month < time.January || month > time.December || day < 1 || day > lastDayOfMonth(year, month) {
		return time.Time{}, fmt.Errorf("no such date %q: %w", s, model.ErrInvalidRange)
	}

	date := model.Date(year, month, day)
	if date.After(today) {
		return time.Time{}, fmt.Errorf("future date %s: %w", date.Format("2006-01-02"), model.ErrInvalidRange)
	}
	if date.Before(model.MinDate) {
		return time.Time{}, fmt.Errorf("date before %s: %w",
			model.MinDate.Format("2006-01-02"), model.ErrInvalidRange)
	}
	return date, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
