package parse

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DeliveryEstimate is the numeric form of a free-text delivery promise.
// All fields nil means the text could not be interpreted.
type DeliveryEstimate struct {
	EarliestDays *int
	LatestDays   *int
	TimeRange    *string
}

var (
	timeRangeRe = regexp.MustCompile(`(?i)(\d+(?::\d+)?\s*(?:AM|PM)\s*-\s*\d+(?::\d+)?\s*(?:AM|PM))`)
	dayNumberRe = regexp.MustCompile(`\d+`)

	monthNames = []string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	}
)

// ParseDeliveryEstimate converts promise text like "Tomorrow", "Overnight
// 7 AM - 11 AM" or "February 24 - March 11" into a day range relative to now,
// plus an optional clock time range. Rules in priority order:
//
//  1. a clock time range is extracted independently of day resolution,
//  2. overnight/today -> (0,0), tomorrow -> (1,1),
//  3. otherwise month names and day numbers resolve concrete dates; a month
//     earlier than the current one rolls into next year, each end of the
//     range independently.
//
// Unparseable input yields the zero estimate, never an error.
func ParseDeliveryEstimate(text string, now time.Time) DeliveryEstimate {
	var est DeliveryEstimate
	if text == "" {
		return est
	}

	if m := timeRangeRe.FindString(text); m != "" {
		tr := CleanText(m)
		est.TimeRange = &tr
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "overnight"), strings.Contains(lower, "today"):
		return est.withDays(0, 0)
	case strings.Contains(lower, "tomorrow"):
		return est.withDays(1, 1)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	// months in document order, not calendar order
	type mention struct {
		pos   int
		month time.Month
	}
	var mentions []mention
	for i, name := range monthNames {
		if pos := strings.Index(text, name); pos != -1 {
			mentions = append(mentions, mention{pos: pos, month: time.Month(i + 1)})
		}
	}
	sort.Slice(mentions, func(i, j int) bool { return mentions[i].pos < mentions[j].pos })
	if len(mentions) == 0 {
		return est
	}
	months := make([]time.Month, len(mentions))
	for i, m := range mentions {
		months[i] = m.month
	}

	days := dayNumberRe.FindAllString(text, -1)
	switch {
	case len(days) >= 2:
		firstDay, _ := strconv.Atoi(days[0])
		secondDay, _ := strconv.Atoi(days[1])

		firstMonth := months[0]
		secondMonth := months[0]
		if len(months) >= 2 {
			secondMonth = months[1]
		}

		earliest := resolveDate(today, firstMonth, firstDay)
		latest := resolveDate(today, secondMonth, secondDay)
		return est.withDays(wholeDays(today, earliest), wholeDays(today, latest))

	case len(days) == 1:
		day, _ := strconv.Atoi(days[0])
		date := resolveDate(today, months[0], day)
		d := wholeDays(today, date)
		return est.withDays(d, d)
	}

	return est
}

// resolveDate pins a month/day to a year: months already behind us belong to
// next year (a December 30 - January 3 range crosses the boundary).
func resolveDate(today time.Time, month time.Month, day int) time.Time {
	year := today.Year()
	if month < today.Month() {
		year++
	}
	return time.Date(year, month, day, 0, 0, 0, 0, today.Location())
}

func wholeDays(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func (e DeliveryEstimate) withDays(earliest, latest int) DeliveryEstimate {
	e.EarliestDays = &earliest
	e.LatestDays = &latest
	return e
}
