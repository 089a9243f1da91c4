package planner

import (
	"fmt"
	"sort"
	"time"
)

// Day is a calendar date used to bucket slots for the daily heating quota.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// Before reports whether d is earlier than o.
func (d Day) Before(o Day) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Day) String() string { return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day) }

// EffectiveDate returns the heating day a timestamp belongs to. Slots whose
// local hour falls before deferHours count towards the previous day, so a day
// can run from e.g. 04:00 to 04:00.
func EffectiveDate(ts time.Time, deferHours float64) Day {
	if deferHours > 0 && float64(ts.Hour()) < deferHours {
		ts = ts.AddDate(0, 0, -1)
	}
	y, m, d := ts.Date()
	return Day{Year: y, Month: m, Day: d}
}

// dayGroup is the set of slot indices that share an effective date.
type dayGroup struct {
	Day   Day
	Slots []int
}

// DailyRequirement is the heating energy one effective day must receive
// within the horizon.
type DailyRequirement struct {
	Day    Day
	Slots  []int
	MinKWh float64
}

// groupByDay buckets slot start times by EffectiveDate in chronological order.
func groupByDay(starts []time.Time, deferHours float64) []dayGroup {
	idx := make(map[Day]int)
	var groups []dayGroup
	for t, ts := range starts {
		d := EffectiveDate(ts, deferHours)
		i, ok := idx[d]
		if !ok {
			i = len(groups)
			idx[d] = i
			groups = append(groups, dayGroup{Day: d})
		}
		groups[i].Slots = append(groups[i].Slots, t)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Day.Before(groups[j].Day) })
	return groups
}
