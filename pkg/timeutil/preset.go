package timeutil

import "time"

// PresetID names an anchor-relative period definition.
type PresetID string

const (
	Today        PresetID = "today"
	Yesterday    PresetID = "yesterday"
	Last7Days    PresetID = "last_7_days"
	Last28Days   PresetID = "last_28_days"
	Last30Days   PresetID = "last_30_days"
	Last90Days   PresetID = "last_90_days"
	Last12Months PresetID = "last_12_months"
	ThisWeek     PresetID = "this_week"
	ThisMonth    PresetID = "this_month"
	LastMonth    PresetID = "last_month"
)

// FallbackPreset is used by Resolve for any identifier it does not know.
const FallbackPreset = Last30Days

var presetLabels = map[PresetID]string{
	Today:        "Today",
	Yesterday:    "Yesterday",
	Last7Days:    "Last 7 days",
	Last28Days:   "Last 28 days",
	Last30Days:   "Last 30 days",
	Last90Days:   "Last 90 days",
	Last12Months: "Last 12 months",
	ThisWeek:     "This week",
	ThisMonth:    "This month",
	LastMonth:    "Last month",
}

// Presets returns every preset in display order.
func Presets() []PresetID {
	return []PresetID{
		Today, Yesterday, Last7Days, Last28Days, Last30Days,
		Last90Days, Last12Months, ThisWeek, ThisMonth, LastMonth,
	}
}

// Valid reports whether p is one of the known presets.
func (p PresetID) Valid() bool {
	_, ok := presetLabels[p]
	return ok
}

// Label returns the display name, or the raw identifier for unknown presets.
func (p PresetID) Label() string {
	if l, ok := presetLabels[p]; ok {
		return l
	}
	return string(p)
}

// ParsePreset converts s into a PresetID, reporting whether it is known.
func ParsePreset(s string) (PresetID, bool) {
	p := PresetID(s)
	return p, p.Valid()
}

// Resolve maps a preset to its concrete inclusive range anchored at now.
// Boundaries are computed in now's location. An unknown preset resolves
// exactly as FallbackPreset so callers always get a usable range.
func Resolve(p PresetID, now time.Time) Range {
	end := EndOfDay(now)

	switch p {
	case Today:
		return Range{From: StartOfDay(now), To: end}
	case Yesterday:
		y := AddDays(now, -1)
		return Range{From: StartOfDay(y), To: EndOfDay(y)}
	case Last7Days:
		return lastDays(now, 7)
	case Last28Days:
		return lastDays(now, 28)
	case Last90Days:
		return lastDays(now, 90)
	case Last12Months:
		return Range{From: StartOfDay(AddMonths(now, -12)), To: end}
	case ThisWeek:
		return Range{From: StartOfWeek(now), To: end}
	case ThisMonth:
		return Range{From: StartOfMonth(now), To: end}
	case LastMonth:
		prev := AddMonths(StartOfMonth(now), -1)
		return Range{From: prev, To: EndOfMonth(prev)}
	default:
		return lastDays(now, 30)
	}
}

// lastDays covers n calendar days ending with now's day.
func lastDays(now time.Time, n int) Range {
	return Range{From: StartOfDay(AddDays(now, -(n - 1))), To: EndOfDay(now)}
}
