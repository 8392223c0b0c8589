package timeutil

import (
	"github.com/cockroachdb/errors"
)

// ComparisonMode selects how the baseline range is derived from the primary one.
type ComparisonMode string

const (
	PreviousPeriod ComparisonMode = "previous_period"
	PreviousYear   ComparisonMode = "previous_year"
	CustomCompare  ComparisonMode = "custom"
)

const (
	LabelPreviousPeriod = "Previous period"
	LabelPreviousYear   = "Same period last year"
	LabelCustom         = "Custom comparison"
)

// ErrNoCustomRange is returned when Custom mode is resolved without a range.
var ErrNoCustomRange = errors.New("custom comparison range not supplied")

// ParseComparisonMode converts s into a ComparisonMode.
func ParseComparisonMode(s string) (ComparisonMode, error) {
	switch m := ComparisonMode(s); m {
	case PreviousPeriod, PreviousYear, CustomCompare:
		return m, nil
	default:
		return "", errors.Newf("unknown comparison mode %q", s)
	}
}

// Baseline is a derived comparison range with its display label.
type Baseline struct {
	Range Range
	Label string
}

// ResolveComparison derives the baseline for primary under mode. In Custom
// mode the caller supplies the normalized range; a nil custom range yields
// ErrNoCustomRange instead of a made-up baseline.
func ResolveComparison(primary Range, mode ComparisonMode, custom *Range) (Baseline, error) {
	switch mode {
	case PreviousPeriod:
		return Baseline{Range: PreviousPeriodOf(primary), Label: LabelPreviousPeriod}, nil
	case PreviousYear:
		return Baseline{Range: PreviousYearOf(primary), Label: LabelPreviousYear}, nil
	case CustomCompare:
		if custom == nil {
			return Baseline{}, ErrNoCustomRange
		}
		return Baseline{Range: *custom, Label: LabelCustom}, nil
	default:
		return Baseline{}, errors.Newf("unknown comparison mode %q", string(mode))
	}
}

// PreviousPeriodOf returns the range of equal calendar length that ends the
// day before primary starts.
func PreviousPeriodOf(primary Range) Range {
	n := primary.Days()
	return Range{
		From: StartOfDay(AddDays(primary.From, -n)),
		To:   EndOfDay(AddDays(primary.From, -1)),
	}
}

// PreviousYearOf shifts each endpoint back 12 calendar months independently.
func PreviousYearOf(primary Range) Range {
	return Range{
		From: StartOfDay(AddMonths(primary.From, -12)),
		To:   EndOfDay(AddMonths(primary.To, -12)),
	}
}
