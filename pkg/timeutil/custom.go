package timeutil

import (
	"time"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidRange is matched by every custom range rejection.
	ErrInvalidRange = errors.New("invalid custom range")
	// ErrIncompleteRange means one of the two dates was not chosen.
	ErrIncompleteRange = errors.Wrap(ErrInvalidRange, "missing start or end date")
	// ErrInvertedRange means the start date falls after the end date.
	ErrInvertedRange = errors.Wrap(ErrInvalidRange, "start date after end date")
)

// NormalizeCustom turns two picked calendar dates into a day-aligned range.
// A nil date means it has not been picked yet. Out-of-order dates are
// rejected, not swapped. Future dates are accepted as given.
func NormalizeCustom(start, end *time.Time) (Range, error) {
	if start == nil || end == nil {
		return Range{}, ErrIncompleteRange
	}
	from := StartOfDay(*start)
	to := EndOfDay(*end)
	if to.Before(from) {
		return Range{}, errors.Wrapf(ErrInvertedRange, "%s > %s",
			start.Format(DateFormat), end.Format(DateFormat))
	}
	return Range{From: from, To: to}, nil
}
