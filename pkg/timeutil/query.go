package timeutil

import "net/url"

// TimestampFormat is RFC 3339 with millisecond precision, matching the
// .999 end-of-day boundary.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// QueryParams encodes the primary range as from/to and, when comparison is
// non-nil, the baseline as compare_from/compare_to.
func QueryParams(primary Range, comparison *Range) url.Values {
	v := url.Values{}
	v.Set("from", primary.From.Format(TimestampFormat))
	v.Set("to", primary.To.Format(TimestampFormat))
	if comparison != nil {
		v.Set("compare_from", comparison.From.Format(TimestampFormat))
		v.Set("compare_to", comparison.To.Format(TimestampFormat))
	}
	return v
}
