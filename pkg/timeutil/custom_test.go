package timeutil

import (
	"net/url"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(t time.Time) *time.Time { return &t }

func TestNormalizeCustom(t *testing.T) {
	start := time.Date(2026, time.March, 1, 15, 45, 0, 0, time.UTC)
	end := time.Date(2026, time.March, 7, 8, 0, 0, 0, time.UTC)

	r, err := NormalizeCustom(&start, &end)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T00:00:00.000Z", r.From.Format(TimestampFormat))
	assert.Equal(t, "2026-03-07T23:59:59.999Z", r.To.Format(TimestampFormat))
	assert.Equal(t, 7, r.Days())
}

func TestNormalizeCustomSingleDay(t *testing.T) {
	d := time.Date(2026, time.March, 1, 15, 0, 0, 0, time.UTC)

	r, err := NormalizeCustom(&d, &d)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Days())
}

func TestNormalizeCustomRejects(t *testing.T) {
	d := time.Date(2026, time.March, 7, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		start *time.Time
		end   *time.Time
		want  error
	}{
		{"missing end", &d, nil, ErrIncompleteRange},
		{"missing start", nil, &d, ErrIncompleteRange},
		{"missing both", nil, nil, ErrIncompleteRange},
		{"inverted", ptr(d.AddDate(0, 0, 1)), &d, ErrInvertedRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeCustom(tt.start, tt.end)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, errors.Is(err, ErrInvalidRange))
		})
	}
}

func TestNormalizeCustomAllowsFuture(t *testing.T) {
	start := time.Date(2099, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2099, time.January, 2, 0, 0, 0, 0, time.UTC)

	_, err := NormalizeCustom(&start, &end)
	assert.NoError(t, err)
}

func TestQueryParams(t *testing.T) {
	primary := Range{From: day(2026, 3, 1), To: dayEnd(2026, 3, 7)}

	v := QueryParams(primary, nil)
	assert.Equal(t, url.Values{
		"from": {"2026-03-01T00:00:00.000Z"},
		"to":   {"2026-03-07T23:59:59.999Z"},
	}, v)

	cmp := PreviousPeriodOf(primary)
	v = QueryParams(primary, &cmp)
	assert.Equal(t, "2026-02-22T00:00:00.000Z", v.Get("compare_from"))
	assert.Equal(t, "2026-02-28T23:59:59.999Z", v.Get("compare_to"))
}
