package selection

import (
	"github.com/ydelafollye/aws-cost-dashboard-go/pkg/timeutil"
)

// Kind tells whether a period selection came from a preset or custom dates.
type Kind string

const (
	KindPreset Kind = "preset"
	KindCustom Kind = "custom"
)

// PeriodSelection is the committed primary period. Preset is set only for
// KindPreset; Range always holds the resolved boundaries.
type PeriodSelection struct {
	Kind   Kind
	Preset timeutil.PresetID
	Range  timeutil.Range
}

// Name returns the preset id, or "custom" for custom ranges.
func (p PeriodSelection) Name() string {
	if p.Kind == KindPreset {
		return string(p.Preset)
	}
	return string(KindCustom)
}

func (p PeriodSelection) equal(o PeriodSelection) bool {
	return p.Kind == o.Kind && p.Preset == o.Preset && p.Range.Equal(o.Range)
}

// ComparisonSelection is the committed baseline. Range is nil exactly when
// Enabled is false.
type ComparisonSelection struct {
	Enabled bool
	Mode    timeutil.ComparisonMode
	Range   *timeutil.Range
	Label   string
}

func (c ComparisonSelection) equal(o ComparisonSelection) bool {
	if c.Enabled != o.Enabled || c.Mode != o.Mode || c.Label != o.Label {
		return false
	}
	if c.Range == nil || o.Range == nil {
		return c.Range == nil && o.Range == nil
	}
	return c.Range.Equal(*o.Range)
}

// PeriodHandler is notified after the committed period changes.
type PeriodHandler interface {
	OnPeriodChange(PeriodSelection)
}

// ComparisonHandler is notified after the committed comparison changes.
type ComparisonHandler interface {
	OnComparisonChange(ComparisonSelection)
}

// PeriodHandlerFunc adapts a function to PeriodHandler.
type PeriodHandlerFunc func(PeriodSelection)

func (f PeriodHandlerFunc) OnPeriodChange(p PeriodSelection) { f(p) }

// ComparisonHandlerFunc adapts a function to ComparisonHandler.
type ComparisonHandlerFunc func(ComparisonSelection)

func (f ComparisonHandlerFunc) OnComparisonChange(c ComparisonSelection) { f(c) }
