package exporter

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ydelafollye/aws-cost-dashboard-go/internal/config"
	"github.com/ydelafollye/aws-cost-dashboard-go/internal/selection"
	"github.com/ydelafollye/aws-cost-dashboard-go/pkg/timeutil"
)

func TestNewController(t *testing.T) {
	cfg := &config.Config{
		Timezone: "UTC",
		Selection: config.SelectionConfig{
			DefaultPreset: "this_month",
			Comparison:    config.ComparisonConfig{Enabled: true, Mode: "previous_year"},
		},
	}

	ctrl, err := NewController(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	p := ctrl.Period()
	assert.Equal(t, selection.KindPreset, p.Kind)
	assert.Equal(t, timeutil.ThisMonth, p.Preset)
	assert.Equal(t, "UTC", p.Range.From.Location().String())
	assert.Equal(t, 1, p.Range.From.Day())

	cmp := ctrl.Comparison()
	assert.True(t, cmp.Enabled)
	assert.Equal(t, timeutil.PreviousYear, cmp.Mode)
	require.NotNil(t, cmp.Range)
	assert.Equal(t, p.Range.From.Year()-1, cmp.Range.From.Year())
}

func TestNewControllerRejectsBadConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewController(&config.Config{
		Timezone:  "Nowhere/Special",
		Selection: config.SelectionConfig{DefaultPreset: "today", Comparison: config.ComparisonConfig{Mode: "custom"}},
	}, logger)
	assert.Error(t, err)

	_, err = NewController(&config.Config{
		Timezone:  "UTC",
		Selection: config.SelectionConfig{DefaultPreset: "today", Comparison: config.ComparisonConfig{Mode: "yearly"}},
	}, logger)
	assert.Error(t, err)
}
