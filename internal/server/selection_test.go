package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ydelafollye/aws-cost-dashboard-go/internal/selection"
	"github.com/ydelafollye/aws-cost-dashboard-go/pkg/timeutil"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	ctrl := selection.New(selection.Defaults{
		Preset:         timeutil.Last7Days,
		CompareEnabled: true,
		CompareMode:    timeutil.PreviousPeriod,
	},
		selection.WithClock(func() time.Time { return now }),
		selection.WithLocation(time.UTC),
		selection.WithLogger(logger),
	)
	return New(0, ctrl, logger).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, snapshotJSON) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var snap snapshotJSON
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	}
	return rec.Code, snap
}

func TestGetSelection(t *testing.T) {
	h := newTestServer(t)

	code, snap := do(t, h, http.MethodGet, "/api/selection", "")
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, "committed", snap.State)
	assert.Equal(t, "last_7_days", snap.Period.Preset)
	assert.Equal(t, "Last 7 days", snap.Period.Label)
	assert.Equal(t, "2026-03-09T00:00:00.000Z", snap.Period.Range.From)
	assert.Equal(t, 7, snap.Period.Range.Days)
	require.NotNil(t, snap.Comparison.Range)
	assert.Equal(t, "2026-03-02T00:00:00.000Z", snap.Comparison.Range.From)
	assert.Equal(t, []string{"2026-03-08T23:59:59.999Z"}, snap.Query["compare_to"])
	assert.Contains(t, snap.QueryString, "from=2026-03-09T00%3A00%3A00.000Z")
}

func TestSelectPresetEndpoint(t *testing.T) {
	h := newTestServer(t)

	code, snap := do(t, h, http.MethodPost, "/api/selection/preset", `{"preset":"last_month"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2026-02-01T00:00:00.000Z", snap.Period.Range.From)
	assert.Equal(t, "2026-02-28T23:59:59.999Z", snap.Period.Range.To)

	code, snap = do(t, h, http.MethodPost, "/api/selection/preset", `{"preset":"nonsense"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "last_30_days", snap.Period.Preset)
}

func TestCustomRangeFlow(t *testing.T) {
	h := newTestServer(t)

	code, snap := do(t, h, http.MethodPost, "/api/selection/edit", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "editing", snap.State)
	require.NotNil(t, snap.Buffer)
	assert.Equal(t, "2026-03-09", *snap.Buffer.Primary.From)

	code, _ = do(t, h, http.MethodPut, "/api/selection/edit", `{"primary":{"from":"2026-03-01"}}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, h, http.MethodPost, "/api/selection/apply", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = do(t, h, http.MethodPut, "/api/selection/edit", `{"primary":{"from":"2026-03-01","to":"2026-03-07"}}`)
	require.Equal(t, http.StatusOK, code)

	code, snap = do(t, h, http.MethodPost, "/api/selection/apply", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "committed", snap.State)
	assert.Equal(t, "custom", snap.Period.Kind)
	assert.Equal(t, "2026-02-22T00:00:00.000Z", snap.Comparison.Range.From)
}

func TestDiscardEditEndpoint(t *testing.T) {
	h := newTestServer(t)

	do(t, h, http.MethodPost, "/api/selection/edit", "")
	do(t, h, http.MethodPut, "/api/selection/edit", `{"primary":{"from":"2026-01-01","to":"2026-01-02"}}`)

	code, snap := do(t, h, http.MethodDelete, "/api/selection/edit", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "committed", snap.State)
	assert.Nil(t, snap.Buffer)
	assert.Equal(t, "last_7_days", snap.Period.Preset)
}

func TestEditRequiresOpenSurface(t *testing.T) {
	h := newTestServer(t)

	code, _ := do(t, h, http.MethodPut, "/api/selection/edit", `{"primary":{"from":"2026-03-01","to":"2026-03-07"}}`)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, h, http.MethodPost, "/api/selection/apply", "")
	assert.Equal(t, http.StatusConflict, code)
}

func TestBadRequests(t *testing.T) {
	h := newTestServer(t)
	do(t, h, http.MethodPost, "/api/selection/edit", "")

	code, _ := do(t, h, http.MethodPut, "/api/selection/edit", `{"primary":{"from":"03/01/2026"}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, http.MethodPost, "/api/selection/preset", `{`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, http.MethodPost, "/api/selection/comparison/mode", `{"mode":"weekly"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMalformedPickLeavesBufferUnchanged(t *testing.T) {
	h := newTestServer(t)
	do(t, h, http.MethodPost, "/api/selection/edit", "")

	code, _ := do(t, h, http.MethodPut, "/api/selection/edit",
		`{"primary":{"from":"2026-01-01","to":"2026-01-02"},"comparison":{"from":"not-a-date"}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, snap := do(t, h, http.MethodGet, "/api/selection", "")
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, snap.Buffer)
	require.NotNil(t, snap.Buffer.Primary.From)
	assert.Equal(t, "2026-03-09", *snap.Buffer.Primary.From)
	assert.Equal(t, "2026-03-15", *snap.Buffer.Primary.To)
}

func TestComparisonEndpoints(t *testing.T) {
	h := newTestServer(t)

	code, snap := do(t, h, http.MethodPost, "/api/selection/comparison", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, snap.Comparison.Enabled)
	assert.Nil(t, snap.Comparison.Range)
	assert.NotContains(t, snap.Query, "compare_from")

	code, snap = do(t, h, http.MethodPost, "/api/selection/comparison/mode", `{"mode":"previous_year"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "previous_year", snap.Comparison.Mode)
	assert.Nil(t, snap.Comparison.Range)

	code, snap = do(t, h, http.MethodPost, "/api/selection/comparison", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, snap.Comparison.Range)
	assert.Equal(t, "2025-03-09T00:00:00.000Z", snap.Comparison.Range.From)
	assert.Equal(t, "Same period last year", snap.Comparison.Label)
}

func TestCustomComparisonEndpoint(t *testing.T) {
	h := newTestServer(t)

	code, snap := do(t, h, http.MethodPost, "/api/selection/comparison/mode", `{"mode":"custom"}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, snap.ComparisonEditOpen)
	assert.Equal(t, "editing", snap.State)

	code, _ = do(t, h, http.MethodPut, "/api/selection/edit",
		`{"primary":{"from":"2026-03-01","to":"2026-03-07"},"comparison":{"from":"2026-01-01","to":"2026-01-07"}}`)
	require.Equal(t, http.StatusOK, code)

	code, snap = do(t, h, http.MethodPost, "/api/selection/apply", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Custom comparison", snap.Comparison.Label)
	assert.Equal(t, "2026-01-01T00:00:00.000Z", snap.Comparison.Range.From)
	assert.Equal(t, "2026-01-07T23:59:59.999Z", snap.Comparison.Range.To)
}

func TestPresetsEndpoint(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/presets", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var presets []struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &presets))
	assert.Len(t, presets, len(timeutil.Presets()))
	assert.Equal(t, "today", presets[0].ID)
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
