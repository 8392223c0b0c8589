package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ydelafollye/aws-cost-dashboard-go/internal/selection"
	"github.com/ydelafollye/aws-cost-dashboard-go/pkg/timeutil"
)

// Selector is the selection controller as seen by the HTTP API.
type Selector interface {
	Snapshot() selection.Snapshot
	SelectPreset(id timeutil.PresetID)
	BeginEdit()
	DiscardEdit()
	PickPrimary(start, end *time.Time) error
	PickComparison(start, end *time.Time) error
	ApplyCustomPrimary() error
	ToggleComparison(on bool)
	ChangeComparisonMode(mode timeutil.ComparisonMode) error
}

type selectionAPI struct {
	sel    Selector
	logger *slog.Logger
}

func (a *selectionAPI) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/presets", a.handlePresets)
	mux.HandleFunc("GET /api/selection", a.handleGet)
	mux.HandleFunc("POST /api/selection/preset", a.handlePreset)
	mux.HandleFunc("POST /api/selection/edit", a.handleBeginEdit)
	mux.HandleFunc("PUT /api/selection/edit", a.handlePick)
	mux.HandleFunc("DELETE /api/selection/edit", a.handleDiscard)
	mux.HandleFunc("POST /api/selection/apply", a.handleApply)
	mux.HandleFunc("POST /api/selection/comparison", a.handleToggle)
	mux.HandleFunc("POST /api/selection/comparison/mode", a.handleMode)
}

type rangeJSON struct {
	From string `json:"from"`
	To   string `json:"to"`
	Days int    `json:"days"`
}

func toRangeJSON(r timeutil.Range) rangeJSON {
	return rangeJSON{
		From: r.From.Format(timeutil.TimestampFormat),
		To:   r.To.Format(timeutil.TimestampFormat),
		Days: r.Days(),
	}
}

type periodJSON struct {
	Kind   string    `json:"kind"`
	Preset string    `json:"preset,omitempty"`
	Label  string    `json:"label"`
	Range  rangeJSON `json:"range"`
}

type comparisonJSON struct {
	Enabled bool       `json:"enabled"`
	Mode    string     `json:"mode"`
	Label   string     `json:"label,omitempty"`
	Range   *rangeJSON `json:"range,omitempty"`
}

type datePair struct {
	From *string `json:"from"`
	To   *string `json:"to"`
}

type bufferJSON struct {
	Primary    datePair `json:"primary"`
	Comparison datePair `json:"comparison"`
}

type snapshotJSON struct {
	State              string              `json:"state"`
	Period             periodJSON          `json:"period"`
	Comparison         comparisonJSON      `json:"comparison"`
	ComparisonEditOpen bool                `json:"comparison_edit_open"`
	Buffer             *bufferJSON         `json:"buffer,omitempty"`
	Query              map[string][]string `json:"query"`
	QueryString        string              `json:"query_string"`
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeutil.DateFormat)
	return &s
}

func toSnapshotJSON(s selection.Snapshot) snapshotJSON {
	out := snapshotJSON{
		State: string(s.State),
		Period: periodJSON{
			Kind:  string(s.Period.Kind),
			Range: toRangeJSON(s.Period.Range),
			Label: "Custom range",
		},
		Comparison: comparisonJSON{
			Enabled: s.Comparison.Enabled,
			Mode:    string(s.Comparison.Mode),
			Label:   s.Comparison.Label,
		},
		ComparisonEditOpen: s.ComparisonEditOpen,
	}
	if s.Period.Kind == selection.KindPreset {
		out.Period.Preset = string(s.Period.Preset)
		out.Period.Label = s.Period.Preset.Label()
	}
	if s.Comparison.Range != nil {
		r := toRangeJSON(*s.Comparison.Range)
		out.Comparison.Range = &r
	}
	if s.Buffer != nil {
		out.Buffer = &bufferJSON{
			Primary:    datePair{From: formatDate(s.Buffer.PrimaryStart), To: formatDate(s.Buffer.PrimaryEnd)},
			Comparison: datePair{From: formatDate(s.Buffer.CompareStart), To: formatDate(s.Buffer.CompareEnd)},
		}
	}

	q := timeutil.QueryParams(s.Period.Range, s.Comparison.Range)
	out.Query = q
	out.QueryString = q.Encode()
	return out
}

func (a *selectionAPI) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}

func (a *selectionAPI) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, selection.ErrNotEditing):
		status = http.StatusConflict
	case errors.Is(err, timeutil.ErrInvalidRange):
		status = http.StatusUnprocessableEntity
	}
	a.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (a *selectionAPI) writeSnapshot(w http.ResponseWriter) {
	a.writeJSON(w, http.StatusOK, toSnapshotJSON(a.sel.Snapshot()))
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decoding request body")
	}
	return nil
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(timeutil.DateFormat, *s)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing date %q", *s)
	}
	return &t, nil
}

func (p *datePair) parse() (*time.Time, *time.Time, error) {
	from, err := parseDate(p.From)
	if err != nil {
		return nil, nil, err
	}
	to, err := parseDate(p.To)
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func (a *selectionAPI) handlePresets(w http.ResponseWriter, r *http.Request) {
	type presetJSON struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	}
	var out []presetJSON
	for _, p := range timeutil.Presets() {
		out = append(out, presetJSON{ID: string(p), Label: p.Label()})
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *selectionAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	a.writeSnapshot(w)
}

func (a *selectionAPI) handlePreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preset string `json:"preset"`
	}
	if err := decode(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	a.sel.SelectPreset(timeutil.PresetID(req.Preset))
	a.writeSnapshot(w)
}

func (a *selectionAPI) handleBeginEdit(w http.ResponseWriter, r *http.Request) {
	a.sel.BeginEdit()
	a.writeSnapshot(w)
}

func (a *selectionAPI) handlePick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Primary    *datePair `json:"primary"`
		Comparison *datePair `json:"comparison"`
	}
	if err := decode(r, &req); err != nil {
		a.writeError(w, err)
		return
	}

	// Parse both pairs before touching the buffer.
	var primaryFrom, primaryTo, compareFrom, compareTo *time.Time
	if req.Primary != nil {
		var err error
		if primaryFrom, primaryTo, err = req.Primary.parse(); err != nil {
			a.writeError(w, err)
			return
		}
	}
	if req.Comparison != nil {
		var err error
		if compareFrom, compareTo, err = req.Comparison.parse(); err != nil {
			a.writeError(w, err)
			return
		}
	}

	if req.Primary != nil {
		if err := a.sel.PickPrimary(primaryFrom, primaryTo); err != nil {
			a.writeError(w, err)
			return
		}
	}
	if req.Comparison != nil {
		if err := a.sel.PickComparison(compareFrom, compareTo); err != nil {
			a.writeError(w, err)
			return
		}
	}
	a.writeSnapshot(w)
}

func (a *selectionAPI) handleDiscard(w http.ResponseWriter, r *http.Request) {
	a.sel.DiscardEdit()
	a.writeSnapshot(w)
}

func (a *selectionAPI) handleApply(w http.ResponseWriter, r *http.Request) {
	if err := a.sel.ApplyCustomPrimary(); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeSnapshot(w)
}

func (a *selectionAPI) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decode(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	a.sel.ToggleComparison(req.Enabled)
	a.writeSnapshot(w)
}

func (a *selectionAPI) handleMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decode(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.sel.ChangeComparisonMode(timeutil.ComparisonMode(req.Mode)); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeSnapshot(w)
}
