package selection

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ydelafollye/aws-cost-dashboard-go/pkg/timeutil"
)

// ErrNotEditing is returned by buffer operations while no edit surface is open.
var ErrNotEditing = errors.New("selection is not being edited")

// State is the controller's position in its two-state machine.
type State string

const (
	StateCommitted State = "committed"
	StateEditing   State = "editing"
)

// EditBuffer holds tentative custom dates while the selection surface is
// open. A nil date has not been picked yet.
type EditBuffer struct {
	PrimaryStart *time.Time
	PrimaryEnd   *time.Time
	CompareStart *time.Time
	CompareEnd   *time.Time
}

type editSession struct {
	buffer         EditBuffer
	comparisonOpen bool
}

// Defaults seed the committed state at construction. Custom, when set,
// takes precedence over Preset.
type Defaults struct {
	Preset         timeutil.PresetID
	Custom         *timeutil.Range
	CompareEnabled bool
	CompareMode    timeutil.ComparisonMode
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now as the anchor source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.clock = now }
}

// WithLocation sets the zone all day boundaries are computed in.
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) { c.loc = loc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// Controller owns the committed period and comparison selections and the
// transient edit state around them. Actions are serialized: each one runs to
// completion before the next starts. Handlers run after the action returns
// its lock, so they may read the controller but must not assume ordering
// across concurrent callers.
type Controller struct {
	mu     sync.Mutex
	clock  func() time.Time
	loc    *time.Location
	logger *slog.Logger

	period     PeriodSelection
	comparison ComparisonSelection
	edit       *editSession

	periodHandlers     []PeriodHandler
	comparisonHandlers []ComparisonHandler
}

// New builds a controller in the committed state from defaults.
func New(defaults Defaults, opts ...Option) *Controller {
	c := &Controller{
		clock:  time.Now,
		loc:    time.Local,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	mode, err := timeutil.ParseComparisonMode(string(defaults.CompareMode))
	if err != nil {
		c.logger.Warn("unknown default comparison mode, using previous period", "mode", defaults.CompareMode)
		mode = timeutil.PreviousPeriod
	}

	c.period = c.presetSelection(defaults.Preset, c.now())
	if defaults.Custom != nil {
		from, to := defaults.Custom.From.In(c.loc), defaults.Custom.To.In(c.loc)
		if r, err := timeutil.NormalizeCustom(&from, &to); err == nil {
			c.period = PeriodSelection{Kind: KindCustom, Range: r}
		} else {
			c.logger.Warn("invalid default custom range, using preset", "preset", c.period.Preset, "error", err)
		}
	}

	c.comparison = ComparisonSelection{Mode: mode}
	if defaults.CompareEnabled {
		c.comparison = derived(c.period.Range, mode)
	}
	return c
}

// SubscribePeriod registers h for committed period changes.
func (c *Controller) SubscribePeriod(h PeriodHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.periodHandlers = append(c.periodHandlers, h)
}

// SubscribeComparison registers h for committed comparison changes.
func (c *Controller) SubscribeComparison(h ComparisonHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.comparisonHandlers = append(c.comparisonHandlers, h)
}

// Period returns the committed period selection.
func (c *Controller) Period() PeriodSelection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.period
}

// Comparison returns the committed comparison selection.
func (c *Controller) Comparison() ComparisonSelection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.comparison.clone()
}

// State reports whether an edit surface is open.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit != nil {
		return StateEditing
	}
	return StateCommitted
}

// Snapshot is a consistent read of the controller. Buffer is nil unless
// State is StateEditing.
type Snapshot struct {
	State              State
	Period             PeriodSelection
	Comparison         ComparisonSelection
	ComparisonEditOpen bool
	Buffer             *EditBuffer
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		State:      StateCommitted,
		Period:     c.period,
		Comparison: c.comparison.clone(),
	}
	if c.edit != nil {
		buf := c.edit.buffer
		s.State = StateEditing
		s.ComparisonEditOpen = c.edit.comparisonOpen
		s.Buffer = &buf
	}
	return s
}

// SelectPreset commits the preset resolved against the current instant,
// recomputes an enabled comparison and closes any open edit surface.
func (c *Controller) SelectPreset(id timeutil.PresetID) {
	c.mu.Lock()
	now := c.now()
	p := c.presetSelection(id, now)
	cmp := c.comparison
	if cmp.Enabled {
		cmp = derived(p.Range, cmp.Mode)
	}
	c.edit = nil
	ch := c.commit(p, cmp)
	c.logger.Debug("preset selected", "preset", p.Preset, "range", p.Range.String())
	c.mu.Unlock()

	c.dispatch(ch)
}

// Reanchor re-resolves a committed preset against the current instant. A
// custom period is left as is. An open edit surface stays open.
func (c *Controller) Reanchor() {
	c.mu.Lock()
	if c.period.Kind != KindPreset {
		c.mu.Unlock()
		return
	}
	p := c.presetSelection(c.period.Preset, c.now())
	cmp := c.comparison
	if cmp.Enabled {
		cmp = derived(p.Range, cmp.Mode)
	}
	ch := c.commit(p, cmp)
	c.mu.Unlock()

	c.dispatch(ch)
}

// BeginEdit opens the edit surface, seeding the buffer from the committed
// state. Calling it again while editing reseeds.
func (c *Controller) BeginEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edit = c.seed()
	c.logger.Debug("edit started")
}

// DiscardEdit closes the edit surface without touching committed state.
func (c *Controller) DiscardEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit != nil {
		c.logger.Debug("edit discarded")
	}
	c.edit = nil
}

// PickPrimary writes the tentative primary dates. Only the calendar date of
// each value is kept.
func (c *Controller) PickPrimary(start, end *time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit == nil {
		return ErrNotEditing
	}
	c.edit.buffer.PrimaryStart = c.date(start)
	c.edit.buffer.PrimaryEnd = c.date(end)
	return nil
}

// PickComparison writes the tentative custom comparison dates.
func (c *Controller) PickComparison(start, end *time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit == nil {
		return ErrNotEditing
	}
	c.edit.buffer.CompareStart = c.date(start)
	c.edit.buffer.CompareEnd = c.date(end)
	return nil
}

// ApplyCustomPrimary commits the buffered primary range. When comparison is
// enabled it is recomputed from the new range, using the buffered comparison
// range in Custom mode if it is complete. On an invalid buffer nothing is
// committed and the edit surface stays open.
func (c *Controller) ApplyCustomPrimary() error {
	c.mu.Lock()
	if c.edit == nil {
		c.mu.Unlock()
		return ErrNotEditing
	}
	buf := c.edit.buffer

	r, err := timeutil.NormalizeCustom(buf.PrimaryStart, buf.PrimaryEnd)
	if err != nil {
		c.logger.Warn("custom range not applied", "error", err)
		c.mu.Unlock()
		return err
	}

	p := PeriodSelection{Kind: KindCustom, Range: r}
	cmp := c.comparison
	if cmp.Enabled {
		cmp = derived(r, cmp.Mode)
		if cmp.Mode == timeutil.CustomCompare {
			if cr, err := timeutil.NormalizeCustom(buf.CompareStart, buf.CompareEnd); err == nil {
				cmp = enabled(cmp.Mode, timeutil.Baseline{Range: cr, Label: timeutil.LabelCustom})
			} else {
				c.logger.Warn("custom comparison incomplete, using previous year", "error", err)
			}
		}
	}
	c.edit = nil
	ch := c.commit(p, cmp)
	c.logger.Debug("custom range applied", "range", r.String())
	c.mu.Unlock()

	c.dispatch(ch)
	return nil
}

// ToggleComparison enables or disables the baseline. Enabling derives a
// fresh range from the committed period; disabling forgets the range.
func (c *Controller) ToggleComparison(on bool) {
	c.mu.Lock()
	if on == c.comparison.Enabled {
		c.mu.Unlock()
		return
	}
	cmp := ComparisonSelection{Mode: c.comparison.Mode}
	if on {
		cmp = derived(c.period.Range, c.comparison.Mode)
	} else if c.edit != nil {
		c.edit.comparisonOpen = false
	}
	ch := c.commit(c.period, cmp)
	c.logger.Debug("comparison toggled", "enabled", on)
	c.mu.Unlock()

	c.dispatch(ch)
}

// ChangeComparisonMode switches how the baseline is derived. Non-custom
// modes are applied immediately. Custom opens the comparison edit surface
// and leaves the committed range in place until ApplyCustomPrimary.
func (c *Controller) ChangeComparisonMode(mode timeutil.ComparisonMode) error {
	if _, err := timeutil.ParseComparisonMode(string(mode)); err != nil {
		return err
	}

	c.mu.Lock()
	cmp := c.comparison.clone()
	cmp.Mode = mode

	if mode == timeutil.CustomCompare {
		if cmp.Enabled {
			if c.edit == nil {
				c.edit = c.seed()
			}
			c.edit.comparisonOpen = true
		}
	} else {
		if cmp.Enabled {
			cmp = derived(c.period.Range, mode)
		}
		if c.edit != nil {
			c.edit.comparisonOpen = false
			c.edit.buffer.CompareStart, c.edit.buffer.CompareEnd = nil, nil
		}
	}
	ch := c.commit(c.period, cmp)
	c.logger.Debug("comparison mode changed", "mode", mode)
	c.mu.Unlock()

	c.dispatch(ch)
	return nil
}

func (c *Controller) now() time.Time {
	return c.clock().In(c.loc)
}

func (c *Controller) date(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := timeutil.DateIn(*t, c.loc)
	return &d
}

func (c *Controller) presetSelection(id timeutil.PresetID, now time.Time) PeriodSelection {
	if !id.Valid() {
		c.logger.Warn("unknown preset, using fallback", "preset", id, "fallback", timeutil.FallbackPreset)
		id = timeutil.FallbackPreset
	}
	return PeriodSelection{Kind: KindPreset, Preset: id, Range: timeutil.Resolve(id, now)}
}

func (c *Controller) seed() *editSession {
	s := &editSession{}
	from, to := c.period.Range.From, c.period.Range.To
	s.buffer.PrimaryStart, s.buffer.PrimaryEnd = c.date(&from), c.date(&to)
	if c.comparison.Mode == timeutil.CustomCompare && c.comparison.Range != nil {
		cf, ct := c.comparison.Range.From, c.comparison.Range.To
		s.buffer.CompareStart, s.buffer.CompareEnd = c.date(&cf), c.date(&ct)
		s.comparisonOpen = true
	}
	return s
}

type change struct {
	period     *PeriodSelection
	comparison *ComparisonSelection
}

func (c *Controller) commit(p PeriodSelection, cmp ComparisonSelection) change {
	var ch change
	if !c.period.equal(p) {
		c.period = p
		ch.period = &p
	}
	if !c.comparison.equal(cmp) {
		c.comparison = cmp
		out := cmp.clone()
		ch.comparison = &out
	}
	return ch
}

func (c *Controller) dispatch(ch change) {
	if ch.period == nil && ch.comparison == nil {
		return
	}
	c.mu.Lock()
	ph := append([]PeriodHandler(nil), c.periodHandlers...)
	chs := append([]ComparisonHandler(nil), c.comparisonHandlers...)
	c.mu.Unlock()

	if ch.period != nil {
		for _, h := range ph {
			h.OnPeriodChange(*ch.period)
		}
	}
	if ch.comparison != nil {
		for _, h := range chs {
			h.OnComparisonChange(ch.comparison.clone())
		}
	}
}

// derived computes the baseline outside of an explicit custom apply. Only
// PreviousPeriod is special-cased; every other mode, Custom included, gets
// the previous-year baseline while keeping its mode.
func derived(primary timeutil.Range, mode timeutil.ComparisonMode) ComparisonSelection {
	resolveAs := timeutil.PreviousYear
	if mode == timeutil.PreviousPeriod {
		resolveAs = timeutil.PreviousPeriod
	}
	b, _ := timeutil.ResolveComparison(primary, resolveAs, nil)
	return enabled(mode, b)
}

func enabled(mode timeutil.ComparisonMode, b timeutil.Baseline) ComparisonSelection {
	r := b.Range
	return ComparisonSelection{Enabled: true, Mode: mode, Range: &r, Label: b.Label}
}

func (c ComparisonSelection) clone() ComparisonSelection {
	if c.Range != nil {
		r := *c.Range
		c.Range = &r
	}
	return c
}
