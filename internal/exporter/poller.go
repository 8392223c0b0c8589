package exporter

import (
	"context"
	"log/slog"
	"time"
)

// Refresher fetches cost data for the committed selection.
type Refresher interface {
	Refresh(ctx context.Context) error
	RefreshRequests() <-chan struct{}
}

// Anchor re-resolves a preset selection against the current instant.
type Anchor interface {
	Reanchor()
}

type Poller struct {
	refresher Refresher
	anchor    Anchor
	interval  time.Duration
	logger    *slog.Logger
}

func NewPoller(r Refresher, a Anchor, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		refresher: r,
		anchor:    a,
		interval:  interval,
		logger:    logger,
	}
}

// Run refreshes once, then on every tick and whenever the selection
// changes. Each tick first re-anchors the selection so relative presets
// follow the clock.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("performing initial cost data fetch")
	if err := p.refresher.Refresh(ctx); err != nil {
		p.logger.Warn("initial fetch had errors", "error", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller shutting down")
			return ctx.Err()

		case <-ticker.C:
			p.anchor.Reanchor()
			p.logger.Info("refreshing cost data")
			if err := p.refresher.Refresh(ctx); err != nil {
				p.logger.Error("refresh failed", "error", err)
			}
			// the reanchor above may have queued a request for this same data
			p.drain()

		case <-p.refresher.RefreshRequests():
			p.logger.Info("selection changed, refreshing cost data")
			if err := p.refresher.Refresh(ctx); err != nil {
				p.logger.Error("refresh failed", "error", err)
			}
		}
	}
}

func (p *Poller) drain() {
	select {
	case <-p.refresher.RefreshRequests():
	default:
	}
}
