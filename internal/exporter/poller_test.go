package exporter

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	mu       sync.Mutex
	calls    int
	err      error
	requests chan struct{}
	done     chan struct{}
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{requests: make(chan struct{}, 1), done: make(chan struct{}, 16)}
}

func (f *fakeRefresher) Refresh(context.Context) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	f.done <- struct{}{}
	return f.err
}

func (f *fakeRefresher) RefreshRequests() <-chan struct{} { return f.requests }

func (f *fakeRefresher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAnchor struct {
	mu    sync.Mutex
	calls int
}

func (a *fakeAnchor) Reanchor() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
}

func (a *fakeAnchor) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func waitRefresh(t *testing.T, f *fakeRefresher) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for refresh")
	}
}

func TestPollerRefreshesOnSelectionChange(t *testing.T) {
	ref := newFakeRefresher()
	anchor := &fakeAnchor{}
	p := NewPoller(ref, anchor, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	waitRefresh(t, ref)
	ref.requests <- struct{}{}
	waitRefresh(t, ref)

	cancel()
	assert.True(t, errors.Is(<-errCh, context.Canceled))
	assert.Equal(t, 2, ref.count())
	assert.Equal(t, 0, anchor.count())
}

func TestPollerReanchorsOnTick(t *testing.T) {
	ref := newFakeRefresher()
	ref.err = errors.New("throttled")
	anchor := &fakeAnchor{}
	p := NewPoller(ref, anchor, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	waitRefresh(t, ref)
	waitRefresh(t, ref)

	require.Eventually(t, func() bool { return anchor.count() >= 1 }, time.Second, 5*time.Millisecond)
}
