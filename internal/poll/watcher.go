// Package poll re-fetches the incident collection on a fixed interval and
// turns newly observed identifiers into notification events.
package poll

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ngabriel/incident-watch/internal/errs"
	"github.com/ngabriel/incident-watch/internal/model"
)

// DefaultInterval is the refresh period between two polls.
const DefaultInterval = 30 * time.Second

// Event announces one newly observed incident. Status carries the display
// label, not the wire value.
type Event struct {
	ID     string
	Title  string
	Status string
}

// FetchFunc retrieves the current collection; normally Client.FetchAllIncidents.
type FetchFunc func(ctx context.Context) ([]model.Incident, error)

// Watcher owns the last-seen identifier set. One Run goroutine performs the
// fetch, the diff, and the emission in sequence, so ticks never overlap: a
// slow fetch delays the next tick rather than racing it.
type Watcher struct {
	fetch    FetchFunc
	interval time.Duration
	notify   func(Event)
	onAuth   func() // invoked once when a poll hits 401/403
	log      *zap.Logger

	seen map[string]struct{}
}

// New builds a Watcher. notify must not be nil; onAuth may be (callers that
// own no session pass nil). A non-positive interval falls back to the default.
func New(fetch FetchFunc, interval time.Duration, notify func(Event), onAuth func(), log *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		fetch:    fetch,
		interval: interval,
		notify:   notify,
		onAuth:   onAuth,
		log:      log,
		seen:     make(map[string]struct{}),
	}
}

// Run polls until ctx is cancelled. The first successful fetch only seeds the
// baseline; later fetches emit one event per identifier absent from the
// previous set. A failed fetch leaves the baseline untouched. A 401/403
// invokes the auth hook and returns errs.ErrUnauthorized so the caller can
// send the user back to login.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.tick(ctx, false); err != nil {
		return err
	}

	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := w.tick(ctx, true); err != nil {
				return err
			}
		}
	}
}

// tick performs one fetch-diff-emit round.
func (w *Watcher) tick(ctx context.Context, notify bool) error {
	list, err := w.fetch(ctx)
	if err != nil {
		if errs.IsAuthStatus(err) {
			w.log.Warn("authorization lost, stopping watcher", zap.Error(err))
			if w.onAuth != nil {
				w.onAuth()
			}
			return errs.ErrUnauthorized
		}
		if errors.Is(err, context.Canceled) {
			return ctx.Err()
		}
		// Transient failure: keep the baseline, try again next tick.
		w.log.Warn("poll failed", zap.Error(err))
		return nil
	}

	current := make(map[string]struct{}, len(list))
	for _, inc := range list {
		current[inc.ID] = struct{}{}
	}

	if notify {
		for _, inc := range list {
			if _, ok := w.seen[inc.ID]; ok {
				continue
			}
			// A cancelled watcher must not deliver late events.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Info("new incident observed",
				zap.String("id", inc.ID),
				zap.String("title", inc.Title),
				zap.String("status", inc.Status.Label()),
			)
			w.notify(Event{ID: inc.ID, Title: inc.Title, Status: inc.Status.Label()})
		}
	}

	// Replace unconditionally: removals fall out of the set silently and
	// never trigger a notification.
	w.seen = current
	return nil
}
