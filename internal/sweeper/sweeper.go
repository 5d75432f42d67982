package sweeper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/violet-hub/keygate/database/repo/bindings"
	"github.com/violet-hub/keygate/internal/notify"
	"github.com/violet-hub/keygate/utils"
)

// Sweeper runs two timer-driven passes against the binding store:
//
// The notify pass (frequent) picks up bindings whose window lapsed without a
// notice, claims each one via a conditional flag update, and DMs the owner.
// Claiming before sending keeps the notice at-most-once per window even when
// several processes sweep the same table.
//
// The rollover pass (infrequent) re-arms the notified flag on live bindings
// approaching re-expiry, so a window started by reactivation can be notified
// again.
//
// Each tick runs its pass to completion before the next tick is consumed;
// passes never overlap.
type Sweeper struct {
	repo     *bindings.Repository
	notifier notify.Notifier

	window           time.Duration
	notifyInterval   time.Duration
	rolloverInterval time.Duration
	rearmThreshold   time.Duration
	batchSize        int

	stopCh chan struct{}
	now    func() time.Time
}

// Options configures a Sweeper.
type Options struct {
	Window           time.Duration
	NotifyInterval   time.Duration
	RolloverInterval time.Duration
	RearmThreshold   time.Duration
	BatchSize        int
}

// New creates a sweeper. Zero options fall back to sane defaults.
func New(repo *bindings.Repository, notifier notify.Notifier, opts Options) *Sweeper {
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	if opts.NotifyInterval <= 0 {
		opts.NotifyInterval = 30 * time.Second
	}
	if opts.RolloverInterval <= 0 {
		opts.RolloverInterval = time.Hour
	}
	if opts.RearmThreshold <= 0 || opts.RearmThreshold >= opts.Window {
		opts.RearmThreshold = opts.Window - time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}

	return &Sweeper{
		repo:             repo,
		notifier:         notifier,
		window:           opts.Window,
		notifyInterval:   opts.NotifyInterval,
		rolloverInterval: opts.RolloverInterval,
		rearmThreshold:   opts.RearmThreshold,
		batchSize:        opts.BatchSize,
		stopCh:           make(chan struct{}),
		now:              time.Now,
	}
}

// Start launches both passes in the background.
func (s *Sweeper) Start() {
	notifyTicker := time.NewTicker(s.notifyInterval)
	go func() {
		for {
			select {
			case <-notifyTicker.C:
				s.RunNotifyPass(context.Background())
			case <-s.stopCh:
				notifyTicker.Stop()
				return
			}
		}
	}()

	rolloverTicker := time.NewTicker(s.rolloverInterval)
	go func() {
		for {
			select {
			case <-rolloverTicker.C:
				s.RunRolloverPass(context.Background())
			case <-s.stopCh:
				rolloverTicker.Stop()
				return
			}
		}
	}()

	log.Printf("[Sweeper] Started (notify every %v, rollover every %v, window %v)",
		s.notifyInterval, s.rolloverInterval, s.window)
}

// Stop halts both passes.
func (s *Sweeper) Stop() {
	close(s.stopCh)
}

// RunNotifyPass processes one batch of expired, unnotified bindings. Records
// are handled independently: a failure on one never blocks the next, and a
// failed DM still leaves the flag set since delivery is advisory.
func (s *Sweeper) RunNotifyPass(ctx context.Context) {
	cutoff := s.now().Add(-s.window)

	rows, err := s.repo.FindExpiredUnnotified(ctx, cutoff, s.batchSize)
	if err != nil {
		log.Printf("[Sweeper] Failed to list expired bindings: %v", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	log.Printf("[Sweeper] Found %d expired bindings to notify", len(rows))

	content := fmt.Sprintf("⏰ Your key has expired after %v. Use /getkey to renew it.", s.window)
	for _, row := range rows {
		claimed, err := s.repo.MarkNotified(ctx, row.ID, cutoff)
		if err != nil {
			log.Printf("[Sweeper] Failed to mark binding %d notified: %v", row.ID, err)
			continue
		}
		if !claimed {
			// Another sweep claimed it, or the row was reactivated meanwhile.
			continue
		}

		if err := s.notifier.SendDM(ctx, row.Identity, content); err != nil {
			log.Printf("[Sweeper] Failed to DM %s: %v", utils.SanitizeLogMessage(row.Identity), err)
		}
	}
}

// RunRolloverPass re-arms notified flags on bindings inside the re-arm zone.
func (s *Sweeper) RunRolloverPass(ctx context.Context) {
	now := s.now()
	windowCutoff := now.Add(-s.window)
	rearmCutoff := now.Add(-s.rearmThreshold)

	cleared, err := s.repo.ClearStaleNotified(ctx, windowCutoff, rearmCutoff)
	if err != nil {
		log.Printf("[Sweeper] Rollover pass failed: %v", err)
		return
	}
	if cleared > 0 {
		log.Printf("[Sweeper] Re-armed notified flag on %d bindings", cleared)
	}
}
