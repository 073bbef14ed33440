// Package scheduler drives the time-based part of the match lifecycle: the
// staged pre-expiry alerts and the open->expired transition. State lives
// entirely in the store (expiry timestamp plus the delivered-alert set), so
// a restart resumes cleanly from the next scan - there are no per-match
// timers to lose.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/velvetlane/matchroom/internal/modules/match/domain"
	"github.com/velvetlane/matchroom/internal/modules/room"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultInterval  = time.Minute
	DefaultLookahead = 5 * time.Hour
)

type Scheduler struct {
	store     domain.MatchStore
	rooms     room.Gateway
	logger    *zap.Logger
	interval  time.Duration
	lookahead time.Duration

	now func() time.Time

	stop    chan struct{}
	stopped chan struct{}
}

func New(
	store domain.MatchStore,
	rooms room.Gateway,
	logger *zap.Logger,
	interval time.Duration,
	lookahead time.Duration,
) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}

	return &Scheduler{
		store:     store,
		rooms:     rooms,
		logger:    logger,
		interval:  interval,
		lookahead: lookahead,
		now:       time.Now,
	}
}

// Start runs the tick loop until Stop. Ticks run on a single goroutine, so
// an overrunning scan is never overlapped - the ticker coalesces missed
// fires and the next scan picks up whatever is still due.
func (s *Scheduler) Start() {
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})

	go func() {
		defer close(s.stopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Tick(context.Background())
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	if s.stop == nil {
		return
	}

	close(s.stop)
	<-s.stopped
}

// Tick scans open matches near expiry and delivers whatever is due. A
// failing match is logged and skipped; it never blocks the rest of the scan.
func (s *Scheduler) Tick(ctx context.Context) {
	tickID := uuid.NewString()
	now := s.now().UTC()

	due, err := s.store.NearExpiry(ctx, now.Add(s.lookahead))
	if err != nil {
		s.logger.Error("near-expiry scan failed", zap.Error(err), zap.String("tick_id", tickID))
		return
	}

	for _, match := range due {
		if err := s.process(ctx, match, now); err != nil {
			s.logger.Error("match expiry processing failed",
				zap.Error(err),
				zap.String("tick_id", tickID),
				zap.String("match_id", match.ID.String()),
			)
		}
	}
}

func (s *Scheduler) process(ctx context.Context, match domain.Match, now time.Time) error {
	if !now.Before(match.ExpiresAt) {
		return s.expire(ctx, match)
	}

	hoursLeft := match.HoursRemaining(now)
	for _, threshold := range domain.AlertThresholds {
		if threshold <= hoursLeft || match.AlertSent(threshold) {
			continue
		}

		// The conditional append is the delivery record. If it reports no
		// change, another tick (or another process) already delivered this
		// threshold.
		marked, err := s.store.MarkAlertSent(ctx, match.ID, threshold)
		if err != nil {
			return err
		}
		if !marked {
			continue
		}

		notice := fmt.Sprintf("This room closes in about %dh.", threshold)
		if err := s.rooms.PostSystemMessage(ctx, match.RoomID, notice); err != nil {
			// A lost message is a minor failure mode; the threshold stays
			// recorded so it is not re-sent.
			s.logger.Warn("expiry alert send failed",
				zap.Error(err),
				zap.String("match_id", match.ID.String()),
				zap.Int("threshold_hours", threshold),
			)
		}
	}

	return nil
}

func (s *Scheduler) expire(ctx context.Context, match domain.Match) error {
	expired, err := s.store.ExpireMatch(ctx, match.ID)
	if err != nil {
		return err
	}
	if !expired {
		// Lost the race to a concurrent close or restore; the next scan
		// re-evaluates if the match is still open.
		return nil
	}

	notice := "This room has expired. Any participant can restore it."
	if err := s.rooms.PostSystemMessage(ctx, match.RoomID, notice); err != nil {
		s.logger.Warn("expiry notice send failed",
			zap.Error(err),
			zap.String("match_id", match.ID.String()),
		)
	}

	return nil
}
