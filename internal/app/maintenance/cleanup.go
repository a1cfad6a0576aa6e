package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ngtsab/memberdir/internal/models"
	"github.com/ngtsab/memberdir/pkg/logger"
	"github.com/ngtsab/memberdir/pkg/metrics"
)

// Sweeper runs periodic housekeeping: retiring expired invite links and
// refreshing the pending-invitation gauge.
type Sweeper struct {
	db       *gorm.DB
	schedule string
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
}

// Option customises Sweeper behaviour.
type Option func(*Sweeper)

// WithSchedule overrides the cron schedule expression.
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// WithClock injects a custom clock primarily for testing.
func WithClock(clock func() time.Time) Option {
	return func(s *Sweeper) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewSweeper constructs a Sweeper instance.
func NewSweeper(db *gorm.DB, opts ...Option) (*Sweeper, error) {
	if db == nil {
		return nil, errors.New("maintenance: db is required")
	}

	sweeper := &Sweeper{
		db:       db,
		schedule: "@hourly",
		now:      time.Now,
		log:      logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(sweeper)
	}

	return sweeper, nil
}

// Start registers the sweep on the schedule and begins running it.
func (s *Sweeper) Start() error {
	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("maintenance: schedule %q: %w", s.schedule, err)
	}

	c.Start()
	s.cron = c
	s.log.Info("sweeper started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunOnce performs a single sweep. Each step runs even when an earlier one
// fails; the combined error reports every failure.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	var errs error

	if err := s.retireExpiredInviteTokens(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := s.refreshPendingGauge(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}

// retireExpiredInviteTokens clears invite link state that can no longer be
// redeemed. The identity row itself stays: a later re-invite rotates in a
// fresh token.
func (s *Sweeper) retireExpiredInviteTokens(ctx context.Context) error {
	result := s.db.WithContext(ctx).
		Model(&models.Identity{}).
		Where("invite_token_hash IS NOT NULL AND invite_token_expires_at < ?", s.now()).
		Updates(map[string]any{
			"invite_token_hash":       nil,
			"invite_token_expires_at": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("maintenance: retire invite tokens: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.log.Info("expired invite tokens retired", zap.Int64("count", result.RowsAffected))
	}
	return nil
}

func (s *Sweeper) refreshPendingGauge(ctx context.Context) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Invitation{}).Count(&count).Error
	if err != nil {
		return fmt.Errorf("maintenance: count pending invitations: %w", err)
	}

	metrics.PendingInvitations.Set(float64(count))
	return nil
}
