// Package scheduler emits "scheduled" domain events on a cron expression so
// workflows with the scheduled trigger run periodically.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/engageflow/pkg/eventbus"
	"github.com/dukex/engageflow/pkg/events"
	"github.com/dukex/engageflow/pkg/models"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

const DefaultExpression = "@every 1m"

var ErrEmptyExpression = errors.New("schedule cron expression is required")

type Scheduler struct {
	expression string
	publisher  eventbus.EventPublisher
	clock      clockwork.Clock
	cron       *cron.Cron
	logger     *slog.Logger
}

func New(expression string, publisher eventbus.EventPublisher, clock clockwork.Clock, logger *slog.Logger) (*Scheduler, error) {
	err := Validate(expression)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		expression: expression,
		publisher:  publisher,
		clock:      clock,
		logger:     logger.With("module", "scheduler", "cron", expression),
	}, nil
}

// Validate checks a standard five-field expression or a descriptor such as
// "@hourly" or "@every 5m".
func Validate(expression string) error {
	if expression == "" {
		return ErrEmptyExpression
	}

	_, err := cron.ParseStandard(expression)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

// Start schedules the ticks. Overlapping ticks are skipped and a panicking
// tick does not stop the schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	logger := cronLogger{logger: s.logger}

	s.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(
			cron.SkipIfStillRunning(logger),
			cron.Recover(logger),
		),
	)

	id, err := s.cron.AddFunc(s.expression, func() {
		err := s.Tick(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish scheduled event", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.logger.InfoContext(ctx, "Starting scheduler", "entry_id", id)
	s.cron.Start()

	return nil
}

// Tick publishes one scheduled event.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.clock.Now().UTC()

	event := events.NewDomainEvent(string(models.TriggerScheduled), map[string]any{
		"timestamp": now.Format(time.RFC3339),
		"cron":      s.expression,
	})
	event.OccurredAt = now

	s.logger.DebugContext(ctx, "Cron job triggered", "event_id", event.ID)

	return s.publisher.Publish(ctx, string(models.TriggerScheduled), event)
}

// Stop stops the schedule and waits for a running tick to return.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}

	s.logger.InfoContext(ctx, "Stopping scheduler")

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
