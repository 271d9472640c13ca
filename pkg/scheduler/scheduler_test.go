package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/engageflow/pkg/events"
	"github.com/dukex/engageflow/pkg/mocks"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		wantErr    bool
	}{
		{name: "every five minutes", expression: "*/5 * * * *"},
		{name: "daily at midnight", expression: "0 0 * * *"},
		{name: "descriptor", expression: "@hourly"},
		{name: "interval", expression: DefaultExpression},
		{name: "empty", expression: "", wantErr: true},
		{name: "invalid", expression: "invalid cron", wantErr: true},
		{name: "six fields", expression: "0 */5 * * * *", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.expression)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestScheduler_Tick(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	bus := &mocks.MockEventBus{}

	bus.On("Publish", mock.Anything, "scheduled", mock.MatchedBy(func(event *events.DomainEvent) bool {
		return event.Type == "scheduled" &&
			event.OccurredAt.Equal(now) &&
			event.Payload["timestamp"] == "2026-03-02T09:30:00Z" &&
			event.Payload["cron"] == "@hourly"
	})).Return(nil).Once()

	s, err := New("@hourly", bus, clockwork.NewFakeClockAt(now), slog.Default())
	require.NoError(t, err)

	require.NoError(t, s.Tick(context.Background()))
	bus.AssertExpectations(t)
}

func TestScheduler_Tick_PublishError(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bus closed"))

	s, err := New(DefaultExpression, bus, clockwork.NewRealClock(), slog.Default())
	require.NoError(t, err)

	err = s.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bus closed")
}

func TestScheduler_StartStop(t *testing.T) {
	bus := &mocks.MockEventBus{}

	s, err := New("0 0 1 1 *", bus, clockwork.NewRealClock(), slog.Default())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	s.Stop(ctx)
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestNew_InvalidExpression(t *testing.T) {
	_, err := New("", &mocks.MockEventBus{}, clockwork.NewRealClock(), slog.Default())
	require.ErrorIs(t, err, ErrEmptyExpression)
}
