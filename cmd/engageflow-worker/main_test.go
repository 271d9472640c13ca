package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Start(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *mockRunner) Stop(ctx context.Context) {
	m.Called(ctx)
}

func TestRun_StopsWhenContextIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	worker := &mockRunner{}
	worker.On("Start", ctx).Return(nil).Run(func(mock.Arguments) { cancel() }).Once()
	worker.On("Stop", mock.Anything).Once()

	require.NoError(t, run(ctx, worker))
	worker.AssertExpectations(t)
}

func TestRun_StartFailure(t *testing.T) {
	worker := &mockRunner{}
	worker.On("Start", mock.Anything).Return(errors.New("subscribe failed")).Once()

	err := run(context.Background(), worker)
	require.EqualError(t, err, "subscribe failed")

	worker.AssertNotCalled(t, "Stop", mock.Anything)
	assert.True(t, worker.AssertExpectations(t))
}
