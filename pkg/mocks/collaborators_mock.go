package mocks

import (
	"context"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockNotifier is a mock implementation of protocol.Notifier interface.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, notification protocol.Notification) error {
	args := m.Called(ctx, notification)

	return args.Error(0)
}

// MockMailer is a mock implementation of protocol.Mailer interface.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, email protocol.Email) error {
	args := m.Called(ctx, email)

	return args.Error(0)
}

// MockAssigner is a mock implementation of protocol.Assigner interface.
type MockAssigner struct {
	mock.Mock
}

func (m *MockAssigner) Assign(ctx context.Context, entity models.EntityRef, assigneeID string) error {
	args := m.Called(ctx, entity, assigneeID)

	return args.Error(0)
}

// MockEntityUpdater is a mock implementation of protocol.EntityUpdater interface.
type MockEntityUpdater struct {
	mock.Mock
}

func (m *MockEntityUpdater) SetStatus(ctx context.Context, entity models.EntityRef, status string) error {
	args := m.Called(ctx, entity, status)

	return args.Error(0)
}

func (m *MockEntityUpdater) AddTag(ctx context.Context, entity models.EntityRef, tag string) error {
	args := m.Called(ctx, entity, tag)

	return args.Error(0)
}

// MockGenerator is a mock implementation of protocol.Generator interface.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req protocol.GenerateRequest) (string, error) {
	args := m.Called(ctx, req)

	return args.String(0), args.Error(1)
}
