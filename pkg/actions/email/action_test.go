package email

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/engageflow/pkg/mocks"
	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAction_Execute(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
		rc     models.Context
		want   protocol.Email
	}{
		{
			name:   "recipient from context",
			config: map[string]any{"subject": "Welcome {{ .lead.name }}", "body": "Thanks for signing up"},
			rc:     models.Context{"lead": map[string]any{"name": "Ana", "email": "ana@example.com"}},
			want:   protocol.Email{To: "ana@example.com", Subject: "Welcome Ana", Body: "Thanks for signing up"},
		},
		{
			name:   "explicit recipient template",
			config: map[string]any{"to": "{{ .customer.billing_email }}", "subject": "Invoice", "body": "Attached"},
			rc:     models.Context{"customer": map[string]any{"email": "x@example.com", "billing_email": "bills@example.com"}},
			want:   protocol.Email{To: "bills@example.com", Subject: "Invoice", Body: "Attached"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &mocks.MockMailer{}
			mailer.On("Send", mock.Anything, tt.want).Return(nil).Once()

			action, err := NewActionFactory(mailer).Create(context.Background(), tt.config)
			require.NoError(t, err)

			_, err = action.Execute(context.Background(), tt.rc, slog.Default())
			require.NoError(t, err)

			mailer.AssertExpectations(t)
		})
	}
}

func TestAction_Execute_NoRecipient(t *testing.T) {
	mailer := &mocks.MockMailer{}

	action := NewAction(models.EmailConfig{Subject: "Hi", Body: "there"}, mailer)

	_, err := action.Execute(context.Background(), models.Context{"lead": map[string]any{"name": "Ana"}}, slog.Default())
	require.ErrorIs(t, err, ErrNoRecipient)
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestActionFactory_Schema(t *testing.T) {
	factory := NewActionFactory(nil)

	assert.Equal(t, models.StepSendEmail, factory.ID())
	assert.ElementsMatch(t, []string{"subject", "body"}, factory.GetSchema().Required)
}
