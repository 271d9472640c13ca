package logsink

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink(t *testing.T) {
	var buf bytes.Buffer

	sink := New(slog.New(slog.NewTextHandler(&buf, nil)))
	collaborators := sink.Collaborators()
	ctx := context.Background()
	lead := models.EntityRef{Kind: "lead", ID: "l-1"}

	require.NoError(t, collaborators.Notifier.Notify(ctx, protocol.Notification{Body: "hi", Entity: lead}))
	require.NoError(t, collaborators.Mailer.Send(ctx, protocol.Email{To: "ana@example.com", Subject: "Welcome"}))
	require.NoError(t, collaborators.Assigner.Assign(ctx, lead, "agent-7"))
	require.NoError(t, collaborators.EntityUpdater.SetStatus(ctx, lead, "qualified"))
	require.NoError(t, collaborators.EntityUpdater.AddTag(ctx, lead, "vip"))

	reply, err := collaborators.Generator.Generate(ctx, protocol.GenerateRequest{Prompt: "Hello Ana"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ana", reply)

	output := buf.String()
	assert.Contains(t, output, "entity=lead:l-1")
	assert.Contains(t, output, "assignee_id=agent-7")
	assert.Contains(t, output, "tag=vip")
	assert.Contains(t, output, "module=logsink")
}
