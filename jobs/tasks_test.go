package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPasswordResetTaskCarriesResetLink(t *testing.T) {
	task, err := NewPasswordResetTask("jo@example.com", "tok-123", "https://admin.example.com")
	require.NoError(t, err)
	assert.Equal(t, TaskTypeSendEmail, task.Type())

	var payload SendEmailPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "jo@example.com", payload.To)
	assert.Contains(t, payload.Body, "https://admin.example.com/auth/reset-password?token=tok-123")
}

func TestNewWelcomeTaskAddressesRecipientByName(t *testing.T) {
	task, err := NewWelcomeTask("jo@example.com", "Jo")
	require.NoError(t, err)

	var payload SendEmailPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Contains(t, payload.Body, "Hi Jo,")
}

func TestHandleSendEmailTaskSkipsRetryOnBadPayload(t *testing.T) {
	task := asynq.NewTask(TaskTypeSendEmail, []byte("not json"))

	err := HandleSendEmailTask(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
