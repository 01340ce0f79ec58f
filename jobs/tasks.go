package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeUserSweep purges directory records soft-deleted long ago.
	TaskTypeUserSweep = "users:sweep_deleted"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewPasswordResetTask builds the reset-link mail for a recovery request.
func NewPasswordResetTask(email, token, appBaseURL string) (*asynq.Task, error) {
	return NewSendEmailTask(SendEmailPayload{
		To:      email,
		Subject: "Reset your password",
		Body: fmt.Sprintf(
			"A password reset was requested for this address.\n\n"+
				"Open %s/auth/reset-password?token=%s to choose a new password.\n\n"+
				"The link expires in one hour. If you did not request this, ignore this message.",
			appBaseURL, token),
	})
}

// NewWelcomeTask builds the onboarding mail for a new account.
func NewWelcomeTask(email, name string) (*asynq.Task, error) {
	return NewSendEmailTask(SendEmailPayload{
		To:      email,
		Subject: "Welcome aboard",
		Body:    fmt.Sprintf("Hi %s,\n\nYour account is ready. Sign in to get started.", name),
	})
}

// NewUserSweepTask constructs the periodic cleanup task.
func NewUserSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeUserSweep, nil)
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: integrate with SMTP/Mailpit in phase 2.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}
