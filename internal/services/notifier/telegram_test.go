package notifier

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"cronjobs/internal/config"
	"cronjobs/internal/models"
	"cronjobs/internal/utils"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type fakeSender struct {
	to   telebot.Recipient
	what interface{}
	err  error
}

func (s *fakeSender) Send(to telebot.Recipient, what interface{}, _ ...interface{}) (*telebot.Message, error) {
	s.to = to
	s.what = what
	return &telebot.Message{}, s.err
}

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func failedExecution() (*models.JobEntity, *models.ExecutionEntity) {
	started := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
	job := &models.JobEntity{ID: 1, Name: "Backup <db>", Slug: "backup"}
	execution := &models.ExecutionEntity{
		ID:        7,
		JobID:     utils.ToPointer(job.ID),
		StartedAt: started,
		Status:    models.StatusCompleted,
		EndedAt:   utils.ToPointer(started.Add(2 * time.Second)),
		Success:   models.OutcomeFailed,
		Result:    "pg_dump: error & exit\n\nDuration: 2.00 seconds",
	}
	return job, execution
}

func TestNewTelegramNotifierRequiresConfig(t *testing.T) {
	_, err := NewTelegramNotifier(config.TelegramConfig{}, newTestLogger())
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewTelegramNotifier(config.TelegramConfig{BotToken: "token"}, newTestLogger())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNotifyFailureSendsToChat(t *testing.T) {
	s := &fakeSender{}
	n := &TelegramNotifier{bot: s, chatID: 42, log: newTestLogger()}
	job, execution := failedExecution()

	require.NoError(t, n.NotifyFailure(context.Background(), job, execution))

	assert.Equal(t, "42", s.to.Recipient())
	msg, ok := s.what.(string)
	require.True(t, ok)
	assert.Contains(t, msg, "Backup &lt;db&gt;")
	assert.Contains(t, msg, "<code>backup</code>")
	assert.Contains(t, msg, "Execution #7")
	assert.Contains(t, msg, "pg_dump: error &amp; exit")
}

func TestNotifyFailureWrapsSendError(t *testing.T) {
	sendErr := errors.New("forbidden")
	n := &TelegramNotifier{bot: &fakeSender{err: sendErr}, chatID: 42, log: newTestLogger()}
	job, execution := failedExecution()

	err := n.NotifyFailure(context.Background(), job, execution)
	assert.ErrorIs(t, err, sendErr)
}

func TestNotifyFailureStopsOnCancelledContext(t *testing.T) {
	s := &fakeSender{}
	n := &TelegramNotifier{bot: s, chatID: 42, log: newTestLogger()}
	job, execution := failedExecution()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, n.NotifyFailure(ctx, job, execution), context.Canceled)
	assert.Nil(t, s.to)
}
