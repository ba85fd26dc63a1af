// Package notifier reports failed executions to a Telegram chat.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cronjobs/internal/config"
	"cronjobs/internal/models"
	"cronjobs/internal/utils"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

var ErrNotConfigured = errors.New("telegram notifier is not configured")

// maxResultInMessage keeps a notification well under Telegram's message limit.
const maxResultInMessage = 1500

type sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

type TelegramNotifier struct {
	bot    sender
	chatID int64
	log    *logrus.Logger
}

// NewTelegramNotifier builds an offline bot that only sends messages. It
// returns ErrNotConfigured when no token or chat is set.
func NewTelegramNotifier(cfg config.TelegramConfig, log *logrus.Logger) (*TelegramNotifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		return nil, ErrNotConfigured
	}
	bot, err := telebot.NewBot(telebot.Settings{
		Token:   cfg.BotToken,
		Offline: true,
		OnError: func(err error, c telebot.Context) {
			log.WithError(err).Error("Telegram bot error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: cfg.ChatID, log: log}, nil
}

func (n *TelegramNotifier) NotifyFailure(ctx context.Context, job *models.JobEntity, execution *models.ExecutionEntity) error {
	if stop, err := utils.ShouldStopCtx(ctx, n.log); stop {
		return err
	}
	_, err := n.bot.Send(telebot.ChatID(n.chatID), FailureMessage(job, execution), &telebot.SendOptions{
		ParseMode:             telebot.ModeHTML,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to send failure notification for %s: %w", job.Slug, err)
	}
	n.log.WithFields(logrus.Fields{
		"slug":         job.Slug,
		"execution_id": execution.ID,
	}).Debug("Sent failure notification")
	return nil
}

// FailureMessage renders the HTML notification body.
func FailureMessage(job *models.JobEntity, execution *models.ExecutionEntity) string {
	var sb strings.Builder
	sb.WriteString("❌ <b>Job failed</b>\n")
	fmt.Fprintf(&sb, "<b>%s</b> (<code>%s</code>)\n", escape(job.Name), escape(job.Slug))
	fmt.Fprintf(&sb, "Execution #%d started %s\n", execution.ID, execution.StartedAt.Format(time.RFC3339))
	if execution.EndedAt != nil {
		fmt.Fprintf(&sb, "Ended %s\n", execution.EndedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&sb, "<pre>%s</pre>", escape(utils.TruncateText(execution.Result, maxResultInMessage)))
	return sb.String()
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string {
	return htmlEscaper.Replace(s)
}
