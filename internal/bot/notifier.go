package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/example/studyplan/internal/logger"
)

// sender is the part of tgbotapi.BotAPI the notifier needs
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier delivers review reminders as Telegram messages. Private chats
// share their ID with the user, so the user ID is used as chat ID.
type Notifier struct {
	api sender
	log *logger.Logger
}

// NewNotifier connects to the Bot API with the given token
func NewNotifier(token string, log *logger.Logger) (*Notifier, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to telegram")
	}
	if log == nil {
		log = logger.Nop()
	}
	log.Info("authorized on telegram", "account", api.Self.UserName)
	return newNotifier(api, log), nil
}

func newNotifier(api sender, log *logger.Logger) *Notifier {
	return &Notifier{api: api, log: log.With("component", "telegram")}
}

// SendReminders implements the scheduler.Notifier interface
func (n *Notifier) SendReminders(ctx context.Context, userID int64, count int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(userID, reminderText(count))
	if _, err := n.api.Send(msg); err != nil {
		return errors.Wrapf(err, "failed to send reminder to %d", userID)
	}
	n.log.Debug("sent reminder", "user_id", userID, "count", count)
	return nil
}

func reminderText(count int) string {
	noun := "reviews"
	if count == 1 {
		noun = "review"
	}
	return fmt.Sprintf("📚 You have %d %s due today. Open your agenda to keep your streak going!", count, noun)
}
