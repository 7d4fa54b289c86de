package publisher

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram publishes messages to a fixed Telegram chat.
type Telegram struct {
	api    telegramAPI
	chatID int64
}

// NewTelegram creates a Telegram publisher with the given bot token.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Telegram{api: api, chatID: chatID}, nil
}

// Publish sends the message. An API-side rejection (Telegram accepted the
// call but returned an error payload) is reported distinctly from a
// transport failure; neither is retried here.
func (t *Telegram) Publish(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := t.api.Send(msg); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			return fmt.Errorf("channel rejected message: %w", err)
		}
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
