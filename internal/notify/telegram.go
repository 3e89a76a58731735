package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramTransport дублирует уведомления в Telegram тем, кто привязал чат
type TelegramTransport struct {
	sender messageSender
	logger *zap.Logger
}

// NewTelegramTransport создаёт клиента бота только для отправки
func NewTelegramTransport(token string, logger *zap.Logger) (*TelegramTransport, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramTransport{sender: b, logger: logger}, nil
}

func (t *TelegramTransport) Send(ctx context.Context, msg Message) error {
	chatID := msg.To.Party.TelegramChatID
	if chatID == 0 {
		return nil
	}

	subject, body, err := Render(msg)
	if err != nil {
		return err
	}

	_, err = t.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   subject + "\n\n" + body,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	t.logger.Debug("Telegram notification sent",
		zap.Int64("chat_id", chatID),
		zap.String("template", string(msg.Template)),
	)
	return nil
}
