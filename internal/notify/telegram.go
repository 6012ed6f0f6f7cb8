package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Krishna180104/cse-leave/internal/apperr"
	"github.com/Krishna180104/cse-leave/internal/logging"
	"github.com/Krishna180104/cse-leave/internal/metrics"
	"github.com/Krishna180104/cse-leave/internal/observability"
)

// TelegramAlerter рассылает уведомления в чаты админов.
type TelegramAlerter struct {
	bot   *tgbotapi.BotAPI
	chats []int64
	log   *zap.Logger
}

func NewTelegramAlerter(token string, chats []int64, log *zap.Logger) (*TelegramAlerter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return NewTelegramAlerterWithBot(bot, chats, log), nil
}

func NewTelegramAlerterWithBot(bot *tgbotapi.BotAPI, chats []int64, log *zap.Logger) *TelegramAlerter {
	if log == nil {
		log = zap.NewNop()
	}
	return &TelegramAlerter{bot: bot, chats: chats, log: log}
}

// Alert шлёт текст в каждый чат; ошибки по отдельным чатам не прерывают рассылку.
func (a *TelegramAlerter) Alert(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range a.chats {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, err := a.bot.Send(tgbotapi.NewMessage(chatID, text))
		metrics.Notification("telegram", err)
		if err != nil {
			if isSystemErr(err) {
				observability.CaptureCtx(ctx, err)
			}
			logging.For(ctx, a.log).Warn("telegram alert failed", zap.Int64("chat_id", chatID), zap.Error(err))
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", apperr.ErrDelivery, errors.Join(errs...))
	}
	return nil
}

// Системными считаем 5xx, 429 и таймауты. 400-ки в Sentry не шлём.
func isSystemErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(s, "502") ||
		strings.Contains(s, "503") || strings.Contains(s, "timeout")
}
