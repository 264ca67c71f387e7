package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/tg-groupguard-go/internal/models"
)

// TelegramActions implements the engine's enforcement surface over the
// Bot API.
type TelegramActions struct {
	bot    *tgbotapi.BotAPI
	logger *logrus.Logger
}

func NewTelegramActions(bot *tgbotapi.BotAPI, logger *logrus.Logger) *TelegramActions {
	return &TelegramActions{bot: bot, logger: logger}
}

func (a *TelegramActions) DeleteMessage(ctx context.Context, groupID int64, messageID int) error {
	if _, err := a.bot.Request(tgbotapi.NewDeleteMessage(groupID, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (a *TelegramActions) Reply(ctx context.Context, groupID int64, text string) error {
	msg := tgbotapi.NewMessage(groupID, text)
	if _, err := a.bot.Send(msg); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

func (a *TelegramActions) ReplyHTML(ctx context.Context, groupID int64, text string) error {
	msg := tgbotapi.NewMessage(groupID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := a.bot.Send(msg); err != nil {
		// Telegram rejects malformed HTML; fall back to plain text so
		// the answer still reaches the group.
		a.logger.WithError(err).Debug("HTML reply rejected, retrying as plain text")
		plain := tgbotapi.NewMessage(groupID, text)
		if _, err := a.bot.Send(plain); err != nil {
			return fmt.Errorf("send html reply: %w", err)
		}
	}
	return nil
}

func (a *TelegramActions) Ban(ctx context.Context, groupID int64, userID int64) error {
	ban := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: groupID,
			UserID: userID,
		},
	}
	if _, err := a.bot.Request(ban); err != nil {
		return fmt.Errorf("ban user: %w", err)
	}
	return nil
}

// TelegramAdminLister resolves a group's administrators via the Bot
// API. Lookup failures are returned to the engine, which reports them
// to the caller as transient.
type TelegramAdminLister struct {
	bot *tgbotapi.BotAPI
}

func NewTelegramAdminLister(bot *tgbotapi.BotAPI) *TelegramAdminLister {
	return &TelegramAdminLister{bot: bot}
}

func (l *TelegramAdminLister) Administrators(ctx context.Context, groupID int64) ([]models.Member, error) {
	admins, err := l.bot.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: groupID},
	})
	if err != nil {
		return nil, fmt.Errorf("get chat administrators: %w", err)
	}

	members := make([]models.Member, 0, len(admins))
	for _, admin := range admins {
		if admin.User == nil {
			continue
		}
		members = append(members, models.Member{
			ID:     admin.User.ID,
			Handle: admin.User.UserName,
		})
	}
	return members, nil
}
