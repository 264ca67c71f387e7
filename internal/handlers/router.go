package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/tg-groupguard-go/internal/middleware"
	"github.com/tg-groupguard-go/internal/models"
	"github.com/tg-groupguard-go/internal/services/moderation"
	"github.com/tg-groupguard-go/pkg/logger"
)

// Router dispatches inbound updates to the moderation engine. Every
// error is absorbed here: per-message failures are logged and counted,
// never allowed to crash the ingestion loop.
type Router struct {
	engine  *moderation.Engine
	members *moderation.MemberRegistry
	metrics *middleware.Metrics
	logger  *logrus.Logger
}

func NewRouter(engine *moderation.Engine, members *moderation.MemberRegistry, metrics *middleware.Metrics, logger *logrus.Logger) *Router {
	return &Router{
		engine:  engine,
		members: members,
		metrics: metrics,
		logger:  logger,
	}
}

// Dispatch handles one update. Called sequentially by the supervisor,
// which preserves per-group ordering of moderation decisions.
func (r *Router) Dispatch(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.From == nil || message.From.IsBot {
		return
	}
	if message.Text == "" {
		return
	}

	chatType := "private"
	if message.Chat.IsGroup() || message.Chat.IsSuperGroup() {
		chatType = "group"
	}
	r.metrics.RecordMessageReceived(chatType)

	msg := models.InboundMessage{
		GroupID:   message.Chat.ID,
		MessageID: message.MessageID,
		UserID:    message.From.ID,
		Username:  message.From.UserName,
		Text:      message.Text,
	}

	// Remember the sender so reset-by-handle can resolve non-admin
	// members later.
	r.members.Remember(msg.GroupID, msg.UserID, msg.Username)

	var err error
	if message.IsCommand() {
		command := message.Command()
		r.metrics.RecordCommandExecuted(command)

		switch command {
		case "start":
			err = r.engine.Greet(ctx, msg)
		case "groupid":
			err = r.engine.ReportGroupID(ctx, msg)
		case "addspam":
			err = r.engine.RegisterKeyword(ctx, msg, message.CommandArguments())
		case "resetwarnings":
			handle := message.CommandArguments()
			if handle == "" {
				err = r.engine.ResetOwnViolations(ctx, msg)
			} else {
				err = r.engine.ResetUserViolations(ctx, msg, handle)
			}
		default:
			// Unrecognized commands are ignored, not moderated.
			return
		}
	} else {
		err = r.engine.HandleMessage(ctx, msg)
	}

	if err != nil {
		logger.WithGroup(r.logger, msg.GroupID, msg.UserID).WithError(err).Error("Failed to handle update")
		r.metrics.RecordMessageProcessed("error")
		return
	}
	r.metrics.RecordMessageProcessed("success")
}
