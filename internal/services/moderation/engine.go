package moderation

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tg-groupguard-go/internal/i18n"
	"github.com/tg-groupguard-go/internal/middleware"
	"github.com/tg-groupguard-go/internal/models"
	"github.com/tg-groupguard-go/internal/services/ai"
	"github.com/tg-groupguard-go/pkg/markdown"
)

// GroupStore is the engine's view of the group-state store. Both
// operations absorb backend failures: reads degrade to an empty
// collection and writes to a logged no-op.
type GroupStore interface {
	GetAll(ctx context.Context) map[string]*models.GroupRecord
	SetAll(ctx context.Context, groups map[string]*models.GroupRecord)
}

// Actions is the enforcement surface of the message source.
type Actions interface {
	DeleteMessage(ctx context.Context, groupID int64, messageID int) error
	Reply(ctx context.Context, groupID int64, text string) error
	ReplyHTML(ctx context.Context, groupID int64, text string) error
	Ban(ctx context.Context, groupID int64, userID int64) error
}

// AdminLister resolves a group's current administrators.
type AdminLister interface {
	Administrators(ctx context.Context, groupID int64) ([]models.Member, error)
}

// Engine is the moderation state machine: gate, classify, enforce or
// pass to the responder, plus the administrative command operations.
type Engine struct {
	store     GroupStore
	gate      *Gate
	members   *MemberRegistry
	responder ai.Service
	limiter   middleware.RateLimiter
	replies   *i18n.Localizer
	metrics   *middleware.Metrics
	actions   Actions
	admins    AdminLister
	logger    *logrus.Logger

	defaultSubscriptionEnd string
}

// NewEngine wires the moderation engine.
func NewEngine(
	store GroupStore,
	gate *Gate,
	members *MemberRegistry,
	responder ai.Service,
	limiter middleware.RateLimiter,
	replies *i18n.Localizer,
	metrics *middleware.Metrics,
	actions Actions,
	admins AdminLister,
	logger *logrus.Logger,
	defaultSubscriptionEnd string,
) *Engine {
	return &Engine{
		store:                  store,
		gate:                   gate,
		members:                members,
		responder:              responder,
		limiter:                limiter,
		replies:                replies,
		metrics:                metrics,
		actions:                actions,
		admins:                 admins,
		logger:                 logger,
		defaultSubscriptionEnd: defaultSubscriptionEnd,
	}
}

// HandleMessage evaluates one non-command group message. Unsubscribed
// groups are dropped without any reply so the bot's presence is not
// leaked to unpaid groups.
func (e *Engine) HandleMessage(ctx context.Context, msg models.InboundMessage) error {
	groups := e.store.GetAll(ctx)

	if !e.gate.IsSubscribed(msg.GroupID, groups) {
		return nil
	}

	record := e.ensureRecord(ctx, groups, msg.GroupID, true)

	if keyword, ok := MatchKeyword(msg.Text, record.SpamKeywords); ok {
		e.enforce(ctx, msg, groups, record, keyword)
		return nil
	}

	e.respond(ctx, msg)
	return nil
}

// enforce runs the delete → warn → maybe-ban → persist sequence. The
// message never falls through to the responder once a keyword matched.
func (e *Engine) enforce(ctx context.Context, msg models.InboundMessage, groups map[string]*models.GroupRecord, record *models.GroupRecord, keyword string) {
	e.metrics.RecordViolation()

	if err := e.actions.DeleteMessage(ctx, msg.GroupID, msg.MessageID); err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"group_id":   msg.GroupID,
			"message_id": msg.MessageID,
		}).Warn("Failed to delete offending message")
	}

	count := IncrementViolation(record, msg.UserID)

	e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgWarnViolation, map[string]interface{}{
		"Username": msg.Username,
		"Keyword":  keyword,
		"Count":    count,
	}))

	if count >= record.BanLimit {
		if err := e.actions.Ban(ctx, msg.GroupID, msg.UserID); err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"group_id": msg.GroupID,
				"user_id":  msg.UserID,
			}).Error("Failed to ban user")
		}
		e.metrics.RecordBan()

		e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgBanNotice, map[string]interface{}{
			"Username": msg.Username,
			"Limit":    record.BanLimit,
		}))

		// A ban forgives the counter: a returning offender needs a
		// full fresh count before the next ban.
		ResetViolations(record, msg.UserID)
	}

	e.store.SetAll(ctx, groups)
}

// respond forwards the raw message text to the responder and relays
// its answer. One attempt only; any failure becomes a fixed apology.
func (e *Engine) respond(ctx context.Context, msg models.InboundMessage) {
	if !e.limiter.Allow(msg.UserID) {
		e.metrics.RecordRateLimitExceeded()
		e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgRateLimited, nil))
		return
	}

	start := time.Now()
	answer, err := e.responder.Answer(ctx, msg.Text)
	if err != nil {
		e.metrics.RecordResponderRequest("error", time.Since(start))
		e.logger.WithError(err).WithField("group_id", msg.GroupID).Error("Responder failed")
		e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgResponderError, nil))
		return
	}
	e.metrics.RecordResponderRequest("success", time.Since(start))

	if err := e.actions.ReplyHTML(ctx, msg.GroupID, markdown.ToTelegramHTML(answer)); err != nil {
		e.logger.WithError(err).WithField("group_id", msg.GroupID).Error("Failed to relay responder answer")
	}
}

// Greet handles /start.
func (e *Engine) Greet(ctx context.Context, msg models.InboundMessage) error {
	groups := e.store.GetAll(ctx)
	if !e.gate.IsSubscribed(msg.GroupID, groups) {
		e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgNotSubscribed, nil))
		return nil
	}
	e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgWelcome, nil))
	return nil
}

// ReportGroupID handles /groupid. Read-only except for lazy record
// creation.
func (e *Engine) ReportGroupID(ctx context.Context, msg models.InboundMessage) error {
	groups := e.store.GetAll(ctx)
	if !e.gate.IsSubscribed(msg.GroupID, groups) {
		e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgNotSubscribed, nil))
		return nil
	}

	e.ensureRecord(ctx, groups, msg.GroupID, true)

	e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgGroupID, map[string]interface{}{
		"GroupID": msg.GroupID,
	}))
	return nil
}

// RegisterKeyword handles /addspam. Admin only; the keyword is
// lowercased before it joins the denylist so matching stays
// case-insensitive at read time.
func (e *Engine) RegisterKeyword(ctx context.Context, msg models.InboundMessage, keyword string) error {
	groups := e.store.GetAll(ctx)
	if !e.gate.IsSubscribed(msg.GroupID, groups) {
		e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgNotSubscribed, nil))
		return nil
	}

	admins, err := e.admins.Administrators(ctx, msg.GroupID)
	if err != nil {
		// Transient failure of the admin lookup is reported, not
		// treated as a denial.
		e.logger.WithError(err).WithField("group_id", msg.GroupID).Error("Admin lookup failed")
		e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgTryAgainLater, nil))
		return nil
	}

	if !isAdmin(admins, msg.UserID) {
		e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgAdminOnly, nil))
		return nil
	}

	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgKeywordMissing, nil))
		return nil
	}

	record := e.ensureRecord(ctx, groups, msg.GroupID, false)
	record.SpamKeywords = append(record.SpamKeywords, keyword)
	e.store.SetAll(ctx, groups)

	e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgKeywordAdded, map[string]interface{}{
		"Keyword": keyword,
	}))
	return nil
}

// ResetOwnViolations handles /resetwarnings without an argument.
func (e *Engine) ResetOwnViolations(ctx context.Context, msg models.InboundMessage) error {
	groups := e.store.GetAll(ctx)
	if !e.gate.IsSubscribed(msg.GroupID, groups) {
		e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgNotSubscribed, nil))
		return nil
	}

	record := e.ensureRecord(ctx, groups, msg.GroupID, false)
	ResetViolations(record, msg.UserID)
	e.store.SetAll(ctx, groups)

	e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgWarningsReset, nil))
	return nil
}

// ResetUserViolations handles /resetwarnings @handle. Admin only. The
// handle is matched case-insensitively against the administrator list
// and the remembered group members; an unknown handle is reported
// rather than creating a phantom ledger entry.
func (e *Engine) ResetUserViolations(ctx context.Context, msg models.InboundMessage, handle string) error {
	groups := e.store.GetAll(ctx)
	if !e.gate.IsSubscribed(msg.GroupID, groups) {
		e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgNotSubscribed, nil))
		return nil
	}

	admins, err := e.admins.Administrators(ctx, msg.GroupID)
	if err != nil {
		e.logger.WithError(err).WithField("group_id", msg.GroupID).Error("Admin lookup failed")
		e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgTryAgainLater, nil))
		return nil
	}

	if !isAdmin(admins, msg.UserID) {
		e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgAdminOnly, nil))
		return nil
	}

	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	targetID, found := resolveHandle(admins, handle)
	if !found {
		targetID, found = e.members.Resolve(msg.GroupID, handle)
	}
	if !found {
		e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgUserNotFound, nil))
		return nil
	}

	record := e.ensureRecord(ctx, groups, msg.GroupID, false)
	ResetViolations(record, targetID)
	e.store.SetAll(ctx, groups)

	e.reply(ctx, msg.GroupID, e.replies.Get(i18n.MsgUserWarningsReset, map[string]interface{}{
		"Username": handle,
	}))
	return nil
}

// ensureRecord returns the group's record, creating it with defaults
// when absent. With persistNow the creation is written out immediately,
// as a separate write from any later mutation.
func (e *Engine) ensureRecord(ctx context.Context, groups map[string]*models.GroupRecord, groupID int64, persistNow bool) *models.GroupRecord {
	key := models.GroupKey(groupID)
	if record, ok := groups[key]; ok && record != nil {
		return record
	}

	e.logger.WithField("group_id", groupID).Info("Creating group record with defaults")
	record := models.NewGroupRecord(e.defaultSubscriptionEnd)
	groups[key] = record
	if persistNow {
		e.store.SetAll(ctx, groups)
	}
	return record
}

func (e *Engine) reply(ctx context.Context, groupID int64, text string) {
	if err := e.actions.Reply(ctx, groupID, text); err != nil {
		e.logger.WithError(err).WithField("group_id", groupID).Error("Failed to send reply")
	}
}

func isAdmin(admins []models.Member, userID int64) bool {
	for _, admin := range admins {
		if admin.ID == userID {
			return true
		}
	}
	return false
}

func resolveHandle(members []models.Member, handle string) (int64, bool) {
	for _, member := range members {
		if strings.EqualFold(member.Handle, handle) {
			return member.ID, true
		}
	}
	return 0, false
}
