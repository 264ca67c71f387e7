package moderation

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tg-groupguard-go/internal/config"
	"github.com/tg-groupguard-go/internal/i18n"
	"github.com/tg-groupguard-go/internal/middleware"
	"github.com/tg-groupguard-go/internal/models"
	"github.com/tg-groupguard-go/internal/services/storage"
)

const testGroupID = int64(42)

type fakeActions struct {
	deleted []int
	replies []string
	html    []string
	banned  []int64
}

func (f *fakeActions) DeleteMessage(ctx context.Context, groupID int64, messageID int) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeActions) Reply(ctx context.Context, groupID int64, text string) error {
	f.replies = append(f.replies, text)
	return nil
}

func (f *fakeActions) ReplyHTML(ctx context.Context, groupID int64, text string) error {
	f.html = append(f.html, text)
	return nil
}

func (f *fakeActions) Ban(ctx context.Context, groupID int64, userID int64) error {
	f.banned = append(f.banned, userID)
	return nil
}

type fakeResponder struct {
	answer       string
	err          error
	calls        int
	lastQuestion string
}

func (f *fakeResponder) Answer(ctx context.Context, question string) (string, error) {
	f.calls++
	f.lastQuestion = question
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeAdmins struct {
	members []models.Member
	err     error
}

func (f *fakeAdmins) Administrators(ctx context.Context, groupID int64) ([]models.Member, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.members, nil
}

type fakeLimiter struct {
	allow bool
}

func (f *fakeLimiter) Allow(userID int64) bool { return f.allow }
func (f *fakeLimiter) Reset(userID int64)      {}

type harness struct {
	engine    *Engine
	store     *storage.Manager
	members   *MemberRegistry
	actions   *fakeActions
	responder *fakeResponder
	admins    *fakeAdmins
	limiter   *fakeLimiter
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{
		Storage: config.StorageConfig{
			Type: "memory",
			Key:  "groups",
			Memory: config.MemoryConfig{
				CleanupInterval: time.Minute,
			},
		},
	}
	store, err := storage.NewManager(cfg, log)
	require.NoError(t, err)

	localizer, err := i18n.NewLocalizer(&config.I18nConfig{DefaultLanguage: "en"})
	require.NoError(t, err)

	h := &harness{
		store:     store,
		members:   NewMemberRegistry(time.Hour),
		actions:   &fakeActions{},
		responder: &fakeResponder{answer: "hello"},
		admins:    &fakeAdmins{},
		limiter:   &fakeLimiter{allow: true},
	}

	h.engine = NewEngine(
		store,
		NewGate(),
		h.members,
		h.responder,
		h.limiter,
		localizer,
		middleware.NewMetrics(),
		h.actions,
		h.admins,
		log,
		"2999-12-31",
	)
	return h
}

func (h *harness) seed(t *testing.T, record *models.GroupRecord) {
	t.Helper()
	h.store.SetAll(context.Background(), map[string]*models.GroupRecord{
		models.GroupKey(testGroupID): record,
	})
}

func (h *harness) record(t *testing.T) *models.GroupRecord {
	t.Helper()
	return h.store.GetAll(context.Background())[models.GroupKey(testGroupID)]
}

func subscribedRecord(keywords ...string) *models.GroupRecord {
	record := models.NewGroupRecord("2999-12-31")
	record.SpamKeywords = keywords
	return record
}

func message(messageID int, text string) models.InboundMessage {
	return models.InboundMessage{
		GroupID:   testGroupID,
		MessageID: messageID,
		UserID:    2,
		Username:  "alice",
		Text:      text,
	}
}

func TestHandleMessageUnsubscribedSilentDrop(t *testing.T) {
	h := newHarness(t)

	err := h.engine.HandleMessage(context.Background(), message(1, "hello"))
	require.NoError(t, err)

	// No reply of any kind, no store write, no responder call.
	assert.Empty(t, h.actions.replies)
	assert.Empty(t, h.actions.html)
	assert.Empty(t, h.actions.deleted)
	assert.Zero(t, h.responder.calls)
	assert.Empty(t, h.store.GetAll(context.Background()))
}

func TestHandleMessageExpiredSubscriptionSilentDrop(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &models.GroupRecord{
		SpamKeywords:    []string{"spam"},
		Violations:      map[string]int{},
		BanLimit:        3,
		SubscriptionEnd: "2000-01-01",
	})

	err := h.engine.HandleMessage(context.Background(), message(1, "this is spam"))
	require.NoError(t, err)

	assert.Empty(t, h.actions.replies)
	assert.Empty(t, h.actions.deleted)
	assert.Zero(t, h.responder.calls)
}

func TestHandleMessageKeywordEnforcementThroughBan(t *testing.T) {
	h := newHarness(t)
	h.seed(t, subscribedRecord("spam"))

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, h.engine.HandleMessage(ctx, message(i, "this is SPAM")))
	}

	// Each message was deleted and warned with the running count.
	assert.Equal(t, []int{1, 2, 3}, h.actions.deleted)
	require.Len(t, h.actions.replies, 4) // 3 warnings + 1 ban notice
	assert.Contains(t, h.actions.replies[0], "Violation 1")
	assert.Contains(t, h.actions.replies[1], "Violation 2")
	assert.Contains(t, h.actions.replies[2], "Violation 3")
	assert.Contains(t, h.actions.replies[0], "'spam'")

	// Exactly one ban on the third violation, and the counter is
	// forgiven back to 0.
	assert.Equal(t, []int64{2}, h.actions.banned)
	assert.Contains(t, h.actions.replies[3], "banned")
	assert.Equal(t, 0, h.record(t).Violations[models.UserKey(2)])

	// The responder never sees a matched message.
	assert.Zero(t, h.responder.calls)
}

func TestHandleMessageBelowBanLimitNoBan(t *testing.T) {
	h := newHarness(t)
	h.seed(t, subscribedRecord("spam"))

	ctx := context.Background()
	for i := 1; i <= 2; i++ {
		require.NoError(t, h.engine.HandleMessage(ctx, message(i, "spam again")))
	}

	assert.Empty(t, h.actions.banned)
	assert.Equal(t, 2, h.record(t).Violations[models.UserKey(2)])
}

func TestHandleMessageNoMatchInvokesResponderOnce(t *testing.T) {
	h := newHarness(t)
	h.seed(t, subscribedRecord("spam"))
	h.responder.answer = "**bold answer**"

	err := h.engine.HandleMessage(context.Background(), message(1, "What Are Your Prices?"))
	require.NoError(t, err)

	// Invoked exactly once with the raw, unlowered text.
	assert.Equal(t, 1, h.responder.calls)
	assert.Equal(t, "What Are Your Prices?", h.responder.lastQuestion)

	// The answer is relayed as Telegram HTML.
	require.Len(t, h.actions.html, 1)
	assert.Contains(t, h.actions.html[0], "<b>bold answer</b>")
	assert.Empty(t, h.actions.deleted)
}

func TestHandleMessageResponderFailureApology(t *testing.T) {
	h := newHarness(t)
	h.seed(t, subscribedRecord())
	h.responder.err = errors.New("upstream exploded")

	err := h.engine.HandleMessage(context.Background(), message(1, "hello"))
	require.NoError(t, err)

	assert.Equal(t, 1, h.responder.calls)
	assert.Empty(t, h.actions.html)
	require.Len(t, h.actions.replies, 1)
	assert.Contains(t, h.actions.replies[0], "Sorry")
}

func TestHandleMessageRateLimitedSkipsResponder(t *testing.T) {
	h := newHarness(t)
	h.seed(t, subscribedRecord())
	h.limiter.allow = false

	err := h.engine.HandleMessage(context.Background(), message(1, "hello"))
	require.NoError(t, err)

	assert.Zero(t, h.responder.calls)
	require.Len(t, h.actions.replies, 1)
	assert.Contains(t, h.actions.replies[0], "too quickly")
}

func TestRegisterKeywordByAdmin(t *testing.T) {
	h := newHarness(t)
	h.seed(t, subscribedRecord())
	h.admins.members = []models.Member{{ID: 2, Handle: "alice"}}

	err := h.engine.RegisterKeyword(context.Background(), message(1, "/addspam Quảng_Cáo"), "Quảng_Cáo")
	require.NoError(t, err)

	// Lowercased at write time.
	assert.Equal(t, []string{"quảng_cáo"}, h.record(t).SpamKeywords)
	require.Len(t, h.actions.replies, 1)
	assert.Contains(t, h.actions.replies[0], "quảng_cáo")
}

func TestRegisterKeywordNonAdminRejected(t *testing.T) {
	h := newHarness(t)
	h.seed(t, subscribedRecord())
	h.admins.members = []models.Member{{ID: 99, Handle: "boss"}}

	err := h.engine.RegisterKeyword(context.Background(), message(1, "/addspam x"), "x")
	require.NoError(t, err)

	assert.Empty(t, h.record(t).SpamKeywords)
	require.Len(t, h.actions.replies, 1)
	assert.Contains(t, h.actions.replies[0], "admin")
}

func TestRegisterKeywordAdminLookupFailure(t *testing.T) {
	h := newHarness(t)
	h.seed(t, subscribedRecord())
	h.admins.err = errors.New("telegram timeout")

	err := h.engine.RegisterKeyword(context.Background(), message(1, "/addspam x"), "x")
	require.NoError(t, err)

	// Reported as transient, not as a denial, and nothing mutated.
	assert.Empty(t, h.record(t).SpamKeywords)
	require.Len(t, h.actions.replies, 1)
	assert.Contains(t, h.actions.replies[0], "try again")
}

func TestRegisterKeywordMissingArgument(t *testing.T) {
	h := newHarness(t)
	h.seed(t, subscribedRecord())
	h.admins.members = []models.Member{{ID: 2, Handle: "alice"}}

	err := h.engine.RegisterKeyword(context.Background(), message(1, "/addspam"), "   ")
	require.NoError(t, err)

	assert.Empty(t, h.record(t).SpamKeywords)
	require.Len(t, h.actions.replies, 1)
	assert.Contains(t, h.actions.replies[0], "keyword")
}

func TestRegisterKeywordUnsubscribedGroup(t *testing.T) {
	h := newHarness(t)

	err := h.engine.RegisterKeyword(context.Background(), message(1, "/addspam x"), "x")
	require.NoError(t, err)

	assert.Empty(t, h.store.GetAll(context.Background()))
	require.Len(t, h.actions.replies, 1)
	assert.Contains(t, h.actions.replies[0], "not subscribed")
}

func TestResetOwnViolations(t *testing.T) {
	h := newHarness(t)
	record := subscribedRecord()
	record.Violations[models.UserKey(2)] = 2
	h.seed(t, record)

	err := h.engine.ResetOwnViolations(context.Background(), message(1, "/resetwarnings"))
	require.NoError(t, err)

	assert.Equal(t, 0, h.record(t).Violations[models.UserKey(2)])
	require.Len(t, h.actions.replies, 1)
	assert.Contains(t, h.actions.replies[0], "reset")
}

func TestResetUserViolationsViaAdminList(t *testing.T) {
	h := newHarness(t)
	record := subscribedRecord()
	record.Violations[models.UserKey(7)] = 2
	h.seed(t, record)
	h.admins.members = []models.Member{
		{ID: 2, Handle: "alice"},
		{ID: 7, Handle: "Target"},
	}

	err := h.engine.ResetUserViolations(context.Background(), message(1, "/resetwarnings @target"), "@target")
	require.NoError(t, err)

	assert.Equal(t, 0, h.record(t).Violations[models.UserKey(7)])
	require.Len(t, h.actions.replies, 1)
	assert.Contains(t, h.actions.replies[0], "target")
}

func TestResetUserViolationsViaMemberRegistry(t *testing.T) {
	h := newHarness(t)
	record := subscribedRecord()
	record.Violations[models.UserKey(7)] = 1
	h.seed(t, record)
	h.admins.members = []models.Member{{ID: 2, Handle: "alice"}}
	h.members.Remember(testGroupID, 7, "Someone")

	err := h.engine.ResetUserViolations(context.Background(), message(1, "/resetwarnings someone"), "someone")
	require.NoError(t, err)

	assert.Equal(t, 0, h.record(t).Violations[models.UserKey(7)])
}

func TestResetUserViolationsUnknownHandle(t *testing.T) {
	h := newHarness(t)
	h.seed(t, subscribedRecord())
	h.admins.members = []models.Member{{ID: 2, Handle: "alice"}}

	err := h.engine.ResetUserViolations(context.Background(), message(1, "/resetwarnings nobody"), "nobody")
	require.NoError(t, err)

	// No phantom ledger entry for an unresolvable handle.
	assert.Empty(t, h.record(t).Violations)
	require.Len(t, h.actions.replies, 1)
	assert.Contains(t, h.actions.replies[0], "not found")
}

func TestResetUserViolationsNonAdminRejected(t *testing.T) {
	h := newHarness(t)
	record := subscribedRecord()
	record.Violations[models.UserKey(7)] = 2
	h.seed(t, record)
	h.admins.members = []models.Member{{ID: 99, Handle: "boss"}}

	err := h.engine.ResetUserViolations(context.Background(), message(1, "/resetwarnings target"), "target")
	require.NoError(t, err)

	assert.Equal(t, 2, h.record(t).Violations[models.UserKey(7)])
}

func TestGreet(t *testing.T) {
	h := newHarness(t)
	h.seed(t, subscribedRecord())

	require.NoError(t, h.engine.Greet(context.Background(), message(1, "/start")))
	require.Len(t, h.actions.replies, 1)
	assert.Contains(t, h.actions.replies[0], "anti-spam")
}

func TestGreetUnsubscribed(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.engine.Greet(context.Background(), message(1, "/start")))
	require.Len(t, h.actions.replies, 1)
	assert.Contains(t, h.actions.replies[0], "not subscribed")
}

func TestReportGroupID(t *testing.T) {
	h := newHarness(t)
	h.seed(t, subscribedRecord())

	require.NoError(t, h.engine.ReportGroupID(context.Background(), message(1, "/groupid")))
	require.Len(t, h.actions.replies, 1)
	assert.Contains(t, h.actions.replies[0], "42")
}
