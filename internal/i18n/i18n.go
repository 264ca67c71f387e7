package i18n

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/tg-groupguard-go/internal/config"
)

// Message IDs
const (
	MsgWelcome           = "welcome"
	MsgNotSubscribed     = "not_subscribed"
	MsgGroupID           = "group_id"
	MsgKeywordAdded      = "keyword_added"
	MsgKeywordMissing    = "keyword_missing"
	MsgAdminOnly         = "admin_only"
	MsgTryAgainLater     = "try_again_later"
	MsgWarnViolation     = "warn_violation"
	MsgBanNotice         = "ban_notice"
	MsgWarningsReset     = "warnings_reset"
	MsgUserWarningsReset = "user_warnings_reset"
	MsgUserNotFound      = "user_not_found"
	MsgResponderError    = "responder_error"
	MsgRateLimited       = "rate_limited"
)

// Localizer manages the reply catalog. Defaults for every message are
// built in (en, vi); JSON files in the configured directory override
// them.
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.Vietnamese)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	registerDefaults(bundle)

	if cfg.Directory != "" {
		entries, err := os.ReadDir(cfg.Directory)
		if err != nil {
			return nil, fmt.Errorf("failed to read i18n directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}
			if _, err := bundle.LoadMessageFile(filepath.Join(cfg.Directory, entry.Name())); err != nil {
				return nil, fmt.Errorf("failed to load language file %s: %w", entry.Name(), err)
			}
		}
	}

	localizers := map[string]*i18n.Localizer{
		"en": i18n.NewLocalizer(bundle, "en"),
		"vi": i18n.NewLocalizer(bundle, "vi"),
	}

	defaultLanguage := cfg.DefaultLanguage
	if _, ok := localizers[defaultLanguage]; !ok {
		defaultLanguage = "vi"
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: defaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns the localized message in the configured default language.
func (l *Localizer) Get(messageID string, data map[string]interface{}) string {
	return l.GetLang(l.defaultLanguage, messageID, data)
}

// GetLang returns the localized message for an explicit language.
func (l *Localizer) GetLang(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

func registerDefaults(bundle *i18n.Bundle) {
	bundle.AddMessages(language.English,
		&i18n.Message{ID: MsgWelcome, Other: "Hello! I am the anti-spam and support bot. Ask me about the shop, prices or products!"},
		&i18n.Message{ID: MsgNotSubscribed, Other: "This group has not subscribed to the bot. Contact the admin to rent it!"},
		&i18n.Message{ID: MsgGroupID, Other: "The ID of this group is: {{.GroupID}}"},
		&i18n.Message{ID: MsgKeywordAdded, Other: "Added keyword '{{.Keyword}}' to the denylist."},
		&i18n.Message{ID: MsgKeywordMissing, Other: "Please provide a keyword! Example: /addspam advertising"},
		&i18n.Message{ID: MsgAdminOnly, Other: "Only group admins can use this command!"},
		&i18n.Message{ID: MsgTryAgainLater, Other: "Something went wrong, please try again later!"},
		&i18n.Message{ID: MsgWarnViolation, Other: "@{{.Username}} sent a message containing a banned keyword ('{{.Keyword}}'). Violation {{.Count}}."},
		&i18n.Message{ID: MsgBanNotice, Other: "@{{.Username}} has been banned for {{.Limit}} violations."},
		&i18n.Message{ID: MsgWarningsReset, Other: "Your warnings have been reset."},
		&i18n.Message{ID: MsgUserWarningsReset, Other: "Warnings for @{{.Username}} have been reset."},
		&i18n.Message{ID: MsgUserNotFound, Other: "User not found in this group."},
		&i18n.Message{ID: MsgResponderError, Other: "Sorry, I ran into an error. Please try again!"},
		&i18n.Message{ID: MsgRateLimited, Other: "You are sending requests too quickly, please slow down."},
	)

	bundle.AddMessages(language.Vietnamese,
		&i18n.Message{ID: MsgWelcome, Other: "Chào! Tôi là bot chống spam và hỗ trợ khách hàng. Hỏi tôi về cửa hàng, giá, sản phẩm nhé!"},
		&i18n.Message{ID: MsgNotSubscribed, Other: "Group này chưa đăng ký sử dụng bot. Liên hệ admin để thuê!"},
		&i18n.Message{ID: MsgGroupID, Other: "ID của group này là: {{.GroupID}}"},
		&i18n.Message{ID: MsgKeywordAdded, Other: "Đã thêm từ khóa '{{.Keyword}}' vào danh sách cấm."},
		&i18n.Message{ID: MsgKeywordMissing, Other: "Vui lòng cung cấp từ khóa! Ví dụ: /addspam quảng_cáo"},
		&i18n.Message{ID: MsgAdminOnly, Other: "Chỉ admin group được dùng lệnh này!"},
		&i18n.Message{ID: MsgTryAgainLater, Other: "Có lỗi xảy ra, vui lòng thử lại sau!"},
		&i18n.Message{ID: MsgWarnViolation, Other: "@{{.Username}} gửi tin nhắn chứa từ khóa cấm ('{{.Keyword}}'). Vi phạm lần {{.Count}}."},
		&i18n.Message{ID: MsgBanNotice, Other: "@{{.Username}} đã bị cấm vì vi phạm {{.Limit}} lần."},
		&i18n.Message{ID: MsgWarningsReset, Other: "Cảnh báo của bạn đã được xóa."},
		&i18n.Message{ID: MsgUserWarningsReset, Other: "Đã xóa cảnh báo của @{{.Username}}."},
		&i18n.Message{ID: MsgUserNotFound, Other: "Không tìm thấy người dùng trong group này."},
		&i18n.Message{ID: MsgResponderError, Other: "Xin lỗi, tôi gặp lỗi. Thử lại nhé!"},
		&i18n.Message{ID: MsgRateLimited, Other: "Bạn gửi yêu cầu quá nhanh, vui lòng chậm lại."},
	)
}
