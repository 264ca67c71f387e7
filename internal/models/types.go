package models

import (
	"strconv"
)

// GroupRecord is the persisted policy and violation state for one group.
// Records are written back whole: the store has no field-level update
// primitive, so every mutation rewrites the full collection.
type GroupRecord struct {
	SpamKeywords    []string       `json:"spam_keywords"`
	Violations      map[string]int `json:"violations"`
	BanLimit        int            `json:"ban_limit"`
	SubscriptionEnd string         `json:"subscription_end"` // YYYY-MM-DD, inclusive
}

// DefaultBanLimit is applied when a record is created lazily.
const DefaultBanLimit = 3

// NewGroupRecord creates a record with default policy state.
func NewGroupRecord(subscriptionEnd string) *GroupRecord {
	return &GroupRecord{
		SpamKeywords:    []string{},
		Violations:      map[string]int{},
		BanLimit:        DefaultBanLimit,
		SubscriptionEnd: subscriptionEnd,
	}
}

// GroupKey converts a numeric group id to its record key.
func GroupKey(groupID int64) string {
	return strconv.FormatInt(groupID, 10)
}

// UserKey converts a numeric user id to its violations map key.
func UserKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// InboundMessage is one group message as seen by the moderation engine.
type InboundMessage struct {
	GroupID   int64
	MessageID int
	UserID    int64
	Username  string
	Text      string
}

// Member is one resolved chat member, used for admin checks and
// handle-to-id resolution.
type Member struct {
	ID     int64
	Handle string
}
