package moderation

import (
	"time"

	"github.com/tg-groupguard-go/internal/models"
)

const subscriptionDateLayout = "2006-01-02"

// Gate evaluates whether a group's access window is currently valid.
// Any ambiguity (missing record, malformed date) resolves to "not
// subscribed".
type Gate struct {
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewGate() *Gate {
	return &Gate{Now: time.Now}
}

// IsSubscribed reports whether the group may use the bot right now.
// The stored end date is inclusive: the group stays valid through the
// whole last day.
func (g *Gate) IsSubscribed(groupID int64, groups map[string]*models.GroupRecord) bool {
	record, ok := groups[models.GroupKey(groupID)]
	if !ok || record == nil {
		return false
	}

	end, err := time.ParseInLocation(subscriptionDateLayout, record.SubscriptionEnd, time.Local)
	if err != nil {
		return false
	}

	return g.Now().Before(end.AddDate(0, 0, 1))
}
