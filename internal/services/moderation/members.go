package moderation

import (
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemberRegistry remembers which handle belongs to which user id per
// group, fed from every processed message. Handle lookups for the
// reset-by-handle command scan the live administrator list first and
// fall back to this registry for ordinary members.
type MemberRegistry struct {
	seen *cache.Cache
}

// NewMemberRegistry creates a registry whose entries expire after ttl.
func NewMemberRegistry(ttl time.Duration) *MemberRegistry {
	return &MemberRegistry{
		seen: cache.New(ttl, 30*time.Minute),
	}
}

// Remember records that handle maps to userID within the group.
func (m *MemberRegistry) Remember(groupID int64, userID int64, handle string) {
	if handle == "" {
		return
	}
	m.seen.SetDefault(memberKey(groupID, handle), userID)
}

// Resolve returns the user id last seen for the handle in the group.
// Matching is case-insensitive.
func (m *MemberRegistry) Resolve(groupID int64, handle string) (int64, bool) {
	val, found := m.seen.Get(memberKey(groupID, handle))
	if !found {
		return 0, false
	}
	return val.(int64), true
}

func memberKey(groupID int64, handle string) string {
	return fmt.Sprintf("%d:%s", groupID, strings.ToLower(handle))
}
