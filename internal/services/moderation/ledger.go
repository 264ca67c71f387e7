package moderation

import (
	"github.com/tg-groupguard-go/internal/models"
)

// The violation ledger is a view over a record's violations map. These
// two functions are the only mutation primitives; persisting the record
// afterwards is the caller's responsibility.

// IncrementViolation adds one to the user's violation count (starting
// from 0 if absent) and returns the new value.
func IncrementViolation(record *models.GroupRecord, userID int64) int {
	if record.Violations == nil {
		record.Violations = map[string]int{}
	}
	key := models.UserKey(userID)
	record.Violations[key]++
	return record.Violations[key]
}

// ResetViolations sets the user's count to exactly 0, creating the
// entry if absent.
func ResetViolations(record *models.GroupRecord, userID int64) {
	if record.Violations == nil {
		record.Violations = map[string]int{}
	}
	record.Violations[models.UserKey(userID)] = 0
}
