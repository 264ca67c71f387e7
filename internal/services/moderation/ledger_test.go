package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tg-groupguard-go/internal/models"
)

func TestIncrementViolationFromZero(t *testing.T) {
	record := models.NewGroupRecord("2025-12-31")

	assert.Equal(t, 1, IncrementViolation(record, 100))
	assert.Equal(t, 2, IncrementViolation(record, 100))
	assert.Equal(t, 1, IncrementViolation(record, 200))
}

func TestIncrementViolationNilMap(t *testing.T) {
	record := &models.GroupRecord{BanLimit: 3, SubscriptionEnd: "2025-12-31"}

	assert.Equal(t, 1, IncrementViolation(record, 100))
	assert.Equal(t, 1, record.Violations[models.UserKey(100)])
}

func TestResetViolations(t *testing.T) {
	record := models.NewGroupRecord("2025-12-31")
	IncrementViolation(record, 100)
	IncrementViolation(record, 100)

	ResetViolations(record, 100)
	assert.Equal(t, 0, record.Violations[models.UserKey(100)])
}

func TestResetViolationsUnknownUserCreatesZeroEntry(t *testing.T) {
	record := models.NewGroupRecord("2025-12-31")

	ResetViolations(record, 999)

	count, exists := record.Violations[models.UserKey(999)]
	assert.True(t, exists)
	assert.Equal(t, 0, count)
}
