package service

import (
	"time"

	"github.com/studyshare/backend/internal/models"
)

// Badge thresholds
const (
	visitorBadgeLogins = 5
	uploaderBadgeCount = 3
	regularMemberAfter = 30 * 24 * time.Hour
)

// DeriveBadges computes the gamification labels for a user. Pure
// function of the stored counters and account age: nothing is persisted
// and the same inputs always yield the same labels. Admin overrides
// everything else.
func DeriveBadges(role models.Role, loginCount, uploadCount int, createdAt, now time.Time) []string {
	if role == models.RoleAdmin {
		return []string{"Admin"}
	}

	var badges []string
	if loginCount >= visitorBadgeLogins {
		badges = append(badges, "Regular Visitor")
	}
	if uploadCount >= uploaderBadgeCount {
		badges = append(badges, "Uploader")
	}
	if now.Sub(createdAt) > regularMemberAfter {
		badges = append(badges, "Regular Member")
	}

	if len(badges) == 0 {
		return []string{"New Member"}
	}
	return badges
}

// BadgesFor is a convenience wrapper over DeriveBadges using the clock.
func BadgesFor(user *models.User) []string {
	return DeriveBadges(user.Role, user.LoginCount, user.UploadCount, user.CreatedAt, time.Now())
}
