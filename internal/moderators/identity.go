// Package moderators manages the moderator accounts allowed to use the
// annotation service and verifies their login credentials.
package moderators

import (
	"strings"
	"time"
)

// Identity is one moderator account. Name is the acting-moderator identity
// recorded on every note and revision.
type Identity struct {
	Name         string    `gorm:"column:name;primaryKey;size:190;not null"`
	CredentialID string    `gorm:"column:credential_id;size:190;not null"`
	PasswordHash string    `gorm:"column:password_hash;size:190;not null"`
	DisplayName  string    `gorm:"column:display_name;size:320"`
	LastSeenAt   time.Time `gorm:"column:last_seen_at;autoUpdateTime"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing moderator identities.
func (Identity) TableName() string {
	return "moderator_identities"
}

// normalize trims surrounding whitespace. Account names additionally fold
// to lower case so logins are case-insensitive.
func normalize(value string) string {
	return strings.TrimSpace(value)
}

func normalizeName(value string) string {
	return strings.ToLower(normalize(value))
}
