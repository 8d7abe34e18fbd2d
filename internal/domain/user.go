package domain

import "time"

// User represents a platform account.
type User struct {
	ID                 int64
	Email              string
	PasswordHash       string
	SubscriptionTier   string
	DailyDigestEnabled bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
