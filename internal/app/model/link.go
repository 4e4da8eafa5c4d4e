package model

import (
	"math"
	"time"
)

// Link describes a tokenized short link and the gates that guard it.
type Link struct {
	ID           string     `db:"id" gorm:"primaryKey;size:36"`
	Token        string     `db:"token" gorm:"uniqueIndex;size:32;not null"`
	OwnerID      string     `db:"owner_id" gorm:"index;size:64;not null"`
	TargetURL    string     `db:"target_url" gorm:"type:text;not null"`
	Label        *string    `db:"label" gorm:"type:text"`
	IsActive     bool       `db:"is_active" gorm:"not null"`
	ExpiresAt    *time.Time `db:"expires_at"`
	MaxClicks    *int       `db:"max_clicks"`
	ClickCount   int        `db:"click_count" gorm:"not null;default:0"`
	PasswordHash *string    `db:"password_hash" gorm:"size:255"`
	RevealAt     *time.Time `db:"reveal_at"`
	DelaySeconds *int       `db:"delay_seconds"`
	CreatedAt    time.Time  `db:"created_at" gorm:"autoCreateTime"`
}

// HasPassword reports whether resolving the link requires a secret.
func (l *Link) HasPassword() bool {
	return l.PasswordHash != nil && *l.PasswordHash != ""
}

// MaxDelaySeconds is the longest delay representable as a time.Duration.
const MaxDelaySeconds = int64(math.MaxInt64 / int64(time.Second))

// DelayedUntil returns created_at + delay_seconds when a delay is configured. Delays past
// MaxDelaySeconds saturate instead of wrapping into the past.
func (l *Link) DelayedUntil() (time.Time, bool) {
	if l.DelaySeconds == nil {
		return time.Time{}, false
	}
	delay := time.Duration(math.MaxInt64)
	if secs := int64(*l.DelaySeconds); secs <= MaxDelaySeconds {
		delay = time.Duration(secs) * time.Second
	}
	return l.CreatedAt.Add(delay), true
}

// Models lists every persisted type, in migration order.
func Models() []any {
	return []any{&Link{}, &LinkEvent{}}
}
