package model

import "time"

// LinkEventType enumerates lifecycle transitions that are published and audited.
type LinkEventType string

const (
	LinkEventCreated  LinkEventType = "created"
	LinkEventDisabled LinkEventType = "disabled"
)

// LinkEvent is an audit record of a link lifecycle transition.
type LinkEvent struct {
	ID         string        `json:"id" gorm:"primaryKey;size:36"`
	LinkID     string        `json:"link_id" gorm:"index;size:36;not null"`
	Token      string        `json:"token" gorm:"size:32;not null"`
	OwnerID    string        `json:"owner_id" gorm:"size:64;not null"`
	Type       LinkEventType `json:"type" gorm:"size:16;not null"`
	OccurredAt time.Time     `json:"occurred_at" gorm:"index;not null"`
}

const (
	LinkEventStreamName     = "LINK_EVENTS"
	LinkEventStreamSubjects = "links.events.>"
	LinkEventSubjectPrefix  = "links.events."
	LinkEventConsumerName   = "link-auditor"
	LinkEventStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)

// Subject returns the JetStream subject an event of this type is published on.
func (t LinkEventType) Subject() string {
	return LinkEventSubjectPrefix + string(t)
}
