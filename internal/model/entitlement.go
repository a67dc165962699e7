package model

import "time"

// Source records which path confirmed a payment.
type Source string

const (
	SourceWebhook      Source = "webhook"
	SourceDirectVerify Source = "direct-verify"
	SourceDiagnostic   Source = "diag"
)

// Record asserts that a visit token paid for one content item. Only positive
// facts are ever stored: a missing record means "not entitled".
type Record struct {
	Paid        bool      `json:"paid"`
	ConfirmedAt time.Time `json:"confirmedAt"`
	SessionID   string    `json:"sessionId,omitempty"`
	Source      Source    `json:"source"`
}

func NewRecord(source Source, sessionID string, now time.Time) *Record {
	return &Record{
		Paid:        true,
		ConfirmedAt: now.UTC(),
		SessionID:   sessionID,
		Source:      source,
	}
}

// EntitlementRecord is the SQL row behind the gorm entitlement store.
type EntitlementRecord struct {
	StoreKey    string    `gorm:"primaryKey;size:320;not null"` // entitlement:<item>:<token>
	Paid        bool      `gorm:"not null"`
	ConfirmedAt time.Time `gorm:"not null"`
	SessionID   string    `gorm:"size:255"`
	Source      string    `gorm:"size:32;not null"`
	ExpiresAt   time.Time `gorm:"index;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r *EntitlementRecord) ToRecord() *Record {
	return &Record{
		Paid:        r.Paid,
		ConfirmedAt: r.ConfirmedAt,
		SessionID:   r.SessionID,
		Source:      Source(r.Source),
	}
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;uniqueIndex;not null"`
	EventType   string `gorm:"size:64;index"`
	SessionID   string `gorm:"size:255;index"`
	Token       string `gorm:"size:128"`
	ItemKey     string `gorm:"size:128"`
	Outcome     string `gorm:"size:32;not null"` // granted, ignored, unpaid, no_reference, invalid, failed
	Deliveries  int32  `gorm:"not null;default:1"`
	ProcessedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
