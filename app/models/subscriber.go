package models

import "time"

// Subscriber mirrors the billing-derived state for one correlation key
// (the Telegram user linked to a provider subscription). The row is a
// reporting/debugging mirror; group membership plus the provider's billing
// events stay authoritative.
type Subscriber struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	CorrelationKey string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"correlation_key"`
	Status         string     `gorm:"type:varchar(32);not null;default:'unknown';index" json:"status"`
	PlanRef        string     `gorm:"type:varchar(191);not null;default:''" json:"plan_ref"`
	LastEventType  string     `gorm:"type:varchar(50);not null;default:''" json:"last_event_type"`
	LastEventAt    *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
