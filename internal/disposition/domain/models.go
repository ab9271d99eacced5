// Package domain contains the disposition record and result classification.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ResultCategory is the statistics bucket a call result counts toward,
// fixed at creation time. A disposition always counts toward the total;
// CategoryNone counts toward no individual bucket.
type ResultCategory string

const (
	CategorySuccess  ResultCategory = "success"
	CategoryFailed   ResultCategory = "failed"
	CategoryCallback ResultCategory = "callback"
	CategoryNoAnswer ResultCategory = "no_answer"
	CategoryNone     ResultCategory = "none"
)

// Disposition is the immutable record of one completed call attempt.
// Append-only: never updated or deleted by this service.
type Disposition struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_dispositions_tenant_idem,priority:1" json:"tenant_id"`
	LeadID   snowflake.ID `gorm:"not null;index" json:"lead_id"`
	PoolID   snowflake.ID `gorm:"not null;index" json:"pool_id"`
	AgentID  snowflake.ID `gorm:"not null;index" json:"agent_id"`

	ResultCode     string         `gorm:"type:text;not null" json:"result_code"`
	ResultCategory ResultCategory `gorm:"type:text;not null" json:"result_category"`
	SubResult      string         `gorm:"type:text" json:"sub_result,omitempty"`
	Note           string         `gorm:"type:text" json:"note,omitempty"`

	CallStart    time.Time  `gorm:"not null" json:"call_start"`
	CallEnd      time.Time  `gorm:"not null" json:"call_end"`
	CallDuration int64      `gorm:"not null" json:"call_duration"`
	FollowUpAt   *time.Time `gorm:"" json:"follow_up_at,omitempty"`

	// Client-supplied idempotency key; unique per tenant when present.
	IdempotencyKey *string `gorm:"type:text;uniqueIndex:ux_dispositions_tenant_idem,priority:2" json:"idempotency_key,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Disposition) TableName() string { return "dispositions" }
