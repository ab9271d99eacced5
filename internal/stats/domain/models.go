// Package domain contains the per-agent daily statistics accumulator.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// StatDateLayout is the canonical encoding of a statistics calendar day.
const StatDateLayout = "2006-01-02"

// Statistic accumulates one agent's call outcomes for one calendar day.
// Counters are monotonic: rows are created on the first disposition of the
// day and only ever incremented afterwards.
type Statistic struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID snowflake.ID `gorm:"not null;uniqueIndex:ux_statistics_day,priority:1" json:"tenant_id"`
	AgentID  snowflake.ID `gorm:"not null;uniqueIndex:ux_statistics_day,priority:2" json:"agent_id"`
	StatDate string       `gorm:"type:date;not null;uniqueIndex:ux_statistics_day,priority:3" json:"stat_date"`

	TotalCallCount    int64 `gorm:"not null;default:0" json:"total_call_count"`
	TotalCallDuration int64 `gorm:"not null;default:0" json:"total_call_duration"`
	SuccessCount      int64 `gorm:"not null;default:0" json:"success_count"`
	FailedCount       int64 `gorm:"not null;default:0" json:"failed_count"`
	CallbackCount     int64 `gorm:"not null;default:0" json:"callback_count"`
	NoAnswerCount     int64 `gorm:"not null;default:0" json:"no_answer_count"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (Statistic) TableName() string { return "statistics" }
