// Package domain contains persistence models for leads and lead pools.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	LeadStatusUnused = "unused"
	LeadStatusUsed   = "used"
)

// Lead is one prospective customer contact. Created in bulk by the ingestion
// collaborator, claimed by agents, transitioned to used by the disposition
// recorder. Never deleted here.
type Lead struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	PoolID   snowflake.ID `gorm:"not null;index:ix_leads_pool_status,priority:1" json:"pool_id"`

	AssignedAgentID *snowflake.ID `gorm:"index" json:"assigned_agent_id,omitempty"`
	Status          string        `gorm:"type:text;not null;default:unused;index:ix_leads_pool_status,priority:2" json:"status"`

	Name  string            `gorm:"type:text;not null" json:"name"`
	Phone string            `gorm:"type:text;not null" json:"phone"`
	Info  datatypes.JSONMap `gorm:"type:jsonb" json:"info"`

	// Mirror of the most recent disposition, for display only. The
	// dispositions table remains the source of truth.
	LastResultCode     string     `gorm:"type:text" json:"last_result_code,omitempty"`
	LastResultCategory string     `gorm:"type:text" json:"last_result_category,omitempty"`
	LastNote           string     `gorm:"type:text" json:"last_note,omitempty"`
	LastCallStart      *time.Time `gorm:"" json:"last_call_start,omitempty"`
	LastCallEnd        *time.Time `gorm:"" json:"last_call_end,omitempty"`
	LastCallDuration   int64      `gorm:"not null;default:0" json:"last_call_duration"`
	FollowUpAt         *time.Time `gorm:"" json:"follow_up_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Lead) TableName() string { return "leads" }

// LeadPool is one ingested batch of leads, scoped to a tenant. The counters
// are maintained incrementally by the disposition recorder; no other code
// path writes them.
type LeadPool struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID snowflake.ID `gorm:"not null;index" json:"tenant_id"`

	Title       string `gorm:"type:text;not null" json:"title"`
	TotalCount  int64  `gorm:"not null;default:0" json:"total_count"`
	UnusedCount int64  `gorm:"not null;default:0" json:"unused_count"`
	IsActive    bool   `gorm:"not null;default:true" json:"is_active"`

	IngestedAt time.Time `gorm:"not null" json:"ingested_at"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (LeadPool) TableName() string { return "lead_pools" }
