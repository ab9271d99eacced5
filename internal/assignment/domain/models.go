// Package domain contains administrator bulk assignment of pool leads.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidTenant    = errors.New("invalid_tenant")
	ErrInvalidPool      = errors.New("invalid_pool")
	ErrInvalidAgent     = errors.New("invalid_agent")
	ErrInvalidCount     = errors.New("invalid_count")
	ErrPoolNotFound     = errors.New("pool_not_found")
	ErrNoLeadsAvailable = errors.New("no_leads_available")
	ErrForbidden        = errors.New("forbidden")
	ErrEmptyAssignments = errors.New("empty_assignments")
)

// Assignment records how many leads of a pool an administrator handed to
// one agent. Repeated assignments accumulate.
type Assignment struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID `gorm:"not null;uniqueIndex:ux_assignments_pool_agent,priority:1" json:"tenant_id"`
	PoolID        snowflake.ID `gorm:"not null;uniqueIndex:ux_assignments_pool_agent,priority:2" json:"pool_id"`
	AgentID       snowflake.ID `gorm:"not null;uniqueIndex:ux_assignments_pool_agent,priority:3" json:"agent_id"`
	AssignedCount int64        `gorm:"not null;default:0" json:"assigned_count"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Assignment) TableName() string { return "assignments" }

// Grant asks for count unassigned leads to be stamped onto one agent.
type Grant struct {
	AgentID string `json:"agent_id"`
	Count   int    `json:"count"`
}

// BulkRequest distributes leads of one pool across several agents.
type BulkRequest struct {
	PoolID string  `json:"pool_id"`
	Grants []Grant `json:"assignments"`
}

// GrantResult reports how many leads each agent actually received; short
// pools grant fewer than requested.
type GrantResult struct {
	AgentID  snowflake.ID `json:"agent_id"`
	Assigned int          `json:"assigned"`
}

type BulkResponse struct {
	Results []GrantResult `json:"results"`
}

// Service is the administrator-only bulk assigner.
type Service interface {
	Assign(ctx context.Context, req BulkRequest) (*BulkResponse, error)
}
