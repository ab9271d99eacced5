package domain

import (
	"context"
	"errors"

	"github.com/Romeobluesky/callup-api/pkg/db/pagination"
)

// DefaultClaimCeiling bounds a single claim when no ceiling is configured.
const DefaultClaimCeiling = 1000

var (
	ErrInvalidTenant    = errors.New("invalid_tenant")
	ErrInvalidAgent     = errors.New("invalid_agent")
	ErrInvalidPool      = errors.New("invalid_pool")
	ErrInvalidCount     = errors.New("invalid_count")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrPoolNotFound     = errors.New("pool_not_found")
	ErrNoLeadsAvailable = errors.New("no_leads_available")
	ErrLeadNotFound     = errors.New("lead_not_found")
)

// ClaimRequest asks for a bounded batch of unused leads for the calling agent.
type ClaimRequest struct {
	PoolID string
	Count  int
}

// ClaimResponse returns the claimed working set. TotalAssigned counts every
// lead currently assigned to the agent in the pool, used or not.
type ClaimResponse struct {
	Leads         []Lead `json:"leads"`
	TotalAssigned int64  `json:"total_assigned"`
}

// ListLeadsRequest filters the calling agent's working set.
type ListLeadsRequest struct {
	PoolID    string
	Status    string
	Search    string
	PageToken string
	PageSize  int32
}

type ListLeadsResponse struct {
	Leads    []Lead              `json:"leads"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

// NextLeadResponse is the auto-call peek: the next unused lead assigned to
// the agent plus a "done/total" progress indicator for the pool.
type NextLeadResponse struct {
	Lead     *Lead  `json:"lead"`
	Progress string `json:"progress"`
}

type ListPoolsResponse struct {
	Pools []LeadPool `json:"pools"`
}

// Service is the lead distribution surface: the assignment claimer plus the
// read-side queries agents drive their call screens with.
type Service interface {
	Claim(ctx context.Context, req ClaimRequest) (*ClaimResponse, error)
	List(ctx context.Context, req ListLeadsRequest) (ListLeadsResponse, error)
	NextLead(ctx context.Context, poolID string) (*NextLeadResponse, error)
	ListPools(ctx context.Context) (ListPoolsResponse, error)
}
