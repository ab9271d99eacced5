package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/Romeobluesky/callup-api/pkg/db/pagination"
)

var (
	ErrInvalidTenant         = errors.New("invalid_tenant")
	ErrInvalidLead           = errors.New("invalid_lead")
	ErrInvalidResultCode     = errors.New("invalid_result_code")
	ErrInvalidCallWindow     = errors.New("invalid_call_window")
	ErrInvalidDuration       = errors.New("invalid_duration")
	ErrInvalidIdempotencyKey = errors.New("invalid_idempotency_key")
	ErrLeadNotFound          = errors.New("lead_not_found")
	ErrLeadAlreadyUsed       = errors.New("lead_already_used")
	ErrDuplicateDisposition  = errors.New("duplicate_disposition")
)

// RecordRequest captures one call outcome for a lead.
type RecordRequest struct {
	LeadID         string
	ResultCode     string
	SubResult      string
	Note           string
	CallStart      time.Time
	CallEnd        time.Time
	Duration       int64
	FollowUpAt     *time.Time
	IdempotencyKey string
}

type RecordResponse struct {
	DispositionID snowflake.ID `json:"disposition_id"`
}

// ListRequest filters the tenant's disposition history.
type ListRequest struct {
	AgentID   string
	LeadID    string
	From      *time.Time
	To        *time.Time
	PageToken string
	PageSize  int32
}

type ListResponse struct {
	Dispositions []Disposition       `json:"dispositions"`
	PageInfo     pagination.PageInfo `json:"page_info"`
}

// Service is the disposition recorder: the only writer of lead status, pool
// counters, and statistics.
type Service interface {
	Record(ctx context.Context, req RecordRequest) (*RecordResponse, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}
