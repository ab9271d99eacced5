package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Period selects the date range of a statistics read.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

var (
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidAgent  = errors.New("invalid_agent")
	ErrInvalidPeriod = errors.New("invalid_period")
)

// ParsePeriod validates a period string, defaulting empty to today.
func ParsePeriod(raw string) (Period, error) {
	switch Period(raw) {
	case "":
		return PeriodToday, nil
	case PeriodToday, PeriodWeek, PeriodMonth, PeriodAll:
		return Period(raw), nil
	default:
		return "", ErrInvalidPeriod
	}
}

// Delta is the statistics contribution of one recorded disposition.
type Delta struct {
	TenantID snowflake.ID
	AgentID  snowflake.ID
	StatDate string
	Duration int64
	Category string
}

// Writer applies deltas inside the caller's transaction. Only the
// disposition recorder holds a Writer.
type Writer interface {
	ApplyTx(ctx context.Context, tx *gorm.DB, delta Delta) error
}

// GetRequest asks for aggregated counters. AgentID empty means the whole
// tenant (admin dashboards); agents query themselves.
type GetRequest struct {
	AgentID string
	Period  Period
	Now     time.Time
}

// Summary is the aggregation over all Statistic rows in the period. Zero
// matching rows yield zeroed counters, not an error.
type Summary struct {
	Period            Period `json:"period"`
	TotalCallCount    int64  `json:"total_call_count"`
	TotalCallDuration int64  `json:"total_call_duration"`
	SuccessCount      int64  `json:"success_count"`
	FailedCount       int64  `json:"failed_count"`
	CallbackCount     int64  `json:"callback_count"`
	NoAnswerCount     int64  `json:"no_answer_count"`
}

// Service is the read-only statistics surface.
type Service interface {
	Get(ctx context.Context, req GetRequest) (Summary, error)
}
