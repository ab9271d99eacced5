package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Romeobluesky/callup-api/internal/clock"
	statsdomain "github.com/Romeobluesky/callup-api/internal/stats/domain"
	"github.com/Romeobluesky/callup-api/internal/tenantcontext"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p ServiceParam) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("stats.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// NewWriter exposes the service under its writer interface.
func NewWriter(s *Service) statsdomain.Writer { return s }

// NewReader exposes the service under its read interface.
func NewReader(s *Service) statsdomain.Service { return s }

// ApplyTx upserts the day's Statistic row inside the caller's transaction.
// The insert carries this disposition's contribution; on conflict the
// existing counters absorb it. Both branches are monotonic increments, so
// concurrent recorders for the same agent serialize on the unique row
// without lost updates.
func (s *Service) ApplyTx(ctx context.Context, tx *gorm.DB, delta statsdomain.Delta) error {
	if tx == nil {
		tx = s.db
	}

	success, failed, callback, noAnswer := categoryColumns(delta.Category)
	now := s.clock.Now()

	return tx.WithContext(ctx).Exec(
		`INSERT INTO statistics (
			id, tenant_id, agent_id, stat_date,
			total_call_count, total_call_duration,
			success_count, failed_count, callback_count, no_answer_count,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, agent_id, stat_date) DO UPDATE SET
			total_call_count = statistics.total_call_count + 1,
			total_call_duration = statistics.total_call_duration + excluded.total_call_duration,
			success_count = statistics.success_count + excluded.success_count,
			failed_count = statistics.failed_count + excluded.failed_count,
			callback_count = statistics.callback_count + excluded.callback_count,
			no_answer_count = statistics.no_answer_count + excluded.no_answer_count,
			updated_at = excluded.updated_at`,
		s.genID.Generate(),
		delta.TenantID,
		delta.AgentID,
		delta.StatDate,
		delta.Duration,
		success,
		failed,
		callback,
		noAnswer,
		now,
		now,
	).Error
}

func (s *Service) Get(ctx context.Context, req statsdomain.GetRequest) (statsdomain.Summary, error) {
	principal, ok := tenantcontext.PrincipalFromContext(ctx)
	if !ok {
		return statsdomain.Summary{}, statsdomain.ErrInvalidTenant
	}

	period, err := statsdomain.ParsePeriod(string(req.Period))
	if err != nil {
		return statsdomain.Summary{}, err
	}

	now := req.Now
	if now.IsZero() {
		now = s.clock.Now()
	}

	query := s.db.WithContext(ctx).
		Model(&statsdomain.Statistic{}).
		Where("tenant_id = ?", principal.TenantID)

	if agent := strings.TrimSpace(req.AgentID); agent != "" {
		agentID, err := snowflake.ParseString(agent)
		if err != nil || agentID == 0 {
			return statsdomain.Summary{}, statsdomain.ErrInvalidAgent
		}
		query = query.Where("agent_id = ?", agentID)
	}

	if start, end, bounded := periodRange(period, now); bounded {
		query = query.Where("stat_date >= ? AND stat_date <= ?", start, end)
	}

	var row struct {
		TotalCallCount    int64
		TotalCallDuration int64
		SuccessCount      int64
		FailedCount       int64
		CallbackCount     int64
		NoAnswerCount     int64
	}
	err = query.Select(
		`COALESCE(SUM(total_call_count), 0) AS total_call_count,
		 COALESCE(SUM(total_call_duration), 0) AS total_call_duration,
		 COALESCE(SUM(success_count), 0) AS success_count,
		 COALESCE(SUM(failed_count), 0) AS failed_count,
		 COALESCE(SUM(callback_count), 0) AS callback_count,
		 COALESCE(SUM(no_answer_count), 0) AS no_answer_count`,
	).Scan(&row).Error
	if err != nil {
		return statsdomain.Summary{}, err
	}

	return statsdomain.Summary{
		Period:            period,
		TotalCallCount:    row.TotalCallCount,
		TotalCallDuration: row.TotalCallDuration,
		SuccessCount:      row.SuccessCount,
		FailedCount:       row.FailedCount,
		CallbackCount:     row.CallbackCount,
		NoAnswerCount:     row.NoAnswerCount,
	}, nil
}

// periodRange resolves a period to inclusive stat_date bounds. Weeks start
// Monday; bounded is false for the all-time period.
func periodRange(period statsdomain.Period, now time.Time) (string, string, bool) {
	today := now.Format(statsdomain.StatDateLayout)
	switch period {
	case statsdomain.PeriodToday:
		return today, today, true
	case statsdomain.PeriodWeek:
		offset := (int(now.Weekday()) + 6) % 7
		start := now.AddDate(0, 0, -offset)
		return start.Format(statsdomain.StatDateLayout), today, true
	case statsdomain.PeriodMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start.Format(statsdomain.StatDateLayout), today, true
	default:
		return "", "", false
	}
}

func categoryColumns(category string) (success, failed, callback, noAnswer int64) {
	switch category {
	case "success":
		success = 1
	case "failed":
		failed = 1
	case "callback":
		callback = 1
	case "no_answer":
		noAnswer = 1
	}
	return
}
