package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Romeobluesky/callup-api/internal/clock"
	dispositiondomain "github.com/Romeobluesky/callup-api/internal/disposition/domain"
	"github.com/Romeobluesky/callup-api/internal/events"
	leaddomain "github.com/Romeobluesky/callup-api/internal/lead/domain"
	"github.com/Romeobluesky/callup-api/internal/observability/metrics"
	statsdomain "github.com/Romeobluesky/callup-api/internal/stats/domain"
	"github.com/Romeobluesky/callup-api/internal/tenantcontext"
	"github.com/Romeobluesky/callup-api/pkg/db/option"
	"github.com/Romeobluesky/callup-api/pkg/db/pagination"
)

// Config tunes the disposition recorder.
type Config struct {
	// DedupWindow rejects keyless resubmissions against a lead disposed
	// this recently.
	DedupWindow time.Duration
	// Strict rejects any disposition for a lead that is already used.
	Strict bool
}

func (c Config) withDefaults() Config {
	if c.DedupWindow <= 0 {
		c.DedupWindow = 5 * time.Second
	}
	return c
}

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Stats      statsdomain.Writer
	Outbox     *events.Outbox
	Classifier dispositiondomain.Classifier
	Metrics    *metrics.CallMetrics `optional:"true"`
	Config     Config               `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	stats      statsdomain.Writer
	outbox     *events.Outbox
	classifier dispositiondomain.Classifier
	metrics    *metrics.CallMetrics
	cfg        Config
}

func NewService(p ServiceParam) dispositiondomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("disposition.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		stats:      p.Stats,
		outbox:     p.Outbox,
		classifier: p.Classifier,
		metrics:    p.Metrics,
		cfg:        p.Config.withDefaults(),
	}
}

// Record writes one call outcome as a single transaction: the immutable
// disposition row, the lead mirror, the pool counter, the daily statistic,
// and the outbox event all commit together or not at all.
func (s *Service) Record(ctx context.Context, req dispositiondomain.RecordRequest) (*dispositiondomain.RecordResponse, error) {
	principal, ok := tenantcontext.PrincipalFromContext(ctx)
	if !ok {
		return nil, dispositiondomain.ErrInvalidTenant
	}
	leadID, err := parseID(req.LeadID, dispositiondomain.ErrInvalidLead)
	if err != nil {
		return nil, err
	}
	if err := validateRecord(req); err != nil {
		return nil, err
	}
	idempotencyKey, err := normalizeIdempotencyKey(req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	category := s.classifier.Classify(req.ResultCode)
	now := s.clock.Now()

	record := &dispositiondomain.Disposition{
		ID:             s.genID.Generate(),
		TenantID:       principal.TenantID,
		LeadID:         leadID,
		AgentID:        principal.AgentID,
		ResultCode:     strings.TrimSpace(req.ResultCode),
		ResultCategory: category,
		SubResult:      strings.TrimSpace(req.SubResult),
		Note:           req.Note,
		CallStart:      req.CallStart,
		CallEnd:        req.CallEnd,
		CallDuration:   req.Duration,
		FollowUpAt:     req.FollowUpAt,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lead, err := s.lockLead(ctx, tx, principal.TenantID, leadID)
		if err != nil {
			return err
		}
		if lead == nil {
			return dispositiondomain.ErrLeadNotFound
		}
		record.PoolID = lead.PoolID

		wasUsed := lead.Status == leaddomain.LeadStatusUsed
		if wasUsed && s.cfg.Strict {
			return dispositiondomain.ErrLeadAlreadyUsed
		}
		if err := s.checkDuplicate(ctx, tx, principal.TenantID, lead, idempotencyKey, wasUsed, now); err != nil {
			return err
		}

		if err := tx.WithContext(ctx).Create(record).Error; err != nil {
			if isUniqueViolation(err) {
				return dispositiondomain.ErrDuplicateDisposition
			}
			return err
		}

		if err := s.mirrorOntoLead(ctx, tx, lead.ID, record, now); err != nil {
			return err
		}

		if err := s.decrementPool(ctx, tx, lead, wasUsed, now); err != nil {
			return err
		}

		if err := s.stats.ApplyTx(ctx, tx, statsdomain.Delta{
			TenantID: principal.TenantID,
			AgentID:  principal.AgentID,
			StatDate: now.Format(statsdomain.StatDateLayout),
			Duration: record.CallDuration,
			Category: string(category),
		}); err != nil {
			return err
		}

		return s.outbox.PublishTx(ctx, tx, events.Event{
			TenantID: principal.TenantID,
			Type:     events.EventCallDisposed,
			Payload: events.CallDisposedPayload{
				DispositionID:  record.ID.String(),
				LeadID:         lead.ID.String(),
				PoolID:         lead.PoolID.String(),
				AgentID:        principal.AgentID.String(),
				ResultCategory: string(category),
			}.ToMap(),
			DedupeKey: "call.disposed:" + record.ID.String(),
		})
	})
	if err != nil {
		if err == dispositiondomain.ErrDuplicateDisposition && s.metrics != nil {
			s.metrics.IncDuplicateRejected()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncDisposition(string(category))
	}
	s.log.Info("disposition recorded",
		zap.String("tenant_id", principal.TenantID.String()),
		zap.String("agent_id", principal.AgentID.String()),
		zap.String("lead_id", leadID.String()),
		zap.String("category", string(category)),
	)

	return &dispositiondomain.RecordResponse{DispositionID: record.ID}, nil
}

// lockLead reads the lead under a row lock so the status check, the mirror
// update, and the counter decrement act on one consistent row. Returns nil
// when the lead does not exist for this tenant.
func (s *Service) lockLead(ctx context.Context, tx *gorm.DB, tenantID, leadID snowflake.ID) (*leaddomain.Lead, error) {
	query := `SELECT * FROM leads WHERE id = ? AND tenant_id = ?`
	if tx.Dialector.Name() == "postgres" {
		query += " FOR UPDATE"
	}

	var lead leaddomain.Lead
	err := tx.WithContext(ctx).Raw(query, leadID, tenantID).Scan(&lead).Error
	if err != nil {
		return nil, err
	}
	if lead.ID == 0 {
		return nil, nil
	}
	return &lead, nil
}

func (s *Service) checkDuplicate(
	ctx context.Context,
	tx *gorm.DB,
	tenantID snowflake.ID,
	lead *leaddomain.Lead,
	idempotencyKey *string,
	wasUsed bool,
	now time.Time,
) error {
	if idempotencyKey != nil {
		var count int64
		err := tx.WithContext(ctx).
			Model(&dispositiondomain.Disposition{}).
			Where("tenant_id = ? AND idempotency_key = ?", tenantID, *idempotencyKey).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return dispositiondomain.ErrDuplicateDisposition
		}
		return nil
	}

	// Keyless retries after a client timeout land here: the lead is already
	// used and was touched moments ago.
	if wasUsed && now.Sub(lead.UpdatedAt) < s.cfg.DedupWindow {
		return dispositiondomain.ErrDuplicateDisposition
	}
	return nil
}

// mirrorOntoLead copies the latest outcome onto the lead for display and
// marks it used. The assigned agent is retained for traceability.
func (s *Service) mirrorOntoLead(ctx context.Context, tx *gorm.DB, leadID snowflake.ID, record *dispositiondomain.Disposition, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE leads
		 SET status = ?,
		     last_result_code = ?,
		     last_result_category = ?,
		     last_note = ?,
		     last_call_start = ?,
		     last_call_end = ?,
		     last_call_duration = ?,
		     follow_up_at = ?,
		     updated_at = ?
		 WHERE id = ?`,
		leaddomain.LeadStatusUsed,
		record.ResultCode,
		record.ResultCategory,
		record.Note,
		record.CallStart,
		record.CallEnd,
		record.CallDuration,
		record.FollowUpAt,
		now,
		leadID,
	).Error
}

// decrementPool consumes one unit of the pool's unused budget, exactly once
// per lead. The guard keeps the counter non-negative; tripping it means a
// double submission slipped past duplicate detection and is only logged.
func (s *Service) decrementPool(ctx context.Context, tx *gorm.DB, lead *leaddomain.Lead, wasUsed bool, now time.Time) error {
	if wasUsed {
		s.logCounterAnomaly("lead_already_used", lead)
		return nil
	}

	result := tx.WithContext(ctx).Exec(
		`UPDATE lead_pools
		 SET unused_count = unused_count - 1, updated_at = ?
		 WHERE id = ? AND unused_count > 0`,
		now,
		lead.PoolID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		s.logCounterAnomaly("counter_exhausted", lead)
	}
	return nil
}

func (s *Service) logCounterAnomaly(reason string, lead *leaddomain.Lead) {
	if s.metrics != nil {
		s.metrics.IncCounterClamp()
	}
	s.log.Warn("pool counter decrement skipped",
		zap.String("reason", reason),
		zap.String("pool_id", lead.PoolID.String()),
		zap.String("lead_id", lead.ID.String()),
	)
}

func (s *Service) List(ctx context.Context, req dispositiondomain.ListRequest) (dispositiondomain.ListResponse, error) {
	principal, ok := tenantcontext.PrincipalFromContext(ctx)
	if !ok {
		return dispositiondomain.ListResponse{}, dispositiondomain.ErrInvalidTenant
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	tx := s.db.WithContext(ctx).Where("tenant_id = ?", principal.TenantID)

	if req.AgentID != "" {
		agentID, err := parseID(req.AgentID, dispositiondomain.ErrInvalidTenant)
		if err != nil {
			return dispositiondomain.ListResponse{}, err
		}
		tx = tx.Where("agent_id = ?", agentID)
	}
	if req.LeadID != "" {
		leadID, err := parseID(req.LeadID, dispositiondomain.ErrInvalidLead)
		if err != nil {
			return dispositiondomain.ListResponse{}, err
		}
		tx = tx.Where("lead_id = ?", leadID)
	}
	if req.From != nil {
		tx = tx.Where("created_at >= ?", *req.From)
	}
	if req.To != nil {
		tx = tx.Where("created_at < ?", *req.To)
	}

	tx = option.ApplyPagination(pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})(tx)
	tx = option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}})(tx)

	var items []dispositiondomain.Disposition
	if err := tx.Find(&items).Error; err != nil {
		return dispositiondomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(record dispositiondomain.Disposition) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        record.ID.String(),
			CreatedAt: record.CreatedAt,
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	resp := dispositiondomain.ListResponse{Dispositions: items}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func validateRecord(req dispositiondomain.RecordRequest) error {
	if strings.TrimSpace(req.ResultCode) == "" {
		return dispositiondomain.ErrInvalidResultCode
	}
	if req.CallStart.IsZero() || req.CallEnd.IsZero() {
		return dispositiondomain.ErrInvalidCallWindow
	}
	if req.CallEnd.Before(req.CallStart) {
		return dispositiondomain.ErrInvalidCallWindow
	}
	if req.Duration < 0 {
		return dispositiondomain.ErrInvalidDuration
	}
	return nil
}

func normalizeIdempotencyKey(key string) (*string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	if _, err := uuid.Parse(key); err != nil {
		return nil, dispositiondomain.ErrInvalidIdempotencyKey
	}
	return &key, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "duplicate key") || strings.Contains(message, "unique constraint")
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
