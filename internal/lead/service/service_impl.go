package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Romeobluesky/callup-api/internal/cache"
	"github.com/Romeobluesky/callup-api/internal/clock"
	"github.com/Romeobluesky/callup-api/internal/events"
	leaddomain "github.com/Romeobluesky/callup-api/internal/lead/domain"
	"github.com/Romeobluesky/callup-api/internal/observability/metrics"
	"github.com/Romeobluesky/callup-api/internal/tenantcontext"
	"github.com/Romeobluesky/callup-api/pkg/db/option"
	"github.com/Romeobluesky/callup-api/pkg/db/pagination"
	"github.com/Romeobluesky/callup-api/pkg/repository"
)

const poolMetaTTL = 30 * time.Second

// Config tunes the assignment claimer.
type Config struct {
	ClaimCeiling int
}

func (c Config) withDefaults() Config {
	if c.ClaimCeiling <= 0 {
		c.ClaimCeiling = leaddomain.DefaultClaimCeiling
	}
	return c
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock          `optional:"true"`
	Outbox  *events.Outbox       `optional:"true"`
	Metrics *metrics.CallMetrics `optional:"true"`
	Config  Config               `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock

	leadrepo repository.Repository[leaddomain.Lead]
	poolMeta cache.Cache[snowflake.ID, poolIdentity]
	outbox   *events.Outbox
	metrics  *metrics.CallMetrics
	cfg      Config
}

// poolIdentity is the slow-changing part of a pool row, safe to cache on the
// claim hot path. Counters are never cached.
type poolIdentity struct {
	TenantID snowflake.ID
	IsActive bool
}

func NewService(p ServiceParam) leaddomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("lead.service"),
		clock: clk,

		leadrepo: repository.ProvideStore[leaddomain.Lead](p.DB),
		poolMeta: cache.NewTTLCache[snowflake.ID, poolIdentity](),
		outbox:   p.Outbox,
		metrics:  p.Metrics,
		cfg:      p.Config.withDefaults(),
	}
}

func (s *Service) Claim(ctx context.Context, req leaddomain.ClaimRequest) (*leaddomain.ClaimResponse, error) {
	principal, ok := tenantcontext.PrincipalFromContext(ctx)
	if !ok {
		return nil, leaddomain.ErrInvalidTenant
	}
	poolID, err := parseID(req.PoolID, leaddomain.ErrInvalidPool)
	if err != nil {
		return nil, err
	}
	if req.Count < 1 || req.Count > s.cfg.ClaimCeiling {
		return nil, leaddomain.ErrInvalidCount
	}

	if err := s.checkPool(ctx, principal.TenantID, poolID); err != nil {
		s.countClaim("error", 0)
		return nil, err
	}

	var claimed []leaddomain.Lead
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.lockClaimable(ctx, tx, principal.TenantID, poolID, principal.AgentID, req.Count)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return leaddomain.ErrNoLeadsAvailable
		}
		if err := s.markAssigned(ctx, tx, rows, principal.AgentID); err != nil {
			return err
		}
		if s.outbox != nil {
			err := s.outbox.PublishTx(ctx, tx, events.Event{
				TenantID: principal.TenantID,
				Type:     events.EventLeadsClaimed,
				Payload: events.LeadsClaimedPayload{
					PoolID:  poolID.String(),
					AgentID: principal.AgentID.String(),
					Count:   len(rows),
				}.ToMap(),
				DedupeKey: events.EventLeadsClaimed + ":" + rows[0].ID.String() + ":" + principal.AgentID.String(),
			})
			if err != nil {
				return err
			}
		}
		claimed = rows
		return nil
	})
	if err != nil {
		if err == leaddomain.ErrNoLeadsAvailable {
			s.countClaim("empty", 0)
		} else {
			s.countClaim("error", 0)
		}
		return nil, err
	}

	agentID := principal.AgentID
	totalAssigned, err := s.leadrepo.Count(ctx, &leaddomain.Lead{
		TenantID:        principal.TenantID,
		PoolID:          poolID,
		AssignedAgentID: &agentID,
	})
	if err != nil {
		return nil, err
	}

	s.countClaim("ok", len(claimed))
	s.log.Info("leads claimed",
		zap.String("tenant_id", principal.TenantID.String()),
		zap.String("agent_id", principal.AgentID.String()),
		zap.String("pool_id", poolID.String()),
		zap.Int("count", len(claimed)),
	)

	return &leaddomain.ClaimResponse{
		Leads:         claimed,
		TotalAssigned: totalAssigned,
	}, nil
}

// lockClaimable selects the next claimable leads under row locks. Selection
// favors leads already assigned to the agent from an earlier partial claim,
// then fresh unassigned ones, in stable insertion order. SKIP LOCKED lets
// concurrent claimers pass over each other's rows instead of queueing; the
// two agents then receive disjoint leads. SQLite (tests) has a single writer
// so the lock clause is omitted there.
func (s *Service) lockClaimable(
	ctx context.Context,
	tx *gorm.DB,
	tenantID, poolID, agentID snowflake.ID,
	limit int,
) ([]leaddomain.Lead, error) {
	query := `SELECT * FROM leads
		 WHERE tenant_id = ? AND pool_id = ? AND status = ?
		   AND (assigned_agent_id IS NULL OR assigned_agent_id = ?)
		 ORDER BY id
		 LIMIT ?`
	if tx.Dialector.Name() == "postgres" {
		query = strings.Replace(query, "LIMIT ?", "FOR UPDATE SKIP LOCKED\n\t\t LIMIT ?", 1)
	}

	var rows []leaddomain.Lead
	err := tx.WithContext(ctx).Raw(query,
		tenantID,
		poolID,
		leaddomain.LeadStatusUnused,
		agentID,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// markAssigned stamps the agent onto rows not already theirs, inside the
// same transaction that locked them. Already-claimed rows keep their stamp.
func (s *Service) markAssigned(ctx context.Context, tx *gorm.DB, rows []leaddomain.Lead, agentID snowflake.ID) error {
	fresh := make([]snowflake.ID, 0, len(rows))
	now := s.clock.Now().UTC()
	for i := range rows {
		if rows[i].AssignedAgentID == nil {
			fresh = append(fresh, rows[i].ID)
		}
		stamped := agentID
		rows[i].AssignedAgentID = &stamped
	}
	if len(fresh) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Exec(
		`UPDATE leads
		 SET assigned_agent_id = ?, updated_at = ?
		 WHERE id IN ? AND assigned_agent_id IS NULL`,
		agentID,
		now,
		fresh,
	).Error
}

func (s *Service) List(ctx context.Context, req leaddomain.ListLeadsRequest) (leaddomain.ListLeadsResponse, error) {
	principal, ok := tenantcontext.PrincipalFromContext(ctx)
	if !ok {
		return leaddomain.ListLeadsResponse{}, leaddomain.ErrInvalidTenant
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	tx := s.db.WithContext(ctx).
		Where("tenant_id = ? AND assigned_agent_id = ?", principal.TenantID, principal.AgentID)

	if req.PoolID != "" {
		poolID, err := parseID(req.PoolID, leaddomain.ErrInvalidPool)
		if err != nil {
			return leaddomain.ListLeadsResponse{}, err
		}
		tx = tx.Where("pool_id = ?", poolID)
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		if status != leaddomain.LeadStatusUnused && status != leaddomain.LeadStatusUsed {
			return leaddomain.ListLeadsResponse{}, leaddomain.ErrInvalidStatus
		}
		tx = tx.Where("status = ?", status)
	}
	if search := strings.TrimSpace(req.Search); search != "" {
		like := "%" + search + "%"
		tx = tx.Where("(name LIKE ? OR phone LIKE ?)", like, like)
	}

	tx = option.ApplyPagination(pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})(tx)
	tx = option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}})(tx)

	var items []leaddomain.Lead
	if err := tx.Find(&items).Error; err != nil {
		return leaddomain.ListLeadsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(record leaddomain.Lead) string {
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

	resp := leaddomain.ListLeadsResponse{Leads: items}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) NextLead(ctx context.Context, poolIDRaw string) (*leaddomain.NextLeadResponse, error) {
	principal, ok := tenantcontext.PrincipalFromContext(ctx)
	if !ok {
		return nil, leaddomain.ErrInvalidTenant
	}
	poolID, err := parseID(poolIDRaw, leaddomain.ErrInvalidPool)
	if err != nil {
		return nil, err
	}

	var pool leaddomain.LeadPool
	err = s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", poolID, principal.TenantID).
		First(&pool).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, leaddomain.ErrPoolNotFound
		}
		return nil, err
	}

	var next leaddomain.Lead
	err = s.db.WithContext(ctx).
		Where("tenant_id = ? AND pool_id = ? AND assigned_agent_id = ? AND status = ?",
			principal.TenantID, poolID, principal.AgentID, leaddomain.LeadStatusUnused).
		Order("id").
		First(&next).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, leaddomain.ErrNoLeadsAvailable
		}
		return nil, err
	}

	return &leaddomain.NextLeadResponse{
		Lead:     &next,
		Progress: progressLabel(pool),
	}, nil
}

func (s *Service) ListPools(ctx context.Context) (leaddomain.ListPoolsResponse, error) {
	principal, ok := tenantcontext.PrincipalFromContext(ctx)
	if !ok {
		return leaddomain.ListPoolsResponse{}, leaddomain.ErrInvalidTenant
	}

	var pools []leaddomain.LeadPool
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", principal.TenantID, true).
		Order("ingested_at DESC, id DESC").
		Find(&pools).Error
	if err != nil {
		return leaddomain.ListPoolsResponse{}, err
	}
	return leaddomain.ListPoolsResponse{Pools: pools}, nil
}

// checkPool validates pool ownership and activity via the identity cache;
// a miss reads the row and primes the cache.
func (s *Service) checkPool(ctx context.Context, tenantID, poolID snowflake.ID) error {
	if meta, ok := s.poolMeta.Get(poolID); ok {
		if meta.TenantID != tenantID || !meta.IsActive {
			return leaddomain.ErrPoolNotFound
		}
		return nil
	}

	var pool leaddomain.LeadPool
	err := s.db.WithContext(ctx).Where("id = ?", poolID).First(&pool).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return leaddomain.ErrPoolNotFound
		}
		return err
	}

	s.poolMeta.Set(poolID, poolIdentity{TenantID: pool.TenantID, IsActive: pool.IsActive}, poolMetaTTL)
	if pool.TenantID != tenantID || !pool.IsActive {
		return leaddomain.ErrPoolNotFound
	}
	return nil
}

func (s *Service) countClaim(outcome string, leads int) {
	if s.metrics != nil {
		s.metrics.IncClaim(outcome, leads)
	}
}

func progressLabel(pool leaddomain.LeadPool) string {
	completed := pool.TotalCount - pool.UnusedCount
	if completed < 0 {
		completed = 0
	}
	position := completed + 1
	if position > pool.TotalCount {
		position = pool.TotalCount
	}
	return strconv.FormatInt(position, 10) + "/" + strconv.FormatInt(pool.TotalCount, 10)
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
