package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	assignmentdomain "github.com/Romeobluesky/callup-api/internal/assignment/domain"
	"github.com/Romeobluesky/callup-api/internal/clock"
	leaddomain "github.com/Romeobluesky/callup-api/internal/lead/domain"
	"github.com/Romeobluesky/callup-api/internal/tenantcontext"
)

// maxGrantCount bounds a single agent grant.
const maxGrantCount = 10000

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

func NewService(p ServiceParam) assignmentdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("assignment.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// Assign stamps unclaimed unused pool leads onto agents, one grant at a
// time, inside a single transaction. A short pool grants fewer leads than
// requested rather than failing the whole batch.
func (s *Service) Assign(ctx context.Context, req assignmentdomain.BulkRequest) (*assignmentdomain.BulkResponse, error) {
	principal, ok := tenantcontext.PrincipalFromContext(ctx)
	if !ok {
		return nil, assignmentdomain.ErrInvalidTenant
	}
	if !principal.IsAdmin() {
		return nil, assignmentdomain.ErrForbidden
	}
	poolID, err := parseID(req.PoolID, assignmentdomain.ErrInvalidPool)
	if err != nil {
		return nil, err
	}
	if len(req.Grants) == 0 {
		return nil, assignmentdomain.ErrEmptyAssignments
	}

	grants := make([]grant, 0, len(req.Grants))
	for _, g := range req.Grants {
		agentID, err := parseID(g.AgentID, assignmentdomain.ErrInvalidAgent)
		if err != nil {
			return nil, err
		}
		if g.Count < 1 || g.Count > maxGrantCount {
			return nil, assignmentdomain.ErrInvalidCount
		}
		grants = append(grants, grant{agentID: agentID, count: g.Count})
	}

	results := make([]assignmentdomain.GrantResult, 0, len(grants))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pool leaddomain.LeadPool
		err := tx.WithContext(ctx).
			Where("id = ? AND tenant_id = ?", poolID, principal.TenantID).
			First(&pool).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return assignmentdomain.ErrPoolNotFound
			}
			return err
		}

		for _, g := range grants {
			assigned, err := s.grantLeads(ctx, tx, principal.TenantID, poolID, g.agentID, g.count)
			if err != nil {
				return err
			}
			if assigned > 0 {
				if err := s.recordGrant(ctx, tx, principal.TenantID, poolID, g.agentID, assigned); err != nil {
					return err
				}
			}
			results = append(results, assignmentdomain.GrantResult{
				AgentID:  g.agentID,
				Assigned: assigned,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += r.Assigned
	}
	s.log.Info("bulk assignment applied",
		zap.String("tenant_id", principal.TenantID.String()),
		zap.String("pool_id", poolID.String()),
		zap.Int("agents", len(results)),
		zap.Int("leads", total),
	)

	return &assignmentdomain.BulkResponse{Results: results}, nil
}

type grant struct {
	agentID snowflake.ID
	count   int
}

// grantLeads locks up to count unassigned unused leads and stamps the agent.
// SKIP LOCKED keeps concurrent claimers and assigners from queueing on the
// same rows; SQLite (tests) has a single writer so the clause is omitted.
func (s *Service) grantLeads(
	ctx context.Context,
	tx *gorm.DB,
	tenantID, poolID, agentID snowflake.ID,
	count int,
) (int, error) {
	query := `SELECT id FROM leads
		 WHERE tenant_id = ? AND pool_id = ? AND status = ? AND assigned_agent_id IS NULL
		 ORDER BY id
		 LIMIT ?`
	if tx.Dialector.Name() == "postgres" {
		query = strings.Replace(query, "LIMIT ?", "FOR UPDATE SKIP LOCKED\n\t\t LIMIT ?", 1)
	}

	var ids []snowflake.ID
	err := tx.WithContext(ctx).Raw(query,
		tenantID,
		poolID,
		leaddomain.LeadStatusUnused,
		count,
	).Scan(&ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result := tx.WithContext(ctx).Exec(
		`UPDATE leads
		 SET assigned_agent_id = ?, updated_at = ?
		 WHERE id IN ? AND assigned_agent_id IS NULL`,
		agentID,
		s.clock.Now(),
		ids,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// recordGrant accumulates assigned_count per (pool, agent).
func (s *Service) recordGrant(ctx context.Context, tx *gorm.DB, tenantID, poolID, agentID snowflake.ID, assigned int) error {
	now := s.clock.Now()
	return tx.WithContext(ctx).Exec(
		`INSERT INTO assignments (id, tenant_id, pool_id, agent_id, assigned_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, pool_id, agent_id) DO UPDATE SET
		   assigned_count = assignments.assigned_count + excluded.assigned_count,
		   updated_at = excluded.updated_at`,
		s.genID.Generate(),
		tenantID,
		poolID,
		agentID,
		assigned,
		now,
		now,
	).Error
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
