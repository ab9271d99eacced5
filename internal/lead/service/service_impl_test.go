package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Romeobluesky/callup-api/internal/clock"
	leaddomain "github.com/Romeobluesky/callup-api/internal/lead/domain"
	"github.com/Romeobluesky/callup-api/internal/tenantcontext"
)

const (
	testTenantID = snowflake.ID(100)
	testAgentA   = snowflake.ID(201)
	testAgentB   = snowflake.ID(202)
)

func setupLeadTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&leaddomain.Lead{}, &leaddomain.LeadPool{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newLeadService(t *testing.T, db *gorm.DB) leaddomain.Service {
	t.Helper()
	return NewService(ServiceParam{
		DB:  db,
		Log: zap.NewNop(),
	})
}

func insertPool(t *testing.T, db *gorm.DB, id snowflake.ID, total int64) {
	t.Helper()
	pool := leaddomain.LeadPool{
		ID:          id,
		TenantID:    testTenantID,
		Title:       "Test Pool",
		TotalCount:  total,
		UnusedCount: total,
		IsActive:    true,
		IngestedAt:  time.Now().UTC(),
	}
	if err := db.Create(&pool).Error; err != nil {
		t.Fatalf("insert pool: %v", err)
	}
}

func insertLeads(t *testing.T, db *gorm.DB, poolID snowflake.ID, firstID int64, count int) {
	t.Helper()
	base := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		lead := leaddomain.Lead{
			ID:        snowflake.ID(firstID + int64(i)),
			TenantID:  testTenantID,
			PoolID:    poolID,
			Status:    leaddomain.LeadStatusUnused,
			Name:      fmt.Sprintf("Lead %d", i+1),
			Phone:     fmt.Sprintf("010-1234-%04d", i+1),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := db.Create(&lead).Error; err != nil {
			t.Fatalf("insert lead: %v", err)
		}
	}
}

func agentContext(agentID snowflake.ID) context.Context {
	return tenantcontext.WithPrincipal(context.Background(), tenantcontext.Principal{
		TenantID: testTenantID,
		AgentID:  agentID,
		Role:     tenantcontext.RoleAgent,
	})
}

func TestClaimAssignsRequestedCount(t *testing.T) {
	db := setupLeadTestDB(t)
	insertPool(t, db, 1, 10)
	insertLeads(t, db, 1, 1000, 10)
	svc := newLeadService(t, db)

	resp, err := svc.Claim(agentContext(testAgentA), leaddomain.ClaimRequest{PoolID: "1", Count: 3})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(resp.Leads) != 3 {
		t.Fatalf("expected 3 leads, got %d", len(resp.Leads))
	}
	if resp.TotalAssigned != 3 {
		t.Fatalf("expected total assigned 3, got %d", resp.TotalAssigned)
	}
	for _, lead := range resp.Leads {
		if lead.AssignedAgentID == nil || *lead.AssignedAgentID != testAgentA {
			t.Fatalf("lead %d not stamped to agent", lead.ID)
		}
	}
}

func TestClaimIsDisjointAcrossAgents(t *testing.T) {
	db := setupLeadTestDB(t)
	insertPool(t, db, 1, 10)
	insertLeads(t, db, 1, 1000, 10)
	svc := newLeadService(t, db)

	respA, err := svc.Claim(agentContext(testAgentA), leaddomain.ClaimRequest{PoolID: "1", Count: 4})
	if err != nil {
		t.Fatalf("claim A: %v", err)
	}
	respB, err := svc.Claim(agentContext(testAgentB), leaddomain.ClaimRequest{PoolID: "1", Count: 4})
	if err != nil {
		t.Fatalf("claim B: %v", err)
	}

	seen := make(map[snowflake.ID]bool)
	for _, lead := range respA.Leads {
		seen[lead.ID] = true
	}
	for _, lead := range respB.Leads {
		if seen[lead.ID] {
			t.Fatalf("lead %d claimed by both agents", lead.ID)
		}
	}
}

func TestClaimReturnsExistingWorkingSetFirst(t *testing.T) {
	db := setupLeadTestDB(t)
	insertPool(t, db, 1, 5)
	insertLeads(t, db, 1, 1000, 5)
	svc := newLeadService(t, db)

	first, err := svc.Claim(agentContext(testAgentA), leaddomain.ClaimRequest{PoolID: "1", Count: 2})
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}

	// A repeat claim re-serves the still-unused assigned leads before
	// touching fresh ones.
	second, err := svc.Claim(agentContext(testAgentA), leaddomain.ClaimRequest{PoolID: "1", Count: 2})
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(second.Leads) != 2 {
		t.Fatalf("expected 2 leads, got %d", len(second.Leads))
	}
	if second.Leads[0].ID != first.Leads[0].ID || second.Leads[1].ID != first.Leads[1].ID {
		t.Fatalf("repeat claim did not re-serve the working set")
	}
	if second.TotalAssigned != 2 {
		t.Fatalf("expected total assigned 2, got %d", second.TotalAssigned)
	}
}

func TestClaimCountBounds(t *testing.T) {
	db := setupLeadTestDB(t)
	insertPool(t, db, 1, 5)
	insertLeads(t, db, 1, 1000, 5)
	svc := newLeadService(t, db)

	for _, count := range []int{0, -1, 1001} {
		_, err := svc.Claim(agentContext(testAgentA), leaddomain.ClaimRequest{PoolID: "1", Count: count})
		if !errors.Is(err, leaddomain.ErrInvalidCount) {
			t.Fatalf("count %d: expected invalid count, got %v", count, err)
		}
	}
}

func TestClaimShortPoolServesRemainder(t *testing.T) {
	db := setupLeadTestDB(t)
	insertPool(t, db, 1, 2)
	insertLeads(t, db, 1, 1000, 2)
	svc := newLeadService(t, db)

	resp, err := svc.Claim(agentContext(testAgentA), leaddomain.ClaimRequest{PoolID: "1", Count: 5})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(resp.Leads) != 2 {
		t.Fatalf("expected remainder of 2 leads, got %d", len(resp.Leads))
	}
}

func TestClaimEmptyPool(t *testing.T) {
	db := setupLeadTestDB(t)
	insertPool(t, db, 1, 0)
	svc := newLeadService(t, db)

	_, err := svc.Claim(agentContext(testAgentA), leaddomain.ClaimRequest{PoolID: "1", Count: 1})
	if !errors.Is(err, leaddomain.ErrNoLeadsAvailable) {
		t.Fatalf("expected no leads available, got %v", err)
	}
}

func TestClaimUnknownPool(t *testing.T) {
	db := setupLeadTestDB(t)
	svc := newLeadService(t, db)

	_, err := svc.Claim(agentContext(testAgentA), leaddomain.ClaimRequest{PoolID: "99", Count: 1})
	if !errors.Is(err, leaddomain.ErrPoolNotFound) {
		t.Fatalf("expected pool not found, got %v", err)
	}
}

func TestClaimForeignPool(t *testing.T) {
	db := setupLeadTestDB(t)
	pool := leaddomain.LeadPool{
		ID:          7,
		TenantID:    999,
		Title:       "Other Tenant",
		TotalCount:  3,
		UnusedCount: 3,
		IsActive:    true,
		IngestedAt:  time.Now().UTC(),
	}
	if err := db.Create(&pool).Error; err != nil {
		t.Fatalf("insert pool: %v", err)
	}
	svc := newLeadService(t, db)

	_, err := svc.Claim(agentContext(testAgentA), leaddomain.ClaimRequest{PoolID: "7", Count: 1})
	if !errors.Is(err, leaddomain.ErrPoolNotFound) {
		t.Fatalf("expected pool not found for foreign tenant, got %v", err)
	}
}

func TestClaimInactivePool(t *testing.T) {
	db := setupLeadTestDB(t)
	pool := leaddomain.LeadPool{
		ID:          8,
		TenantID:    testTenantID,
		Title:       "Paused",
		TotalCount:  3,
		UnusedCount: 3,
		IsActive:    false,
		IngestedAt:  time.Now().UTC(),
	}
	if err := db.Create(&pool).Error; err != nil {
		t.Fatalf("insert pool: %v", err)
	}
	svc := newLeadService(t, db)

	_, err := svc.Claim(agentContext(testAgentA), leaddomain.ClaimRequest{PoolID: "8", Count: 1})
	if !errors.Is(err, leaddomain.ErrPoolNotFound) {
		t.Fatalf("expected pool not found for inactive pool, got %v", err)
	}
}

func TestListReturnsOnlyOwnWorkingSet(t *testing.T) {
	db := setupLeadTestDB(t)
	insertPool(t, db, 1, 6)
	insertLeads(t, db, 1, 1000, 6)
	svc := newLeadService(t, db)

	if _, err := svc.Claim(agentContext(testAgentA), leaddomain.ClaimRequest{PoolID: "1", Count: 2}); err != nil {
		t.Fatalf("claim A: %v", err)
	}
	if _, err := svc.Claim(agentContext(testAgentB), leaddomain.ClaimRequest{PoolID: "1", Count: 3}); err != nil {
		t.Fatalf("claim B: %v", err)
	}

	resp, err := svc.List(agentContext(testAgentA), leaddomain.ListLeadsRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.Leads) != 2 {
		t.Fatalf("expected 2 leads in working set, got %d", len(resp.Leads))
	}
	for _, lead := range resp.Leads {
		if lead.AssignedAgentID == nil || *lead.AssignedAgentID != testAgentA {
			t.Fatalf("foreign lead %d in working set", lead.ID)
		}
	}
}

func TestClaimStampsClockTime(t *testing.T) {
	db := setupLeadTestDB(t)
	insertPool(t, db, 1, 3)
	insertLeads(t, db, 1, 1000, 3)
	instant := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.FixedClock{Instant: instant},
	})

	resp, err := svc.Claim(agentContext(testAgentA), leaddomain.ClaimRequest{PoolID: "1", Count: 1})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	var stored leaddomain.Lead
	if err := db.First(&stored, "id = ?", resp.Leads[0].ID).Error; err != nil {
		t.Fatalf("reload lead: %v", err)
	}
	if !stored.UpdatedAt.Equal(instant) {
		t.Fatalf("expected updated_at %v, got %v", instant, stored.UpdatedAt)
	}
}

func TestListWalksPagesWithToken(t *testing.T) {
	db := setupLeadTestDB(t)
	insertPool(t, db, 1, 5)
	insertLeads(t, db, 1, 1000, 5)
	svc := newLeadService(t, db)

	if _, err := svc.Claim(agentContext(testAgentA), leaddomain.ClaimRequest{PoolID: "1", Count: 5}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	var seen []snowflake.ID
	token := ""
	for page := 0; page < 4; page++ {
		resp, err := svc.List(agentContext(testAgentA), leaddomain.ListLeadsRequest{
			PageSize:  2,
			PageToken: token,
		})
		if err != nil {
			t.Fatalf("list page %d: %v", page, err)
		}
		for _, lead := range resp.Leads {
			seen = append(seen, lead.ID)
		}
		if !resp.PageInfo.HasMore {
			break
		}
		if resp.PageInfo.NextPageToken == "" {
			t.Fatalf("page %d reports more rows but carries no token", page)
		}
		token = resp.PageInfo.NextPageToken
	}

	if len(seen) != 5 {
		t.Fatalf("expected 5 leads across pages, got %d: %v", len(seen), seen)
	}
	for i, id := range seen {
		if want := snowflake.ID(1000 + int64(i)); id != want {
			t.Fatalf("page walk out of order at %d: expected %d, got %d", i, want, id)
		}
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	db := setupLeadTestDB(t)
	insertPool(t, db, 1, 2)
	insertLeads(t, db, 1, 1000, 2)
	svc := newLeadService(t, db)

	_, err := svc.List(agentContext(testAgentA), leaddomain.ListLeadsRequest{Status: "pending"})
	if !errors.Is(err, leaddomain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestNextLeadProgress(t *testing.T) {
	db := setupLeadTestDB(t)
	insertPool(t, db, 1, 5)
	insertLeads(t, db, 1, 1000, 5)
	svc := newLeadService(t, db)

	if _, err := svc.Claim(agentContext(testAgentA), leaddomain.ClaimRequest{PoolID: "1", Count: 2}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	resp, err := svc.NextLead(agentContext(testAgentA), "1")
	if err != nil {
		t.Fatalf("next lead: %v", err)
	}
	if resp.Lead == nil || resp.Lead.ID != 1000 {
		t.Fatalf("expected lead 1000 next, got %+v", resp.Lead)
	}
	if resp.Progress != "1/5" {
		t.Fatalf("expected progress 1/5, got %q", resp.Progress)
	}
}

func TestNextLeadExhausted(t *testing.T) {
	db := setupLeadTestDB(t)
	insertPool(t, db, 1, 1)
	insertLeads(t, db, 1, 1000, 1)
	svc := newLeadService(t, db)

	_, err := svc.NextLead(agentContext(testAgentA), "1")
	if !errors.Is(err, leaddomain.ErrNoLeadsAvailable) {
		t.Fatalf("expected no leads available without a claim, got %v", err)
	}
}

func TestListPoolsNewestFirst(t *testing.T) {
	db := setupLeadTestDB(t)
	base := time.Now().UTC()
	for i, id := range []snowflake.ID{11, 12, 13} {
		pool := leaddomain.LeadPool{
			ID:          id,
			TenantID:    testTenantID,
			Title:       fmt.Sprintf("Pool %d", i+1),
			TotalCount:  1,
			UnusedCount: 1,
			IsActive:    true,
			IngestedAt:  base.Add(time.Duration(i) * time.Hour),
		}
		if err := db.Create(&pool).Error; err != nil {
			t.Fatalf("insert pool: %v", err)
		}
	}
	svc := newLeadService(t, db)

	resp, err := svc.ListPools(agentContext(testAgentA))
	if err != nil {
		t.Fatalf("list pools: %v", err)
	}
	if len(resp.Pools) != 3 {
		t.Fatalf("expected 3 pools, got %d", len(resp.Pools))
	}
	if resp.Pools[0].ID != 13 {
		t.Fatalf("expected newest pool first, got %d", resp.Pools[0].ID)
	}
}
