package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	assignmentservice "github.com/Romeobluesky/callup-api/internal/assignment/service"
	"github.com/Romeobluesky/callup-api/internal/clock"
	"github.com/Romeobluesky/callup-api/internal/config"
	dispositiondomain "github.com/Romeobluesky/callup-api/internal/disposition/domain"
	dispositionservice "github.com/Romeobluesky/callup-api/internal/disposition/service"
	"github.com/Romeobluesky/callup-api/internal/events"
	leaddomain "github.com/Romeobluesky/callup-api/internal/lead/domain"
	leadservice "github.com/Romeobluesky/callup-api/internal/lead/service"
	statsdomain "github.com/Romeobluesky/callup-api/internal/stats/domain"
	statsservice "github.com/Romeobluesky/callup-api/internal/stats/service"
)

const (
	testSecret   = "test-secret"
	testTenantID = snowflake.ID(100)
	testAgentID  = snowflake.ID(201)
	testAdminID  = snowflake.ID(300)
)

func setupTestServer(t *testing.T) (*Server, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&leaddomain.Lead{},
		&leaddomain.LeadPool{},
		&dispositiondomain.Disposition{},
		&statsdomain.Statistic{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	err = db.Exec(`CREATE TABLE IF NOT EXISTS call_events (
		id BIGINT PRIMARY KEY,
		tenant_id BIGINT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT,
		dedupe_key TEXT,
		published BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (tenant_id, dedupe_key)
	)`).Error
	if err != nil {
		t.Fatalf("create call_events: %v", err)
	}
	err = db.Exec(`CREATE TABLE IF NOT EXISTS assignments (
		id BIGINT PRIMARY KEY,
		tenant_id BIGINT NOT NULL,
		pool_id BIGINT NOT NULL,
		agent_id BIGINT NOT NULL,
		assigned_count BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (tenant_id, pool_id, agent_id)
	)`).Error
	if err != nil {
		t.Fatalf("create assignments: %v", err)
	}

	node, err := snowflake.NewNode(9)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	log := zap.NewNop()
	sysClock := clock.SystemClock{}

	statsSvc := statsservice.NewService(statsservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: sysClock,
	})
	outbox := events.NewOutbox(db, node, sysClock)

	cfg := config.Config{
		Environment:     "test",
		AuthSecret:      testSecret,
		ClaimRateLimit:  100,
		ClaimRateWindow: time.Minute,
		ServiceName:     "callup-api",
	}

	engine := gin.New()
	srv := NewServer(ServerParam{
		Config: cfg,
		Log:    log,
		DB:     db,
		Engine: engine,
		LeadSvc: leadservice.NewService(leadservice.ServiceParam{
			DB: db, Log: log, Outbox: outbox,
		}),
		DispositionSvc: dispositionservice.NewService(dispositionservice.ServiceParam{
			DB:         db,
			Log:        log,
			GenID:      node,
			Clock:      sysClock,
			Stats:      statsservice.NewWriter(statsSvc),
			Outbox:     outbox,
			Classifier: dispositiondomain.KeywordClassifier{},
		}),
		StatsSvc:      statsservice.NewReader(statsSvc),
		AssignmentSvc: assignmentservice.NewService(assignmentservice.ServiceParam{
			DB: db, Log: log, GenID: node, Clock: sysClock,
		}),
	})
	srv.RegisterAPIRoutes()
	return srv, db
}

func seedServerPool(t *testing.T, db *gorm.DB, total int) {
	t.Helper()
	pool := leaddomain.LeadPool{
		ID:          1,
		TenantID:    testTenantID,
		Title:       "HTTP Pool",
		TotalCount:  int64(total),
		UnusedCount: int64(total),
		IsActive:    true,
		IngestedAt:  time.Now().UTC(),
	}
	if err := db.Create(&pool).Error; err != nil {
		t.Fatalf("insert pool: %v", err)
	}
	for i := 0; i < total; i++ {
		lead := leaddomain.Lead{
			ID:       snowflake.ID(1000 + i),
			TenantID: testTenantID,
			PoolID:   1,
			Status:   leaddomain.LeadStatusUnused,
			Name:     fmt.Sprintf("Lead %d", i+1),
			Phone:    fmt.Sprintf("010-1234-%04d", i+1),
		}
		if err := db.Create(&lead).Error; err != nil {
			t.Fatalf("insert lead: %v", err)
		}
	}
}

func signToken(t *testing.T, agentID snowflake.ID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tenant_id": testTenantID.String(),
		"agent_id":  agentID.String(),
		"role":      role,
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v (%s)", err, rec.Body.String())
	}
	return payload.Error.Code
}

func TestHealthz(t *testing.T) {
	srv, _ := setupTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	srv, _ := setupTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/v1/pools", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %s", code)
	}
}

func TestBadSignatureIsUnauthorized(t *testing.T) {
	srv, _ := setupTestServer(t)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tenant_id": testTenantID.String(),
		"agent_id":  testAgentID.String(),
		"role":      "agent",
	})
	signed, err := token.SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rec := doRequest(t, srv, http.MethodGet, "/v1/pools", signed, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestClaimEndpoint(t *testing.T) {
	srv, db := setupTestServer(t)
	seedServerPool(t, db, 5)
	token := signToken(t, testAgentID, "agent")

	rec := doRequest(t, srv, http.MethodPost, "/v1/claims", token, gin.H{"pool_id": "1", "count": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Data struct {
			Leads         []leaddomain.Lead `json:"leads"`
			TotalAssigned int64             `json:"total_assigned"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Data.Leads) != 2 || payload.Data.TotalAssigned != 2 {
		t.Fatalf("unexpected claim payload: %+v", payload.Data)
	}
}

func TestClaimExhaustedPool(t *testing.T) {
	srv, db := setupTestServer(t)
	seedServerPool(t, db, 0)
	token := signToken(t, testAgentID, "agent")

	rec := doRequest(t, srv, http.MethodPost, "/v1/claims", token, gin.H{"pool_id": "1", "count": 1})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "NO_LEADS_AVAILABLE" {
		t.Fatalf("expected NO_LEADS_AVAILABLE, got %s", code)
	}
}

func TestDispositionFlow(t *testing.T) {
	srv, db := setupTestServer(t)
	seedServerPool(t, db, 3)
	token := signToken(t, testAgentID, "agent")

	rec := doRequest(t, srv, http.MethodPost, "/v1/claims", token, gin.H{"pool_id": "1", "count": 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("claim failed: %d %s", rec.Code, rec.Body.String())
	}

	now := time.Now().UTC()
	body := gin.H{
		"lead_id":         "1000",
		"result_code":     "success",
		"call_start":      now.Add(-time.Minute).Format(time.RFC3339),
		"call_end":        now.Format(time.RFC3339),
		"duration":        60,
		"idempotency_key": "0e2f4a6c-8b1d-4e3f-9a5c-7d9e1f3a5b7c",
	}
	rec = doRequest(t, srv, http.MethodPost, "/v1/dispositions", token, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("record failed: %d %s", rec.Code, rec.Body.String())
	}

	// Replaying the same idempotency key must conflict.
	rec = doRequest(t, srv, http.MethodPost, "/v1/dispositions", token, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on replay, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "DUPLICATE_DISPOSITION" {
		t.Fatalf("expected DUPLICATE_DISPOSITION, got %s", code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/v1/stats?period=today", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats failed: %d %s", rec.Code, rec.Body.String())
	}
	var statsPayload struct {
		Data statsdomain.Summary `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &statsPayload); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if statsPayload.Data.TotalCallCount != 1 || statsPayload.Data.SuccessCount != 1 {
		t.Fatalf("unexpected stats: %+v", statsPayload.Data)
	}

	rec = doRequest(t, srv, http.MethodGet, "/v1/dispositions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list dispositions failed: %d", rec.Code)
	}
}

func TestDispositionValidationOnWire(t *testing.T) {
	srv, db := setupTestServer(t)
	seedServerPool(t, db, 1)
	token := signToken(t, testAgentID, "agent")

	now := time.Now().UTC()
	rec := doRequest(t, srv, http.MethodPost, "/v1/dispositions", token, gin.H{
		"lead_id":     "1000",
		"result_code": "success",
		"call_start":  now.Format(time.RFC3339),
		"call_end":    now.Add(-time.Minute).Format(time.RFC3339),
		"duration":    60,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %s", code)
	}
}

func TestBulkAssignRequiresAdmin(t *testing.T) {
	srv, db := setupTestServer(t)
	seedServerPool(t, db, 4)

	agentToken := signToken(t, testAgentID, "agent")
	body := gin.H{
		"pool_id": "1",
		"assignments": []gin.H{
			{"agent_id": testAgentID.String(), "count": 2},
		},
	}
	rec := doRequest(t, srv, http.MethodPost, "/v1/assignments", agentToken, body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for agent, got %d", rec.Code)
	}

	adminToken := signToken(t, testAdminID, "company_admin")
	rec = doRequest(t, srv, http.MethodPost, "/v1/assignments", adminToken, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStatsForeignAgentRequiresAdmin(t *testing.T) {
	srv, _ := setupTestServer(t)
	agentToken := signToken(t, testAgentID, "agent")
	other := snowflake.ID(202)

	rec := doRequest(t, srv, http.MethodGet, "/v1/stats?period=today&agent_id="+other.String(), agentToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign agent_id, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %s", code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/v1/stats?period=today&agent_id="+testAgentID.String(), agentToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for own agent_id, got %d: %s", rec.Code, rec.Body.String())
	}

	adminToken := signToken(t, testAdminID, "company_admin")
	rec = doRequest(t, srv, http.MethodGet, "/v1/stats?period=today&agent_id="+other.String(), adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestClaimRateLimited(t *testing.T) {
	srv, db := setupTestServer(t)
	seedServerPool(t, db, 10)
	srv.claimLimiter = newRateLimiter(1, time.Minute)
	token := signToken(t, testAgentID, "agent")

	rec := doRequest(t, srv, http.MethodPost, "/v1/claims", token, gin.H{"pool_id": "1", "count": 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("first claim should pass, got %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodPost, "/v1/claims", token, gin.H{"pool_id": "1", "count": 1})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "RATE_LIMITED" {
		t.Fatalf("expected RATE_LIMITED, got %s", code)
	}
}
