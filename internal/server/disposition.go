package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	dispositiondomain "github.com/Romeobluesky/callup-api/internal/disposition/domain"
)

type recordDispositionRequest struct {
	LeadID         string     `json:"lead_id"`
	ResultCode     string     `json:"result_code"`
	SubResult      string     `json:"sub_result"`
	Note           string     `json:"note"`
	CallStart      time.Time  `json:"call_start"`
	CallEnd        time.Time  `json:"call_end"`
	Duration       int64      `json:"duration"`
	FollowUpAt     *time.Time `json:"follow_up_at"`
	IdempotencyKey string     `json:"idempotency_key"`
}

// RecordDisposition records one call outcome atomically.
func (s *Server) RecordDisposition(c *gin.Context) {
	var req recordDispositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.dispositionSvc.Record(c.Request.Context(), dispositiondomain.RecordRequest{
		LeadID:         strings.TrimSpace(req.LeadID),
		ResultCode:     req.ResultCode,
		SubResult:      req.SubResult,
		Note:           req.Note,
		CallStart:      req.CallStart,
		CallEnd:        req.CallEnd,
		Duration:       req.Duration,
		FollowUpAt:     req.FollowUpAt,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ListDispositions returns the tenant's disposition history.
func (s *Server) ListDispositions(c *gin.Context) {
	var query struct {
		AgentID   string `form:"agent_id"`
		LeadID    string `form:"lead_id"`
		From      string `form:"from"`
		To        string `form:"to"`
		PageToken string `form:"page_token"`
		PageSize  int32  `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := dispositiondomain.ListRequest{
		AgentID:   strings.TrimSpace(query.AgentID),
		LeadID:    strings.TrimSpace(query.LeadID),
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
	}

	if raw := strings.TrimSpace(query.From); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("from", "invalid_time", "from must be RFC 3339"))
			return
		}
		req.From = &from
	}
	if raw := strings.TrimSpace(query.To); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("to", "invalid_time", "to must be RFC 3339"))
			return
		}
		req.To = &to
	}

	resp, err := s.dispositionSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
