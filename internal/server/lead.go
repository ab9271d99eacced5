package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	leaddomain "github.com/Romeobluesky/callup-api/internal/lead/domain"
)

type claimRequest struct {
	PoolID string `json:"pool_id"`
	Count  int    `json:"count"`
}

// ClaimLeads hands the calling agent an exclusive batch of leads.
func (s *Server) ClaimLeads(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.leadSvc.Claim(c.Request.Context(), leaddomain.ClaimRequest{
		PoolID: strings.TrimSpace(req.PoolID),
		Count:  req.Count,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ListLeads returns the agent's working set, cursor paginated.
func (s *Server) ListLeads(c *gin.Context) {
	var query struct {
		PoolID    string `form:"pool_id"`
		Status    string `form:"status"`
		Search    string `form:"search"`
		PageToken string `form:"page_token"`
		PageSize  int32  `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.leadSvc.List(c.Request.Context(), leaddomain.ListLeadsRequest{
		PoolID:    strings.TrimSpace(query.PoolID),
		Status:    strings.TrimSpace(query.Status),
		Search:    strings.TrimSpace(query.Search),
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ListPools returns the tenant's active pools, newest first.
func (s *Server) ListPools(c *gin.Context) {
	resp, err := s.leadSvc.ListPools(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// NextLead peeks the agent's next uncalled lead in a pool without
// consuming it.
func (s *Server) NextLead(c *gin.Context) {
	poolID := c.Param("id")
	if poolID == "" {
		AbortWithError(c, newValidationError("id", "missing_id", "pool id is required"))
		return
	}

	resp, err := s.leadSvc.NextLead(c.Request.Context(), poolID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
