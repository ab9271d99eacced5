package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	assignmentdomain "github.com/Romeobluesky/callup-api/internal/assignment/domain"
)

type bulkAssignRequest struct {
	PoolID      string `json:"pool_id"`
	Assignments []struct {
		AgentID string `json:"agent_id"`
		Count   int    `json:"count"`
	} `json:"assignments"`
}

// BulkAssign distributes a pool's unclaimed leads across agents.
func (s *Server) BulkAssign(c *gin.Context) {
	var req bulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	grants := make([]assignmentdomain.Grant, 0, len(req.Assignments))
	for _, a := range req.Assignments {
		grants = append(grants, assignmentdomain.Grant{
			AgentID: strings.TrimSpace(a.AgentID),
			Count:   a.Count,
		})
	}

	resp, err := s.assignmentSvc.Assign(c.Request.Context(), assignmentdomain.BulkRequest{
		PoolID: strings.TrimSpace(req.PoolID),
		Grants: grants,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
