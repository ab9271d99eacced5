package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	statsdomain "github.com/Romeobluesky/callup-api/internal/stats/domain"
	"github.com/Romeobluesky/callup-api/internal/tenantcontext"
)

// GetStats aggregates daily call counters over a period. Agents read their
// own numbers; admins may pass agent_id to read someone else's.
func (s *Server) GetStats(c *gin.Context) {
	period, err := statsdomain.ParsePeriod(strings.TrimSpace(c.Query("period")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	agentID := strings.TrimSpace(c.Query("agent_id"))
	if agentID != "" {
		principal, ok := tenantcontext.PrincipalFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if agentID != principal.AgentID.String() && !principal.IsAdmin() {
			AbortWithError(c, ErrForbidden)
			return
		}
	}

	resp, err := s.statsSvc.Get(c.Request.Context(), statsdomain.GetRequest{
		AgentID: agentID,
		Period:  period,
		Now:     time.Now().UTC(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
