package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	obscontext "github.com/Romeobluesky/callup-api/internal/observability/context"
	"github.com/Romeobluesky/callup-api/internal/tenantcontext"
)

// principalClaims is the token shape issued by the authentication
// collaborator. Tokens are verified here, never issued.
type principalClaims struct {
	TenantID string `json:"tenant_id"`
	AgentID  string `json:"agent_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// RequirePrincipal verifies the Bearer token and stores the principal on
// the request context. Every /v1 route runs behind it.
func (s *Server) RequirePrincipal() gin.HandlerFunc {
	secret := []byte(s.cfg.AuthSecret)
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		var claims principalClaims
		parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !parsed.Valid {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := principalFromClaims(claims)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := tenantcontext.WithPrincipal(c.Request.Context(), principal)
		ctx = obscontext.WithTenantID(ctx, principal.TenantID.String())
		ctx = obscontext.WithAgentID(ctx, principal.AgentID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAdmin gates administrator-only routes. RequirePrincipal must run
// first.
func (s *Server) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := tenantcontext.PrincipalFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !principal.IsAdmin() {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func principalFromClaims(claims principalClaims) (tenantcontext.Principal, error) {
	tenantID, err := snowflake.ParseString(strings.TrimSpace(claims.TenantID))
	if err != nil || tenantID == 0 {
		return tenantcontext.Principal{}, jwt.ErrTokenInvalidClaims
	}
	agentID, err := snowflake.ParseString(strings.TrimSpace(claims.AgentID))
	if err != nil || agentID == 0 {
		return tenantcontext.Principal{}, jwt.ErrTokenInvalidClaims
	}
	role := strings.TrimSpace(claims.Role)
	switch role {
	case tenantcontext.RoleAgent, tenantcontext.RoleCompanyAdmin, tenantcontext.RoleSuperAdmin:
	default:
		return tenantcontext.Principal{}, jwt.ErrTokenInvalidClaims
	}
	return tenantcontext.Principal{
		TenantID: tenantID,
		AgentID:  agentID,
		Role:     role,
	}, nil
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// rateLimitClaims applies the fixed-window limiter per agent on the claim
// endpoint.
func (s *Server) rateLimitClaims() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := tenantcontext.PrincipalFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !s.claimLimiter.Allow(principal.AgentID.String()) {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
