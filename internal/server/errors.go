package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	assignmentdomain "github.com/Romeobluesky/callup-api/internal/assignment/domain"
	dispositiondomain "github.com/Romeobluesky/callup-api/internal/disposition/domain"
	leaddomain "github.com/Romeobluesky/callup-api/internal/lead/domain"
	statsdomain "github.com/Romeobluesky/callup-api/internal/stats/domain"
)

// apiError is the wire representation of a failure.
type apiError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`

	status int
}

func (e *apiError) Error() string { return e.Code + ": " + e.Message }

var (
	ErrUnauthorized = &apiError{Code: "UNAUTHORIZED", Message: "authentication required", status: http.StatusUnauthorized}
	ErrForbidden    = &apiError{Code: "FORBIDDEN", Message: "insufficient role", status: http.StatusForbidden}
	ErrNotFound     = &apiError{Code: "NOT_FOUND", Message: "resource not found", status: http.StatusNotFound}
	ErrRateLimited  = &apiError{Code: "RATE_LIMITED", Message: "too many requests", status: http.StatusTooManyRequests}
)

func invalidRequestError() *apiError {
	return &apiError{Code: "INVALID_REQUEST", Message: "request body could not be parsed", status: http.StatusBadRequest}
}

func newValidationError(field, code, message string) *apiError {
	return &apiError{Code: "VALIDATION_FAILED", Field: field, Message: message, status: http.StatusUnprocessableEntity}
}

// domainErrorMap translates domain sentinels into the wire taxonomy.
// Validation sentinels carry the offending field name.
var domainErrorMap = map[error]*apiError{
	leaddomain.ErrInvalidPool:   {Code: "VALIDATION_FAILED", Field: "pool_id", Message: "pool id is invalid", status: http.StatusUnprocessableEntity},
	leaddomain.ErrInvalidCount:  {Code: "VALIDATION_FAILED", Field: "count", Message: "count is out of range", status: http.StatusUnprocessableEntity},
	leaddomain.ErrInvalidStatus: {Code: "VALIDATION_FAILED", Field: "status", Message: "status must be unused or used", status: http.StatusUnprocessableEntity},
	leaddomain.ErrPoolNotFound:  {Code: "POOL_NOT_FOUND", Message: "pool does not exist or is inactive", status: http.StatusNotFound},
	leaddomain.ErrLeadNotFound:  {Code: "LEAD_NOT_FOUND", Message: "lead does not exist", status: http.StatusNotFound},
	leaddomain.ErrNoLeadsAvailable: {
		Code: "NO_LEADS_AVAILABLE", Message: "no claimable leads remain in the pool", status: http.StatusConflict,
	},
	leaddomain.ErrInvalidTenant: {Code: "UNAUTHORIZED", Message: "authentication required", status: http.StatusUnauthorized},
	leaddomain.ErrInvalidAgent:  {Code: "UNAUTHORIZED", Message: "authentication required", status: http.StatusUnauthorized},

	dispositiondomain.ErrInvalidLead:           {Code: "VALIDATION_FAILED", Field: "lead_id", Message: "lead id is invalid", status: http.StatusUnprocessableEntity},
	dispositiondomain.ErrInvalidResultCode:     {Code: "VALIDATION_FAILED", Field: "result_code", Message: "result code is required", status: http.StatusUnprocessableEntity},
	dispositiondomain.ErrInvalidCallWindow:     {Code: "VALIDATION_FAILED", Field: "call_end", Message: "call window is invalid", status: http.StatusUnprocessableEntity},
	dispositiondomain.ErrInvalidDuration:       {Code: "VALIDATION_FAILED", Field: "duration", Message: "duration must not be negative", status: http.StatusUnprocessableEntity},
	dispositiondomain.ErrInvalidIdempotencyKey: {Code: "VALIDATION_FAILED", Field: "idempotency_key", Message: "idempotency key must be a uuid", status: http.StatusUnprocessableEntity},
	dispositiondomain.ErrLeadNotFound:          {Code: "LEAD_NOT_FOUND", Message: "lead does not exist", status: http.StatusNotFound},
	dispositiondomain.ErrLeadAlreadyUsed:       {Code: "LEAD_ALREADY_USED", Message: "lead already has a disposition", status: http.StatusConflict},
	dispositiondomain.ErrDuplicateDisposition:  {Code: "DUPLICATE_DISPOSITION", Message: "disposition already recorded", status: http.StatusConflict},
	dispositiondomain.ErrInvalidTenant:         {Code: "UNAUTHORIZED", Message: "authentication required", status: http.StatusUnauthorized},

	statsdomain.ErrInvalidPeriod: {Code: "VALIDATION_FAILED", Field: "period", Message: "period must be today, week, month or all", status: http.StatusUnprocessableEntity},
	statsdomain.ErrInvalidAgent:  {Code: "VALIDATION_FAILED", Field: "agent_id", Message: "agent id is invalid", status: http.StatusUnprocessableEntity},
	statsdomain.ErrInvalidTenant: {Code: "UNAUTHORIZED", Message: "authentication required", status: http.StatusUnauthorized},

	assignmentdomain.ErrInvalidPool:      {Code: "VALIDATION_FAILED", Field: "pool_id", Message: "pool id is invalid", status: http.StatusUnprocessableEntity},
	assignmentdomain.ErrInvalidAgent:     {Code: "VALIDATION_FAILED", Field: "agent_id", Message: "agent id is invalid", status: http.StatusUnprocessableEntity},
	assignmentdomain.ErrInvalidCount:     {Code: "VALIDATION_FAILED", Field: "count", Message: "count is out of range", status: http.StatusUnprocessableEntity},
	assignmentdomain.ErrEmptyAssignments: {Code: "VALIDATION_FAILED", Field: "assignments", Message: "at least one assignment is required", status: http.StatusUnprocessableEntity},
	assignmentdomain.ErrPoolNotFound:     {Code: "POOL_NOT_FOUND", Message: "pool does not exist or is inactive", status: http.StatusNotFound},
	assignmentdomain.ErrNoLeadsAvailable: {
		Code: "NO_LEADS_AVAILABLE", Message: "no claimable leads remain in the pool", status: http.StatusConflict,
	},
	assignmentdomain.ErrForbidden:     {Code: "FORBIDDEN", Message: "insufficient role", status: http.StatusForbidden},
	assignmentdomain.ErrInvalidTenant: {Code: "UNAUTHORIZED", Message: "authentication required", status: http.StatusUnauthorized},
}

// AbortWithError writes the wire error for err and aborts the request.
// Unknown errors become STORE_UNAVAILABLE without leaking detail.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.status, gin.H{"error": apiErr})
		return
	}
	for sentinel, mapped := range domainErrorMap {
		if errors.Is(err, sentinel) {
			c.AbortWithStatusJSON(mapped.status, gin.H{"error": mapped})
			return
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.AbortWithStatusJSON(ErrNotFound.status, gin.H{"error": ErrNotFound})
		return
	}
	c.Error(err)
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": &apiError{
		Code:    "STORE_UNAVAILABLE",
		Message: "the data store rejected the operation",
	}})
}
