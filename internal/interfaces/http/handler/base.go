package handler

import (
	"errors"
	"net/http"

	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/fulfillment/backend/internal/interfaces/http/dto"
	"github.com/fulfillment/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = "X-Request-ID"

// defaultTenantID is the tenant assumed when a request carries no tenant at
// all, so single-tenant deployments work without issuing JWTs.
var defaultTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// BaseHandler provides the response and identity helpers shared by the
// tracking, piece, and flag handlers.
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(RequestIDKey)
}

// getUserID resolves the acting operator from JWT claims, falling back to
// the X-User-ID header for unauthenticated development setups.
func getUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr := middleware.GetJWTUserID(c)
	if userIDStr == "" {
		userIDStr = c.GetHeader("X-User-ID")
	}
	if userIDStr == "" {
		return uuid.Nil, errors.New("user ID not found in context")
	}
	return uuid.Parse(userIDStr)
}

// getTenantID resolves the tenant in the same order the middleware chain
// establishes it: tenant middleware, raw JWT claims, then the X-Tenant-ID
// header for service-to-service calls.
func getTenantID(c *gin.Context) (uuid.UUID, error) {
	tenantIDStr := middleware.GetTenantID(c)
	if tenantIDStr == "" {
		tenantIDStr = middleware.GetJWTTenantID(c)
	}
	if tenantIDStr == "" {
		tenantIDStr = c.GetHeader("X-Tenant-ID")
	}
	if tenantIDStr == "" {
		return defaultTenantID, nil
	}
	return uuid.Parse(tenantIDStr)
}

// Success sends a 200 response wrapping data in the standard envelope.
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 response wrapping data in the standard envelope.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the given status and error code.
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 response.
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// InternalError sends a 500 response.
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// BindError reports a request binding failure. Validator violations become a
// per-field listing; anything else (malformed JSON, wrong types) is a plain
// bad request.
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	var violations validator.ValidationErrors
	if errors.As(err, &violations) {
		middleware.HandleValidationError(c, err)
		return
	}
	h.BadRequest(c, err.Error())
}

// HandleDomainError converts domain errors to HTTP responses, mapping the
// domain error code onto a status via the dto error table. Unrecognized
// errors surface as 500 without leaking their message.
func (h *BaseHandler) HandleDomainError(c *gin.Context, err error) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}
	h.InternalError(c, "An unexpected error occurred")
}
