package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/fulfillment/backend/internal/interfaces/http/dto"
	"github.com/fulfillment/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulfillment/backend/tests/testutil"
)

func newBaseTestContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/tracking", nil)
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	testutil.DecodeJSON(t, w, &resp)
	return resp
}

func TestGetRequestID(t *testing.T) {
	t.Run("context value wins over header", func(t *testing.T) {
		c, _ := newBaseTestContext(t)
		c.Set(RequestIDKey, "ctx-id")
		c.Request.Header.Set(RequestIDKey, "header-id")
		assert.Equal(t, "ctx-id", getRequestID(c))
	})

	t.Run("falls back to header", func(t *testing.T) {
		c, _ := newBaseTestContext(t)
		c.Request.Header.Set(RequestIDKey, "header-id")
		assert.Equal(t, "header-id", getRequestID(c))
	})

	t.Run("empty when unset", func(t *testing.T) {
		c, _ := newBaseTestContext(t)
		assert.Empty(t, getRequestID(c))
	})
}

func TestGetUserID(t *testing.T) {
	operator := testutil.OperatorID()

	t.Run("from JWT claims", func(t *testing.T) {
		c, _ := newBaseTestContext(t)
		c.Set(middleware.JWTUserIDKey, operator.String())
		got, err := getUserID(c)
		require.NoError(t, err)
		assert.Equal(t, operator, got)
	})

	t.Run("falls back to header", func(t *testing.T) {
		c, _ := newBaseTestContext(t)
		c.Request.Header.Set("X-User-ID", operator.String())
		got, err := getUserID(c)
		require.NoError(t, err)
		assert.Equal(t, operator, got)
	})

	t.Run("error when absent", func(t *testing.T) {
		c, _ := newBaseTestContext(t)
		_, err := getUserID(c)
		assert.Error(t, err)
	})

	t.Run("error on malformed UUID", func(t *testing.T) {
		c, _ := newBaseTestContext(t)
		c.Set(middleware.JWTUserIDKey, "not-a-uuid")
		_, err := getUserID(c)
		assert.Error(t, err)
	})
}

func TestGetTenantID(t *testing.T) {
	tenant := testutil.TenantID()
	other := testutil.UUID("second-tenant")

	t.Run("resolved tenant wins over claims and header", func(t *testing.T) {
		c, _ := newBaseTestContext(t)
		c.Set(middleware.TenantIDKey, tenant.String())
		c.Set(middleware.JWTTenantIDKey, other.String())
		c.Request.Header.Set("X-Tenant-ID", other.String())
		got, err := getTenantID(c)
		require.NoError(t, err)
		assert.Equal(t, tenant, got)
	})

	t.Run("claims win over header", func(t *testing.T) {
		c, _ := newBaseTestContext(t)
		c.Set(middleware.JWTTenantIDKey, tenant.String())
		c.Request.Header.Set("X-Tenant-ID", other.String())
		got, err := getTenantID(c)
		require.NoError(t, err)
		assert.Equal(t, tenant, got)
	})

	t.Run("header used when no claims", func(t *testing.T) {
		c, _ := newBaseTestContext(t)
		c.Request.Header.Set("X-Tenant-ID", tenant.String())
		got, err := getTenantID(c)
		require.NoError(t, err)
		assert.Equal(t, tenant, got)
	})

	t.Run("default tenant when nothing present", func(t *testing.T) {
		c, _ := newBaseTestContext(t)
		got, err := getTenantID(c)
		require.NoError(t, err)
		assert.Equal(t, defaultTenantID, got)
	})

	t.Run("error on malformed tenant", func(t *testing.T) {
		c, _ := newBaseTestContext(t)
		c.Request.Header.Set("X-Tenant-ID", "workshop-7")
		_, err := getTenantID(c)
		assert.Error(t, err)
	})
}

func TestBaseHandler_SuccessEnvelopes(t *testing.T) {
	h := &BaseHandler{}

	t.Run("Success wraps data with 200", func(t *testing.T) {
		c, w := newBaseTestContext(t)
		h.Success(c, map[string]int{"pieces_updated": 3})

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeEnvelope(t, w)
		assert.True(t, resp.Success)
		assert.Nil(t, resp.Error)
	})

	t.Run("Created returns 201", func(t *testing.T) {
		c, w := newBaseTestContext(t)
		h.Created(c, map[string]string{"id": uuid.NewString()})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, decodeEnvelope(t, w).Success)
	})

	t.Run("NoContent returns 204 with empty body", func(t *testing.T) {
		c, w := newBaseTestContext(t)
		h.NoContent(c)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestBaseHandler_BadRequest(t *testing.T) {
	h := &BaseHandler{}
	c, w := newBaseTestContext(t)
	c.Set(RequestIDKey, "req-55")

	h.BadRequest(c, "Batch must contain at least one update")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
	assert.Equal(t, "req-55", resp.Error.RequestID)
}

func TestBaseHandler_BindError(t *testing.T) {
	type submitRequest struct {
		Actor   string   `json:"actor" binding:"required,max=100"`
		Updates []string `json:"updates" binding:"required,min=1"`
	}

	h := &BaseHandler{}
	router := gin.New()
	router.POST("/api/v1/orders/:orderId/tracking", func(c *gin.Context) {
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
		h.Success(c, gin.H{"accepted": len(req.Updates)})
	})

	t.Run("validator violations list offending fields", func(t *testing.T) {
		w := testutil.PerformRequest(t, router, http.MethodPost, "/api/v1/orders/ord-1/tracking",
			map[string]any{"updates": []string{}}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp dto.Response
		testutil.DecodeJSON(t, w, &resp)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.NotEmpty(t, resp.Error.Details)
	})

	t.Run("malformed JSON is a plain bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/tracking", nil)
		req.Header.Set("Content-Type", "application/json")
		req.Body = http.NoBody
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp dto.Response
		testutil.DecodeJSON(t, w, &resp)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
	})
}

func TestBaseHandler_HandleDomainError(t *testing.T) {
	h := &BaseHandler{}

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"concurrency conflict", shared.ErrConcurrencyConflict, http.StatusConflict, dto.ErrCodeConcurrencyConflict},
		{"invalid state", shared.ErrInvalidState, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"storage location rule", shared.NewDomainError("NO_STORAGE_LOCATION", "Order has no storage location"), http.StatusUnprocessableEntity, dto.ErrCodeNoStorageLocation},
		{"piece validation", shared.NewDomainError("INVALID_PIECE_REF", "Unknown piece reference"), http.StatusBadRequest, dto.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newBaseTestContext(t)
			h.HandleDomainError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeEnvelope(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestBaseHandler_HandleDomainError_UnknownError(t *testing.T) {
	h := &BaseHandler{}
	c, w := newBaseTestContext(t)

	h.HandleDomainError(c, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
	// The original error message must not leak to the client.
	assert.NotContains(t, resp.Error.Message, assert.AnError.Error())
}
