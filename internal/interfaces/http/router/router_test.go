package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func drive(t *testing.T, engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRouter_DefaultsToV1(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouter_WithAPIVersion(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))

	group := NewDomainGroup("/orders")
	group.GET("/:orderId", func(c *gin.Context) {
		c.String(http.StatusOK, c.Param("orderId"))
	})
	r.Register(group).Setup()

	w := drive(t, engine, "GET", "/api/v2/orders/ord-1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ord-1", w.Body.String())
}

func TestRouter_MiddlewareRunsBeforeGroupRoutes(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)
	r.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "req-1")
		c.Next()
	})

	group := NewDomainGroup("/system")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(group).Setup()

	w := drive(t, engine, "GET", "/api/v1/system/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
}

func TestDomainGroup_RegistersEachMethod(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("/orders")
	g.GET("/:orderId/lines/:lineId/pieces", func(c *gin.Context) {
		c.String(http.StatusOK, "listed")
	}).
		POST("/:orderId/tracking", func(c *gin.Context) {
			c.String(http.StatusOK, "applied")
		}).
		PUT("/:orderId/location", func(c *gin.Context) {
			c.String(http.StatusOK, "stored")
		}).
		DELETE("/:orderId/pieces/:pieceId", func(c *gin.Context) {
			c.String(http.StatusNoContent, "")
		})

	api := engine.Group("/api/v1")
	g.RegisterRoutes(api)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"GET", "/api/v1/orders/ord-1/lines/line-1/pieces", http.StatusOK},
		{"POST", "/api/v1/orders/ord-1/tracking", http.StatusOK},
		{"PUT", "/api/v1/orders/ord-1/location", http.StatusOK},
		{"DELETE", "/api/v1/orders/ord-1/pieces/p-1", http.StatusNoContent},
	}
	for _, tt := range tests {
		w := drive(t, engine, tt.method, tt.path)
		assert.Equal(t, tt.status, w.Code, "%s %s", tt.method, tt.path)
	}
}

func TestDomainGroup_GroupMiddlewareDoesNotLeak(t *testing.T) {
	engine := gin.New()

	admin := NewDomainGroup("/admin")
	admin.Use(func(c *gin.Context) {
		c.Header("X-Admin", "true")
		c.Next()
	})
	admin.GET("/flags", func(c *gin.Context) {
		c.String(http.StatusOK, "flags")
	})

	system := NewDomainGroup("/system")
	system.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	api := engine.Group("/api/v1")
	admin.RegisterRoutes(api)
	system.RegisterRoutes(api)

	w := drive(t, engine, "GET", "/api/v1/admin/flags")
	assert.Equal(t, "true", w.Header().Get("X-Admin"))

	w = drive(t, engine, "GET", "/api/v1/system/ping")
	assert.Empty(t, w.Header().Get("X-Admin"))
}

func TestDomainGroup_NestedGroupsRegisterRecursively(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("/orders")

	lines := g.Group("/lines")
	lines.GET("", func(c *gin.Context) {
		c.String(http.StatusOK, "lines")
	})

	pieces := g.Group("/pieces")
	pieces.GET("", func(c *gin.Context) {
		c.String(http.StatusOK, "pieces")
	})

	api := engine.Group("/api/v1")
	g.RegisterRoutes(api)

	w := drive(t, engine, "GET", "/api/v1/orders/lines")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "lines", w.Body.String())

	w = drive(t, engine, "GET", "/api/v1/orders/pieces")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pieces", w.Body.String())
}

func TestRouter_MountsMultipleDomainGroups(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	orders := NewDomainGroup("/orders")
	orders.POST("/:orderId/tracking", func(c *gin.Context) {
		c.String(http.StatusOK, "tracked")
	})

	admin := NewDomainGroup("/admin")
	admin.GET("/flags", func(c *gin.Context) {
		c.String(http.StatusOK, "flags")
	})

	r.Register(orders).Register(admin).Setup()

	w := drive(t, engine, "POST", "/api/v1/orders/ord-1/tracking")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tracked", w.Body.String())

	w = drive(t, engine, "GET", "/api/v1/admin/flags")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "flags", w.Body.String())
}
