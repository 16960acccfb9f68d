package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/eduschedule-api/pkg/config"
	"github.com/noah-isme/eduschedule-api/pkg/middleware/requestid"
)

func newLoggedRouter() (*gin.Engine, *observer.ObservedLogs) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.Use(GinMiddleware(zap.New(core)))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/timetables/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/timetables/generate", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.Status(http.StatusInternalServerError)
	})
	return r, logs
}

func TestGinMiddlewareLogsRouteTemplate(t *testing.T) {
	r, logs := newLoggedRouter()

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/timetables/tt-1", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "/timetables/:id", fields["route"])
	assert.Equal(t, "/timetables/tt-1", fields["path"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestGinMiddlewareSkipsHealthyProbes(t *testing.T) {
	r, logs := newLoggedRouter()

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, 0, logs.Len())
}

func TestGinMiddlewareLevels(t *testing.T) {
	r, logs := newLoggedRouter()

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/timetables/generate", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Equal(t, 2, logs.Len())
	failed := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, failed.Level)
	assert.Contains(t, failed.ContextMap()["errors"], assert.AnError.Error())

	missing := logs.All()[1]
	assert.Equal(t, zapcore.WarnLevel, missing.Level)
	assert.Equal(t, "unmatched", missing.ContextMap()["route"])
}

func TestNewHonoursLevel(t *testing.T) {
	l, err := New(&config.Config{Env: config.EnvProduction, Log: config.LogConfig{Level: "warn"}})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}
