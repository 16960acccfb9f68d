package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/service"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
	"github.com/noah-isme/eduschedule-api/pkg/middleware/requestid"
	"github.com/noah-isme/eduschedule-api/pkg/response"
)

type validatorStub struct {
	claims *models.JWTClaims
	token  string
}

func (v *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	v.token = token
	if v.claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return v.claims, nil
}

func serve(r *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAndRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &validatorStub{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleTeacher}}
	r := gin.New()
	api := r.Group("", JWT(stub))
	api.GET("/read", Readers(), func(c *gin.Context) { c.String(http.StatusOK, CurrentClaims(c).UserID) })
	api.POST("/edit", Editors(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/read", "Bearer abc")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
	assert.Equal(t, "abc", stub.token)

	w = serve(r, http.MethodPost, "/edit", "bearer abc")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "TEACHER")

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/read", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/read", "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/read", "Bearer   ").Code)

	stub.claims = nil
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/read", "Bearer bad").Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", Readers(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/", "").Code)
}

func TestResponseMetaCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware(), WithResponseMeta())
	r.GET("/", func(c *gin.Context) {
		SetMeta(c, "engine_steps", 12)
		response.JSON(c, http.StatusOK, gin.H{"ok": true}, nil, ExtractMeta(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "req-42", body.Meta["request_id"])
	assert.EqualValues(t, 12, body.Meta["engine_steps"])
	assert.Contains(t, body.Meta, "processing_time_ms")
}

func TestExtractMetaWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, ExtractMeta(c))
}

func TestMetricsUsesRouteTemplates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/timetables/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/timetables/a", "")
	serve(r, http.MethodGet, "/timetables/b", "")
	serve(r, http.MethodGet, "/wp-admin.php", "")

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	routes := map[string]bool{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "path" {
					routes[label.GetValue()] = true
				}
			}
		}
	}
	assert.True(t, routes["/timetables/:id"])
	assert.True(t, routes[unmatchedRoute])
	assert.False(t, routes["/timetables/a"])
	assert.False(t, routes["/wp-admin.php"])
	assert.Equal(t, uint64(3), metrics.Snapshot().RequestsTotal)
}
