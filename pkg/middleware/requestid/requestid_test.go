package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, incoming string) (string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())

	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if incoming != "" {
		req.Header.Set(HeaderKey, incoming)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return seen, w.Header().Get(HeaderKey)
}

func TestMiddlewareGeneratesID(t *testing.T) {
	seen, echoed := serve(t, "")
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, echoed)
}

func TestMiddlewareReusesCallerID(t *testing.T) {
	seen, echoed := serve(t, "gateway-42.a:b_c")
	assert.Equal(t, "gateway-42.a:b_c", seen)
	assert.Equal(t, seen, echoed)
}

func TestMiddlewareReplacesUnsafeID(t *testing.T) {
	for _, incoming := range []string{"bad id", "x\"y", strings.Repeat("a", maxLength+1)} {
		seen, _ := serve(t, incoming)
		assert.NotEqual(t, incoming, seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err, incoming)
	}
}

func TestValueWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, Value(c))
}
