package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_RecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/:id/detail", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/1/detail", "/2/detail", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/:id/detail", "200")); got != 2 {
		t.Errorf("requests for /:id/detail = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}
}

func TestAuthEvent(t *testing.T) {
	m := New()
	m.AuthEvent(EventLogin)
	m.AuthEvent(EventLogin)
	m.AuthEvent(EventLoginFailed)

	if got := testutil.ToFloat64(m.authEvents.WithLabelValues(EventLogin)); got != 2 {
		t.Errorf("login events = %v, want 2", got)
	}

	var nilMetrics *Metrics
	nilMetrics.AuthEvent(EventLogin)
}

func TestHandler(t *testing.T) {
	m := New()
	m.AuthEvent(EventSignup)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `todo_auth_events_total{event="signup"} 1`) {
		t.Error("metrics output missing auth event counter")
	}
}
