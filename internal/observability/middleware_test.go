package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/deltaxpc/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRequestMiddlewareRecordsAndLogs(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	r := gin.New()
	r.Use(RequestLogger(zerolog.New(&logs)))
	r.Use(RequestMetricsMiddleware())
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/boom", "500"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	if got := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/boom", "500")); got != before+1 {
		t.Fatalf("http requests got=%v want=%v", got, before+1)
	}
	if !strings.Contains(logs.String(), `"level":"error"`) || !strings.Contains(logs.String(), `"path":"/boom"`) {
		t.Fatalf("expected error-level request log, got %q", logs.String())
	}

	unmatchedBefore := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "unmatched", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	if got := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "unmatched", "404")); got != unmatchedBefore+1 {
		t.Fatalf("unmatched requests got=%v want=%v", got, unmatchedBefore+1)
	}
}
