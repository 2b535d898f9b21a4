package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T, r *gin.Engine) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", m.Handler())

	for _, p := range []string{"/items/1", "/items/2", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	body := scrape(t, r)
	assert.Contains(t, body, `kol_http_requests_total{method="GET",route="/items/:id",status="200"} 2`)
	assert.Contains(t, body, `kol_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
	assert.Contains(t, body, "kol_http_request_duration_seconds_bucket")
}

func TestDomainCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.SurveyFinished("completed")
		nilMetrics.EmailProcessed("invitation", "sent")
		nilMetrics.EmailQueued("reminder")
	})

	m := New()
	m.EmailProcessed("invitation", "sent")
	m.SurveyFinished("screened_out")
	r := gin.New()
	r.GET("/metrics", m.Handler())

	body := scrape(t, r)
	assert.Contains(t, body, `kol_emails_sent_total{kind="invitation",result="sent"} 1`)
	assert.Contains(t, body, `kol_surveys_finished_total{outcome="screened_out"} 1`)
}
