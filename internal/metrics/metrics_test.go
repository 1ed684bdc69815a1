package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveParse(t *testing.T) {
	m := New()
	m.ObserveParse("MIND", 10, 25, 20*time.Millisecond)
	m.ObserveParse("MIND", 2, 3, time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `kentetl_documents_parsed_total{section="MIND"} 2`)
	assert.Contains(t, body, "kentetl_rubrics_emitted_total 12")
	assert.Contains(t, body, "kentetl_remedies_emitted_total 28")
	assert.Contains(t, body, "kentetl_parse_duration_seconds_count 2")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveParse("MIND", 1, 1, time.Millisecond)
	m.FetchFailed("status")
	m.JobFinished("completed")
}

func TestHandler(t *testing.T) {
	m := New()
	m.FetchFailed("not_found")

	body := scrape(t, m)
	assert.True(t, strings.Contains(body, `kentetl_fetch_errors_total{kind="not_found"} 1`))
	assert.Contains(t, body, "go_goroutines")
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
