package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveQuery("lexical", 3*time.Millisecond)
	m.ObserveQuery("lexical", time.Millisecond)
	m.ObserveQuery("none", time.Millisecond)
	m.ObserveLearn(true)
	m.ObserveLearn(false)
	m.ObserveLearn(false)
	m.ObserveIngest(4, 1)
	m.ObserveError(ErrEmbedding)
	m.SetKnowledgeSize(12)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.queries.WithLabelValues("lexical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues("none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.learns.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.learns.WithLabelValues("updated")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ingestPairs.WithLabelValues("learned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues(ErrEmbedding)))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.knowledgeSize))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveQuery("cache", time.Millisecond)
		m.ObserveLearn(true)
		m.ObserveForget()
		m.ObserveIngest(1, 1)
		m.ObserveError(ErrStore)
		m.SetKnowledgeSize(1)
		m.SetCacheSize(1)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveQuery("vector", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `brain_queries_total{match_type="vector"} 1`))
	assert.Contains(t, body, "brain_think_duration_seconds_bucket")
}
