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

func TestObserveQuery(t *testing.T) {
	before := testutil.ToFloat64(QueriesTotal.WithLabelValues("fetch", OutcomeOK))

	ObserveQuery("fetch", OutcomeOK, time.Now())

	assert.Equal(t, before+1, testutil.ToFloat64(QueriesTotal.WithLabelValues("fetch", OutcomeOK)))
}

func TestObserveMutation(t *testing.T) {
	okBefore := testutil.ToFloat64(RowsAffected.WithLabelValues("Member", "update"))
	failedBefore := testutil.ToFloat64(MutationsTotal.WithLabelValues("Member", "update", OutcomeError))

	ObserveMutation("Member", "update", OutcomeOK, 3)
	ObserveMutation("Member", "update", OutcomeError, 5)

	assert.Equal(t, okBefore+3, testutil.ToFloat64(RowsAffected.WithLabelValues("Member", "update")))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(MutationsTotal.WithLabelValues("Member", "update", OutcomeError)))
}

func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	ObserveQuery("count", OutcomeOK, time.Now())

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "querydeck_queries_total"))
}
