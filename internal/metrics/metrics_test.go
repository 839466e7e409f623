package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCountersExported(t *testing.T) {
	KMSRequest("retrieve")
	KMSResponse("key")
	LocusUpdate("applied")
	LocusResync()
	ActiveCalls(3)
	PushReconnect("mercury")
	PushEvent("locus")

	body := scrape(t)
	require.Contains(t, body, `rtc_kms_requests_total{method="retrieve"}`)
	require.Contains(t, body, `rtc_kms_responses_total{kind="key"}`)
	require.Contains(t, body, `rtc_locus_updates_total{outcome="applied"}`)
	require.Contains(t, body, "rtc_locus_resyncs_total")
	require.Contains(t, body, "rtc_active_calls 3")
	require.Contains(t, body, `rtc_push_reconnects_total{source="mercury"}`)
	require.Contains(t, body, `rtc_push_events_total{type="locus"}`)
}
