package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCycle("twitch", OutcomeOK, time.Second)
	m.ObserveSnapshot("twitch", 3, 1)
	m.Notification("twitch", true)
	m.SaveError("twitch")
	m.Tracked("twitch", 2)
}

func TestCounters(t *testing.T) {
	m := New()
	m.Notification("twitch", true)
	m.Notification("twitch", true)
	m.Notification("twitch", false)
	m.ObserveSnapshot("twitch", 5, 2)
	m.Tracked("twitch", 4)

	if diff := cmp.Diff(2.0, testutil.ToFloat64(m.notifications.WithLabelValues("twitch", "sent"))); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(1.0, testutil.ToFloat64(m.notifications.WithLabelValues("twitch", "failed"))); diff != "" {
		t.Errorf("failed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(5.0, testutil.ToFloat64(m.fetchedItems.WithLabelValues("twitch"))); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(4.0, testutil.ToFloat64(m.tracked.WithLabelValues("twitch"))); diff != "" {
		t.Errorf("tracked mismatch (-want +got):\n%s", diff)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveCycle("youtube_videos", OutcomeFetchErr, 2*time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `streamwatch_cycles_total{outcome="fetch_error",source="youtube_videos"} 1`) {
		t.Errorf("cycle counter missing from output:\n%s", body)
	}
}
