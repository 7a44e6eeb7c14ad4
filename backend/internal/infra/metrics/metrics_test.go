package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordersAfterRegister(t *testing.T) {
	MustRegister()
	MustRegister()

	before := testutil.ToFloat64(updatesChecks.WithLabelValues("has_updates", "true"))
	RecordUpdatesCheck("has_updates", true)
	if got := testutil.ToFloat64(updatesChecks.WithLabelValues("has_updates", "true")); got != before+1 {
		t.Fatalf("expected counter to increase by 1, got %v -> %v", before, got)
	}

	beforeWrites := testutil.ToFloat64(releaseWrites.WithLabelValues("unknown", "ok"))
	RecordReleaseWrite("  ", "ok")
	if got := testutil.ToFloat64(releaseWrites.WithLabelValues("unknown", "ok")); got != beforeWrites+1 {
		t.Fatalf("blank operation should fall back to unknown label")
	}

	ObserveHTTP("GET", "", 200, 5*time.Millisecond)
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "unmatched", "200")); got < 1 {
		t.Fatalf("expected unmatched route to be counted")
	}

	RecordReleaseNotes("de", false)
	if got := testutil.ToFloat64(releaseNotesRequests.WithLabelValues("de", "false")); got < 1 {
		t.Fatalf("expected release notes counter")
	}
}
