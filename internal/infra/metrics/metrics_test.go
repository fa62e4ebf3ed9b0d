package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesDomainCounters(t *testing.T) {
	RecordLike("new")
	RecordFormation("created")
	RecordPromotions(2)
	RecordConsent("activated")
	RecordEscrow("refunded", 2)
	RecordSweep("conversations", 1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{
		`dating_likes_recorded_total{result="new"}`,
		`dating_matches_formations_total{outcome="created"}`,
		"dating_surfacing_promoted_total",
		`dating_consent_results_total{result="activated"}`,
		`dating_reversal_escrow_total{result="refunded"}`,
		`dating_sweep_rows_total{kind="conversations"}`,
	} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("metrics output is missing %s", name)
		}
	}
}
