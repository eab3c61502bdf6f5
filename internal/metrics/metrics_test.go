package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register should tolerate existing collectors: %v", err)
	}
}

func TestObserveAlarmOutcomes(t *testing.T) {
	matched := testutil.ToFloat64(alarmsTotal.WithLabelValues(OutcomeMatched))
	ignored := testutil.ToFloat64(alarmsTotal.WithLabelValues(OutcomeIgnored))

	ObserveAlarm(time.Millisecond, OutcomeMatched)
	ObserveAlarm(time.Millisecond, "bogus")

	if got := testutil.ToFloat64(alarmsTotal.WithLabelValues(OutcomeMatched)); got != matched+1 {
		t.Fatalf("expected matched to grow by one, got %v -> %v", matched, got)
	}
	if got := testutil.ToFloat64(alarmsTotal.WithLabelValues(OutcomeIgnored)); got != ignored+1 {
		t.Fatalf("unknown outcomes should count as ignored, got %v -> %v", ignored, got)
	}
}

func TestObserveStateChangeSetsGauge(t *testing.T) {
	before := testutil.ToFloat64(stateChangesTotal)
	ObserveStateChange("checkout", 5)
	if got := testutil.ToFloat64(businessServiceStatus.WithLabelValues("checkout")); got != 5 {
		t.Fatalf("expected gauge 5, got %v", got)
	}
	if got := testutil.ToFloat64(stateChangesTotal); got != before+1 {
		t.Fatalf("expected one more state change, got %v -> %v", before, got)
	}
	ForgetBusinessService("checkout")
	if n := testutil.CollectAndCount(businessServiceStatus); n != 0 {
		t.Fatalf("expected gauge series removed, %d left", n)
	}
}

func TestObserveReloadLabels(t *testing.T) {
	before := testutil.ToFloat64(reloadsTotal.WithLabelValues(OutcomeSuccess))
	ObserveReload("anything")
	if got := testutil.ToFloat64(reloadsTotal.WithLabelValues(OutcomeSuccess)); got != before+1 {
		t.Fatalf("expected success count to grow, got %v -> %v", before, got)
	}
}
