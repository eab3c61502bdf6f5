package models

import "testing"

func TestSeverityMappingIsConsistent(t *testing.T) {
	for _, status := range Statuses() {
		sev, ok := SeverityFor(status)
		if !ok {
			t.Fatalf("no severity for %s", status)
		}
		if back := sev.ToStatus(); back != status {
			t.Fatalf("round trip %s -> %s -> %s", status, sev, back)
		}
	}
	if _, ok := SeverityFor(StatusUnknown); ok {
		t.Fatalf("unknown status must not map to a severity")
	}
}

func TestSeverityToStatus(t *testing.T) {
	cases := map[Severity]Status{
		SeverityIndeterminate: StatusIndeterminate,
		SeverityCleared:       StatusNormal,
		SeverityNormal:        StatusNormal,
		SeverityWarning:       StatusWarning,
		SeverityMinor:         StatusMinor,
		SeverityMajor:         StatusMajor,
		SeverityCritical:      StatusCritical,
		Severity(0):           StatusIndeterminate,
		Severity(42):          StatusIndeterminate,
	}
	for sev, want := range cases {
		if got := sev.ToStatus(); got != want {
			t.Fatalf("%s: expected %s, got %s", sev, want, got)
		}
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]Severity{
		"major":    SeverityMajor,
		"CLEARED":  SeverityCleared,
		" 7 ":      SeverityCritical,
		"1":        SeverityIndeterminate,
		"Warning ": SeverityWarning,
	}
	for raw, want := range cases {
		got, err := ParseSeverity(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s, got %s", raw, want, got)
		}
	}
	for _, raw := range []string{"0", "8", "loud"} {
		if _, err := ParseSeverity(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestIPServiceReductionKeys(t *testing.T) {
	ref := IPServiceRef{ID: 10, NodeID: 3, IPAddress: "192.168.1.5", ServiceName: "HTTP"}
	keys := ref.ReductionKeys()
	want := []string{
		"uei.opennms.org/nodes/nodeLostService::3:192.168.1.5:HTTP",
		"uei.opennms.org/nodes/nodeDown::3",
		"uei.opennms.org/nodes/interfaceDown::3:192.168.1.5",
	}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(keys))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("key %d: expected %s, got %s", i, want[i], keys[i])
		}
	}
}
