package functions

import (
	"testing"

	"github.com/miradorstack/mirador-bsm/internal/models"
)

func weighted(statuses ...models.Status) []WeightedStatus {
	out := make([]WeightedStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, WeightedStatus{Status: s, Weight: 1})
	}
	return out
}

// enumerate calls fn with every combination of n statuses drawn from allInputs().
func enumerate(n int, fn func([]models.Status)) {
	inputs := allInputs()
	current := make([]models.Status, n)
	var walk func(int)
	walk = func(i int) {
		if i == n {
			fn(append([]models.Status(nil), current...))
			return
		}
		for _, s := range inputs {
			current[i] = s
			walk(i + 1)
		}
	}
	walk(0)
}

func TestMostCriticalIsMaximum(t *testing.T) {
	enumerate(3, func(statuses []models.Status) {
		got := MostCritical().Reduce(weighted(statuses...))
		if want := models.MaxStatus(statuses...); got != want {
			t.Fatalf("most-critical(%v): expected %s, got %s", statuses, want, got)
		}
	})
	if got := MostCritical().Reduce(nil); got != models.StatusUnknown {
		t.Fatalf("no children should reduce to unknown, got %s", got)
	}
}

func TestThresholdReduce(t *testing.T) {
	cases := []struct {
		name      string
		threshold float64
		inputs    []WeightedStatus
		want      models.Status
	}{
		{
			name:      "no known children",
			threshold: 0.5,
			inputs:    weighted(models.StatusUnknown, models.StatusUnknown),
			want:      models.StatusUnknown,
		},
		{
			name:      "half at major",
			threshold: 0.5,
			inputs:    weighted(models.StatusMajor, models.StatusNormal),
			want:      models.StatusMajor,
		},
		{
			name:      "one of three below half",
			threshold: 0.5,
			inputs:    weighted(models.StatusMajor, models.StatusMinor, models.StatusNormal),
			want:      models.StatusMinor,
		},
		{
			name:      "unknown abstains",
			threshold: 0.75,
			inputs:    weighted(models.StatusCritical, models.StatusUnknown),
			want:      models.StatusCritical,
		},
		{
			name:      "full threshold needs every child",
			threshold: 1,
			inputs:    weighted(models.StatusCritical, models.StatusCritical, models.StatusWarning),
			want:      models.StatusWarning,
		},
		{
			name:      "weights shift the balance",
			threshold: 0.5,
			inputs: []WeightedStatus{
				{Status: models.StatusCritical, Weight: 3},
				{Status: models.StatusNormal, Weight: 1},
				{Status: models.StatusNormal, Weight: 1},
			},
			want: models.StatusCritical,
		},
		{
			name:      "exact fraction",
			threshold: 0.3,
			inputs: []WeightedStatus{
				{Status: models.StatusMajor, Weight: 3},
				{Status: models.StatusNormal, Weight: 7},
			},
			want: models.StatusMajor,
		},
	}
	for _, tc := range cases {
		if got := Threshold(tc.threshold).Reduce(tc.inputs); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestThresholdIsMonotonic(t *testing.T) {
	for _, fraction := range []float64{0.25, 0.5, 0.66, 1} {
		fn := Threshold(fraction)
		enumerate(3, func(statuses []models.Status) {
			base := fn.Reduce(weighted(statuses...))
			for i := range statuses {
				if !statuses[i].Known() {
					continue
				}
				for raised := statuses[i] + 1; raised <= models.HighestStatus; raised++ {
					bumped := append([]models.Status(nil), statuses...)
					bumped[i] = raised
					if got := fn.Reduce(weighted(bumped...)); got.IsLessThan(base) {
						t.Fatalf("threshold(%v): raising %v to %v lowered %s to %s", fraction, statuses, bumped, base, got)
					}
				}
			}
		})
	}
}

func TestHighestSeverityAbove(t *testing.T) {
	fn := HighestSeverityAbove(models.StatusMinor)
	cases := []struct {
		in   []models.Status
		want models.Status
	}{
		{in: []models.Status{models.StatusUnknown}, want: models.StatusUnknown},
		{in: []models.Status{models.StatusWarning, models.StatusMinor}, want: models.StatusNormal},
		{in: []models.Status{models.StatusWarning, models.StatusMajor}, want: models.StatusMajor},
		{in: []models.Status{models.StatusCritical, models.StatusUnknown}, want: models.StatusCritical},
	}
	for _, tc := range cases {
		if got := fn.Reduce(weighted(tc.in...)); got != tc.want {
			t.Fatalf("%v: expected %s, got %s", tc.in, tc.want, got)
		}
	}
}

func TestNewReduceFunction(t *testing.T) {
	fn, err := NewReduceFunction(models.ReduceFunctionSpec{})
	if err != nil || fn.Kind != ReduceMostCritical {
		t.Fatalf("empty spec should build most-critical, got %v %v", fn, err)
	}
	fn, err = NewReduceFunction(models.ReduceFunctionSpec{Type: "threshold", Threshold: 0.5})
	if err != nil || fn.Kind != ReduceThreshold {
		t.Fatalf("unexpected threshold build: %v %v", fn, err)
	}
	bad := []models.ReduceFunctionSpec{
		{Type: "threshold"},
		{Type: "threshold", Threshold: 1.5},
		{Type: "threshold", Threshold: -0.1},
		{Type: "highest-severity-above"},
		{Type: "average"},
	}
	for _, spec := range bad {
		if _, err := NewReduceFunction(spec); err == nil {
			t.Fatalf("expected error for %+v", spec)
		}
	}
}
