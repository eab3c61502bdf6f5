package functions

import (
	"fmt"
	"strings"

	"github.com/miradorstack/mirador-bsm/internal/models"
)

// ReduceKind enumerates the business service reduce functions.
type ReduceKind int

const (
	ReduceMostCritical ReduceKind = iota
	ReduceThreshold
	ReduceHighestSeverityAbove
)

func (k ReduceKind) String() string {
	switch k {
	case ReduceMostCritical:
		return "most-critical"
	case ReduceThreshold:
		return "threshold"
	case ReduceHighestSeverityAbove:
		return "highest-severity-above"
	default:
		return fmt.Sprintf("ReduceKind(%d)", int(k))
	}
}

// WeightedStatus is one mapped child status as seen by a reduce function.
type WeightedStatus struct {
	Status models.Status
	Weight int
}

// ReduceFunction aggregates the mapped statuses of a vertex's children.
type ReduceFunction struct {
	Kind ReduceKind
	// Threshold is the required weight fraction in (0,1] for ReduceThreshold.
	Threshold float64
	// Status is the exclusive lower bound for ReduceHighestSeverityAbove.
	Status models.Status
}

// MostCritical picks the most severe known child status.
func MostCritical() ReduceFunction { return ReduceFunction{Kind: ReduceMostCritical} }

// Threshold picks the highest status reached by at least fraction of the known child weight.
func Threshold(fraction float64) ReduceFunction {
	return ReduceFunction{Kind: ReduceThreshold, Threshold: fraction}
}

// HighestSeverityAbove picks the most severe child status strictly above status.
func HighestSeverityAbove(status models.Status) ReduceFunction {
	return ReduceFunction{Kind: ReduceHighestSeverityAbove, Status: status}
}

// Reduce is total: every input, including all-unknown, yields a status.
func (f ReduceFunction) Reduce(inputs []WeightedStatus) models.Status {
	switch f.Kind {
	case ReduceThreshold:
		return f.reduceThreshold(inputs)
	case ReduceHighestSeverityAbove:
		return f.reduceHighestAbove(inputs)
	default:
		return reduceMostCritical(inputs)
	}
}

func reduceMostCritical(inputs []WeightedStatus) models.Status {
	result := models.StatusUnknown
	for _, in := range inputs {
		if in.Status.Known() {
			result = models.MostSevere(result, in.Status)
		}
	}
	return result
}

// Children with an unknown mapped status abstain: they count neither for
// nor against any level.
func (f ReduceFunction) reduceThreshold(inputs []WeightedStatus) models.Status {
	var byStatus [models.HighestStatus + 1]int
	total := 0
	for _, in := range inputs {
		if !in.Status.Known() || in.Weight <= 0 {
			continue
		}
		byStatus[in.Status] += in.Weight
		total += in.Weight
	}
	if total == 0 {
		return models.StatusUnknown
	}

	atOrAbove := 0
	for s := models.HighestStatus; s >= models.LowestStatus; s-- {
		atOrAbove += byStatus[s]
		if float64(atOrAbove)/float64(total) >= f.Threshold {
			return s
		}
	}
	// Unreachable for thresholds in (0,1]: the lowest level always covers the whole weight.
	return models.LowestStatus
}

func (f ReduceFunction) reduceHighestAbove(inputs []WeightedStatus) models.Status {
	highest := reduceMostCritical(inputs)
	if !highest.Known() {
		return models.StatusUnknown
	}
	if highest.IsGreaterThan(f.Status) {
		return highest
	}
	return models.StatusNormal
}

func (f ReduceFunction) String() string {
	switch f.Kind {
	case ReduceThreshold:
		return fmt.Sprintf("%s(%.2f)", f.Kind, f.Threshold)
	case ReduceHighestSeverityAbove:
		return fmt.Sprintf("%s(%s)", f.Kind, f.Status)
	default:
		return f.Kind.String()
	}
}

// NewReduceFunction builds a reduce function from its persisted spec. An empty type means most-critical.
func NewReduceFunction(spec models.ReduceFunctionSpec) (ReduceFunction, error) {
	switch strings.ToLower(strings.TrimSpace(spec.Type)) {
	case "", "most-critical", "mostcritical":
		return MostCritical(), nil
	case "threshold":
		if spec.Threshold <= 0 || spec.Threshold > 1 {
			return ReduceFunction{}, fmt.Errorf("threshold must be in (0,1], got %v", spec.Threshold)
		}
		return Threshold(spec.Threshold), nil
	case "highest-severity-above", "highestseverityabove":
		if !spec.Status.Known() {
			return ReduceFunction{}, fmt.Errorf("highest-severity-above requires a status")
		}
		return HighestSeverityAbove(spec.Status), nil
	default:
		return ReduceFunction{}, fmt.Errorf("unknown reduce function %q", spec.Type)
	}
}
