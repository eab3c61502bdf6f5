package functions

import (
	"fmt"
	"strings"

	"github.com/miradorstack/mirador-bsm/internal/models"
)

// MapKind enumerates the edge map functions.
type MapKind int

const (
	MapIdentity MapKind = iota
	MapSetTo
	MapIncrease
	MapDecrease
	MapIgnore
)

func (k MapKind) String() string {
	switch k {
	case MapIdentity:
		return "identity"
	case MapSetTo:
		return "set-to"
	case MapIncrease:
		return "increase"
	case MapDecrease:
		return "decrease"
	case MapIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("MapKind(%d)", int(k))
	}
}

// MapFunction transforms a child's status before it is handed to the parent's reduce function.
type MapFunction struct {
	Kind   MapKind
	Status models.Status
	Steps  int
}

// Identity leaves the status unchanged.
func Identity() MapFunction { return MapFunction{Kind: MapIdentity} }

// SetTo always yields status.
func SetTo(status models.Status) MapFunction { return MapFunction{Kind: MapSetTo, Status: status} }

// Increase raises a status by steps, capped at Critical.
func Increase(steps int) MapFunction { return MapFunction{Kind: MapIncrease, Steps: steps} }

// Decrease lowers a status by steps, floored at Normal.
func Decrease(steps int) MapFunction { return MapFunction{Kind: MapDecrease, Steps: steps} }

// Ignore hides the child from aggregation.
func Ignore() MapFunction { return MapFunction{Kind: MapIgnore} }

// Apply maps the source status. Unknown and Indeterminate inputs carry no severity,
// so Increase and Decrease pass them through unchanged.
func (f MapFunction) Apply(source models.Status) models.Status {
	switch f.Kind {
	case MapSetTo:
		return f.Status
	case MapIncrease:
		if !shiftable(source) {
			return source
		}
		return clampShift(source, f.steps())
	case MapDecrease:
		if !shiftable(source) {
			return source
		}
		return clampShift(source, -f.steps())
	case MapIgnore:
		return models.StatusUnknown
	default:
		return source
	}
}

func (f MapFunction) steps() int {
	if f.Steps <= 0 {
		return 1
	}
	return f.Steps
}

func (f MapFunction) String() string {
	switch f.Kind {
	case MapSetTo:
		return fmt.Sprintf("%s(%s)", f.Kind, f.Status)
	case MapIncrease, MapDecrease:
		return fmt.Sprintf("%s(%d)", f.Kind, f.steps())
	default:
		return f.Kind.String()
	}
}

func shiftable(s models.Status) bool {
	return s >= models.StatusNormal && s <= models.HighestStatus
}

func clampShift(s models.Status, delta int) models.Status {
	shifted := int(s) + delta
	if shifted > int(models.HighestStatus) {
		return models.HighestStatus
	}
	if shifted < int(models.StatusNormal) {
		return models.StatusNormal
	}
	return models.Status(shifted)
}

// NewMapFunction builds a map function from its persisted spec. An empty type means identity.
func NewMapFunction(spec models.MapFunctionSpec) (MapFunction, error) {
	switch strings.ToLower(strings.TrimSpace(spec.Type)) {
	case "", "identity":
		return Identity(), nil
	case "set-to", "setto":
		if !spec.Status.Known() {
			return MapFunction{}, fmt.Errorf("set-to map function requires a status")
		}
		return SetTo(spec.Status), nil
	case "increase":
		if spec.Steps < 0 {
			return MapFunction{}, fmt.Errorf("increase steps must be positive, got %d", spec.Steps)
		}
		return Increase(spec.Steps), nil
	case "decrease":
		if spec.Steps < 0 {
			return MapFunction{}, fmt.Errorf("decrease steps must be positive, got %d", spec.Steps)
		}
		return Decrease(spec.Steps), nil
	case "ignore":
		return Ignore(), nil
	default:
		return MapFunction{}, fmt.Errorf("unknown map function %q", spec.Type)
	}
}
