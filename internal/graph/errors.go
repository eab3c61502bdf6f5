package graph

import (
	"errors"
	"strings"
)

var (
	// ErrCycle marks a definition set whose child edges form a cycle.
	ErrCycle = errors.New("cycle in business service hierarchy")
	// ErrDanglingEdge marks an edge to a business service that is not defined.
	ErrDanglingEdge = errors.New("edge references an undefined business service")
	// ErrInvalidDefinition marks any other rejected definition value.
	ErrInvalidDefinition = errors.New("invalid business service definition")
)

// Problem is one reason a definition set was rejected.
type Problem struct {
	Kind    error
	Message string
}

// StructuralError reports every problem found while building a graph.
type StructuralError struct {
	Problems []Problem
}

func (e *StructuralError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Kind.Error()+": "+p.Message)
	}
	return "structural error: " + strings.Join(msgs, "; ")
}

// Is matches any of the sentinel kinds carried by the problems.
func (e *StructuralError) Is(target error) bool {
	for _, p := range e.Problems {
		if p.Kind == target {
			return true
		}
	}
	return false
}

type problems []Problem

func (ps *problems) add(kind error, msg string) {
	*ps = append(*ps, Problem{Kind: kind, Message: msg})
}

func (ps problems) err() error {
	if len(ps) == 0 {
		return nil
	}
	return &StructuralError{Problems: ps}
}
