package engine

import (
	"log/slog"
	"sync"

	"github.com/miradorstack/mirador-bsm/internal/graph"
	"github.com/miradorstack/mirador-bsm/internal/models"
)

// StateChange describes a business service whose operational status changed.
type StateChange struct {
	Vertex         *graph.Vertex
	PreviousStatus models.Status
	NewStatus      models.Status
}

// BusinessService returns the name of the changed service.
func (c StateChange) BusinessService() string {
	return c.Vertex.Name
}

// ChangeHandler receives state changes synchronously.
type ChangeHandler func(StateChange)

// Scope restricts a handler to one business service. A nil scope receives every change.
type Scope struct {
	BusinessService string
}

type registration struct {
	handler ChangeHandler
	scope   *Scope
}

func (r *registration) matches(change StateChange) bool {
	return r.scope == nil || r.scope.BusinessService == change.Vertex.Name
}

// AddHandler registers h and returns a function that removes it again.
func (m *StateMachine) AddHandler(h ChangeHandler, scope *Scope) (remove func()) {
	if scope != nil {
		copied := *scope
		scope = &copied
	}
	reg := &registration{handler: h, scope: scope}

	m.handlersMu.Lock()
	m.handlers = append(m.handlers, reg)
	m.handlersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.handlersMu.Lock()
			defer m.handlersMu.Unlock()
			for i, candidate := range m.handlers {
				if candidate == reg {
					m.handlers = append(m.handlers[:i:i], m.handlers[i+1:]...)
					return
				}
			}
		})
	}
}

func (m *StateMachine) dispatch(changes []StateChange) {
	if len(changes) == 0 {
		return
	}
	m.handlersMu.RLock()
	handlers := append([]*registration(nil), m.handlers...)
	m.handlersMu.RUnlock()

	for _, change := range changes {
		m.logger.Info("business service status changed",
			slog.String("business_service", change.Vertex.Name),
			slog.String("previous", change.PreviousStatus.String()),
			slog.String("status", change.NewStatus.String()),
		)
		for _, reg := range handlers {
			if reg.matches(change) {
				m.invoke(reg.handler, change)
			}
		}
	}
}

func (m *StateMachine) invoke(h ChangeHandler, change StateChange) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("state change handler panicked",
				slog.String("business_service", change.Vertex.Name),
				slog.Any("panic", r),
			)
		}
	}()
	h(change)
}
