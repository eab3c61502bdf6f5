package engine

import (
	"container/heap"
	"log/slog"
	"sync"

	"github.com/miradorstack/mirador-bsm/internal/functions"
	"github.com/miradorstack/mirador-bsm/internal/graph"
	"github.com/miradorstack/mirador-bsm/internal/metrics"
	"github.com/miradorstack/mirador-bsm/internal/models"
)

// StateMachine tracks the operational status of every vertex in the business service graph
// and propagates alarm driven changes towards the roots.
//
// Alarm handling and reloads take the write lock; reads take the read lock. Every event draws a
// ticket while it holds the write lock and its handlers run after the lock is released, in ticket
// order, so handlers observe events in the order applied and readers are never held up by them.
// Handlers may read from the state machine but must not feed alarms or reload it.
type StateMachine struct {
	logger *slog.Logger

	mu          sync.RWMutex
	graph       *graph.Graph
	statuses    []models.Status
	keyStatuses map[string]models.Status
	nextTicket  uint64

	dispatchMu   sync.Mutex
	dispatchTurn *sync.Cond
	serving      uint64

	handlersMu sync.RWMutex
	handlers   []*registration
}

// EdgeStatus is one reduce function input of a business service.
type EdgeStatus struct {
	Edge        *graph.Edge
	Child       *graph.Vertex
	ChildStatus models.Status
	Mapped      models.Status
}

// ServiceStatus summarises one business service.
type ServiceStatus struct {
	Name   string
	Level  int
	Status models.Status
}

// NewStateMachine constructs a state machine over an empty graph.
func NewStateMachine(logger *slog.Logger) *StateMachine {
	if logger == nil {
		logger = slog.Default()
	}
	empty, _ := graph.Build(nil)
	m := &StateMachine{
		logger:      logger,
		graph:       empty,
		keyStatuses: make(map[string]models.Status),
	}
	m.dispatchTurn = sync.NewCond(&m.dispatchMu)
	return m
}

// SetBusinessServices replaces the graph. The new graph is built before the swap; when the
// definitions are rejected the current graph and statuses stay in effect and the error is
// returned. Alarm statuses of reduction keys that survive the reload are kept.
func (m *StateMachine) SetBusinessServices(defs []models.BusinessServiceDefinition) error {
	next, err := graph.Build(defs)
	if err != nil {
		m.logger.Warn("business service definitions rejected", slog.Any("error", err))
		return err
	}

	m.mu.Lock()
	prevGraph, prevStatuses := m.graph, m.statuses

	keyStatuses := make(map[string]models.Status, len(m.keyStatuses))
	for _, key := range next.ReductionKeys() {
		if s, ok := m.keyStatuses[key]; ok {
			keyStatuses[key] = s
		}
	}

	m.graph = next
	m.keyStatuses = keyStatuses
	m.statuses = make([]models.Status, len(next.Vertices()))
	var changes []StateChange
	for _, v := range next.TopologicalOrder() {
		m.statuses[v.ID] = m.evaluate(next, v)
		if v.Kind != graph.KindBusinessService {
			continue
		}
		previous := models.StatusUnknown
		if old, ok := prevGraph.BusinessService(v.Name); ok {
			previous = prevStatuses[old.ID]
		}
		if previous != m.statuses[v.ID] {
			changes = append(changes, StateChange{Vertex: v, PreviousStatus: previous, NewStatus: m.statuses[v.ID]})
		}
	}

	m.logger.Info("business service graph loaded",
		slog.Int("business_services", len(next.BusinessServices())),
		slog.Int("vertices", len(m.statuses)),
		slog.Int("edges", len(next.Edges())),
		slog.Int("retained_keys", len(keyStatuses)),
	)
	m.dispatchLocked(changes)
	return nil
}

// HandleNewOrUpdatedAlarm records the alarm's status against its reduction key and recomputes
// every affected ancestor. It returns the business service changes that were notified. Alarms
// whose key is not referenced by the graph are ignored.
func (m *StateMachine) HandleNewOrUpdatedAlarm(alarm models.AlarmEvent) []StateChange {
	m.mu.Lock()
	g := m.graph
	leaves := g.VerticesForReductionKey(alarm.ReductionKey)
	if len(leaves) == 0 {
		m.mu.Unlock()
		m.logger.Debug("alarm ignored, reduction key not tracked", slog.String("reduction_key", alarm.ReductionKey))
		return nil
	}
	m.keyStatuses[alarm.ReductionKey] = alarm.Status()

	before := make(map[int]models.Status)
	var computed []*graph.Vertex
	pending := &rankQueue{}
	queued := make(map[int]struct{})

	update := func(v *graph.Vertex, status models.Status) {
		if status == m.statuses[v.ID] {
			return
		}
		if _, seen := before[v.ID]; !seen {
			before[v.ID] = m.statuses[v.ID]
		}
		m.statuses[v.ID] = status
		computed = append(computed, v)
		for _, parent := range g.Parents(v) {
			if _, ok := queued[parent.ID]; ok {
				continue
			}
			queued[parent.ID] = struct{}{}
			heap.Push(pending, parent)
		}
	}

	for _, leaf := range leaves {
		update(leaf, m.leafStatus(leaf))
	}
	evaluated := 0
	for pending.Len() > 0 {
		v := heap.Pop(pending).(*graph.Vertex)
		evaluated++
		update(v, m.evaluate(g, v))
	}
	metrics.ObservePropagation(evaluated)

	var changes []StateChange
	for _, v := range computed {
		if v.Kind != graph.KindBusinessService || before[v.ID] == m.statuses[v.ID] {
			continue
		}
		changes = append(changes, StateChange{Vertex: v, PreviousStatus: before[v.ID], NewStatus: m.statuses[v.ID]})
	}

	m.logger.Debug("alarm applied",
		slog.String("reduction_key", alarm.ReductionKey),
		slog.String("status", alarm.Status().String()),
		slog.Int("evaluated", evaluated),
		slog.Int("changes", len(changes)),
	)
	m.dispatchLocked(changes)
	return changes
}

// dispatchLocked draws a ticket, releases the write lock and delivers the changes once every
// earlier event has been delivered. Events without changes still take their turn.
func (m *StateMachine) dispatchLocked(changes []StateChange) {
	ticket := m.nextTicket
	m.nextTicket++
	m.mu.Unlock()

	m.dispatchMu.Lock()
	for m.serving != ticket {
		m.dispatchTurn.Wait()
	}
	m.dispatchMu.Unlock()

	defer func() {
		m.dispatchMu.Lock()
		m.serving++
		m.dispatchTurn.Broadcast()
		m.dispatchMu.Unlock()
	}()
	m.dispatch(changes)
}

func (m *StateMachine) leafStatus(v *graph.Vertex) models.Status {
	status := models.StatusUnknown
	for _, key := range v.ReductionKeys {
		if s, ok := m.keyStatuses[key]; ok && s.Known() {
			status = models.MostSevere(status, s)
		}
	}
	return status
}

func (m *StateMachine) evaluate(g *graph.Graph, v *graph.Vertex) models.Status {
	if v.IsLeaf() {
		return m.leafStatus(v)
	}
	edges := g.OutEdges(v)
	inputs := make([]functions.WeightedStatus, 0, len(edges))
	for _, e := range edges {
		inputs = append(inputs, functions.WeightedStatus{
			Status: e.Map.Apply(m.statuses[e.Child]),
			Weight: e.Weight,
		})
	}
	return v.Reduce.Reduce(inputs)
}

// Graph returns the current graph snapshot.
func (m *StateMachine) Graph() *graph.Graph {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.graph
}

// OperationalStatus returns the status of a vertex of the current graph.
func (m *StateMachine) OperationalStatus(vertexID int) (models.Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if vertexID < 0 || vertexID >= len(m.statuses) {
		return models.StatusUnknown, false
	}
	return m.statuses[vertexID], true
}

// BusinessServiceStatus returns the status of a business service by name.
func (m *StateMachine) BusinessServiceStatus(name string) (models.Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.graph.BusinessService(name)
	if !ok {
		return models.StatusUnknown, false
	}
	return m.statuses[v.ID], true
}

// IPServiceStatus returns the aggregated status of an IP service.
func (m *StateMachine) IPServiceStatus(id int) (models.Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.graph.IPService(id)
	if !ok {
		return models.StatusUnknown, false
	}
	return m.statuses[v.ID], true
}

// ReductionKeyStatus returns the last alarm status recorded for a key the graph references.
func (m *StateMachine) ReductionKeyStatus(key string) (models.Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.graph.VerticesForReductionKey(key)) == 0 {
		return models.StatusUnknown, false
	}
	return m.keyStatuses[key], true
}

// StatusMapForReduceFunction returns the inputs the vertex's reduce function currently sees, in edge order.
func (m *StateMachine) StatusMapForReduceFunction(vertexID int) ([]EdgeStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.graph.Vertex(vertexID)
	if !ok {
		return nil, false
	}
	return m.statusMapLocked(v), true
}

func (m *StateMachine) statusMapLocked(v *graph.Vertex) []EdgeStatus {
	edges := m.graph.OutEdges(v)
	out := make([]EdgeStatus, 0, len(edges))
	for _, e := range edges {
		child, _ := m.graph.Vertex(e.Child)
		childStatus := m.statuses[e.Child]
		out = append(out, EdgeStatus{
			Edge:        e,
			Child:       child,
			ChildStatus: childStatus,
			Mapped:      e.Map.Apply(childStatus),
		})
	}
	return out
}

// ServiceDetail is a business service, its status and its reduce function inputs.
type ServiceDetail struct {
	Vertex *graph.Vertex
	Status models.Status
	Inputs []EdgeStatus
}

// BusinessServiceDetail reads a business service and its inputs from one snapshot.
func (m *StateMachine) BusinessServiceDetail(name string) (ServiceDetail, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.graph.BusinessService(name)
	if !ok {
		return ServiceDetail{}, false
	}
	return ServiceDetail{Vertex: v, Status: m.statuses[v.ID], Inputs: m.statusMapLocked(v)}, true
}

// Snapshot is a graph together with the statuses of its vertices at one instant.
type Snapshot struct {
	Graph    *graph.Graph
	statuses []models.Status
}

// Status returns the status v had when the snapshot was taken.
func (s Snapshot) Status(v *graph.Vertex) models.Status {
	if v == nil || v.ID < 0 || v.ID >= len(s.statuses) {
		return models.StatusUnknown
	}
	return s.statuses[v.ID]
}

// Snapshot copies the current graph and statuses.
func (m *StateMachine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{Graph: m.graph, statuses: append([]models.Status(nil), m.statuses...)}
}

// BusinessServiceStatuses lists every business service with its level and status from one snapshot.
func (m *StateMachine) BusinessServiceStatuses() []ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	services := m.graph.BusinessServices()
	out := make([]ServiceStatus, 0, len(services))
	for _, v := range services {
		out = append(out, ServiceStatus{Name: v.Name, Level: v.Level, Status: m.statuses[v.ID]})
	}
	return out
}

// rankQueue pops pending vertices lowest rank first, so every child settles before its parents.
type rankQueue []*graph.Vertex

func (q rankQueue) Len() int           { return len(q) }
func (q rankQueue) Less(i, j int) bool { return q[i].Rank < q[j].Rank }
func (q rankQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *rankQueue) Push(x any) { *q = append(*q, x.(*graph.Vertex)) }

func (q *rankQueue) Pop() any {
	old := *q
	n := len(old)
	v := old[n-1]
	*q = old[:n-1]
	return v
}
