package services

import (
	"context"
	"errors"
	"testing"

	"github.com/miradorstack/mirador-bsm/internal/engine"
	"github.com/miradorstack/mirador-bsm/internal/graph"
	"github.com/miradorstack/mirador-bsm/internal/models"
	"github.com/miradorstack/mirador-bsm/internal/utils"
)

type sourceStub struct {
	defs []models.BusinessServiceDefinition
	err  error
}

func (s *sourceStub) Load(ctx context.Context) ([]models.BusinessServiceDefinition, error) {
	return s.defs, s.err
}

type committingSource struct {
	sourceStub
	commits int
}

func (s *committingSource) Commit(context.Context) error {
	s.commits++
	return nil
}

func keyed(name, key string) models.BusinessServiceDefinition {
	return models.BusinessServiceDefinition{
		Name:  name,
		Edges: []models.EdgeDefinition{{Type: models.EdgeTypeReductionKey, ReductionKey: key}},
	}
}

func TestReloadAppliesDefinitionsAndReportsRemovals(t *testing.T) {
	source := &sourceStub{defs: []models.BusinessServiceDefinition{keyed("web", "k1"), keyed("db", "k2")}}
	service := NewBSMService(nil, source, engine.NewStateMachine(nil), nil)

	var removed []string
	service.OnRemoved(func(_ context.Context, name string) { removed = append(removed, name) })

	if err := service.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := service.Machine().BusinessServiceStatus("db"); !ok {
		t.Fatalf("db should be loaded")
	}

	source.defs = []models.BusinessServiceDefinition{keyed("web", "k1")}
	if err := service.Reload(context.Background()); err != nil {
		t.Fatalf("second reload: %v", err)
	}
	if len(removed) != 1 || removed[0] != "db" {
		t.Fatalf("expected db reported as removed, got %v", removed)
	}
	if status := service.Status(); status.Generation != 2 || status.LastError != "" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestReloadKeepsGraphOnStructuralError(t *testing.T) {
	source := &sourceStub{defs: []models.BusinessServiceDefinition{keyed("web", "k1")}}
	service := NewBSMService(nil, source, engine.NewStateMachine(nil), nil)
	if err := service.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	before := service.Machine().Graph()

	source.defs = []models.BusinessServiceDefinition{
		{Name: "web", Edges: []models.EdgeDefinition{{Type: models.EdgeTypeChild, Child: "ghost"}}},
	}
	err := service.Reload(context.Background())
	if !errors.Is(err, graph.ErrDanglingEdge) {
		t.Fatalf("expected dangling edge error, got %v", err)
	}
	var appErr *utils.AppError
	if !errors.As(err, &appErr) || appErr.Op != utils.OpDefinitionsApply {
		t.Fatalf("expected AppError wrapping, got %T", err)
	}
	if service.Machine().Graph() != before {
		t.Fatalf("graph should be unchanged")
	}
	if status := service.Status(); status.Generation != 1 || status.LastError == "" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestReloadCommitsOnlyAppliedDefinitions(t *testing.T) {
	source := &committingSource{sourceStub: sourceStub{defs: []models.BusinessServiceDefinition{keyed("web", "k1")}}}
	service := NewBSMService(nil, source, engine.NewStateMachine(nil), nil)

	if err := service.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if source.commits != 1 {
		t.Fatalf("expected one commit, got %d", source.commits)
	}

	source.defs = []models.BusinessServiceDefinition{
		{Name: "a", Edges: []models.EdgeDefinition{{Type: models.EdgeTypeChild, Child: "b"}}},
		{Name: "b", Edges: []models.EdgeDefinition{{Type: models.EdgeTypeChild, Child: "a"}}},
	}
	if err := service.Reload(context.Background()); err == nil {
		t.Fatalf("expected cycle to be rejected")
	}
	source.err = errors.New("timeout")
	if err := service.Reload(context.Background()); err == nil {
		t.Fatalf("expected source failure")
	}
	if source.commits != 1 {
		t.Fatalf("rejected reloads must not commit, got %d commits", source.commits)
	}
}

func TestReloadSourceFailure(t *testing.T) {
	service := NewBSMService(nil, &sourceStub{err: errors.New("timeout")}, engine.NewStateMachine(nil), nil)
	err := service.Reload(context.Background())
	if utils.OpOf(err) != utils.OpDefinitionsLoad {
		t.Fatalf("expected a %s failure, got %v", utils.OpDefinitionsLoad, err)
	}
	if _, ok := service.Machine().BusinessServiceStatus("web"); ok {
		t.Fatalf("nothing should be loaded")
	}
}

func TestReloadUpdatesCatalog(t *testing.T) {
	ref := &models.IPServiceRef{ID: 5, NodeID: 2, NodeLabel: "app-02", IPAddress: "10.1.1.2", ServiceName: "SSH"}
	source := &sourceStub{defs: []models.BusinessServiceDefinition{
		{Name: "ops", Edges: []models.EdgeDefinition{{Type: models.EdgeTypeIPService, IPService: ref}}},
	}}
	service := NewBSMService(nil, source, engine.NewStateMachine(nil), nil)
	if err := service.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got, ok := service.Catalog().Lookup(5); !ok || got.NodeLabel != "app-02" {
		t.Fatalf("catalog not updated: %+v %v", got, ok)
	}
}
