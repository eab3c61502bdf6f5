package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/miradorstack/mirador-bsm/internal/engine"
	"github.com/miradorstack/mirador-bsm/internal/graph"
	"github.com/miradorstack/mirador-bsm/internal/models"
	"github.com/miradorstack/mirador-bsm/internal/services"
	"github.com/miradorstack/mirador-bsm/internal/utils"
)

// Reloader triggers and reports definition reloads.
type Reloader interface {
	Reload(ctx context.Context) error
	Status() services.ReloadStatus
}

// IdentityLookup renders IP services for display.
type IdentityLookup interface {
	DisplayName(id int) string
}

// ServiceSummary is one row of the business service listing.
type ServiceSummary struct {
	Name   string        `json:"name"`
	Level  int           `json:"level"`
	Status models.Status `json:"status"`
}

// ChildStatus is one reduce function input of a business service.
type ChildStatus struct {
	Type         models.EdgeType `json:"type"`
	Child        string          `json:"child"`
	Map          string          `json:"map"`
	Weight       int             `json:"weight"`
	Status       models.Status   `json:"status"`
	MappedStatus models.Status   `json:"mappedStatus"`
}

// ServiceDetail describes a business service and what its reduce function sees.
type ServiceDetail struct {
	Name       string            `json:"name"`
	Level      int               `json:"level"`
	Status     models.Status     `json:"status"`
	Reduce     string            `json:"reduce"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Children   []ChildStatus     `json:"children"`
}

// TopologyVertex is a vertex as rendered in the topology view.
type TopologyVertex struct {
	ID     int           `json:"id"`
	Kind   string        `json:"kind"`
	Name   string        `json:"name"`
	Status models.Status `json:"status"`
}

// TopologyEdge links two topology vertices by id.
type TopologyEdge struct {
	Parent int    `json:"parent"`
	Child  int    `json:"child"`
	Map    string `json:"map"`
	Weight int    `json:"weight"`
}

// Topology is the level-ordered graph rendering.
type Topology struct {
	Levels [][]TopologyVertex `json:"levels"`
	Edges  []TopologyEdge     `json:"edges"`
}

func displayName(v *graph.Vertex, lookup IdentityLookup) string {
	if v.Kind == graph.KindIPService && lookup != nil {
		return lookup.DisplayName(v.IPService.ID)
	}
	return v.Name
}

// ListBusinessServices returns every business service with its level and status.
func ListBusinessServices(machine *engine.StateMachine) gin.HandlerFunc {
	return func(c *gin.Context) {
		statuses := machine.BusinessServiceStatuses()
		out := make([]ServiceSummary, 0, len(statuses))
		for _, s := range statuses {
			out = append(out, ServiceSummary{Name: s.Name, Level: s.Level, Status: s.Status})
		}
		c.JSON(http.StatusOK, gin.H{"businessServices": out})
	}
}

// GetBusinessService returns one business service with its reduce function inputs.
func GetBusinessService(machine *engine.StateMachine, lookup IdentityLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		found, ok := machine.BusinessServiceDetail(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "business service not found"})
			return
		}
		v := found.Vertex

		detail := ServiceDetail{
			Name:       v.Name,
			Level:      v.Level,
			Status:     found.Status,
			Reduce:     v.Reduce.String(),
			Attributes: v.Attributes,
			Children:   make([]ChildStatus, 0, len(found.Inputs)),
		}
		for _, in := range found.Inputs {
			detail.Children = append(detail.Children, ChildStatus{
				Type:         in.Edge.Type,
				Child:        displayName(in.Child, lookup),
				Map:          in.Edge.Map.String(),
				Weight:       in.Edge.Weight,
				Status:       in.ChildStatus,
				MappedStatus: in.Mapped,
			})
		}
		c.JSON(http.StatusOK, detail)
	}
}

// GetReductionKey returns the last status recorded for a reduction key.
func GetReductionKey(machine *engine.StateMachine) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		status, ok := machine.ReductionKeyStatus(key)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "reduction key not tracked"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reductionKey": key, "status": status})
	}
}

// GetTopology renders the graph level by level.
func GetTopology(machine *engine.StateMachine, lookup IdentityLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := machine.Snapshot()
		g := snap.Graph
		topo := Topology{
			Levels: make([][]TopologyVertex, 0, g.MaxLevel()+1),
			Edges:  make([]TopologyEdge, 0, len(g.Edges())),
		}
		for level := 0; level <= g.MaxLevel(); level++ {
			vertices := g.VerticesByLevel(level)
			row := make([]TopologyVertex, 0, len(vertices))
			for _, v := range vertices {
				row = append(row, TopologyVertex{ID: v.ID, Kind: v.Kind.String(), Name: displayName(v, lookup), Status: snap.Status(v)})
			}
			topo.Levels = append(topo.Levels, row)
		}
		for _, e := range g.Edges() {
			topo.Edges = append(topo.Edges, TopologyEdge{Parent: e.Parent, Child: e.Child, Map: e.Map.String(), Weight: e.Weight})
		}
		c.JSON(http.StatusOK, topo)
	}
}

// TriggerReload reloads the definitions. Rejected definition sets answer 422 with every problem.
func TriggerReload(reloader Reloader, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := reloader.Reload(c.Request.Context())
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"status": "reloaded", "reload": reloader.Status()})
			return
		}

		var structural *graph.StructuralError
		if errors.As(err, &structural) {
			problems := make([]string, 0, len(structural.Problems))
			for _, p := range structural.Problems {
				problems = append(problems, p.Kind.Error()+": "+p.Message)
			}
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "definitions rejected", "problems": problems})
			return
		}
		logger.Warn("reload via http failed", slog.Any("error", err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "op": utils.OpOf(err)})
	}
}

// Healthz reports liveness with the reload bookkeeping.
func Healthz(reloader Reloader) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "reload": reloader.Status()})
	}
}
