package graph

import (
	"fmt"

	"github.com/miradorstack/mirador-bsm/internal/functions"
	"github.com/miradorstack/mirador-bsm/internal/models"
)

// VertexKind distinguishes business services from the leaves that receive alarms.
type VertexKind int

const (
	KindBusinessService VertexKind = iota
	KindIPService
	KindReductionKey
)

func (k VertexKind) String() string {
	switch k {
	case KindBusinessService:
		return "business-service"
	case KindIPService:
		return "ip-service"
	case KindReductionKey:
		return "reduction-key"
	default:
		return fmt.Sprintf("VertexKind(%d)", int(k))
	}
}

// Vertex is a node of one graph snapshot. Vertices are owned by their Graph and never mutated after Build.
type Vertex struct {
	ID         int
	Kind       VertexKind
	Name       string
	Attributes map[string]string
	Reduce     functions.ReduceFunction
	IPService  *models.IPServiceRef
	// ReductionKeys lists the alarm keys resolving to this leaf.
	ReductionKeys []string
	// Level is the distance from the nearest root.
	Level int
	// Rank orders evaluation: every child has a lower rank than each of its parents.
	Rank int

	out []int
	in  []int
}

// IsLeaf reports whether the vertex receives alarms directly.
func (v *Vertex) IsLeaf() bool {
	return v.Kind != KindBusinessService
}

// Label is a short human readable identity.
func (v *Vertex) Label() string {
	switch v.Kind {
	case KindBusinessService:
		return "bs:" + v.Name
	case KindIPService:
		return fmt.Sprintf("ip:%d", v.IPService.ID)
	default:
		return "rk:" + v.Name
	}
}

// Edge is a directed link from a business service to one of its children.
type Edge struct {
	ID     int
	Type   models.EdgeType
	Parent int
	Child  int
	Map    functions.MapFunction
	Weight int
}

// Graph is an immutable snapshot of the business service hierarchy.
type Graph struct {
	vertices       []*Vertex
	edges          []*Edge
	byName         map[string]*Vertex
	byIPService    map[int]*Vertex
	byReductionKey map[string]*Vertex
	keyIndex       map[string][]*Vertex
	levels         [][]*Vertex
	topo           []*Vertex
}

// Vertices returns all vertices in id order.
func (g *Graph) Vertices() []*Vertex {
	return append([]*Vertex(nil), g.vertices...)
}

// Edges returns all edges in id order.
func (g *Graph) Edges() []*Edge {
	return append([]*Edge(nil), g.edges...)
}

// Vertex looks a vertex up by id.
func (g *Graph) Vertex(id int) (*Vertex, bool) {
	if id < 0 || id >= len(g.vertices) {
		return nil, false
	}
	return g.vertices[id], true
}

// Edge looks an edge up by id.
func (g *Graph) Edge(id int) (*Edge, bool) {
	if id < 0 || id >= len(g.edges) {
		return nil, false
	}
	return g.edges[id], true
}

// BusinessService finds a business service vertex by name.
func (g *Graph) BusinessService(name string) (*Vertex, bool) {
	v, ok := g.byName[name]
	return v, ok
}

// BusinessServices returns the business service vertices in definition order.
func (g *Graph) BusinessServices() []*Vertex {
	out := make([]*Vertex, 0, len(g.byName))
	for _, v := range g.vertices {
		if v.Kind == KindBusinessService {
			out = append(out, v)
		}
	}
	return out
}

// IPService finds the leaf vertex of an IP service.
func (g *Graph) IPService(id int) (*Vertex, bool) {
	v, ok := g.byIPService[id]
	return v, ok
}

// ReductionKey finds the leaf vertex of an explicit reduction-key edge.
func (g *Graph) ReductionKey(key string) (*Vertex, bool) {
	v, ok := g.byReductionKey[key]
	return v, ok
}

// VerticesForReductionKey returns every leaf an alarm with this key affects.
func (g *Graph) VerticesForReductionKey(key string) []*Vertex {
	return g.keyIndex[key]
}

// ReductionKeys returns all keys known to the reverse index.
func (g *Graph) ReductionKeys() []string {
	keys := make([]string, 0, len(g.keyIndex))
	for key := range g.keyIndex {
		keys = append(keys, key)
	}
	return keys
}

// MaxLevel returns the deepest level, or -1 for an empty graph.
func (g *Graph) MaxLevel() int {
	return len(g.levels) - 1
}

// VerticesByLevel returns the vertices at the given level.
func (g *Graph) VerticesByLevel(level int) []*Vertex {
	if level < 0 || level >= len(g.levels) {
		return nil
	}
	return append([]*Vertex(nil), g.levels[level]...)
}

// Roots returns the vertices without parents.
func (g *Graph) Roots() []*Vertex {
	return g.VerticesByLevel(0)
}

// TopologicalOrder returns all vertices, children before parents.
func (g *Graph) TopologicalOrder() []*Vertex {
	return append([]*Vertex(nil), g.topo...)
}

// OutEdges returns the edges from v to its children, in definition order.
func (g *Graph) OutEdges(v *Vertex) []*Edge {
	return g.collect(v.out)
}

// InEdges returns the edges from v's parents to v.
func (g *Graph) InEdges(v *Vertex) []*Edge {
	return g.collect(v.in)
}

// Parents returns the distinct parents of v.
func (g *Graph) Parents(v *Vertex) []*Vertex {
	out := make([]*Vertex, 0, len(v.in))
	seen := make(map[int]struct{}, len(v.in))
	for _, id := range v.in {
		parent := g.vertices[g.edges[id].Parent]
		if _, ok := seen[parent.ID]; ok {
			continue
		}
		seen[parent.ID] = struct{}{}
		out = append(out, parent)
	}
	return out
}

// Children returns the children of v in edge order.
func (g *Graph) Children(v *Vertex) []*Vertex {
	out := make([]*Vertex, 0, len(v.out))
	for _, id := range v.out {
		out = append(out, g.vertices[g.edges[id].Child])
	}
	return out
}

// Opposite returns the endpoint of e that is not v.
func (g *Graph) Opposite(e *Edge, v *Vertex) (*Vertex, error) {
	switch v.ID {
	case e.Parent:
		return g.vertices[e.Child], nil
	case e.Child:
		return g.vertices[e.Parent], nil
	default:
		return nil, fmt.Errorf("vertex %s is not an endpoint of edge %d", v.Label(), e.ID)
	}
}

func (g *Graph) collect(ids []int) []*Edge {
	out := make([]*Edge, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.edges[id])
	}
	return out
}
