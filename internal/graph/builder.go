package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/miradorstack/mirador-bsm/internal/functions"
	"github.com/miradorstack/mirador-bsm/internal/models"
)

// Build validates the definitions and assembles an immutable graph. Every problem found is
// reported in a single *StructuralError; no partial graph is returned.
func Build(defs []models.BusinessServiceDefinition) (*Graph, error) {
	g := &Graph{
		byName:         make(map[string]*Vertex, len(defs)),
		byIPService:    make(map[int]*Vertex),
		byReductionKey: make(map[string]*Vertex),
		keyIndex:       make(map[string][]*Vertex),
	}
	var errs problems

	for _, def := range defs {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			errs.add(ErrInvalidDefinition, "business service with empty name")
			continue
		}
		if _, dup := g.byName[name]; dup {
			errs.add(ErrInvalidDefinition, fmt.Sprintf("duplicate business service %q", name))
			continue
		}
		reduce, err := functions.NewReduceFunction(def.Reduce)
		if err != nil {
			errs.add(ErrInvalidDefinition, fmt.Sprintf("business service %q: %v", name, err))
		}
		v := g.addVertex(&Vertex{Kind: KindBusinessService, Name: name, Attributes: copyAttributes(def.Attributes), Reduce: reduce})
		g.byName[name] = v
	}

	for _, def := range defs {
		parent, ok := g.byName[strings.TrimSpace(def.Name)]
		if !ok {
			continue
		}
		seen := make(map[int]struct{}, len(def.Edges))
		for i, edgeDef := range def.Edges {
			where := fmt.Sprintf("business service %q edge %d", parent.Name, i)
			child, ok := g.resolveChild(edgeDef, where, &errs)
			if !ok {
				continue
			}
			if child == parent {
				errs.add(ErrCycle, fmt.Sprintf("%s: %q is its own child", where, parent.Name))
				continue
			}
			if _, dup := seen[child.ID]; dup {
				errs.add(ErrInvalidDefinition, fmt.Sprintf("%s: duplicate edge to %s", where, child.Label()))
				continue
			}
			seen[child.ID] = struct{}{}

			mapFn, err := functions.NewMapFunction(edgeDef.Map)
			if err != nil {
				errs.add(ErrInvalidDefinition, fmt.Sprintf("%s: %v", where, err))
				continue
			}
			weight := edgeDef.EffectiveWeight()
			if weight <= 0 {
				errs.add(ErrInvalidDefinition, fmt.Sprintf("%s: weight must be positive, got %d", where, weight))
				continue
			}
			g.addEdge(&Edge{Type: edgeDef.Type, Parent: parent.ID, Child: child.ID, Map: mapFn, Weight: weight})
		}
	}

	if err := errs.err(); err != nil {
		return nil, err
	}
	if err := g.sortTopologically(); err != nil {
		return nil, err
	}
	g.assignLevels()
	g.indexReductionKeys()
	return g, nil
}

func (g *Graph) resolveChild(def models.EdgeDefinition, where string, errs *problems) (*Vertex, bool) {
	switch def.Type {
	case models.EdgeTypeChild:
		name := strings.TrimSpace(def.Child)
		child, ok := g.byName[name]
		if !ok {
			errs.add(ErrDanglingEdge, fmt.Sprintf("%s: child %q is not defined", where, name))
			return nil, false
		}
		return child, true
	case models.EdgeTypeIPService:
		if def.IPService == nil {
			errs.add(ErrInvalidDefinition, where+": ip-service edge without ipService")
			return nil, false
		}
		if v, ok := g.byIPService[def.IPService.ID]; ok {
			if *v.IPService != *def.IPService {
				errs.add(ErrInvalidDefinition, fmt.Sprintf("%s: ip service %d redefined with different metadata", where, def.IPService.ID))
				return nil, false
			}
			return v, true
		}
		ref := *def.IPService
		v := g.addVertex(&Vertex{
			Kind:          KindIPService,
			Name:          fmt.Sprintf("%s/%s/%s", nodeName(ref), ref.IPAddress, ref.ServiceName),
			IPService:     &ref,
			ReductionKeys: ref.ReductionKeys(),
		})
		g.byIPService[ref.ID] = v
		return v, true
	case models.EdgeTypeReductionKey:
		key := strings.TrimSpace(def.ReductionKey)
		if key == "" {
			errs.add(ErrInvalidDefinition, where+": reduction-key edge with empty key")
			return nil, false
		}
		if v, ok := g.byReductionKey[key]; ok {
			return v, true
		}
		v := g.addVertex(&Vertex{Kind: KindReductionKey, Name: key, ReductionKeys: []string{key}})
		g.byReductionKey[key] = v
		return v, true
	default:
		errs.add(ErrInvalidDefinition, fmt.Sprintf("%s: unknown edge type %q", where, def.Type))
		return nil, false
	}
}

func nodeName(ref models.IPServiceRef) string {
	if ref.NodeLabel != "" {
		return ref.NodeLabel
	}
	return fmt.Sprintf("node-%d", ref.NodeID)
}

func (g *Graph) addVertex(v *Vertex) *Vertex {
	v.ID = len(g.vertices)
	g.vertices = append(g.vertices, v)
	return v
}

func (g *Graph) addEdge(e *Edge) {
	e.ID = len(g.edges)
	g.edges = append(g.edges, e)
	g.vertices[e.Parent].out = append(g.vertices[e.Parent].out, e.ID)
	g.vertices[e.Child].in = append(g.vertices[e.Child].in, e.ID)
}

// sortTopologically ranks vertices leaves-first (Kahn's algorithm over out-degrees).
// Vertices left unranked sit on or above a cycle.
func (g *Graph) sortTopologically() error {
	pending := make([]int, len(g.vertices))
	queue := make([]*Vertex, 0, len(g.vertices))
	for _, v := range g.vertices {
		pending[v.ID] = len(v.out)
		if pending[v.ID] == 0 {
			queue = append(queue, v)
		}
	}

	g.topo = make([]*Vertex, 0, len(g.vertices))
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		v.Rank = len(g.topo)
		g.topo = append(g.topo, v)
		for _, id := range v.in {
			parent := g.edges[id].Parent
			pending[parent]--
			if pending[parent] == 0 {
				queue = append(queue, g.vertices[parent])
			}
		}
	}

	if len(g.topo) == len(g.vertices) {
		return nil
	}
	var stuck []string
	for _, v := range g.vertices {
		if pending[v.ID] > 0 {
			stuck = append(stuck, v.Name)
		}
	}
	sort.Strings(stuck)
	var errs problems
	errs.add(ErrCycle, "business services on or above a cycle: "+strings.Join(stuck, ", "))
	return errs.err()
}

// assignLevels runs a breadth-first walk from every root, so a vertex's level is
// one more than the smallest level among its parents.
func (g *Graph) assignLevels() {
	queue := make([]*Vertex, 0, len(g.vertices))
	for _, v := range g.vertices {
		v.Level = -1
		if len(v.in) == 0 {
			v.Level = 0
			queue = append(queue, v)
		}
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, id := range v.out {
			child := g.vertices[g.edges[id].Child]
			if child.Level >= 0 {
				continue
			}
			child.Level = v.Level + 1
			queue = append(queue, child)
		}
	}

	for _, v := range g.vertices {
		for len(g.levels) <= v.Level {
			g.levels = append(g.levels, nil)
		}
		g.levels[v.Level] = append(g.levels[v.Level], v)
	}
}

func (g *Graph) indexReductionKeys() {
	for _, v := range g.vertices {
		for _, key := range v.ReductionKeys {
			g.keyIndex[key] = append(g.keyIndex[key], v)
		}
	}
}

func copyAttributes(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
