package definitions

import (
	"fmt"
	"sync"

	"github.com/miradorstack/mirador-bsm/internal/models"
)

// Catalog resolves IP service ids to display metadata. It is presentation only and never
// consulted for status computation.
type Catalog struct {
	mu      sync.RWMutex
	entries map[int]models.IPServiceRef
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: map[int]models.IPServiceRef{}}
}

// Update replaces the catalog contents with the IP services referenced by defs.
func (c *Catalog) Update(defs []models.BusinessServiceDefinition) {
	entries := make(map[int]models.IPServiceRef)
	for _, def := range defs {
		for _, edge := range def.Edges {
			if edge.Type != models.EdgeTypeIPService || edge.IPService == nil {
				continue
			}
			if _, ok := entries[edge.IPService.ID]; !ok {
				entries[edge.IPService.ID] = *edge.IPService
			}
		}
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// Lookup returns the metadata of an IP service.
func (c *Catalog) Lookup(id int) (models.IPServiceRef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ref, ok := c.entries[id]
	return ref, ok
}

// DisplayName renders "node/ip/service", falling back to the id for unknown services.
func (c *Catalog) DisplayName(id int) string {
	ref, ok := c.Lookup(id)
	if !ok {
		return fmt.Sprintf("ip-service-%d", id)
	}
	node := ref.NodeLabel
	if node == "" {
		node = fmt.Sprintf("node-%d", ref.NodeID)
	}
	return fmt.Sprintf("%s/%s/%s", node, ref.IPAddress, ref.ServiceName)
}

// Len reports the number of known IP services.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
