package models

import "fmt"

// EdgeType identifies what an edge of a business service points at.
type EdgeType string

const (
	EdgeTypeChild        EdgeType = "child"
	EdgeTypeIPService    EdgeType = "ip-service"
	EdgeTypeReductionKey EdgeType = "reduction-key"
)

// DefaultEdgeWeight applies when a definition leaves the weight unset.
const DefaultEdgeWeight = 1

// Reduction keys raised by the monitoring daemons for an IP service.
const (
	NodeLostServiceUEI = "uei.opennms.org/nodes/nodeLostService"
	NodeDownUEI        = "uei.opennms.org/nodes/nodeDown"
	InterfaceDownUEI   = "uei.opennms.org/nodes/interfaceDown"
)

// BusinessServiceDefinition is the persisted shape of one business service.
type BusinessServiceDefinition struct {
	Name       string             `yaml:"name" json:"name"`
	Attributes map[string]string  `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Reduce     ReduceFunctionSpec `yaml:"reduce" json:"reduce"`
	Edges      []EdgeDefinition   `yaml:"edges" json:"edges"`
}

// EdgeDefinition links a business service to a child service, an IP service or a reduction key.
type EdgeDefinition struct {
	Type         EdgeType        `yaml:"type" json:"type"`
	Child        string          `yaml:"child,omitempty" json:"child,omitempty"`
	IPService    *IPServiceRef   `yaml:"ipService,omitempty" json:"ipService,omitempty"`
	ReductionKey string          `yaml:"reductionKey,omitempty" json:"reductionKey,omitempty"`
	Map          MapFunctionSpec `yaml:"map" json:"map"`
	Weight       int             `yaml:"weight,omitempty" json:"weight,omitempty"`
}

// EffectiveWeight returns the weight, defaulting unset (zero) weights.
func (e EdgeDefinition) EffectiveWeight() int {
	if e.Weight == 0 {
		return DefaultEdgeWeight
	}
	return e.Weight
}

// IPServiceRef identifies a monitored service on an interface of a node.
type IPServiceRef struct {
	ID          int    `yaml:"id" json:"id"`
	NodeID      int    `yaml:"nodeId" json:"nodeId"`
	NodeLabel   string `yaml:"nodeLabel,omitempty" json:"nodeLabel,omitempty"`
	IPAddress   string `yaml:"ipAddress" json:"ipAddress"`
	ServiceName string `yaml:"serviceName" json:"serviceName"`
}

// ReductionKeys returns the alarm reduction keys that affect this IP service.
func (r IPServiceRef) ReductionKeys() []string {
	return []string{
		fmt.Sprintf("%s::%d:%s:%s", NodeLostServiceUEI, r.NodeID, r.IPAddress, r.ServiceName),
		fmt.Sprintf("%s::%d", NodeDownUEI, r.NodeID),
		fmt.Sprintf("%s::%d:%s", InterfaceDownUEI, r.NodeID, r.IPAddress),
	}
}

// MapFunctionSpec selects and parameterises an edge map function.
type MapFunctionSpec struct {
	Type   string `yaml:"type" json:"type"`
	Status Status `yaml:"status,omitempty" json:"status,omitempty"`
	Steps  int    `yaml:"steps,omitempty" json:"steps,omitempty"`
}

// ReduceFunctionSpec selects and parameterises a business service reduce function.
type ReduceFunctionSpec struct {
	Type      string  `yaml:"type" json:"type"`
	Threshold float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Status    Status  `yaml:"status,omitempty" json:"status,omitempty"`
}
