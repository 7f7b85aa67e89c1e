package rde

import (
	"fmt"
	"strings"
	"sync"
)

// SchemaClass is the Redfish schema class a resource's dictionary entry
// belongs to, mirrors pldm_rde_schema_type on the wire.
type SchemaClass uint8

const (
	SchemaClassMajor SchemaClass = iota
	SchemaClassEvent
	SchemaClassAnnotation
	SchemaClassCollection
	SchemaClassError
)

// ResourceInfo describes one discovered RDE resource: its schema
// identity, its containment relationship to other resources, and the
// operations the device has advertised as supported on it.
//
// Grounded on original_source/rde/resource_registry.hpp's ResourceInfo
// struct (resourceId, uri, schemaClass, schemaName, schemaVersion,
// propContainResourceName, operations).
type ResourceInfo struct {
	ResourceID     uint32
	URI            string
	SchemaClass    SchemaClass
	SchemaName     string
	SchemaVersion  string
	ContainingID   uint32 // parent resource id; 0 for root resources
	ContainingName string // property name under which this resource nests
	Operations     []OperationType
}

// SupportsOperation reports whether op appears in the resource's
// advertised operation set.
func (r *ResourceInfo) SupportsOperation(op OperationType) bool {
	for _, o := range r.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// ResourceRegistry indexes a device's discovered resources by id, URI,
// and schema class, the way original_source/rde/resource_registry.cpp's
// ResourceRegistry does for its getByResourceId/getBySchemaClass/getByUri
// lookups.
type ResourceRegistry struct {
	mu sync.RWMutex

	byID    map[uint32]*ResourceInfo
	byURI   map[string]*ResourceInfo
	byClass map[SchemaClass][]*ResourceInfo
}

// NewResourceRegistry constructs an empty registry.
func NewResourceRegistry() *ResourceRegistry {
	return &ResourceRegistry{
		byID:    make(map[uint32]*ResourceInfo),
		byURI:   make(map[string]*ResourceInfo),
		byClass: make(map[SchemaClass][]*ResourceInfo),
	}
}

// Register adds or replaces a resource entry, deriving its URI from its
// containment chain if URI is not already set. Registration order must
// put a parent in before any child that references it by ContainingID,
// matching how discovery walks the resource tree breadth-first.
func (reg *ResourceRegistry) Register(r *ResourceInfo) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if r.URI == "" {
		uri, err := reg.buildURILocked(r)
		if err != nil {
			return err
		}
		r.URI = uri
	}

	reg.byID[r.ResourceID] = r
	reg.byURI[r.URI] = r
	reg.byClass[r.SchemaClass] = append(reg.byClass[r.SchemaClass], r)
	return nil
}

// buildURILocked walks r's parent pointers to the root, prepending "/"
// at the root and each containing property name along the way, per
// device discovery: "URIs are built by walking parent pointers; the root
// prepends /".
func (reg *ResourceRegistry) buildURILocked(r *ResourceInfo) (string, error) {
	var segments []string
	cur := r
	seen := map[uint32]bool{}
	for {
		if cur.ContainingID == 0 {
			break
		}
		if seen[cur.ResourceID] {
			return "", fmt.Errorf("rde: containment cycle detected building uri for resource %d", r.ResourceID)
		}
		seen[cur.ResourceID] = true
		parent, ok := reg.byID[cur.ContainingID]
		if !ok {
			return "", fmt.Errorf("rde: resource %d references unregistered parent %d", cur.ResourceID, cur.ContainingID)
		}
		if cur.ContainingName != "" {
			segments = append([]string{cur.ContainingName}, segments...)
		}
		cur = parent
	}
	return "/" + strings.Join(segments, "/"), nil
}

// GetByResourceID looks up a resource by its numeric id.
func (reg *ResourceRegistry) GetByResourceID(id uint32) (*ResourceInfo, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.byID[id]
	return r, ok
}

// GetByURI looks up a resource by its Redfish URI.
func (reg *ResourceRegistry) GetByURI(uri string) (*ResourceInfo, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.byURI[uri]
	return r, ok
}

// GetBySchemaClass returns every resource registered under class.
func (reg *ResourceRegistry) GetBySchemaClass(class SchemaClass) []*ResourceInfo {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*ResourceInfo, len(reg.byClass[class]))
	copy(out, reg.byClass[class])
	return out
}

// ResourceIDFromURI is a convenience wrapper returning just the id.
func (reg *ResourceRegistry) ResourceIDFromURI(uri string) (uint32, bool) {
	r, ok := reg.GetByURI(uri)
	if !ok {
		return 0, false
	}
	return r.ResourceID, true
}

// All returns every registered resource, for diagnostics and D-Bus
// object-tree publication.
func (reg *ResourceRegistry) All() []*ResourceInfo {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*ResourceInfo, 0, len(reg.byID))
	for _, r := range reg.byID {
		out = append(out, r)
	}
	return out
}
