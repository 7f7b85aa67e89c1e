package rde

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResourceRegistryRootURIPrependsSlash(t *testing.T) {
	reg := NewResourceRegistry()
	err := reg.Register(&ResourceInfo{ResourceID: 1, SchemaClass: SchemaClassMajor, SchemaName: "Chassis"})
	require.NoError(t, err)

	r, ok := reg.GetByResourceID(1)
	require.True(t, ok)
	require.Equal(t, "/", r.URI)
}

func TestResourceRegistryBuildsURIFromContainmentChain(t *testing.T) {
	reg := NewResourceRegistry()
	require.NoError(t, reg.Register(&ResourceInfo{ResourceID: 1, SchemaClass: SchemaClassMajor}))
	require.NoError(t, reg.Register(&ResourceInfo{
		ResourceID:     2,
		SchemaClass:    SchemaClassCollection,
		ContainingID:   1,
		ContainingName: "redfish",
	}))
	require.NoError(t, reg.Register(&ResourceInfo{
		ResourceID:     3,
		SchemaClass:    SchemaClassMajor,
		ContainingID:   2,
		ContainingName: "v1",
	}))

	r, ok := reg.GetByResourceID(3)
	require.True(t, ok)
	require.Equal(t, "/redfish/v1", r.URI)

	byURI, ok := reg.GetByURI("/redfish/v1")
	require.True(t, ok)
	require.Equal(t, uint32(3), byURI.ResourceID)
}

func TestResourceRegistryGetBySchemaClass(t *testing.T) {
	reg := NewResourceRegistry()
	require.NoError(t, reg.Register(&ResourceInfo{ResourceID: 1, SchemaClass: SchemaClassMajor}))
	require.NoError(t, reg.Register(&ResourceInfo{ResourceID: 2, SchemaClass: SchemaClassMajor, ContainingID: 1, ContainingName: "a"}))
	require.NoError(t, reg.Register(&ResourceInfo{ResourceID: 3, SchemaClass: SchemaClassEvent, ContainingID: 1, ContainingName: "b"}))

	major := reg.GetBySchemaClass(SchemaClassMajor)
	require.Len(t, major, 2)

	event := reg.GetBySchemaClass(SchemaClassEvent)
	require.Len(t, event, 1)
	require.Equal(t, uint32(3), event[0].ResourceID)
}

func TestResourceRegistryRejectsUnregisteredParent(t *testing.T) {
	reg := NewResourceRegistry()
	err := reg.Register(&ResourceInfo{ResourceID: 2, SchemaClass: SchemaClassMajor, ContainingID: 99, ContainingName: "x"})
	require.Error(t, err)
}

func TestSupportsOperation(t *testing.T) {
	r := &ResourceInfo{Operations: []OperationType{OperationRead, OperationUpdate}}
	require.True(t, r.SupportsOperation(OperationRead))
	require.False(t, r.SupportsOperation(OperationDelete))
}
