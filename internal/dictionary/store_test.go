package dictionary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openbmc/pldm-sub002/internal/rde"
)

func TestStoreSaveAndLoadDictionary(t *testing.T) {
	store := New(t.TempDir())

	require.NoError(t, store.SaveDictionary("uuid-1", 7, []byte("schema-bytes")))
	got, err := store.LoadDictionary("uuid-1", 7)
	require.NoError(t, err)
	require.Equal(t, []byte("schema-bytes"), got)

	require.True(t, store.Exists("uuid-1", 7))
	require.False(t, store.Exists("uuid-1", 8))
}

func TestStoreSaveAndLoadAnnotationDictionary(t *testing.T) {
	store := New(t.TempDir())

	require.NoError(t, store.SaveAnnotationDictionary("uuid-1", []byte("annotation-bytes")))
	got, err := store.LoadAnnotationDictionary("uuid-1")
	require.NoError(t, err)
	require.Equal(t, []byte("annotation-bytes"), got)
}

func TestStoreLoadDictionaryMissingReturnsError(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.LoadDictionary("no-such-uuid", 1)
	require.Error(t, err)
}

func TestStoreRoundTripsRegistry(t *testing.T) {
	store := New(t.TempDir())

	registry := rde.NewResourceRegistry()
	require.NoError(t, registry.Register(&rde.ResourceInfo{
		ResourceID:  1,
		SchemaClass: rde.SchemaClassMajor,
		SchemaName:  "Chassis",
		Operations:  []rde.OperationType{rde.OperationRead, rde.OperationUpdate},
	}))
	require.NoError(t, registry.Register(&rde.ResourceInfo{
		ResourceID:     2,
		ContainingID:   1,
		ContainingName: "Thermal",
		SchemaClass:    rde.SchemaClassMajor,
		SchemaName:     "Thermal",
		Operations:     []rde.OperationType{rde.OperationRead},
	}))

	require.NoError(t, store.SaveRegistry("uuid-1", registry))

	loaded, err := store.LoadRegistry("uuid-1")
	require.NoError(t, err)

	r1, ok := loaded.GetByResourceID(1)
	require.True(t, ok)
	require.Equal(t, "/", r1.URI)
	require.True(t, r1.SupportsOperation(rde.OperationUpdate))

	r2, ok := loaded.GetByURI("/Thermal")
	require.True(t, ok)
	require.Equal(t, uint32(2), r2.ResourceID)
}
