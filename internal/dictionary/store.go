// Package dictionary persists RDE schema dictionaries, the shared
// annotation dictionary, and each device's discovered resource registry
// to disk, scoped by device UUID so a device's dictionaries survive a
// daemon restart without rediscovery.
package dictionary

import (
	"encoding/json"
	"fmt"

	"github.com/openbmc/pldm-sub002/backend/filestore"
	"github.com/openbmc/pldm-sub002/internal/rde"
)

const annotationFileName = "annotation.bin"

// Store implements internal/rde's DictionaryStore and DictionaryLoader
// interfaces against backend/filestore's atomic on-disk layout:
// {root}/{uuid}/dictionary_{resourceID}.bin and {root}/{uuid}/annotation.bin.
type Store struct {
	fs *filestore.Store
}

// New returns a Store rooted at root (e.g. /var/lib/pldm/dict, the default).
func New(root string) *Store {
	return &Store{fs: filestore.New(root)}
}

func dictionaryPath(uuid string, resourceID uint32) string {
	return fmt.Sprintf("%s/dictionary_%d.bin", uuid, resourceID)
}

func annotationPath(uuid string) string {
	return fmt.Sprintf("%s/%s", uuid, annotationFileName)
}

func registryPath(uuid string) string {
	return fmt.Sprintf("%s/registry.json", uuid)
}

// SaveDictionary persists one resource's schema dictionary bytes.
func (s *Store) SaveDictionary(uuid string, resourceID uint32, data []byte) error {
	return s.fs.Write(dictionaryPath(uuid, resourceID), data)
}

// SaveAnnotationDictionary persists the shared annotation dictionary for
// a device. Devices of the same provider typically share an identical
// annotation dictionary, but persistence is still scoped per-UUID to
// avoid cross-device assumptions.
func (s *Store) SaveAnnotationDictionary(uuid string, data []byte) error {
	return s.fs.Write(annotationPath(uuid), data)
}

// LoadDictionary reads back a previously-saved resource dictionary.
func (s *Store) LoadDictionary(uuid string, resourceID uint32) ([]byte, error) {
	return s.fs.Read(dictionaryPath(uuid, resourceID))
}

// LoadAnnotationDictionary reads back the device's annotation dictionary.
func (s *Store) LoadAnnotationDictionary(uuid string) ([]byte, error) {
	return s.fs.Read(annotationPath(uuid))
}

// registryRecord is the JSON-serializable form of one rde.ResourceInfo;
// rde.OperationType doesn't implement json.Marshaler, so operations are
// carried as their plain int values.
type registryRecord struct {
	ResourceID     uint32 `json:"resource_id"`
	URI            string `json:"uri"`
	SchemaClass    uint8  `json:"schema_class"`
	SchemaName     string `json:"schema_name"`
	SchemaVersion  string `json:"schema_version"`
	ContainingID   uint32 `json:"containing_id"`
	ContainingName string `json:"containing_name"`
	Operations     []int  `json:"operations"`
}

// SaveRegistry serializes a device's discovered resource registry to
// JSON so a restart can skip rediscovery's PDR parsing, keeping only the
// dictionary-fetch step to redo.
func (s *Store) SaveRegistry(uuid string, registry *rde.ResourceRegistry) error {
	all := registry.All()
	records := make([]registryRecord, 0, len(all))
	for _, r := range all {
		ops := make([]int, len(r.Operations))
		for i, op := range r.Operations {
			ops[i] = int(op)
		}
		records = append(records, registryRecord{
			ResourceID:     r.ResourceID,
			URI:            r.URI,
			SchemaClass:    uint8(r.SchemaClass),
			SchemaName:     r.SchemaName,
			SchemaVersion:  r.SchemaVersion,
			ContainingID:   r.ContainingID,
			ContainingName: r.ContainingName,
			Operations:     ops,
		})
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("dictionary: marshaling registry for %s: %w", uuid, err)
	}
	return s.fs.Write(registryPath(uuid), data)
}

// LoadRegistry reconstructs a resource registry from a prior SaveRegistry
// call. Resources are re-registered in stored order; since URI is already
// populated on each record, containment parents don't need to be
// re-resolved.
func (s *Store) LoadRegistry(uuid string) (*rde.ResourceRegistry, error) {
	data, err := s.fs.Read(registryPath(uuid))
	if err != nil {
		return nil, err
	}
	var records []registryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("dictionary: unmarshaling registry for %s: %w", uuid, err)
	}

	registry := rde.NewResourceRegistry()
	for _, rec := range records {
		ops := make([]rde.OperationType, len(rec.Operations))
		for i, op := range rec.Operations {
			ops[i] = rde.OperationType(op)
		}
		err := registry.Register(&rde.ResourceInfo{
			ResourceID:     rec.ResourceID,
			URI:            rec.URI,
			SchemaClass:    rde.SchemaClass(rec.SchemaClass),
			SchemaName:     rec.SchemaName,
			SchemaVersion:  rec.SchemaVersion,
			ContainingID:   rec.ContainingID,
			ContainingName: rec.ContainingName,
			Operations:     ops,
		})
		if err != nil {
			return nil, fmt.Errorf("dictionary: restoring resource %d for %s: %w", rec.ResourceID, uuid, err)
		}
	}
	return registry, nil
}

// Exists reports whether a dictionary has already been fetched for a
// resource, letting discovery skip a redundant GetSchemaDictionary call
// after a restart.
func (s *Store) Exists(uuid string, resourceID uint32) bool {
	return s.fs.Exists(dictionaryPath(uuid, resourceID))
}
