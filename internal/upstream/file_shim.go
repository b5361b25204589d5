package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
)

// FileShim is a testing implementation that serves the inventory from
// a local JSON fixture instead of a live controller.
type FileShim struct {
	filePath string
	mu       sync.RWMutex
}

// Ensure FileShim implements InventoryClient.
var _ InventoryClient = (*FileShim)(nil)

// inventoryFile is the fixture layout: networks plus per-network
// entity and tag lists keyed by network ID.
type inventoryFile struct {
	Networks []*domain.Network           `json:"networks"`
	Entities map[string][]*domain.Entity `json:"entities"`
	Tags     map[string][]*domain.Tag    `json:"tags"`
}

// NewFileShim creates a new file-based shim for testing.
func NewFileShim(filePath string) *FileShim {
	return &FileShim{filePath: filePath}
}

// ListNetworks reads the networks from the fixture.
func (f *FileShim) ListNetworks(ctx context.Context) ([]*domain.Network, error) {
	inv, err := f.load()
	if err != nil {
		return nil, err
	}
	return inv.Networks, nil
}

// ListEntities reads a network's entities from the fixture.
func (f *FileShim) ListEntities(ctx context.Context, networkID string) ([]*domain.Entity, error) {
	inv, err := f.load()
	if err != nil {
		return nil, err
	}
	return inv.Entities[networkID], nil
}

// ListTags reads a network's tags from the fixture.
func (f *FileShim) ListTags(ctx context.Context, networkID string) ([]*domain.Tag, error) {
	inv, err := f.load()
	if err != nil {
		return nil, err
	}
	return inv.Tags[networkID], nil
}

func (f *FileShim) load() (*inventoryFile, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			// An absent fixture is an empty inventory
			return &inventoryFile{}, nil
		}
		return nil, fmt.Errorf("reading inventory file: %w", err)
	}

	var inv inventoryFile
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parsing inventory file: %w", err)
	}
	return &inv, nil
}
