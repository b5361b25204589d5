package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
	"github.com/netgrid/mesh-acl-manager/internal/storage"
	"github.com/netgrid/mesh-acl-manager/internal/upstream"
)

// DirectorySync mirrors the mesh controller's inventory (networks,
// entities, tags) into local storage. Snapshots are
// eventually-consistent: a refresh is triggered on demand or debounced
// after mutations that may have invalidated the directory.
type DirectorySync struct {
	store    storage.Storage
	client   upstream.InventoryClient
	debounce time.Duration
	autoSync bool
	log      zerolog.Logger

	mu          sync.Mutex
	syncTimer   *time.Timer
	syncRunning bool
}

// NewDirectorySync creates a new DirectorySync.
func NewDirectorySync(store storage.Storage, client upstream.InventoryClient, debounce time.Duration, autoSync bool, log zerolog.Logger) *DirectorySync {
	return &DirectorySync{
		store:    store,
		client:   client,
		debounce: debounce,
		autoSync: autoSync,
		log:      log,
	}
}

// TriggerSync schedules a debounced refresh. Multiple triggers within
// the debounce period collapse into a single refresh.
func (s *DirectorySync) TriggerSync() {
	if !s.autoSync || s.client == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.syncTimer != nil {
		s.syncTimer.Stop()
	}
	s.syncTimer = time.AfterFunc(s.debounce, func() {
		if err := s.ForceSync(context.Background()); err != nil {
			s.log.Error().Err(err).Msg("directory auto-sync failed")
		}
	})
}

// ForceSync refreshes the directory immediately. Only one refresh runs
// at a time.
func (s *DirectorySync) ForceSync(ctx context.Context) error {
	if s.client == nil {
		return nil
	}

	s.mu.Lock()
	if s.syncRunning {
		s.mu.Unlock()
		return domain.ErrSyncInProgress
	}
	s.syncRunning = true
	if s.syncTimer != nil {
		s.syncTimer.Stop()
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncRunning = false
		s.mu.Unlock()
	}()

	return s.doSync(ctx)
}

func (s *DirectorySync) doSync(ctx context.Context) error {
	networks, err := s.client.ListNetworks(ctx)
	if err != nil {
		return err
	}

	for _, network := range networks {
		if err := s.store.UpsertNetwork(ctx, network); err != nil {
			return err
		}

		entities, err := s.client.ListEntities(ctx, network.ID)
		if err != nil {
			return err
		}
		if err := s.store.ReplaceEntities(ctx, network.ID, entities); err != nil {
			return err
		}

		tags, err := s.client.ListTags(ctx, network.ID)
		if err != nil {
			return err
		}
		if err := s.store.ReplaceTags(ctx, network.ID, tags); err != nil {
			return err
		}

		s.log.Debug().
			Str("network", network.ID).
			Int("entities", len(entities)).
			Int("tags", len(tags)).
			Msg("directory refreshed")
	}

	// Drop networks the controller no longer reports
	known := make(map[string]bool, len(networks))
	for _, n := range networks {
		known[n.ID] = true
	}
	stored, err := s.store.ListNetworks(ctx)
	if err != nil {
		return err
	}
	for _, n := range stored {
		if known[n.ID] {
			continue
		}
		if err := s.store.DeleteNetwork(ctx, n.ID); err != nil && err != domain.ErrNotFound {
			return err
		}
		s.log.Info().Str("network", n.ID).Msg("network removed from directory")
	}

	return nil
}
