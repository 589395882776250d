// Package memory provides a volatile device.Repository for development,
// demos and tests. Everything is lost on restart.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/nerrad567/gatehouse/internal/device"
)

// Store keeps devices in a map guarded by a RWMutex.
// Devices are copied on the way in and out so callers cannot mutate stored state.
type Store struct {
	mu      sync.RWMutex
	devices map[string]*device.Device
}

var _ device.Repository = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{devices: make(map[string]*device.Device)}
}

// GetByID returns a copy of the device with the given ID.
func (s *Store) GetByID(_ context.Context, id string) (*device.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d.Clone(), nil
}

// List returns all devices ordered by creation time, then ID, matching the
// SQLite repository.
func (s *Store) List(_ context.Context) ([]device.Device, error) {
	s.mu.RLock()
	out := make([]device.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, *d)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b device.Device) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Create stores a copy of d.
func (s *Store) Create(_ context.Context, d *device.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.devices[d.ID]; exists {
		return fmt.Errorf("%w: %s", device.ErrDeviceExists, d.ID)
	}
	s.devices[d.ID] = d.Clone()
	return nil
}

// Update applies patch to the stored device.
func (s *Store) Update(_ context.Context, id string, patch device.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok {
		return device.ErrDeviceNotFound
	}
	if patch.Status != nil {
		d.Status = *patch.Status
	}
	return nil
}

// Delete removes the device with the given ID.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[id]; !ok {
		return device.ErrDeviceNotFound
	}
	delete(s.devices, id)
	return nil
}

// Len returns the number of stored devices.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}
