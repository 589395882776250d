package device

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry applies the device lifecycle rules on top of a Repository.
//
// The repository is authoritative: MySQL and DynamoDB stores may be shared
// by several gatehouse instances, so every read and every transition check
// goes to the store. The cache only mirrors the last listing for
// GetDeviceCount. Mutations are serialised by writeMu so the read-check-write
// of a transition cannot interleave with another mutation in this process.
// Failed operations leave the store unchanged.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device // Cached devices by ID
	cacheMu sync.RWMutex       // Protects cache
	writeMu sync.Mutex         // Serialises mutations
	logger  Logger
	now     func() time.Time
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	r.replaceCache(devices)

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

func (r *Registry) replaceCache(devices []Device) {
	cache := make(map[string]*Device, len(devices))
	for i := range devices {
		cache[devices[i].ID] = devices[i].Clone()
	}

	r.cacheMu.Lock()
	r.cache = cache
	r.cacheMu.Unlock()
}

func (r *Registry) cachePut(d *Device) {
	r.cacheMu.Lock()
	r.cache[d.ID] = d.Clone()
	r.cacheMu.Unlock()
}

func (r *Registry) cacheDelete(id string) {
	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()
}

// load reads the stored record, keeping the cache in step with the store.
func (r *Registry) load(ctx context.Context, id string) (*Device, error) {
	d, err := r.repo.GetByID(ctx, id)
	if errors.Is(err, ErrDeviceNotFound) {
		r.cacheDelete(id)
	}
	if err != nil {
		return nil, err
	}
	r.cachePut(d)
	return d, nil
}

// GetDevice retrieves a device by ID from the repository.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	return r.load(ctx, id)
}

// ListDevices returns every stored device, oldest first with ties broken
// by ID, so repeated calls over the same data agree on the order.
// The returned devices are copies; callers can safely modify them.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	if devices == nil {
		devices = []Device{}
	}
	slices.SortFunc(devices, func(a, b Device) int {
		return cmp.Or(a.Timestamp.Compare(b.Timestamp), cmp.Compare(a.ID, b.ID))
	})
	r.replaceCache(devices)
	return devices, nil
}

// CreateDevice validates input and registers a new device.
// The device always starts in StatusPending with a fresh ID and the current
// time as its timestamp.
// Returns an error wrapping ErrInvalidDevice if the input is invalid.
func (r *Registry) CreateDevice(ctx context.Context, in CreateInput) (*Device, error) {
	d, err := ValidateCreateInput(in)
	if err != nil {
		return nil, err
	}

	d.ID = GenerateID()
	d.Status = StatusPending
	d.Timestamp = r.now()

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	r.cachePut(d)

	r.logger.Info("device created",
		"id", d.ID,
		"name", d.Name,
		"movement_type", d.MovementType,
	)
	return d, nil
}

// TransitionDevice moves a device to the target status.
//
// Returns ErrDeviceNotFound if the device does not exist, and an error
// wrapping ErrIllegalTransition if the change is not in the transition table.
// Only the status field changes.
func (r *Registry) TransitionDevice(ctx context.Context, id string, to Status) (*Device, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}

	// TODO: pass the expected status to Repository.Update so a shared store
	// can reject a write from another instance between load and update.
	if err := checkTransition(current, to); err != nil {
		return nil, err
	}

	if err := r.repo.Update(ctx, id, Patch{Status: &to}); err != nil {
		return nil, err
	}

	updated := current.Clone()
	updated.Status = to
	r.cachePut(updated)

	r.logger.Info("device status changed",
		"id", id,
		"from", current.Status,
		"to", to,
	)
	return updated, nil
}

// DeleteDevice removes a device in any status.
// Returns ErrDeviceNotFound if the device does not exist.
// The removed device is returned so callers can report what was deleted.
func (r *Registry) DeleteDevice(ctx context.Context, id string) (*Device, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	existing, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			r.cacheDelete(id)
		}
		return nil, err
	}
	r.cacheDelete(id)

	r.logger.Info("device deleted", "id", id)
	return existing, nil
}

// Stats returns the occupancy counts for the current device set.
func (r *Registry) Stats(ctx context.Context) (Occupancy, error) {
	devices, err := r.ListDevices(ctx)
	if err != nil {
		return Occupancy{}, err
	}
	return ComputeStats(devices), nil
}

// History returns every device sorted newest first.
func (r *Registry) History(ctx context.Context) ([]Device, error) {
	devices, err := r.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	SortHistory(devices)
	return devices, nil
}

// GetDeviceCount returns the device count as of the last listing or
// mutation seen by this registry.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
