// Package device provides the Device Registry for Gatehouse.
//
// The Device Registry is the catalogue of every device registered at the
// facility gate. It owns device creation, the approval state machine and
// deletion, and derives occupancy statistics and the chronological history
// from the current device set.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────────────┐
//	│                          Device Registry                                 │
//	│                                                                          │
//	│  ┌──────────────────┐    ┌──────────────────┐    ┌──────────────────┐   │
//	│  │     Registry     │    │    Repository    │    │   Transitions    │   │
//	│  │   (registry.go)  │───▶│  (repository.go) │    │ (transitions.go) │   │
//	│  │                  │    │                  │    │                  │   │
//	│  │ • Create/Delete  │    │ • SQLite queries │    │ • Legal moves    │   │
//	│  │ • Transitions    │    │ • insert/update  │    │ • UI actions     │   │
//	│  │ • In-memory cache│    │ • delete/list    │    │                  │   │
//	│  └──────────────────┘    └──────────────────┘    └──────────────────┘   │
//	│           │                                                              │
//	│           ▼                                                              │
//	│  ┌──────────────────┐    ┌──────────────────┐    ┌──────────────────┐   │
//	│  │      Stats       │    │     History      │    │      Export      │   │
//	│  │   (stats.go)     │    │   (history.go)   │    │   (export.go)    │   │
//	│  │ • inside/outside │    │ • newest first   │    │ • CSV rows       │   │
//	│  └──────────────────┘    └──────────────────┘    └──────────────────┘   │
//	└─────────────────────────────────────────────────────────────────────────┘
//
// # State Machine
//
// Every device starts as pendiente. The only legal changes are:
//
//	pendiente ──validate──▶ validado                 (entrada and salida)
//	validado  ──deliver───▶ entregado                (salida only)
//
// entregado is terminal, and a validated incoming device has no further step.
// NextStatus and AllowedTransitions expose the table so user interfaces offer
// exactly the actions the Registry will accept.
//
// # Occupancy
//
// A device is outside only when its movement is salida and its status is
// entregado. Everything else is inside, so Inside+Outside always equals the
// number of devices.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	dev, err := registry.CreateDevice(ctx, device.CreateInput{
//	    DeviceType:   device.DeviceTypeLaptop,
//	    Brand:        "Acme",
//	    SerialNumber: "SN1",
//	    Responsible:  "Ana",
//	    Reason:       "repair",
//	    MovementType: device.MovementOutgoing,
//	})
//
//	dev, err = registry.TransitionDevice(ctx, dev.ID, device.StatusValidated)
//	stats, _ := registry.Stats(ctx)
//
// # Thread Safety
//
// The Registry is safe for concurrent use. Reads are served from a cache
// guarded by a read-write mutex; mutations are serialised registry-wide.
// The Repository implementation must also be thread-safe.
//
// # Related Documentation
//
//   - migrations/20261018_120000_initial_schema.up.sql: database schema
package device
