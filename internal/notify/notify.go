// Package notify tells people about device movements.
//
// A Dispatcher fans each Event out to every configured Notifier (Slack
// webhook, SMTP email). Delivery is best effort: a failing channel is
// logged and never blocks or fails the registry operation that caused it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gatehouse/internal/device"
)

// defaultSendTimeout bounds one Dispatch call across all notifiers.
const defaultSendTimeout = 15 * time.Second

// Kind identifies what happened.
type Kind string

// Event kinds.
const (
	KindRegistered Kind = "registered"
	KindValidated  Kind = "validated"
	KindDelivered  Kind = "delivered"
)

// Event is one device movement worth telling someone about.
type Event struct {
	Kind      Kind
	Device    device.Device
	Actor     string
	Site      string
	Occupancy device.Occupancy
	Location  *time.Location
}

// Title returns a one-line summary in the language operators use.
func (e Event) Title() string {
	switch e.Kind {
	case KindRegistered:
		return fmt.Sprintf("Nuevo registro: %s (%s)", e.Device.Name, e.Device.MovementType.Label())
	case KindValidated:
		return fmt.Sprintf("Validado: %s", e.Device.Name)
	case KindDelivered:
		return fmt.Sprintf("Salida entregada: %s", e.Device.Name)
	default:
		return e.Device.Name
	}
}

// When returns the device timestamp in the event location.
func (e Event) When() string {
	loc := e.Location
	if loc == nil {
		loc = time.UTC
	}
	return e.Device.Timestamp.In(loc).Format(device.ExportTimeLayout)
}

// Notifier delivers an Event on one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev Event) error
}

// Logger is the logging surface the dispatcher needs.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Dispatcher fans events out to notifiers.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Dispatcher struct {
	notifiers []Notifier
	kinds     map[Kind]bool
	logger    Logger
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewDispatcher returns a dispatcher that forwards events of the given
// kinds; with no kinds, registrations and deliveries are forwarded.
func NewDispatcher(notifiers []Notifier, kinds ...Kind) *Dispatcher {
	if len(kinds) == 0 {
		kinds = []Kind{KindRegistered, KindDelivered}
	}
	set := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return &Dispatcher{
		notifiers: notifiers,
		kinds:     set,
		logger:    noopLogger{},
		timeout:   defaultSendTimeout,
	}
}

// SetLogger sets the logger used for delivery failures.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Enabled reports whether any notifier is configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && len(d.notifiers) > 0
}

// Notify delivers ev synchronously to every notifier and joins their errors.
// Events of kinds the dispatcher does not forward are ignored.
func (d *Dispatcher) Notify(ctx context.Context, ev Event) error {
	if !d.Enabled() || !d.kinds[ev.Kind] {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var errs []error
	for _, n := range d.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Dispatch delivers ev in the background, logging failures.
func (d *Dispatcher) Dispatch(ev Event) {
	if !d.Enabled() || !d.kinds[ev.Kind] {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.Notify(context.Background(), ev); err != nil {
			d.logger.Warn("notification failed", "device_id", ev.Device.ID, "kind", ev.Kind, "error", err)
		}
	}()
}

// Wait blocks until background deliveries finish.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
