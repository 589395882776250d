// Package gormstore stores devices in MySQL through gorm.
//
// It is selected with storage.provider: mysql and suits sites that already
// run a MySQL server shared with other facility systems. The schema is
// managed by gorm AutoMigrate rather than the SQLite migrations.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nerrad567/gatehouse/internal/device"
)

// deviceRecord is the gorm model for the devices table.
type deviceRecord struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Name         string    `gorm:"size:100;not null"`
	Brand        string    `gorm:"size:100;not null"`
	SerialNumber string    `gorm:"size:100;not null;index"`
	Responsible  string    `gorm:"size:100;not null"`
	Reason       string    `gorm:"size:500;not null"`
	MovementType string    `gorm:"size:16;not null"`
	Status       string    `gorm:"size:16;not null;index;default:pendiente"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time
}

// TableName keeps the table name aligned with the SQLite schema.
func (deviceRecord) TableName() string {
	return "devices"
}

func toRecord(d *device.Device) deviceRecord {
	return deviceRecord{
		ID:           d.ID,
		Name:         d.Name,
		Brand:        d.Brand,
		SerialNumber: d.SerialNumber,
		Responsible:  d.Responsible,
		Reason:       d.Reason,
		MovementType: string(d.MovementType),
		Status:       string(d.Status),
		CreatedAt:    d.Timestamp.UTC(),
	}
}

func (r deviceRecord) toDevice() device.Device {
	return device.Device{
		ID:           r.ID,
		Name:         r.Name,
		Brand:        r.Brand,
		SerialNumber: r.SerialNumber,
		Responsible:  r.Responsible,
		Reason:       r.Reason,
		MovementType: device.MovementType(r.MovementType),
		Status:       device.Status(r.Status),
		Timestamp:    r.CreatedAt.UTC(),
	}
}

// Options configures Open.
type Options struct {
	DSN          string
	MaxOpenConns int
	AutoMigrate  bool
}

// Store implements device.Repository on a *gorm.DB.
type Store struct {
	db *gorm.DB
}

var _ device.Repository = (*Store)(nil)

// Open connects to MySQL and optionally migrates the devices table.
// The DSN must include parseTime=True so DATETIME columns scan into time.Time.
func Open(opts Options) (*Store, error) {
	db, err := gorm.Open(mysql.Open(opts.DSN), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("opening mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting mysql pool: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return New(db, opts.AutoMigrate)
}

// New wraps an existing gorm connection. Any dialect works; tests use SQLite.
func New(db *gorm.DB, autoMigrate bool) (*Store, error) {
	if autoMigrate {
		if err := db.AutoMigrate(&deviceRecord{}); err != nil {
			return nil, fmt.Errorf("migrating devices table: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// gormConfig silences gorm's own logger; errors are returned and logged by
// the caller. TranslateError maps driver duplicate-key errors to
// gorm.ErrDuplicatedKey.
func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting mysql pool: %w", err)
	}
	return sqlDB.Close()
}

// GetByID retrieves a device by ID.
func (s *Store) GetByID(ctx context.Context, id string) (*device.Device, error) {
	var rec deviceRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, device.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying device: %w", err)
	}
	d := rec.toDevice()
	return &d, nil
}

// List returns all devices ordered by creation time.
func (s *Store) List(ctx context.Context) ([]device.Device, error) {
	var recs []deviceRecord
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}

	devices := make([]device.Device, 0, len(recs))
	for _, rec := range recs {
		devices = append(devices, rec.toDevice())
	}
	return devices, nil
}

// Create inserts a device.
func (s *Store) Create(ctx context.Context, d *device.Device) error {
	rec := toRecord(d)
	err := s.db.WithContext(ctx).Create(&rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", device.ErrDeviceExists, d.ID)
	}
	if err != nil {
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update applies patch. An empty patch only checks existence.
func (s *Store) Update(ctx context.Context, id string, patch device.Patch) error {
	if patch.Status == nil {
		_, err := s.GetByID(ctx, id)
		return err
	}

	result := s.db.WithContext(ctx).Model(&deviceRecord{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(*patch.Status),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("updating device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return device.ErrDeviceNotFound
	}
	return nil
}

// Delete removes a device.
func (s *Store) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&deviceRecord{})
	if result.Error != nil {
		return fmt.Errorf("deleting device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return device.ErrDeviceNotFound
	}
	return nil
}
