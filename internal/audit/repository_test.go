package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const testSchema = `
CREATE TABLE audit_logs (
    id          TEXT PRIMARY KEY,
    action      TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id   TEXT,
    user_id     TEXT,
    source      TEXT NOT NULL DEFAULT 'api',
    details     TEXT,
    created_at  TEXT NOT NULL
) STRICT;
`

func setupTestDB(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	return NewSQLiteRepository(db)
}

func TestCreate_FillsDefaults(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	entry := &AuditLog{
		Action:     ActionCreate,
		EntityType: EntityDevice,
		EntityID:   "dev-1",
		Details:    map[string]any{"serial_number": "SN1"},
	}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(entry.ID) != len("aud-")+8 || entry.ID[:4] != "aud-" {
		t.Errorf("ID = %q, want aud-xxxxxxxx", entry.ID)
	}
	if entry.Source != SourceAPI {
		t.Errorf("Source = %q, want %q", entry.Source, SourceAPI)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || len(result.Logs) != 1 {
		t.Fatalf("List() = %+v, want one entry", result)
	}
	got := result.Logs[0]
	if got.EntityID != "dev-1" || got.UserID != "" {
		t.Errorf("entity/user = %q/%q", got.EntityID, got.UserID)
	}
	if got.Details["serial_number"] != "SN1" {
		t.Errorf("Details = %v", got.Details)
	}
}

func TestCreate_Invalid(t *testing.T) {
	repo := setupTestDB(t)

	err := repo.Create(context.Background(), &AuditLog{Action: ActionCreate})
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Create() error = %v, want ErrInvalidEntry", err)
	}
}

func TestList_OrderAndFilters(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	entries := []AuditLog{
		{Action: ActionCreate, EntityType: EntityDevice, EntityID: "dev-1", UserID: "ana", CreatedAt: base},
		{Action: ActionValidate, EntityType: EntityDevice, EntityID: "dev-1", UserID: "luis", CreatedAt: base.Add(time.Minute)},
		{Action: ActionCreate, EntityType: EntityDevice, EntityID: "dev-2", UserID: "ana", CreatedAt: base.Add(2 * time.Minute)},
		{Action: ActionLogin, EntityType: EntityOperator, UserID: "ana", CreatedAt: base.Add(3 * time.Minute)},
	}
	for i := range entries {
		if err := repo.Create(ctx, &entries[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string
	}{
		{"all newest first", Filter{}, 4, ActionLogin},
		{"by action", Filter{Action: ActionCreate}, 2, ActionCreate},
		{"by entity", Filter{EntityType: EntityDevice, EntityID: "dev-1"}, 2, ActionValidate},
		{"by user", Filter{UserID: "luis"}, 1, ActionValidate},
		{"no match", Filter{Action: ActionDelete}, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.wantTotal || len(result.Logs) != tt.wantTotal {
				t.Fatalf("Total = %d, len = %d, want %d", result.Total, len(result.Logs), tt.wantTotal)
			}
			if tt.wantTotal > 0 && result.Logs[0].Action != tt.wantFirst {
				t.Errorf("first action = %q, want %q", result.Logs[0].Action, tt.wantFirst)
			}
		})
	}
}

func TestList_Pagination(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	for i := range 5 {
		entry := &AuditLog{Action: ActionCreate, EntityType: EntityDevice, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 5 || len(result.Logs) != 1 {
		t.Errorf("Total = %d, len = %d, want 5 and 1", result.Total, len(result.Logs))
	}
	if !result.Logs[0].CreatedAt.Equal(base) {
		t.Errorf("last page entry = %v, want oldest", result.Logs[0].CreatedAt)
	}
}

func TestFilterNormalise(t *testing.T) {
	tests := []struct {
		in         Filter
		wantLimit  int
		wantOffset int
	}{
		{Filter{}, DefaultLimit, 0},
		{Filter{Limit: 1000}, MaxLimit, 0},
		{Filter{Limit: 10, Offset: -3}, 10, 0},
	}

	for _, tt := range tests {
		f := tt.in
		f.normalise()
		if f.Limit != tt.wantLimit || f.Offset != tt.wantOffset {
			t.Errorf("normalise(%+v) = %d/%d, want %d/%d", tt.in, f.Limit, f.Offset, tt.wantLimit, tt.wantOffset)
		}
	}
}
