package audit

import "time"

// Actions recorded for device lifecycle events.
const (
	ActionCreate   = "create"
	ActionValidate = "validate"
	ActionDeliver  = "deliver"
	ActionDelete   = "delete"
	ActionLogin    = "login"
	ActionExport   = "export"
)

// Entity types.
const (
	EntityDevice   = "device"
	EntityOperator = "operator"
	EntityHistory  = "history"
)

// Sources identify which surface produced an entry.
const (
	SourceAPI = "api"
	SourceCLI = "cli"
)

// Page size bounds for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// timestampLayout is fixed-width so created_at sorts lexicographically.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// AuditLog represents a single audit trail entry.
type AuditLog struct { //nolint:revive // audit.AuditLog is clearer than audit.Log in calling code
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter controls which audit logs to return.
type Filter struct {
	Action     string // optional: create, validate, deliver, delete, login, export
	EntityType string // optional: device, operator, history
	EntityID   string // optional: a specific device ID
	UserID     string // optional: operator username
	Limit      int    // default 50, max 200
	Offset     int    // pagination offset
}

// normalise clamps pagination values into range.
func (f *Filter) normalise() {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ListResult contains the paginated audit log results.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}
