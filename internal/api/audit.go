package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/nerrad567/gatehouse/internal/audit"
	"github.com/nerrad567/gatehouse/internal/infrastructure/logging"
)

// auditQueueLen bounds entries waiting for the writer. Requests never
// block on the audit trail; overflow is dropped with a warning.
const auditQueueLen = 256

// auditWriter persists audit entries off the request path, one at a time.
type auditWriter struct {
	repo   audit.Repository
	logger *logging.Logger
	queue  chan *audit.AuditLog
}

func newAuditWriter(repo audit.Repository, logger *logging.Logger) *auditWriter {
	if repo == nil {
		return nil
	}
	return &auditWriter{repo: repo, logger: logger, queue: make(chan *audit.AuditLog, auditQueueLen)}
}

// enqueue is nil-safe so handlers need not check whether auditing is on.
func (a *auditWriter) enqueue(entry *audit.AuditLog) {
	if a == nil {
		return
	}
	select {
	case a.queue <- entry:
	default:
		a.logger.Warn("audit queue full, entry dropped",
			"action", entry.Action,
			"entity_id", entry.EntityID,
		)
	}
}

// run writes entries until ctx ends, then flushes whatever is still queued.
func (a *auditWriter) run(ctx context.Context) {
	for {
		select {
		case entry := <-a.queue:
			a.write(entry)
		case <-ctx.Done():
			a.flush()
			return
		}
	}
}

func (a *auditWriter) flush() {
	for {
		select {
		case entry := <-a.queue:
			a.write(entry)
		default:
			return
		}
	}
}

func (a *auditWriter) write(entry *audit.AuditLog) {
	// The request that produced the entry may be long gone.
	if err := a.repo.Create(context.Background(), entry); err != nil {
		a.logger.Error("writing audit entry failed",
			"action", entry.Action,
			"entity_id", entry.EntityID,
			"error", err,
		)
	}
}

// auditLog records an API action by operator against an entity.
func (s *Server) auditLog(action, entityType, entityID, operator string, details map[string]any) {
	s.audit.enqueue(&audit.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     operator,
		Source:     audit.SourceAPI,
		Details:    details,
	})
}

var (
	auditActionNames = []string{
		audit.ActionCreate, audit.ActionValidate, audit.ActionDeliver,
		audit.ActionDelete, audit.ActionLogin, audit.ActionExport,
	}
	auditEntityNames = []string{audit.EntityDevice, audit.EntityOperator, audit.EntityHistory}
)

// parseAuditFilter builds a Filter from the query string. Unknown actions
// or entity types and malformed paging values are rejected; limits beyond
// the maximum are clamped by the repository.
func parseAuditFilter(q url.Values) (audit.Filter, error) {
	f := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		UserID:     q.Get("user_id"),
	}
	if f.Action != "" && !slices.Contains(auditActionNames, f.Action) {
		return f, fmt.Errorf("unknown action %q", f.Action)
	}
	if f.EntityType != "" && !slices.Contains(auditEntityNames, f.EntityType) {
		return f, fmt.Errorf("unknown entity_type %q", f.EntityType)
	}

	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("%s must be a non-negative integer", name)
		}
		*dst = n
	}
	return f, nil
}

// handleListAuditLogs returns a page of the audit trail.
//
// Query parameters: action, entity_type, entity_id, user_id, limit
// (default 50, max 200) and offset.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeInternalError(w, "audit logging not configured")
		return
	}

	filter, err := parseAuditFilter(r.URL.Query())
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.audit.repo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit entries failed", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
