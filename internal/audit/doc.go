// Package audit records who did what to which device.
//
// Every registry mutation made through the API or CLI appends an entry to
// the audit_logs table. Entries are append-only; there is no update or
// delete. The API exposes them at GET /api/v1/audit with action, entity and
// user filters and limit/offset pagination.
package audit
