// Package database provides SQLite connectivity and schema migrations for
// Gatehouse.
//
// The database file holds the device register and the audit trail. WAL mode
// lets the API serve reads while a write is in flight, and the busy timeout
// absorbs short lock contention from the CLI running beside the server.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are embedded by the top-level migrations package and named
// YYYYMMDD_HHMMSS_description.up.sql / .down.sql. Each runs in its own
// transaction and is recorded in schema_migrations.
package database
