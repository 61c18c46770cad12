// Package database provides the SQLite store behind devsel's sweep history.
//
// It manages:
//   - The connection, with WAL mode and a busy timeout
//   - Schema migrations read from an fs.FS (see the migrations package)
//
// The pool is pinned to a single connection: SQLite has one writer, and an
// in-memory database (Path ":memory:") only lives as long as its connection.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Rollback reverts the newest applied step.
package database
