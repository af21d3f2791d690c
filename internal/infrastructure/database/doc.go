// Package database provides the SQLite store behind webCamCtrl's preset
// labels.
//
// The store is small and single-process: one writer connection, WAL mode
// for concurrent readers, and a busy timeout so the API and the control
// surface never see "database is locked".
//
// Migrations are plain SQL files named YYYYMMDD_HHMMSS_description.up.sql
// with an optional matching .down.sql. They are read from any fs.FS, which
// in production is the embedded migrations package:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Applied versions are tracked in the schema_migrations table. Each
// migration runs in its own transaction.
package database
