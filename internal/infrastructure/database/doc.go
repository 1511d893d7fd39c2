// Package database opens and migrates the SQLite import archive.
//
// The archive has a single writer (the inbox scan loop) and light read
// traffic from the HTTP API, so the connection pool is pinned to one
// connection and WAL mode keeps reads flowing during a scan. The
// schema ships as embedded *.up.sql / *.down.sql pairs registered by
// the migrations package; each migration commits in its own
// transaction.
//
//	db, err := database.Open(database.Config{Path: "data/archive.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//		return err
//	}
package database
