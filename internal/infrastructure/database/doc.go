// Package database provides the SQLite store for recorded sessions.
//
// The recordings database holds session rows and, through the SQLite
// sink, the sample batches captured during a recording. WAL mode keeps
// API reads from blocking sink writes, and a single-connection pool
// sidesteps SQLITE_BUSY between the two writers the daemon has (the
// sink and the migration runner at startup).
//
// The file is chmod 0600 after open; recordings may carry
// physiological data and the store is owner-only by default.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Schema migrations come from an fs.FS registered by the migrations
// package and are applied in version order, one transaction each.
// They are additive-only: new columns are nullable or defaulted, and
// nothing is dropped or renamed, so an older binary can still read a
// newer file.
package database
