// Package sqlite stores conversation checkpoints in a SQLite file.
//
//	cs, err := sqlite.NewSqliteCheckpointStore(sqlite.SqliteOptions{
//		Path: "socrates.db",
//	})
//	if err != nil {
//		return err
//	}
//	defer cs.Close()
//
// The table is created on open. Rows are keyed by checkpoint ID and indexed
// by (thread_id, version).
package sqlite
