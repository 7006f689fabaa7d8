// Package postgres stores conversation checkpoints in PostgreSQL through a
// pgx connection pool. State and metadata are JSONB columns.
//
//	cs, err := postgres.NewPostgresCheckpointStore(ctx, postgres.PostgresOptions{
//		ConnString: "postgres://postgres@localhost:5432/socrates_vdb",
//	})
//	if err != nil {
//		return err
//	}
//	if err := cs.InitSchema(ctx); err != nil {
//		return err
//	}
package postgres
