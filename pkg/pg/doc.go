// Package pg opens the Postgres pool used for the subscription status-change
// history and applies embedded goose migrations.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, history.Migrations, cfg.MigrationsTable, log); err != nil {
//		return err
//	}
//
// Postgres is optional for the service: when PG_CONN_URL is empty the history
// is not recorded. Config.Enabled reports this.
package pg
