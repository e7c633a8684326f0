package load

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"go.datawiz.dev/etl/config"
)

// Connect opens the tenant's OLAP database over the MySQL wire protocol and
// applies the tenant's pool settings. The password comes from the tenant env
// and never appears in logs or error text.
func Connect(tenant *config.TenantContext) (*sqlx.DB, error) {
	doc := tenant.Doc

	cfg := mysql.NewConfig()
	cfg.User = doc.Database.User
	cfg.Passwd = tenant.Env("DB_PASSWORD")
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", doc.Database.Host, doc.Database.Port)
	cfg.DBName = doc.Database.Name
	cfg.ParseTime = true
	cfg.InterpolateParams = true

	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open database for tenant %s: %w", tenant.Slug, err)
	}

	err = configurePool(db, doc.ConnectionPool)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("database unreachable for tenant %s: %w", tenant.Slug, err)
	}

	return db, nil
}

// configurePool applies the tenant's pool settings. With pre_ping set the
// handle is verified before the first statement runs.
func configurePool(db *sqlx.DB, pool config.PoolConfig) error {
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(time.Duration(pool.RecycleSeconds) * time.Second)

	if pool.PrePing {
		return db.Ping()
	}

	return nil
}

// LiveColumn is one destination column as the database reports it, in
// positional order. Positional order is what the bulk load binds against,
// so it is the only order the loader trusts.
type LiveColumn struct {
	Name       string        `db:"COLUMN_NAME"`
	DataType   string        `db:"DATA_TYPE"`
	ColumnType string        `db:"COLUMN_TYPE"`
	IsNullable string        `db:"IS_NULLABLE"`
	CharMaxLen sql.NullInt64 `db:"CHARACTER_MAXIMUM_LENGTH"`
	Position   int           `db:"ORDINAL_POSITION"`
}

// Nullable reports whether the column accepts nulls.
func (c LiveColumn) Nullable() bool {
	return c.IsNullable == "YES"
}

const liveSchemaQuery = `
SELECT COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, IS_NULLABLE,
       CHARACTER_MAXIMUM_LENGTH, ORDINAL_POSITION
FROM information_schema.columns
WHERE table_schema = ? AND table_name = ?
ORDER BY ORDINAL_POSITION`

// FetchLiveSchema reads the destination table's column list at run time.
// Cached schemas are a positional-binding hazard; the loader refetches on
// every run.
func FetchLiveSchema(ctx context.Context, db *sqlx.DB, database, table string) ([]LiveColumn, error) {
	var cols []LiveColumn

	err := db.SelectContext(ctx, &cols, liveSchemaQuery, database, table)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %w", ErrSchemaFetch, database, table, err)
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s.%s: table has no columns or does not exist",
			ErrSchemaFetch, database, table)
	}

	return cols, nil
}

// countRows returns the destination table's current row count.
func countRows(ctx context.Context, db *sqlx.DB, table string) (int64, error) {
	var n int64

	err := db.GetContext(ctx, &n, fmt.Sprintf("SELECT COUNT(*) FROM `%s`", table))
	if err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", table, err)
	}

	return n, nil
}
