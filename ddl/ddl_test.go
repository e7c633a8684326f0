package ddl_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.datawiz.dev/etl/config"
	"go.datawiz.dev/etl/ddl"
	"go.datawiz.dev/etl/schema"
)

func newApplier(t *testing.T) (*ddl.Applier, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tenant := config.NewStaticContext("1b671a64-40d5-491e-99b0-da01ff1f3341", "acme", nil, nil)
	tenant.Tables = []schema.Table{
		{Name: "dim_customer", Kind: schema.KindTable, DDL: "CREATE TABLE IF NOT EXISTS `dim_customer` (id INT)"},
		{Name: "fact_sales", Kind: schema.KindTable, DDL: "CREATE TABLE IF NOT EXISTS `fact_sales` (id INT)"},
	}
	tenant.Views = []schema.Table{
		{Name: "v_sales", Kind: schema.KindView, DDL: "CREATE VIEW IF NOT EXISTS `v_sales` AS SELECT 1"},
	}
	tenant.MatViews = []schema.Table{
		{Name: "mv_sales_daily", Kind: schema.KindMatView, DDL: "CREATE MATERIALIZED VIEW IF NOT EXISTS `mv_sales_daily` AS SELECT 1"},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return ddl.NewApplier(sqlx.NewDb(db, "sqlmock"), tenant, logger), mock
}

func TestApplyRunsTablesThenViewsThenMatViews(t *testing.T) {
	t.Parallel()

	applier, mock := newApplier(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS `dim_customer`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS `fact_sales`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE VIEW IF NOT EXISTS `v_sales`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE MATERIALIZED VIEW IF NOT EXISTS `mv_sales_daily`").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, applier.Apply(t.Context()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyStopsOnRejectedStatement(t *testing.T) {
	t.Parallel()

	applier, mock := newApplier(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS `dim_customer`").
		WillReturnError(assert.AnError)

	err := applier.Apply(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, ddl.ErrApply)
	assert.ErrorContains(t, err, "dim_customer")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDropRunsMostDependentFirst(t *testing.T) {
	t.Parallel()

	applier, mock := newApplier(t)

	mock.ExpectExec("DROP MATERIALIZED VIEW IF EXISTS `mv_sales_daily`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP VIEW IF EXISTS `v_sales`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS `fact_sales`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS `dim_customer`").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, applier.Drop(t.Context()))
	require.NoError(t, mock.ExpectationsWereMet())
}
