package load

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.datawiz.dev/etl/config"
)

func TestConfigurePoolPrePing(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectPing()

	err = configurePool(sqlx.NewDb(db, "sqlmock"), config.PoolConfig{
		MaxOpen: 10,
		MaxIdle: 4,
		PrePing: true,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurePoolSkipsPingByDefault(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	err = configurePool(sqlx.NewDb(db, "sqlmock"), config.PoolConfig{
		MaxOpen: 10,
		MaxIdle: 4,
	})
	require.NoError(t, err)
	// No ping was expected and none must have run.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurePoolPingFailure(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectPing().WillReturnError(assert.AnError)

	err = configurePool(sqlx.NewDb(db, "sqlmock"), config.PoolConfig{
		MaxOpen: 10,
		MaxIdle: 4,
		PrePing: true,
	})
	assert.ErrorIs(t, err, assert.AnError)
}
