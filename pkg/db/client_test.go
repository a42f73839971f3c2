package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/seedfund-backend/pkg/config"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

type ledgerRow struct {
	ID  int
	Ref string `gorm:"uniqueIndex"`
}

func openMemory(t *testing.T, gcfg *gorm.Config) *gorm.DB {
	t.Helper()
	if gcfg == nil {
		gcfg = &gorm.Config{Logger: gormlogger.Discard}
	}
	gcfg.SkipDefaultTransaction = true
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), gcfg)
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&ledgerRow{}))
	return conn
}

func count(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&ledgerRow{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	conn := openMemory(t, nil)
	client := NewWithConn(conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Ref: "committed"}).Error
	}))
	assert.EqualValues(t, 1, count(t, conn))

	boom := errors.New("boom")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&ledgerRow{Ref: "rolled"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, count(t, conn))

	assert.Panics(t, func() {
		_ = client.WithTx(ctx, func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&ledgerRow{Ref: "panicked"}).Error)
			panic("handler blew up")
		})
	})
	assert.EqualValues(t, 1, count(t, conn))
}

func TestIsUniqueViolationSQLite(t *testing.T) {
	conn := openMemory(t, nil)
	require.NoError(t, conn.Create(&ledgerRow{Ref: "dup"}).Error)

	err := conn.Create(&ledgerRow{Ref: "dup"}).Error
	assert.True(t, IsUniqueViolation(err, ""))
	assert.False(t, IsUniqueViolation(err, "ux_other_constraint"))
	assert.False(t, IsUniqueViolation(errors.New("connection reset"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestPingAndClose(t *testing.T) {
	client := NewWithConn(openMemory(t, nil))
	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Close())
	assert.Error(t, client.Ping(context.Background()))
}

func TestDialectorFor(t *testing.T) {
	_, err := dialectorFor(config.DBConfig{DSN: "x", Driver: "oracle"})
	assert.Error(t, err)

	d, err := dialectorFor(config.DBConfig{DSN: "file::memory:", Driver: " SQLite "})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	d, err = dialectorFor(config.DBConfig{DSN: "postgres://localhost/seedfund"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{}, nil)
	assert.Error(t, err)
}

func TestQueryLoggerReportsFailuresAndSlowQueries(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})
	conn := openMemory(t, &gorm.Config{Logger: newQueryLogger(logg, time.Hour)})

	require.NoError(t, conn.Create(&ledgerRow{Ref: "a"}).Error)
	var missing ledgerRow
	require.ErrorIs(t, conn.Where("ref = ?", "nope").First(&missing).Error, gorm.ErrRecordNotFound)
	assert.NotContains(t, buf.String(), "query failed", "fast queries and not-found stay quiet")

	require.Error(t, conn.Exec("SELECT * FROM missing_table").Error)
	assert.Contains(t, buf.String(), "query failed")
	assert.Contains(t, buf.String(), "missing_table")

	buf.Reset()
	slowConn := openMemory(t, &gorm.Config{Logger: newQueryLogger(logg, time.Nanosecond)})
	require.NoError(t, slowConn.Create(&ledgerRow{Ref: "b"}).Error)
	assert.Contains(t, buf.String(), "slow query")
}

func TestQueryLoggerWithoutLoggerDiscards(t *testing.T) {
	assert.Equal(t, gormlogger.Discard, newQueryLogger(nil, 0))
}
