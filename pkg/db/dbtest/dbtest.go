// Package dbtest opens isolated in-memory SQLite databases carrying the
// settlement schema for repository and service tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/seedfund-backend/pkg/db"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
)

// schema mirrors the goose migrations using SQLite types.
var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		seed_balance INTEGER NOT NULL DEFAULT 0 CHECK (seed_balance >= 0),
		score INTEGER NOT NULL DEFAULT 0,
		creator_tier TEXT,
		suspended BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE partners (
		id TEXT PRIMARY KEY,
		owner_user_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		debt_balance NUMERIC NOT NULL DEFAULT 0,
		sales_count INTEGER NOT NULL DEFAULT 0,
		sales_total NUMERIC NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE purchase_requests (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		partner_id TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		decided_by TEXT,
		decided_at DATETIME,
		reject_reason TEXT,
		purchase_id TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE purchases (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL UNIQUE,
		buyer_id TEXT NOT NULL,
		partner_id TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		status TEXT NOT NULL DEFAULT 'awaiting_remittance',
		cashback_seeds INTEGER NOT NULL DEFAULT 0,
		released_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE remittances (
		id TEXT PRIMARY KEY,
		purchase_id TEXT NOT NULL,
		partner_id TEXT NOT NULL,
		value NUMERIC NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		proof_ref TEXT,
		provider TEXT,
		external_payment_id TEXT UNIQUE,
		payment_deadline DATETIME,
		spender_share INTEGER NOT NULL DEFAULT 0,
		fund_share NUMERIC NOT NULL DEFAULT 0,
		platform_share NUMERIC NOT NULL DEFAULT 0,
		confirmed_by TEXT,
		confirmed_at DATETIME,
		rejected_at DATETIME,
		reject_reason TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_remittances_active_purchase ON remittances (purchase_id)
		WHERE status IN ('pending', 'awaiting_payment')`,
	`CREATE TABLE seed_funds (
		id TEXT PRIMARY KEY,
		cycle_number INTEGER NOT NULL,
		window_start DATETIME NOT NULL,
		window_end DATETIME NOT NULL,
		total NUMERIC NOT NULL DEFAULT 0,
		distributed BOOLEAN NOT NULL DEFAULT 0,
		distributed_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE fund_distributions (
		id TEXT PRIMARY KEY,
		fund_id TEXT NOT NULL,
		beneficiary_id TEXT NOT NULL,
		beneficiary_type TEXT NOT NULL,
		value INTEGER NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE cycle_configs (
		id INTEGER PRIMARY KEY,
		cycle_start DATETIME NOT NULL,
		season_start DATETIME NOT NULL,
		cycle_number INTEGER NOT NULL DEFAULT 1,
		season_number INTEGER NOT NULL DEFAULT 1,
		paused BOOLEAN NOT NULL DEFAULT 0,
		current_fund_id TEXT,
		updated_at DATETIME
	)`,
	`CREATE TABLE seed_history (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		reason TEXT NOT NULL,
		reference_id TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE donations (
		id TEXT PRIMARY KEY,
		donor_id TEXT NOT NULL,
		creator_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		cycle_number INTEGER NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE creator_contents (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		removed BOOLEAN NOT NULL DEFAULT 0,
		reactions INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME
	)`,
	`CREATE TABLE partner_contents (
		id TEXT PRIMARY KEY,
		partner_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		removed BOOLEAN NOT NULL DEFAULT 0,
		reactions INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME
	)`,
	`CREATE TABLE cycle_rankings (
		id TEXT PRIMARY KEY,
		cycle_number INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		score INTEGER NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE cycle_archives (
		id TEXT PRIMARY KEY,
		cycle_number INTEGER NOT NULL,
		season_number INTEGER NOT NULL,
		source_table TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		read_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE audit_logs (
		id TEXT PRIMARY KEY,
		actor_id TEXT,
		action TEXT NOT NULL,
		details TEXT,
		ip TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns a client over a fresh database private to the test.
func Open(t testing.TB) *db.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// a single connection keeps the shared in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return db.NewWithConn(conn)
}

// SeedCycleConfig inserts the singleton cycle row starting at start.
func SeedCycleConfig(t testing.TB, client *db.Client, start time.Time) models.CycleConfig {
	t.Helper()
	cfg := models.CycleConfig{
		ID:           models.CycleConfigID,
		CycleStart:   start.UTC(),
		SeasonStart:  start.UTC(),
		CycleNumber:  1,
		SeasonNumber: 1,
	}
	if err := client.DB().Create(&cfg).Error; err != nil {
		t.Fatalf("seed cycle config: %v", err)
	}
	return cfg
}

// CreateUser inserts a user with the given balance.
func CreateUser(t testing.TB, client *db.Client, balance int64) models.User {
	t.Helper()
	id := uuid.New()
	user := models.User{
		ID:          id,
		Email:       id.String() + "@example.com",
		DisplayName: "user " + id.String()[:8],
		SeedBalance: balance,
	}
	if err := client.DB().WithContext(context.Background()).Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreatePartner inserts a partner owned by a fresh user.
func CreatePartner(t testing.TB, client *db.Client) models.Partner {
	t.Helper()
	owner := CreateUser(t, client, 0)
	partner := models.Partner{
		ID:          uuid.New(),
		OwnerUserID: owner.ID,
		Name:        "partner " + owner.ID.String()[:8],
	}
	if err := client.DB().Create(&partner).Error; err != nil {
		t.Fatalf("create partner: %v", err)
	}
	return partner
}
