package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/seedfund-backend/pkg/migrate"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	fsys, err := migrate.Source("")
	require.NoError(t, err)
	require.NoError(t, migrate.Validate(fsys))

	embedded, err := fs.Glob(fsys, "*.sql")
	require.NoError(t, err)
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	assert.Len(t, embedded, len(onDisk))
}

func TestValidateRejectsBadFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {"001_init.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")}},
		"duplicate version": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"missing down": {"20260101000000_a.sql": {Data: []byte("-- +goose Up\n")}},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, migrate.Validate(fsys))
		})
	}
}

func TestCreateWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 2, 10, 30, 0, 0, time.UTC)

	path, err := migrate.Create(dir, "Add Payout Index!", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260502103000_add_payout_index.sql"), path)
	require.NoError(t, migrate.Validate(os.DirFS(dir)))

	_, err = migrate.Create(dir, "add payout index", now)
	assert.Error(t, err, "same version must not be overwritten")

	_, err = migrate.Create(dir, "!!!", now)
	assert.Error(t, err)
}

func TestSourceRejectsMissingDir(t *testing.T) {
	_, err := migrate.Source(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestSettlementMigrationContainsGuards(t *testing.T) {
	content := readMigration(t, "*_create_settlement.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS remittances",
		"external_payment_id text UNIQUE",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_remittances_active_purchase",
		"WHERE status IN ('pending', 'awaiting_payment')",
		"DROP TABLE IF EXISTS purchase_requests",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestBalanceMigrationsForbidNegativeValues(t *testing.T) {
	users := readMigration(t, "*_create_users_partners.sql")
	for _, sub := range []string{"CHECK (seed_balance >= 0)", "CHECK (debt_balance >= 0)"} {
		if !strings.Contains(users, sub) {
			t.Errorf("missing expected constraint %q", sub)
		}
	}

	funds := readMigration(t, "*_create_seed_funds.sql")
	for _, sub := range []string{"current_fund_id uuid REFERENCES seed_funds(id)", "CHECK (id = 1)"} {
		if !strings.Contains(funds, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
