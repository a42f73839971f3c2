package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type widget struct {
	ID    string `gorm:"primaryKey"`
	Label string
	Count int
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&widget{}))
	return conn
}

type ctxKey struct{}

func TestDBScopesContext(t *testing.T) {
	conn := openDB(t)
	base := NewBase(conn)

	ctx := context.WithValue(context.Background(), ctxKey{}, "v")
	scoped := base.DB(ctx)
	require.NotNil(t, scoped.Statement)
	assert.Equal(t, ctx, scoped.Statement.Context)

	assert.Same(t, conn, base.DB(nil))
}

func TestFirstAndAffected(t *testing.T) {
	conn := openDB(t)
	base := NewBase(conn)
	ctx := context.Background()
	require.NoError(t, base.DB(ctx).Create(&widget{ID: "a", Label: "alpha"}).Error)

	got, err := First[widget](base.DB(ctx).Where("id = ?", "a"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Label)

	_, err = First[widget](base.DB(ctx).Where("id = ?", "missing"))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	n, err := Affected(base.DB(ctx).Model(&widget{}).Where("id = ? AND count = ?", "a", 0).Update("count", 1))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// the guard no longer matches
	n, err = Affected(base.DB(ctx).Model(&widget{}).Where("id = ? AND count = ?", "a", 0).Update("count", 2))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestForUpdateSkipsSQLite(t *testing.T) {
	conn := openDB(t)
	q := ForUpdate(conn.Model(&widget{}))
	_, locked := q.Statement.Clauses["FOR"]
	assert.False(t, locked)

	got, err := First[widget](ForUpdate(conn.Where("id = ?", "none")))
	assert.Nil(t, got)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
