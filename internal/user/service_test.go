package user

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tarot-bot/internal/database"
	"github.com/Proton-105/tarot-bot/internal/domain"
	"github.com/Proton-105/tarot-bot/internal/repository"
	"github.com/Proton-105/tarot-bot/internal/usercache"
	"github.com/Proton-105/tarot-bot/pkg/config"
)

const adminID int64 = 900

func newTestService(t *testing.T) (*Service, repository.UserRepository) {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "users.db"),
	}
	require.NoError(t, database.NewMigrator(cfg, nil).Up())

	db, err := database.Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repository.NewUserRepository(db, nil)
	return NewService(repo, adminID, nil), repo
}

func TestService_RegisterAssignsAdminOnFirstInsert(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	admin, err := svc.Register(ctx, &telebot.User{ID: adminID, Username: "boss"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)

	u, err := svc.Register(ctx, &telebot.User{ID: 1, Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, u.Role)

	again, err := svc.Register(ctx, &telebot.User{ID: 1, Username: "alice_renamed"})
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Username)
	assert.True(t, u.CreatedAt.Equal(again.CreatedAt))

	_, err = svc.Register(ctx, nil)
	assert.Error(t, err)
}

func TestService_Promote(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &telebot.User{ID: 1, Username: "Alice"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, &telebot.User{ID: 2, FirstName: "NoHandle"})
	require.NoError(t, err)

	_, err = svc.Promote(ctx, 1, "@alice")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	promoted, err := svc.Promote(ctx, adminID, "@ALICE")
	require.NoError(t, err)
	assert.Equal(t, int64(1), promoted.ID)
	assert.Equal(t, domain.RoleTarot, promoted.Role)

	byID, err := svc.Promote(ctx, adminID, "2")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTarot, byID.Role)

	stored, err := svc.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTarot, stored.Role)

	_, err = svc.Promote(ctx, adminID, "@ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = svc.Promote(ctx, adminID, "  ")
	assert.Error(t, err)
}

func TestService_PromoteKeepsAdminRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &telebot.User{ID: adminID, Username: "boss"})
	require.NoError(t, err)

	u, err := svc.Promote(ctx, adminID, "boss")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)
	assert.True(t, svc.IsAdmin(adminID))
	assert.False(t, svc.IsAdmin(0))
}

func TestService_RegisterUsesCacheAndPromoteInvalidates(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc.WithCache(usercache.NewCache(client), time.Minute)

	u, err := svc.Register(ctx, &telebot.User{ID: 5, Username: "vera"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, u.Role)
	assert.True(t, mr.Exists("tarot:user:5"))

	_, err = svc.Promote(ctx, adminID, "@vera")
	require.NoError(t, err)
	assert.False(t, mr.Exists("tarot:user:5"))

	fresh, err := svc.Register(ctx, &telebot.User{ID: 5, Username: "vera"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTarot, fresh.Role)
	assert.True(t, mr.Exists("tarot:user:5"))

	// a cache hit never reaches the store
	require.NoError(t, repo.SetRole(ctx, 5, domain.RoleUser))
	cached, err := svc.Register(ctx, &telebot.User{ID: 5, Username: "vera"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTarot, cached.Role)

	mr.SetError("LOADING")
	fallback, err := svc.Register(ctx, &telebot.User{ID: 5, Username: "vera"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, fallback.Role)
}
