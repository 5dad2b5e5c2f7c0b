package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oncoscan/internal/database"
	"oncoscan/internal/models"
)

func newRepo(t *testing.T, ttl time.Duration) *Repository {
	t.Helper()
	return NewRepository(database.NewTestDB(t), ttl)
}

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, time.Minute)

	u := &models.User{Username: " doc_user ", PasswordHash: "hash", FullName: "Dr. Alice Onco"}
	require.NoError(t, repo.Create(ctx, u))
	assert.NotZero(t, u.ID)
	assert.Equal(t, "doc_user", u.Username)

	got, err := repo.FindByUsername(ctx, "doc_user")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Dr. Alice Onco", got.FullName)
	assert.False(t, got.IsAdmin)
}

func TestCreateRejectsDuplicatesAndBlanks(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, 0)

	require.NoError(t, repo.Create(ctx, &models.User{Username: "a", PasswordHash: "h"}))
	assert.ErrorIs(t, repo.Create(ctx, &models.User{Username: "a", PasswordHash: "h"}), ErrDuplicate)
	assert.ErrorIs(t, repo.Create(ctx, &models.User{Username: "  ", PasswordHash: "h"}), ErrInvalid)
	assert.ErrorIs(t, repo.Create(ctx, &models.User{Username: "b"}), ErrInvalid)
}

func TestFindUnknown(t *testing.T) {
	repo := newRepo(t, time.Minute)
	_, err := repo.FindByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FindByUsername(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, time.Hour)
	require.NoError(t, repo.Create(ctx, &models.User{Username: "doc", PasswordHash: "old"}))

	_, err := repo.FindByUsername(ctx, "doc")
	require.NoError(t, err)

	hash, admin := "new", true
	updated, err := repo.Apply(ctx, "doc", Update{PasswordHash: &hash, IsAdmin: &admin})
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin)

	got, err := repo.FindByUsername(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
	assert.True(t, got.IsAdmin)
}

func TestApplyUnknownUser(t *testing.T) {
	admin := true
	_, err := newRepo(t, 0).Apply(context.Background(), "ghost", Update{IsAdmin: &admin})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndExists(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, 0)
	require.NoError(t, repo.Create(ctx, &models.User{Username: "a", PasswordHash: "h"}))
	require.NoError(t, repo.Create(ctx, &models.User{Username: "b", PasswordHash: "h", IsAdmin: true}))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	ok, err := repo.Exists(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Exists(ctx, "c")
	require.NoError(t, err)
	assert.False(t, ok)
}
