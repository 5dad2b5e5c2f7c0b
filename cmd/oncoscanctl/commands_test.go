package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oncoscan/internal/auth"
	"oncoscan/internal/database"
	"oncoscan/internal/users"
)

func testOpener(t *testing.T) (*users.Repository, repoOpener) {
	repo := users.NewRepository(database.NewTestDB(t), 0)
	return repo, func() (*users.Repository, func(), error) { return repo, func() {}, nil }
}

func run(t *testing.T, open repoOpener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCommand(open)
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCreateAdmin(t *testing.T) {
	repo, open := testOpener(t)

	out, err := run(t, open, "create-admin", "chief", "hunter22", "--full-name", "Dr. Chief")
	require.NoError(t, err)
	assert.Contains(t, out, "Admin user created")

	u, err := repo.FindByUsername(context.Background(), "chief")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
	assert.Equal(t, "Dr. Chief", u.FullName)
	assert.NoError(t, auth.CheckPassword(u.PasswordHash, "hunter22"))

	out, err = run(t, open, "create-admin", "chief", "other")
	require.NoError(t, err)
	assert.Contains(t, out, "User already exists")
}

func TestSetPassword(t *testing.T) {
	repo, open := testOpener(t)
	_, err := run(t, open, "create-admin", "chief", "first")
	require.NoError(t, err)

	out, err := run(t, open, "set-password", "chief", "second")
	require.NoError(t, err)
	assert.Contains(t, out, "Password updated")

	u, err := repo.FindByUsername(context.Background(), "chief")
	require.NoError(t, err)
	assert.NoError(t, auth.CheckPassword(u.PasswordHash, "second"))

	_, err = run(t, open, "set-password", "ghost", "x")
	assert.ErrorIs(t, err, users.ErrNotFound)
}

func TestArgsValidated(t *testing.T) {
	_, open := testOpener(t)
	_, err := run(t, open, "create-admin", "only-username")
	assert.Error(t, err)
}
