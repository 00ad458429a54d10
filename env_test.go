package kvstore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "kvstore-test-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestOpenRejectsEmptyVersion(t *testing.T) {
	dir := tempDir(t)
	_, err := Open("", dir, "vanilla")
	assert.Error(t, err)
}

func TestOpenRejectsMissingDirectory(t *testing.T) {
	_, err := Open("1", "/no/such/directory/ever", "vanilla")
	assert.Error(t, err)
}

func TestOpenAndClose(t *testing.T) {
	dir := tempDir(t)
	env, err := Open("1", dir, "vanilla")
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, "1", env.Version())
	assert.Equal(t, "vanilla", env.Flavor())
	require.NoError(t, env.Close())
}

func TestDoubleOpenFails(t *testing.T) {
	dir := tempDir(t)
	env, err := Open("1", dir, "vanilla")
	require.NoError(t, err)
	defer env.Close()

	_, err = Open("1", dir, "coldbrew")
	assert.ErrorIs(t, err, ErrEnvironmentInUse)
}

func TestSecondEnvironmentSucceedsAfterFirstCloses(t *testing.T) {
	dir := tempDir(t)
	env, err := Open("1", dir, "vanilla")
	require.NoError(t, err)
	require.NoError(t, env.Close())

	env2, err := Open("1", dir, "coldbrew")
	require.NoError(t, err)
	require.NoError(t, env2.Close())
}

func TestDoubleCloseFails(t *testing.T) {
	dir := tempDir(t)
	env, err := Open("1", dir, "vanilla")
	require.NoError(t, err)
	require.NoError(t, env.Close())

	err = env.Close()
	assert.ErrorIs(t, err, ErrClosed)
}
