package sshutil

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHome points $HOME at a fresh directory with a .ssh subdirectory and
// returns that subdirectory.
func fakeHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	sshDir := filepath.Join(home, ".ssh")
	require.NoError(t, os.MkdirAll(sshDir, 0o700))
	return sshDir
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("key material"), 0o600))
}

func TestSelectKeysExplicitPathWins(t *testing.T) {
	fakeHome(t)

	keys, err := SelectKeys("web-1", "/etc/keys/deploy", "/ignored/default")
	require.NoError(t, err)
	assert.Equal(t, []string{"/etc/keys/deploy"}, keys)
}

func TestSelectKeysExpandsTilde(t *testing.T) {
	home := filepath.Dir(fakeHome(t))

	keys, err := SelectKeys("web-1", "~/keys/deploy", "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(home, "keys", "deploy")}, keys)
}

func TestSelectKeysDefaultKeyFallback(t *testing.T) {
	fakeHome(t)

	keys, err := SelectKeys("web-1", UnspecifiedKey, "/etc/keys/default")
	require.NoError(t, err)
	assert.Equal(t, []string{"/etc/keys/default"}, keys)
}

func TestSelectKeysProbesConventionalFiles(t *testing.T) {
	sshDir := fakeHome(t)
	touch(t, filepath.Join(sshDir, "id_rsa"))
	touch(t, filepath.Join(sshDir, "id_ed25519"))

	keys, err := SelectKeys("web-1", UnspecifiedKey, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(sshDir, "id_ed25519"),
		filepath.Join(sshDir, "id_rsa"),
	}, keys)
}

func TestSelectKeysNoneFound(t *testing.T) {
	fakeHome(t)

	_, err := SelectKeys("web-1", UnspecifiedKey, "")
	require.Error(t, err)

	var notFound *NoKeyFoundError
	require.True(t, stderrors.As(err, &notFound))
	assert.Contains(t, err.Error(), "No SSH keys found")
}

func TestSelectKeysUsesConfigIdentityFile(t *testing.T) {
	sshDir := fakeHome(t)
	touch(t, filepath.Join(sshDir, "deploy_key"))
	touch(t, filepath.Join(sshDir, "id_rsa"))

	config := "Host web-1\n  IdentityFile ~/.ssh/deploy_key\n"
	require.NoError(t, os.WriteFile(filepath.Join(sshDir, "config"), []byte(config), 0o600))

	keys, err := SelectKeys("web-1", UnspecifiedKey, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(sshDir, "deploy_key"),
		filepath.Join(sshDir, "id_rsa"),
	}, keys)

	// A host the config doesn't know falls back to the conventional probe.
	keys, err = SelectKeys("db-9", UnspecifiedKey, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(sshDir, "id_rsa")}, keys)
}
