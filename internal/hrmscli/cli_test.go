package hrmscli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSetupWritesEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	out, err := execute(t, "setup", "--admin-password", "correct-horse", "--env-file", path, "--session-store", "redis")
	require.NoError(t, err)
	require.Contains(t, out, "wrote "+path)

	values, err := godotenv.Read(path)
	require.NoError(t, err)
	require.Equal(t, "admin@hrms.local", values["ADMIN_USERNAME"])
	require.Equal(t, "correct-horse", values["ADMIN_PASSWORD"])
	require.Equal(t, "redis", values["SESSION_STORE"])

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = execute(t, "setup", "--admin-password", "correct-horse", "--env-file", path)
	require.ErrorContains(t, err, "already exists")
	_, err = execute(t, "setup", "--admin-password", "correct-horse", "--env-file", path, "--force")
	require.NoError(t, err)
}

func TestSetupRejectsWeakPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	_, err := execute(t, "setup", "--env-file", path)
	require.ErrorContains(t, err, "--admin-password is required")

	_, err = execute(t, "setup", "--admin-password", "short", "--env-file", path)
	require.ErrorContains(t, err, "invalid admin password")
	require.NoFileExists(t, path)
}

func TestRunRejectsUnknownTarget(t *testing.T) {
	_, err := execute(t, "run", "database")
	require.Error(t, err)

	_, err = execute(t, "run")
	require.Error(t, err)
}
