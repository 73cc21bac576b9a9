package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumspace/chatcore/internal/app"
	"github.com/quantumspace/chatcore/internal/auth"
	"github.com/quantumspace/chatcore/internal/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("CHATCORE_DATABASE_PATH", filepath.Join(dir, "chat.db"))
	t.Setenv("CHATCORE_LOG_LEVEL", "disabled")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", filepath.Join(dir, "config.yaml")}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestSeedPrintsTokens(t *testing.T) {
	out, err := run(t, "seed", "--room", "general", "--user", "alice", "--user", "bob")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "username=alice")
	assert.Contains(t, lines[1], "username=bob")
	assert.Contains(t, lines[1], "token=")
}

func TestSeedRejectsShortRoomName(t *testing.T) {
	_, err := run(t, "seed", "--room", "ab", "--user", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid seed input")
}

func TestTokenRoundTrips(t *testing.T) {
	out, err := run(t, "token", "--user-id", "12", "--username", "carol")
	require.NoError(t, err)

	cfg := config.Default()
	claims, err := auth.ValidateToken(app.JWTConfig(&cfg), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, int64(12), claims.UserID)
	assert.Equal(t, "carol", claims.Username)
}

func TestTokenRequiresUserID(t *testing.T) {
	_, err := run(t, "token")
	require.Error(t, err)
}
