package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/quantumspace/chatcore/internal/auth"
	"github.com/quantumspace/chatcore/internal/config"
	"github.com/quantumspace/chatcore/internal/core"
	"github.com/quantumspace/chatcore/internal/store"
	"github.com/quantumspace/chatcore/internal/store/sqlite"
	"github.com/quantumspace/chatcore/internal/wsclient"
)

type testEnv struct {
	ts     *httptest.Server
	store  *sqlite.SQLiteStore
	hub    *core.Hub
	jwtCfg *auth.JWTConfig
	cfg    config.Config
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	cfg.JWTSecret = "test-secret"
	cfg.Retry = config.RetryPolicy{MaxAttempts: 1, BaseDelay: 10 * time.Millisecond, Factor: 2, MaxDelay: 10 * time.Millisecond}
	for _, m := range mutate {
		m(&cfg)
	}

	jwtCfg := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	}
	gate := auth.NewGate(st, jwtCfg)

	logger := zerolog.Nop()
	hub := core.NewHub(gate, st, &logger, core.WithMaxMessageLength(cfg.MaxMessageLength))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	server := NewServer(hub, gate, st, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})

	return &testEnv{ts: ts, store: st, hub: hub, jwtCfg: jwtCfg, cfg: cfg}
}

// user creates an account, optionally adds it to rooms, and returns it with a token.
func (e *testEnv) user(t *testing.T, username string, rooms ...*store.Room) (*store.User, string) {
	t.Helper()
	ctx := context.Background()

	u, err := e.store.CreateUser(ctx, username, "")
	require.NoError(t, err)
	for _, r := range rooms {
		require.NoError(t, e.store.AddMember(ctx, u.ID, r.ID))
	}
	token, err := auth.GenerateToken(e.jwtCfg, u.ID, u.Username)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) room(t *testing.T, name string) *store.Room {
	t.Helper()
	r, err := e.store.CreateRoom(context.Background(), name)
	require.NoError(t, err)
	return r
}

func (e *testEnv) dial(t *testing.T, ctx context.Context) *wsclient.Client {
	t.Helper()
	url := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	c, err := wsclient.Dial(ctx, url, e.cfg.Retry, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}
