package main

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/tabletop/api"
	"github.com/hoshinonyaruko/tabletop/config"
	"github.com/hoshinonyaruko/tabletop/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFollowerUsesConfiguredInterval(t *testing.T) {
	cfg := &config.AppConfig{Sync: config.SyncConfig{PollInterval: 750 * time.Millisecond}}

	p := newFollower(cfg, "http://localhost:1", "table-1", "", zap.NewNop())
	assert.Equal(t, 750*time.Millisecond, p.Interval)
	assert.NotNil(t, p.OnSnapshot)
	assert.NotNil(t, p.OnPing)
	assert.NotNil(t, p.OnRolls)
}

func TestFollowerLogsChanges(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := session.NewManager(session.NewMemoryStore(), session.Options{}, zap.NewNop())
	srv := httptest.NewServer(api.New(m, api.Settings{}, zap.NewNop()).Router())
	t.Cleanup(srv.Close)

	core, logs := observer.New(zap.InfoLevel)
	cfg := &config.AppConfig{Sync: config.SyncConfig{PollInterval: 10 * time.Millisecond}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- follow(ctx, cfg, srv.URL, "table-1", "", zap.New(core)) }()

	seen := func(msg string, version int64) func() bool {
		return func() bool {
			for _, e := range logs.FilterMessage(msg).All() {
				if v, ok := e.ContextMap()["version"].(int64); ok && v == version {
					return true
				}
			}
			return false
		}
	}
	require.Eventually(t, seen("session changed", 0), 2*time.Second, 5*time.Millisecond)

	_, _, err := m.AddToken(ctx, "table-1", "orc", "/orc.png", 1, 1)
	require.NoError(t, err)
	require.Eventually(t, seen("session changed", 1), 2*time.Second, 5*time.Millisecond)

	_, _, err = m.SendPing(ctx, "table-1", 4, 2)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return logs.FilterMessage("ping").Len() > 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 1, logs.FilterMessage("following session").Len())
}
