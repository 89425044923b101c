package syncclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/tabletop/api"
	"github.com/hoshinonyaruko/tabletop/rolls"
	"github.com/hoshinonyaruko/tabletop/session"
	"github.com/hoshinonyaruko/tabletop/structs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sid = "table-1"

func newTestServer(t *testing.T) (*session.Manager, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m := session.NewManager(session.NewMemoryStore(), session.Options{}, zap.NewNop())
	srv := httptest.NewServer(api.New(m, api.Settings{}, zap.NewNop()).Router())
	t.Cleanup(srv.Close)
	return m, srv
}

func TestClientStateAndCheck(t *testing.T) {
	_, srv := newTestServer(t)
	c := New(srv.URL, sid)
	ctx := context.Background()

	snap, err := c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Version)
	assert.Len(t, snap.Scenes, 1)

	res, err := c.Check(ctx)
	require.NoError(t, err)
	assert.False(t, res.HasChanges)

	var added struct {
		Token structs.Token `json:"token"`
	}
	v, err := c.Do(ctx, "add-token", map[string]any{"assetId": "orc", "src": "/orc.png", "x": 1, "y": 2}, &added)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.Equal(t, 2, added.Token.Y)
	assert.Equal(t, int64(1), c.KnownVersion(), "own write advances the known version")
}

func TestClientDoesNotSkipForeignWrites(t *testing.T) {
	m, srv := newTestServer(t)
	c := New(srv.URL, sid)
	ctx := context.Background()

	_, err := c.State(ctx)
	require.NoError(t, err)

	// someone else writes v1, we write v2
	_, _, err = m.AddToken(ctx, sid, "elf", "/elf.png", 5, 5)
	require.NoError(t, err)
	v, err := c.Do(ctx, "send-ping", map[string]int{"x": 1, "y": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	assert.Equal(t, int64(0), c.KnownVersion())

	res, err := c.Check(ctx)
	require.NoError(t, err)
	require.True(t, res.HasChanges)
	assert.Len(t, res.Data.Scene.Tokens, 1)
	assert.Equal(t, int64(2), c.KnownVersion())
}

func TestClientRejectedWrite(t *testing.T) {
	_, srv := newTestServer(t)
	c := New(srv.URL, sid)
	ctx := context.Background()

	_, err := c.Do(ctx, "delete-scene", map[string]string{"id": "x"}, nil)
	require.Error(t, err)
	assert.True(t, IsRejected(err))

	_, err = c.Do(ctx, "no-such-action", nil, nil)
	require.Error(t, err)
	assert.False(t, IsRejected(err))
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
}

func TestClientPingAndRolls(t *testing.T) {
	m, srv := newTestServer(t)
	c := New(srv.URL, sid)
	ctx := context.Background()

	p, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)

	_, _, err = m.SendPing(ctx, sid, 4, 7)
	require.NoError(t, err)
	p, err = c.Ping(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 7, p.Y)

	_, _, err = m.AppendRoll(ctx, sid, rolls.Submission{Type: "l5r", Player: "Kaito"})
	require.NoError(t, err)
	log, err := c.Rolls(ctx)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, structs.RollStaged, log[0].Kind())

	host, err := c.Auth(ctx)
	require.NoError(t, err)
	assert.False(t, host)
}

// recorder collects callback payloads from the polling goroutine.
type recorder struct {
	mu        sync.Mutex
	versions  []int64
	pings     []*structs.Ping
	rollCalls int
}

func (r *recorder) snapshot(s *structs.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions = append(r.versions, s.Version)
}

func (r *recorder) ping(p *structs.Ping) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pings = append(r.pings, p)
}

func (r *recorder) rolls([]structs.RollRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollCalls++
}

func (r *recorder) lastVersion() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.versions) == 0 {
		return -1
	}
	return r.versions[len(r.versions)-1]
}

func TestPollerFollowsVersions(t *testing.T) {
	m, srv := newTestServer(t)
	rec := &recorder{}
	p := &Poller{
		Client:     New(srv.URL, sid),
		Interval:   10 * time.Millisecond,
		OnSnapshot: rec.snapshot,
		OnPing:     rec.ping,
		OnRolls:    rec.rolls,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return rec.lastVersion() == 0 }, 2*time.Second, 5*time.Millisecond)

	_, _, err := m.AddToken(ctx, sid, "orc", "/orc.png", 0, 0)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.lastVersion() == 1 }, 2*time.Second, 5*time.Millisecond)

	_, _, err = m.SendPing(ctx, sid, 3, 3)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.lastVersion() == 2 }, 2*time.Second, 5*time.Millisecond)

	// let a few idle rounds pass; nothing new must be reported
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []int64{0, 1, 2}, rec.versions)
	require.Len(t, rec.pings, 2, "initial empty ping, then the new one")
	assert.Nil(t, rec.pings[0])
	assert.Equal(t, 3, rec.pings[1].X)
	assert.Equal(t, 1, rec.rollCalls)
}
