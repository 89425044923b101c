package syncclient

import (
	"context"
	"slices"
	"time"

	"github.com/hoshinonyaruko/tabletop/structs"
	"go.uber.org/zap"
)

// DefaultInterval is how often a Poller asks the server for news.
const DefaultInterval = 2 * time.Second

// Poller drives a Client on a fixed interval. Document, ping and roll
// polling are independent: a failure of one does not skip the others.
// Callbacks run on the polling goroutine.
type Poller struct {
	Client   *Client
	Interval time.Duration
	Logger   *zap.Logger

	OnSnapshot func(*structs.Snapshot)
	OnPing     func(*structs.Ping)
	OnRolls    func([]structs.RollRecord)

	primed    bool
	lastPing  *structs.Ping
	lastRolls []string
	pingSeen  bool
	rollsSeen bool
}

// Run polls until ctx is cancelled. The first round fetches the full state
// so OnSnapshot fires once even for a session nobody has touched yet.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	p.pollDocument(ctx)
	if p.OnPing != nil {
		p.pollPing(ctx)
	}
	if p.OnRolls != nil {
		p.pollRolls(ctx)
	}
}

func (p *Poller) pollDocument(ctx context.Context) {
	if !p.primed {
		snap, err := p.Client.State(ctx)
		if err != nil {
			p.warn(ctx, "state", err)
			return
		}
		p.primed = true
		if p.OnSnapshot != nil {
			p.OnSnapshot(snap)
		}
		return
	}

	res, err := p.Client.Check(ctx)
	if err != nil {
		p.warn(ctx, "check", err)
		return
	}
	if res.HasChanges && res.Data != nil && p.OnSnapshot != nil {
		p.OnSnapshot(res.Data)
	}
}

func samePing(a, b *structs.Ping) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (p *Poller) pollPing(ctx context.Context) {
	ping, err := p.Client.Ping(ctx)
	if err != nil {
		p.warn(ctx, "ping", err)
		return
	}
	if p.pingSeen && samePing(ping, p.lastPing) {
		return
	}
	p.pingSeen = true
	p.lastPing = ping
	p.OnPing(ping)
}

func rollIDs(log []structs.RollRecord) []string {
	ids := make([]string, len(log))
	for i, r := range log {
		ids[i] = r.ID
	}
	return ids
}

func (p *Poller) pollRolls(ctx context.Context) {
	log, err := p.Client.Rolls(ctx)
	if err != nil {
		p.warn(ctx, "rolls", err)
		return
	}
	ids := rollIDs(log)
	if p.rollsSeen && slices.Equal(ids, p.lastRolls) {
		return
	}
	p.rollsSeen = true
	p.lastRolls = ids
	p.OnRolls(log)
}

func (p *Poller) warn(ctx context.Context, what string, err error) {
	if ctx.Err() != nil {
		// shutting down
		return
	}
	p.Logger.Warn("poll failed", zap.String("request", what), zap.Error(err))
}
