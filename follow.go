package main

import (
	"context"

	"github.com/hoshinonyaruko/tabletop/config"
	"github.com/hoshinonyaruko/tabletop/structs"
	"github.com/hoshinonyaruko/tabletop/syncclient"
	"go.uber.org/zap"
)

// newFollower builds a poller that logs every change of one session on a
// running server, polling every sync.poll_interval.
func newFollower(cfg *config.AppConfig, serverURL, sessionID, hostKey string, logger *zap.Logger) *syncclient.Poller {
	var opts []syncclient.Option
	if hostKey != "" {
		opts = append(opts, syncclient.WithHostKey(hostKey))
	}
	return &syncclient.Poller{
		Client:   syncclient.New(serverURL, sessionID, opts...),
		Interval: cfg.Sync.PollInterval,
		Logger:   logger,
		OnSnapshot: func(s *structs.Snapshot) {
			fields := []zap.Field{
				zap.Int64("version", s.Version),
				zap.String("active_scene", s.ActiveSceneID),
				zap.Int("scenes", len(s.Scenes)),
			}
			if s.Scene != nil {
				fields = append(fields,
					zap.String("scene_name", s.Scene.Name),
					zap.Int("tokens", len(s.Scene.Tokens)),
					zap.Int("map_elements", len(s.Scene.MapElements)),
				)
			}
			logger.Info("session changed", fields...)
		},
		OnPing: func(p *structs.Ping) {
			if p == nil {
				logger.Info("no ping")
				return
			}
			logger.Info("ping", zap.Int("x", p.X), zap.Int("y", p.Y), zap.Int64("timestamp", p.Timestamp))
		},
		OnRolls: func(log []structs.RollRecord) {
			if len(log) == 0 {
				logger.Info("roll log empty")
				return
			}
			last := log[len(log)-1]
			logger.Info("roll log changed",
				zap.Int("entries", len(log)),
				zap.String("player", last.Player),
				zap.String("type", string(last.Kind())),
			)
		},
	}
}

// follow runs the poller until ctx is cancelled.
func follow(ctx context.Context, cfg *config.AppConfig, serverURL, sessionID, hostKey string, logger *zap.Logger) error {
	logger.Info("following session",
		zap.String("server", serverURL),
		zap.String("session", sessionID),
		zap.Duration("interval", cfg.Sync.PollInterval),
	)
	return newFollower(cfg, serverURL, sessionID, hostKey, logger).Run(ctx)
}
