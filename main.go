package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/tabletop/api"
	"github.com/hoshinonyaruko/tabletop/config"
	"github.com/hoshinonyaruko/tabletop/postgres"
	"github.com/hoshinonyaruko/tabletop/session"
	"github.com/hoshinonyaruko/tabletop/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath    = flag.String("config", "config.yaml", "path to configuration file")
	followURL     = flag.String("follow", "", "instead of serving, follow a session on the server at this URL")
	followSession = flag.String("session", "default", "session to follow with -follow")
	hostKey       = flag.String("host-key", "", "host key sent with -follow")
)

func main() {
	flag.Parse()

	// 读取配置，不存在时写出默认配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level := zap.NewAtomicLevelAt(parseLevel(cfg.Logging.Level))
	logger, err := initLogger(cfg.Logging, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *followURL != "" {
		if err := follow(ctx, cfg, *followURL, *followSession, *hostKey, logger.Named("follow")); err != nil {
			logger.Fatal("follow failed", zap.Error(err))
		}
		return
	}

	logger.Info("starting tabletop server",
		zap.String("config", *configPath),
		zap.String("storage", cfg.Storage.Driver),
	)

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer store.Close()

	manager := session.NewManager(store, session.Options{
		MaxRetries:  cfg.Session.MaxRetries,
		GridSize:    cfg.Fog.GridSize,
		MaxRolls:    cfg.Rolls.MaxEntries,
		RecentRolls: cfg.Rolls.RecentLimit,
	}, logger.Named("session"))

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := api.New(manager, settingsOf(cfg), logger.Named("api"))
	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup

	// 检测配置文件并热更新日志级别、跨域来源和主持人密钥
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := config.Watch(ctx, *configPath, logger.Named("config"), func(next *config.AppConfig) {
			level.SetLevel(parseLevel(next.Logging.Level))
			server.UpdateSettings(settingsOf(next))
		})
		if err != nil {
			logger.Warn("config watcher stopped", zap.Error(err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	wg.Wait()

	logger.Info("tabletop server stopped")
}

func settingsOf(cfg *config.AppConfig) api.Settings {
	return api.Settings{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		HostKeyHash:    cfg.Auth.HostKeyHash,
		DevMode:        cfg.Auth.DevMode,
	}
}

func openStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (session.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		if err := ensureDir(cfg.SQLitePath); err != nil {
			return nil, err
		}
		return sqlite.Open(cfg.SQLitePath, logger.Named("sqlite"))
	case "postgres":
		return postgres.Open(ctx, cfg.PostgresDSN, logger.Named("postgres"))
	case "memory":
		logger.Warn("using in-memory storage, sessions are lost on restart")
		return session.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// ensureDir 检查并创建数据库文件所在的文件夹
func ensureDir(file string) error {
	dir := filepath.Dir(file)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// initLogger builds the process logger. level stays shared with the caller
// so a config reload can change it.
func initLogger(cfg config.LoggingConfig, level zap.AtomicLevel) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = level
	return zapCfg.Build()
}
