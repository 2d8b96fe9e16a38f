package daemon

import (
	"context"

	"github.com/mcoutinho/chatcore/internal/bus"
	"github.com/mcoutinho/chatcore/internal/cache"
	"github.com/mcoutinho/chatcore/internal/chat"
	"github.com/mcoutinho/chatcore/internal/config"
	"github.com/mcoutinho/chatcore/internal/lock"
	"github.com/mcoutinho/chatcore/internal/logging"
	"github.com/mcoutinho/chatcore/internal/session"
	"github.com/mcoutinho/chatcore/internal/status"
	"github.com/mcoutinho/chatcore/internal/syncer"
	"github.com/mcoutinho/chatcore/internal/transport"
	"github.com/mcoutinho/chatcore/internal/transport/ws"
	"github.com/mcoutinho/chatcore/internal/users"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideConfig,
			provideCacheDB,
			provideConn,
			provideUserCache,
			provideStore,
			provideRecorder,
			provideSyncEngine,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideConfig(p Params, logger *zap.Logger) (*config.Config, error) {
	cfg, err := config.Load(session.ConfigPath(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("config loaded", zap.String("server", cfg.ServerURL))
	return cfg, nil
}

func provideCacheDB(p Params, logger *zap.Logger) (*cache.DB, error) {
	dbPath := session.CacheDBPath(p.SessionName)
	db, err := cache.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("cache migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("cache migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideConn(cfg *config.Config, logger *zap.Logger) (transport.Conn, error) {
	return ws.NewClient(cfg.ServerURL, logger)
}

func provideUserCache(conn transport.Conn, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *users.Cache {
	return users.New(conn, cfg, b, logger)
}

func provideStore(conn transport.Conn, cfg *config.Config, b *bus.Bus, logger *zap.Logger, uc *users.Cache) *chat.Store {
	return chat.NewStore(conn, cfg, b, logger, uc)
}

func provideRecorder(db *cache.DB, store *chat.Store, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *cache.Recorder {
	return cache.NewRecorder(db, store, b, cfg, logger)
}

func provideSyncEngine(conn transport.Conn, store *chat.Store, uc *users.Cache, machine *status.Machine, logger *zap.Logger) *syncer.Engine {
	return syncer.New(conn, store, uc, machine, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	lk *lock.Lock,
	cfg *config.Config,
	db *cache.DB,
	conn transport.Conn,
	store *chat.Store,
	recorder *cache.Recorder,
	engine *syncer.Engine,
	machine *status.Machine,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Warm start from the snapshot cache before any network I/O.
			convs, messages, err := recorder.Load()
			if err != nil {
				logger.Warn("snapshot load failed, starting cold", zap.Error(err))
			} else if len(convs) > 0 {
				store.Restore(convs, messages)
				logger.Info("snapshot restored", zap.Int("conversations", len(convs)))
			}
			recorder.Start()

			if cfg.ServerURL == "" || cfg.UserID == "" {
				logger.Warn("no server credentials configured, staying offline")
				return nil
			}

			_ = machine.Transition(status.Connecting)
			go func() {
				err := conn.Open(context.Background(), transport.Credentials{
					UserID: cfg.UserID,
					Token:  cfg.Token,
				})
				if err != nil {
					logger.Error("connect failed", zap.Error(err))
					_ = machine.Transition(status.Disconnected)
					return
				}
				engine.Start()
				if err := store.FetchServerConversations(context.Background()); err != nil {
					logger.Error("initial conversation fetch failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := conn.Close(ctx); err != nil {
				logger.Warn("error closing transport", zap.Error(err))
			}
			engine.Wait()
			recorder.Stop()
			_ = machine.Transition(status.Offline)
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
