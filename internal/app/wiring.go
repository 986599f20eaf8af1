package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ErronZrz/rank-poll/internal/api"
	"github.com/ErronZrz/rank-poll/internal/api/sse"
	"github.com/ErronZrz/rank-poll/internal/config"
	pollredis "github.com/ErronZrz/rank-poll/internal/redis"
	"github.com/ErronZrz/rank-poll/internal/service"
	"github.com/ErronZrz/rank-poll/internal/storage"
	"github.com/ErronZrz/rank-poll/internal/storage/file"
	"github.com/ErronZrz/rank-poll/internal/storage/postgres"
	"github.com/ErronZrz/rank-poll/internal/telemetry"
	"go.uber.org/zap"
)

// NewApp 按配置装配存储、缓存、服务、SSE 与路由
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}
	// 中途失败时释放已打开的资源
	defer func() {
		if err != nil {
			err = errors.Join(err, a.Close(context.Background()))
		}
	}()

	a.shutdownTracing, err = telemetry.SetupTracing(ctx, cfg.OTelEndpoint, cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	if err := a.openStore(); err != nil {
		return nil, err
	}

	var cache service.ResultCache
	if cfg.RedisAddr != "" {
		a.Redis, err = pollredis.Connect(ctx, pollredis.Options{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, err
		}
		rc := pollredis.NewResultCache(a.Redis, cfg.ResultCacheTTL)
		// 启动时丢弃上一个进程留下的结果
		if err := rc.Invalidate(ctx); err != nil {
			return nil, fmt.Errorf("reset result cache: %w", err)
		}
		cache = rc
		logger.Info("result cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	a.Hub = sse.NewHub(logger)
	a.Ballots = service.NewBallotService(a.Store, logger)
	a.Rankings = service.NewRankingService(a.Store, a.Store, cache, logger)
	a.Items = service.NewItemService(a.Store, a.Rankings.Changed)
	a.Rankings.OnResult(func(res service.PollResult) { a.Hub.Publish(res) })

	// 首个 SSE 订阅者立即拿到当前结果
	if res, err := a.Rankings.Result(ctx); err != nil {
		logger.Warn("initial tally failed", zap.Error(err))
	} else {
		a.Hub.Publish(res)
	}

	router, err := api.SetupRouter(api.Deps{
		Ballots:       a.Ballots,
		Items:         a.Items,
		Rankings:      a.Rankings,
		Hub:           a.Hub,
		Logger:        logger,
		SecureCookies: cfg.SecureCookies,
		SSEHeartbeat:  cfg.SSEHeartbeat,
	})
	if err != nil {
		return nil, fmt.Errorf("setup router: %w", err)
	}
	a.server = &http.Server{Addr: cfg.Addr, Handler: router}
	// SSE 长连接不会自行结束，关闭服务时先断开它们
	a.server.RegisterOnShutdown(a.Hub.Close)
	return a, nil
}

func (a *App) openStore() error {
	switch a.Config.Store {
	case config.DriverPostgres:
		repo, err := postgres.Connect(a.Config.PostgresDSN, a.Logger)
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		a.Store = repo
	default:
		fs, err := file.Open(file.Options{
			DataDir:     a.Config.DataDir,
			GroupCommit: a.Config.WALGroupCommitEvery,
			GroupBatch:  a.Config.WALGroupBatch,
			Logger:      a.Logger,
		})
		if err != nil {
			return fmt.Errorf("open file store: %w", err)
		}
		a.Store = fs
		a.files = fs
	}
	a.Logger.Info("store ready", zap.String("driver", a.Config.Store))
	return nil
}

var _ storage.Store = (*postgres.Repository)(nil)
