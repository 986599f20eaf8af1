// Package app wires the poll together and runs it until its context ends.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ErronZrz/rank-poll/internal/api/sse"
	"github.com/ErronZrz/rank-poll/internal/config"
	"github.com/ErronZrz/rank-poll/internal/service"
	"github.com/ErronZrz/rank-poll/internal/storage"
	"github.com/ErronZrz/rank-poll/internal/storage/file"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	Config config.Config
	Logger *zap.Logger

	Store storage.Store
	Redis *goredis.Client
	Hub   *sse.Hub

	Ballots  *service.BallotService
	Items    *service.ItemService
	Rankings *service.RankingService

	files           *file.Store
	server          *http.Server
	shutdownTracing func(context.Context) error
}

// Run 监听 ln（为 nil 时按配置地址监听），并在 ctx 结束时优雅退出
func (a *App) Run(ctx context.Context, ln net.Listener) error {
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", a.server.Addr); err != nil {
			return errors.Join(err, a.Close(context.Background()))
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	// 周期快照（仅文件存储）
	if a.files != nil {
		g.Go(func() error {
			iv := a.Config.SnapshotInterval
			if iv <= 0 {
				iv = time.Minute
			}
			t := time.NewTicker(iv)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					if err := a.files.Snapshot(); err != nil {
						a.Logger.Error("snapshot error", zap.Error(err))
					}
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	g.Go(func() error {
		a.Logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(sctx); err != nil {
			a.Logger.Warn("server shutdown error", zap.Error(err))
		}
		return nil
	})

	err := g.Wait()
	return errors.Join(err, a.Close(context.Background()))
}

// Close 释放存储（文件存储会写最后一张快照）、Redis 与追踪
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
		a.Store, a.files = nil, nil
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
		a.Redis = nil
	}
	if a.shutdownTracing != nil {
		errs = append(errs, a.shutdownTracing(ctx))
		a.shutdownTracing = nil
	}
	return errors.Join(errs...)
}
