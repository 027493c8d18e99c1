package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/lucid/internal/codec"
	"github.com/danielpatrickdp/lucid/internal/corpus"
)

// #region command
func newServeCmd(c *cli) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reflection, generation and search over gRPC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := c.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			if listen == "" {
				listen = c.cfg.Listen
			}
			lis, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", listen, err)
			}
			return rt.serve(ctx, lis)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (default from config)")
	return cmd
}

// #endregion command

// #region serve
// serve runs the gRPC server, the idle-session sweeper and, when a dataset
// is configured, the corpus watcher until ctx ends.
func (rt *runtime) serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(rt.logUnary))
	codec.RegisterBackendServer(srv, codec.NewBackendServer(lazyCompleter(rt.backend), lazySearch{rt.search}))
	codec.RegisterReflectionServer(srv, codec.NewReflectionServer(rt.reflectFunc()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rt.log.Info("serving", zap.String("addr", lis.Addr().String()))
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		srv.GracefulStop()
		return nil
	})
	g.Go(func() error {
		return rt.sweep(gctx, rt.cfg.GetSweepInterval())
	})
	if rt.corpus != nil && rt.cfg.Retrieval.Dataset != "" {
		g.Go(func() error {
			if _, err := rt.corpus.SyncFile(gctx, rt.cfg.Retrieval.Dataset); err != nil {
				rt.log.Warn("initial corpus sync failed", zap.Error(err))
			}
			return rt.corpus.Watch(gctx, rt.cfg.Retrieval.Dataset, corpus.DefaultDebounce)
		})
	}
	return g.Wait()
}

// sweep expires idle sessions every interval.
func (rt *runtime) sweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			n, err := rt.sessions.ExpireIdle(ctx, now)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				rt.log.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				rt.log.Info("expired idle sessions", zap.Int("count", n))
			}
		}
	}
}

func (rt *runtime) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []zap.Field{zap.String("method", info.FullMethod), zap.Duration("elapsed", time.Since(start))}
	if err != nil {
		rt.log.Warn("rpc failed", append(fields, zap.Error(err))...)
	} else {
		rt.log.Debug("rpc", fields...)
	}
	return resp, err
}

// #endregion serve
