// Command devnode runs an in-memory development node and orderbook.
//
// The node is served over gRPC (dispatch.v1.Node). The orderbook is
// served over gRPC (dispatch.v1.Gossip) and ZeroMQ. Blocks are
// produced on a fixed interval.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blockberries/dispatch/config"
	"github.com/blockberries/dispatch/example/devnode"
	"github.com/blockberries/dispatch/example/orderbook"
	dispatchgrpc "github.com/blockberries/dispatch/grpc"
	"github.com/blockberries/dispatch/logging"
	"github.com/blockberries/dispatch/zmq"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func main() {
	var (
		configPath string
		logLevel   string
	)
	root := &cobra.Command{
		Use:           "devnode",
		Short:         "Run an in-memory node and orderbook for local development",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel == "" {
				logLevel = cfg.LogLevel
			}
			return serve(cmd.Context(), cfg.Devnode, logging.FromEnv(logLevel, "devnode"))
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "TOML config file")
	root.Flags().StringVar(&logLevel, "log-level", "", "log level")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.DevnodeConfig, log zerolog.Logger) error {
	app := devnode.New()
	book := orderbook.New()

	nodeLis, err := net.Listen("tcp", cfg.NodeListen)
	if err != nil {
		return fmt.Errorf("listen node: %w", err)
	}
	gossipLis, err := net.Listen("tcp", cfg.GossipListen)
	if err != nil {
		nodeLis.Close()
		return fmt.Errorf("listen gossip: %w", err)
	}

	nodeSrv := grpc.NewServer()
	dispatchgrpc.NewNodeServer(app).Register(nodeSrv)
	gossipSrv := grpc.NewServer()
	dispatchgrpc.NewGossipServer(book).Register(gossipSrv)

	g, ctx := errgroup.WithContext(ctx)

	var responder *zmq.GossipResponder
	if cfg.ZMQListen != "" {
		responder, err = zmq.Listen(ctx, cfg.ZMQListen, book, zmq.WithLogger(log))
		if err != nil {
			nodeLis.Close()
			gossipLis.Close()
			return err
		}
		log.Info().Str("addr", responder.Addr().String()).Msg("zmq gossip listening")
		g.Go(responder.Serve)
	}

	log.Info().Str("addr", nodeLis.Addr().String()).Msg("node listening")
	g.Go(func() error { return nodeSrv.Serve(nodeLis) })
	log.Info().Str("addr", gossipLis.Addr().String()).Msg("gossip listening")
	g.Go(func() error { return gossipSrv.Serve(gossipLis) })

	g.Go(func() error {
		ticker := time.NewTicker(cfg.BlockInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				pending := app.Pending()
				height := app.ProduceBlock()
				if pending > 0 {
					log.Info().Uint64("height", height).Int("txs", pending).Msg("block produced")
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		nodeSrv.GracefulStop()
		gossipSrv.GracefulStop()
		if responder != nil {
			_ = responder.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	log.Info().Int("intents", book.Len()).Uint64("height", app.Height()).Msg("stopped")
	return nil
}
