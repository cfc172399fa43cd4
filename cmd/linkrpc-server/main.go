// linkrpc-server runs the example Greeter and Arith services.
//
// It exits non-zero with a descriptive message when --port does not parse as
// an unsigned 16-bit integer or when the bind fails.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"linkrpc/config"
	"linkrpc/middleware"
	"linkrpc/registry"
	"linkrpc/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		port       uint16
		configPath string
	)

	cmd := &cobra.Command{
		Use:           "linkrpc-server",
		Short:         "Serve the example Greeter and Arith services",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(port, configPath)
		},
	}

	cmd.Flags().Uint16VarP(&port, "port", "p", 0, "port number to listen on")
	cmd.MarkFlagRequired("port")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")

	return cmd
}

func run(port uint16, configPath string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithDrainTimeout(cfg.DrainTimeout.Std()),
	}
	if len(cfg.Etcd.Endpoints) > 0 {
		reg, err := registry.NewEtcdRegistry(cfg.Etcd.Endpoints, logger)
		if err != nil {
			return fmt.Errorf("connect etcd: %w", err)
		}
		defer reg.Close()
		advertise := cfg.Etcd.AdvertiseAddr
		if advertise == "" {
			advertise = fmt.Sprintf("127.0.0.1:%d", port)
		}
		opts = append(opts, server.WithRegistry(reg, advertise))
	}

	svr := server.NewServer(opts...)
	svr.Use(middleware.Recovery(logger))
	svr.Use(middleware.Logging(logger))
	if cfg.RateLimit > 0 {
		svr.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateBurst))
	}
	if cfg.HandlerTimeout > 0 {
		svr.Use(middleware.Timeout(cfg.HandlerTimeout.Std()))
	}

	if err := svr.Register(&Greeter{}); err != nil {
		return err
	}
	if err := svr.Register(&Arith{}); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(int(port)))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svr.Serve("tcp", addr)
	})
	g.Go(func() error {
		// Fires on SIGINT/SIGTERM, or when Serve returns an error.
		<-gctx.Done()
		logger.Info("shutting down", zap.Duration("drain_timeout", cfg.DrainTimeout.Std()))
		return svr.Shutdown()
	})

	return g.Wait()
}
