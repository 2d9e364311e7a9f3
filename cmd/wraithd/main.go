// Command wraithd serves the analysis pipeline over gRPC.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"google.golang.org/grpc"

	"github.com/RowanDark/wraith/internal/analyzer"
	"github.com/RowanDark/wraith/internal/config"
	"github.com/RowanDark/wraith/internal/history"
	"github.com/RowanDark/wraith/internal/logging"
	"github.com/RowanDark/wraith/internal/rpcsvc"
)

const shutdownTimeout = 5 * time.Second

func main() {
	addr := flag.String("addr", "", "address for the gRPC server to listen on (defaults to server.addr)")
	configPath := flag.String("config", "", "configuration file (defaults to wraith.yml lookup)")
	noHistory := flag.Bool("no-history", false, "do not record Analyze runs")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *noHistory {
		cfg.HistoryPath = ""
	}
	cfg.Verbose = cfg.Verbose || *verbose

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func run(ctx context.Context, cfg config.Config) error {
	opts := []logging.Option{logging.WithVerbose(cfg.Verbose)}
	if cfg.LogFile != "" {
		opts = append(opts, logging.WithFile(cfg.LogFile))
	}
	logger, err := logging.New("wraithd", opts...)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()
	defer zap.ReplaceGlobals(logger.Zap())()

	analysis, err := analyzer.OptionsFromConfig(cfg.Analysis)
	if err != nil {
		return fmt.Errorf("analysis config: %w", err)
	}
	svc := &rpcsvc.Server{Options: analysis, Logger: logger}
	if cfg.HistoryPath != "" {
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
		svc.History = store
	}

	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}
	defer lis.Close()

	logger.Zap().Info("listening",
		zap.String("addr", lis.Addr().String()),
		zap.Int("max_conns", cfg.Server.MaxConns),
		zap.Bool("history", svc.History != nil))
	return serve(ctx, lis, svc, cfg.Server.MaxConns)
}

// serve blocks until ctx is cancelled, then drains in-flight calls for up
// to shutdownTimeout. maxConns <= 0 leaves connections unlimited.
func serve(ctx context.Context, lis net.Listener, svc *rpcsvc.Server, maxConns int) error {
	if maxConns > 0 {
		lis = netutil.LimitListener(lis, maxConns)
	}

	srv := grpc.NewServer(grpc.UnaryInterceptor(rpcsvc.LoggingInterceptor(svc.Logger)))
	rpcsvc.RegisterAnalysisServer(srv, svc)

	go func() {
		<-ctx.Done()

		done := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			srv.Stop()
		}
	}()

	if err := srv.Serve(lis); err != nil {
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
	return nil
}
