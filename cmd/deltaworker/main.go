package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/deltaxpc/internal/core/builtin"
	"github.com/danmuck/deltaxpc/internal/extension"
	"github.com/danmuck/deltaxpc/internal/logging"
	"github.com/danmuck/deltaxpc/internal/observability"
	"github.com/danmuck/deltaxpc/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Exit)
	stop()
	os.Exit(code)
}

// run serves one invocation read from stdin. It returns 1 when the request
// is cancelled and 0 when the session ends by signal. stopProcess calls exit
// directly.
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, exit func(int)) int {
	fs := flag.NewFlagSet("deltaworker", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to worker TOML config")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logging.ConfigureRuntime()
	logger := logging.Component("deltaworker")

	cfg, err := loadWorkerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deltaworker: %v\n", err)
		return 1
	}
	if cfg.LogLevel != "" && !logging.SetLevel(cfg.LogLevel) {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("ignoring unknown log level")
	}
	observability.RegisterMetrics()

	registry, err := builtin.NewRegistry(cfg.Cores)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deltaworker: %v\n", err)
		return 1
	}
	logger.Debug().Int("cores", len(registry.ListMetadata())).Msg("registry ready")

	items, err := extension.ReadInvocation(bufio.NewReader(stdin))
	if err != nil {
		cancelErr := fmt.Errorf("%w: read invocation: %v", worker.ErrInvalidRequest, err)
		extension.NewStdioContext(nil, stdout, worker.ErrorKind).CancelRequest(cancelErr)
		fmt.Fprintf(os.Stderr, "deltaworker: %v\n", cancelErr)
		return 1
	}
	ectx := extension.NewStdioContext(items, stdout, worker.ErrorKind)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           newMetricsRouter(logging.Component("http"), time.Now()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	handler := worker.NewHandler(gctx, worker.NewBridge(registry, worker.BridgeOptions{
		Session: cfg.Session,
		Exit:    exit,
	}))
	handler.BeginRequest(ectx)

	g.Go(func() error {
		defer cancel()
		select {
		case <-handler.Done():
		case <-gctx.Done():
			return nil
		}
		if err := handler.Err(); err != nil {
			return err
		}
		ch := handler.Channel()
		select {
		case <-ch.Done():
			// The main process is gone; nothing can reach the session again.
			logger.Warn().Err(ch.Err()).Msg("channel closed")
			return nil
		case <-gctx.Done():
			_ = ch.Close()
			return nil
		}
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "deltaworker: %v\n", err)
		return 1
	}
	logger.Info().Msg("worker exiting")
	return 0
}
