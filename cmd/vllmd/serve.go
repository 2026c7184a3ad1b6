package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlogglobal "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"vllmd/internal/common/fsutil"
	"vllmd/internal/config"
	"vllmd/internal/httpapi"
	"vllmd/internal/registry"
	"vllmd/internal/supervisor"
	"vllmd/pkg/types"
)

// shutdownGrace bounds the HTTP drain; stopping instances gets its own
// budget derived from the stop timeout.
const shutdownGrace = 5 * time.Second

func serveCmdRun(cmd *cobra.Command, fv *flagValues, getenv func(string) string) error {
	cfg, err := resolveConfig(cmd, fv, getenv)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	zlogglobal.Logger = logger
	return serve(cmd.Context(), cfg, logger)
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if strings.EqualFold(format, "json") {
		return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	}
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	if f, ok := w.(*os.File); !ok || !isTerminal(f) {
		cw.NoColor = true
	}
	return zerolog.New(cw).Level(lvl).With().Timestamp().Logger()
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// serve runs the control API until ctx is canceled, then drains HTTP and,
// unless KeepOnExit is set, stops every managed instance.
func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	scfg := cfg.Supervisor()
	scfg.Logger = &logger
	scfg.Publisher = supervisor.LogPublisher{Logger: logger}
	sup := supervisor.New(ctx, scfg)

	catalog := registry.NewCatalog(fsutil.ExpandHomeOr(cfg.HFCache))
	feed := supervisor.NewPublisher(sup, cfg.FeedInterval.Duration, &logger)
	feed.AddDecorator(catalogDecorator(catalog))

	httpapi.SetLogger(logger)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(sup, feed, catalog),
		ReadHeaderTimeout: 10 * time.Second,
	}

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()
	go func() { _ = feed.Run(feedCtx) }()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Addr).
			Str("vllm_path", cfg.VLLMPath).
			Int("base_port", cfg.BasePort).
			Int("max_instances", cfg.MaxInstances).
			Msg("vllmd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error().Err(serveErr).Msg("server error")
		}
	}
	stopFeed()

	httpCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	if err := srv.Shutdown(httpCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	cancel()

	if cfg.KeepOnExit {
		logger.Info().Int("instances", len(sup.Instances())).Msg("leaving instances running")
		return serveErr
	}
	stopBudget := time.Duration(cfg.MaxInstances+1)*(cfg.StopTimeout.Duration+time.Second) + shutdownGrace
	stopCtx, cancel := context.WithTimeout(context.Background(), stopBudget)
	defer cancel()
	res := sup.Shutdown(stopCtx)
	if err := res.Err(); err != nil {
		logger.Warn().Err(err).Msg(res.Message())
	} else {
		logger.Info().Msg(res.Message())
	}
	return serveErr
}

// catalogDecorator publishes the locally cached models with every feed
// frame so dashboards need not poll available-models.
func catalogDecorator(c *registry.Catalog) supervisor.FrameDecorator {
	return func(ctx context.Context, f *types.FeedFrame) {
		models, err := c.AvailableModels(ctx)
		if err != nil {
			return
		}
		if f.Extra == nil {
			f.Extra = map[string]any{}
		}
		f.Extra["available_models"] = models
	}
}
