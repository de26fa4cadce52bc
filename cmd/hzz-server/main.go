package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tiger/hzz-draft-assistant/internal/archive"
	"github.com/tiger/hzz-draft-assistant/internal/config"
	"github.com/tiger/hzz-draft-assistant/internal/generation"
	"github.com/tiger/hzz-draft-assistant/internal/httpapi"
	"github.com/tiger/hzz-draft-assistant/internal/observability/telemetry"
	"github.com/tiger/hzz-draft-assistant/internal/sanitize"
	"github.com/tiger/hzz-draft-assistant/internal/schema"
	"github.com/tiger/hzz-draft-assistant/internal/security/policy"
	"github.com/tiger/hzz-draft-assistant/internal/store"
	"github.com/tiger/hzz-draft-assistant/providers/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "hzz-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) error {
	flags := flag.NewFlagSet("hzz-server", flag.ContinueOnError)
	flags.SetOutput(stderr)
	envFile := flags.String("env-file", ".env", "dotenv file loaded before reading HZZ_* settings")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := loadEnvFile(*envFile); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(stdout, nil))
	cleanupTelemetry, err := setupTelemetry(logger)
	if err != nil {
		return err
	}
	defer cleanupTelemetry()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}
	logger.Info("hzz-server listening", "addr", ln.Addr().String(), "schema_version", a.schemaVersion)
	return serve(ctx, a.server(), ln, cfg.ShutdownTimeout, logger)
}

// loadEnvFile loads path when it exists. Variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func setupTelemetry(logger *slog.Logger) (func(), error) {
	previous := telemetry.DefaultEmitter()

	pipeline, err := telemetry.NewPipelineFromEnv(logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry setup failed: %w", err)
	}
	if pipeline == nil {
		return func() {
			telemetry.SetDefaultEmitter(previous)
		}, nil
	}

	telemetry.SetDefaultEmitter(pipeline)
	return func() {
		_ = pipeline.Close()
		stats := pipeline.Stats()
		logger.Info("telemetry closed", "exported", stats.Exported, "dropped", stats.Dropped, "export_failures", stats.ExportFailures)
		telemetry.SetDefaultEmitter(previous)
	}, nil
}

type app struct {
	store         *store.Store
	handler       http.Handler
	schemaVersion string
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	reg, err := loadRegistry(cfg.SchemaPath)
	if err != nil {
		return nil, err
	}
	pipeline := sanitize.New(reg)

	st, err := store.Open(ctx, cfg.DatabasePath, pipeline)
	if err != nil {
		return nil, err
	}

	providers, err := bootstrap.Build(cfg.Draft)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("provider bootstrap failed: %w", err)
	}
	logger.Info(bootstrap.Summary(providers.Catalog))

	level, err := policy.ParseRecordingLevel(cfg.Archive.Level)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("archive: %w", err)
	}
	var arch archive.Archive = archive.Noop{}
	switch {
	case cfg.Archive.Bucket != "":
		s3Archive, err := archive.NewS3(archive.Config{
			Bucket:   cfg.Archive.Bucket,
			Prefix:   cfg.Archive.Prefix,
			Region:   cfg.Archive.Region,
			Endpoint: cfg.Archive.Endpoint,
		})
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		arch = s3Archive
		logger.Info("run archive enabled", "bucket", cfg.Archive.Bucket, "prefix", cfg.Archive.Prefix, "level", string(level))
	case cfg.Archive.Dir != "":
		arch = archive.Dir{Root: cfg.Archive.Dir, Prefix: cfg.Archive.Prefix}
		logger.Info("run archive enabled", "dir", cfg.Archive.Dir, "prefix", cfg.Archive.Prefix, "level", string(level))
	}

	gen, err := generation.New(generation.Deps{
		Pipeline:          pipeline,
		Drafter:           providers.Controller,
		Repository:        st,
		Archive:           arch,
		ArchiveLevel:      level,
		PreferredProvider: cfg.Draft.PreferredProvider,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	api, err := httpapi.New(httpapi.Deps{
		Pipeline:   pipeline,
		Repository: st,
		Generator:  gen,
		Providers:  providers.Catalog.ProviderIDs(),
		Logger:     logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &app{store: st, handler: api.Router(), schemaVersion: reg.Version()}, nil
}

func loadRegistry(path string) (*schema.Registry, error) {
	if path == "" {
		return schema.Default()
	}
	return schema.LoadFile(path)
}

func (a *app) server() *http.Server {
	return &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (a *app) close() {
	_ = a.store.Close()
}

// serve runs srv on ln until ctx is done, then drains in-flight requests
// for at most timeout.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, timeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("hzz-server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
