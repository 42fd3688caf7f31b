package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"turnkeep/db/migrations"
	httpadapter "turnkeep/internal/adapter/http"
	mcpadapter "turnkeep/internal/adapter/mcp"
	metricsinmem "turnkeep/internal/adapter/metrics/inmemory"
	gormrepo "turnkeep/internal/adapter/repo/gorm"
	"turnkeep/internal/adapter/repo/memory"
	"turnkeep/internal/adapter/stream"
	"turnkeep/internal/app/engine"
	"turnkeep/internal/app/journal"
	"turnkeep/internal/app/observe"
	"turnkeep/internal/app/ports"
	"turnkeep/internal/app/replay"
	"turnkeep/internal/app/status"
	"turnkeep/internal/platform/config"
	otelsetup "turnkeep/internal/platform/otel"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/rs/zerolog"
)

const serviceName = "turnkeep"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(os.Stderr, cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", serviceName).Logger()
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	shutdownTracing, err := otelsetup.Setup(ctx, otelsetup.Options{
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	kpiRecorder := metricsinmem.NewRecorder()
	eng, world, err := engine.NewAdventure(engine.AdventureOptions{
		TurnTimeout:   cfg.TurnTimeout,
		RoundInterval: cfg.RoundInterval,
		Logger:        logger,
		ActionMetrics: kpiRecorder,
		TurnMetrics:   kpiRecorder,
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	eventRepo, txManager, err := buildJournalStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	j := journal.New(eventRepo, txManager,
		journal.WithBuffer(cfg.JournalBuffer),
		journal.WithLogger(logger.With().Str("component", "journal").Logger()),
	)
	unsubscribeJournal := eng.Pipeline().Subscribe(j.Listen)
	defer unsubscribeJournal()

	observeUC := observe.UseCase{Store: eng.Store()}
	statusUC := status.UseCase{Scheduler: eng.Scheduler(), Actions: eng.Actions()}

	h := httpadapter.Handler{
		Engine:     eng,
		ObserveUC:  observeUC,
		StatusUC:   statusUC,
		ReplayUC:   replay.UseCase{Events: eventRepo},
		World:      eng.Store(),
		KPI:        kpiRecorder,
		CORSOrigin: cfg.CORSOrigin,
	}
	s := server.Default(server.WithHostPorts(cfg.HTTPAddr))
	h.RegisterRoutes(s)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 5)
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	spawn("journal", j.Run)
	spawn("engine", eng.Run)
	if cfg.StreamEnabled {
		hub := stream.NewHub(eng, stream.WithLogger(logger.With().Str("component", "stream").Logger()))
		unsubscribeHub := eng.Pipeline().Subscribe(hub.Listen)
		defer unsubscribeHub()
		spawn("stream", func(ctx context.Context) error {
			logger.Info().Str("addr", cfg.StreamAddr).Msg("stream listening")
			return stream.Serve(ctx, cfg.StreamAddr, hub)
		})
	}
	if cfg.MCPStdio {
		mcpServer, err := mcpadapter.NewServer(mcpadapter.Deps{Engine: eng, ObserveUC: observeUC, StatusUC: statusUC})
		if err != nil {
			return err
		}
		spawn("mcp", func(ctx context.Context) error {
			return mcpadapter.ServeStdio(ctx, mcpServer, logger.With().Str("component", "mcp").Logger())
		})
	}
	spawn("http", func(ctx context.Context) error {
		return serveHTTP(ctx, s)
	})

	logger.Info().
		Str("http_addr", cfg.HTTPAddr).
		Uint32("player", uint32(world.Player)).
		Bool("postgres_journal", cfg.DBDSN != "").
		Msg("turnkeep server started")

	<-ctx.Done()
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	logger.Info().Int64("journal_written", j.Written()).Int64("journal_dropped", j.Dropped()).Msg("turnkeep server stopped")
	return errors.Join(errs...)
}

func serveHTTP(ctx context.Context, s *server.Hertz) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// buildJournalStore picks postgres when a DSN is configured and applies the
// embedded migrations; otherwise the journal lives in memory.
func buildJournalStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (ports.EventRepository, ports.TxManager, error) {
	if cfg.DBDSN == "" {
		mem := memory.NewStore()
		return memory.NewEventRepo(mem), memory.NewTxManager(mem), nil
	}
	db, err := gormrepo.OpenPostgres(cfg.DBDSN, logger.With().Str("component", "gorm").Logger())
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	applied, err := gormrepo.ApplyMigrations(ctx, db, migrations.FS)
	if err != nil {
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info().Strs("migrations", applied).Msg("journal schema ready")
	return gormrepo.NewEventRepo(db), gormrepo.NewTxManager(db), nil
}
