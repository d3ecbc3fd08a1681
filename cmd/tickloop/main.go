package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tickloop/api/grpcserver"
	"tickloop/infra/config"
	"tickloop/infra/logger"
	"tickloop/infra/metrics"
	entrywal "tickloop/infra/wal/entry"
	exitwal "tickloop/infra/wal/exit"
	"tickloop/jobs/broadcaster"
	"tickloop/service"
	"tickloop/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.LogLevel, cfg.App.LogPretty).With(
		zap.String("app", cfg.App.Name),
		zap.String("run_id", uuid.NewString()),
	)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("tickloop failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	m := metrics.New()

	// ---------------- Port ----------------

	port, err := openPort(cfg.Port, log)
	if err != nil {
		return fmt.Errorf("open %s port: %w", cfg.Port.Driver, err)
	}
	defer port.Close()

	// ---------------- Journal ----------------

	var journal *entrywal.WAL
	if cfg.Journal.Dir != "" {
		journal, err = entrywal.Open(entrywal.Config{
			Dir:             cfg.Journal.Dir,
			SegmentSize:     cfg.Journal.SegmentSize,
			SegmentDuration: cfg.Journal.SegmentDuration,
		})
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer journal.Close()
	}

	var snaps *snapshot.Writer
	if cfg.Journal.SnapshotDir != "" {
		snaps = &snapshot.Writer{Dir: cfg.Journal.SnapshotDir}
	}

	// ---------------- Outbox ----------------

	var (
		outbox *exitwal.Outbox
		bc     *broadcaster.Broadcaster
	)
	if cfg.Outbox.Dir != "" {
		outbox, err = exitwal.Open(cfg.Outbox.Dir)
		if err != nil {
			return err
		}
		defer outbox.Close()

		producer, err := broadcaster.NewSyncProducer(cfg.Outbox.Brokers)
		if err != nil {
			return fmt.Errorf("outbox producer: %w", err)
		}
		bc = broadcaster.New(outbox, producer, broadcaster.Config{
			Topic:    cfg.Outbox.Topic,
			Interval: cfg.Outbox.Interval,
		}, m, log)
		defer bc.Close()
	}

	// ---------------- Pipeline ----------------

	opts, err := optionsFrom(cfg)
	if err != nil {
		return err
	}
	p, err := service.New(service.Deps{
		Port:      port,
		Journal:   journal,
		Outbox:    outbox,
		Snapshots: snaps,
		Metrics:   m,
		Logger:    log,
	}, opts)
	if err != nil {
		return err
	}

	// ---------------- Restore ----------------

	var snapPath string
	if snaps != nil {
		snapPath = snaps.Path()
	}
	if err := p.Restore(snapPath, cfg.Journal.Dir); err != nil {
		return err
	}

	// ---------------- Serve ----------------

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.App.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	metricsSrv := &http.Server{
		Addr:              cfg.App.MetricsAddr,
		Handler:           metricsMux(m),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })
	g.Go(func() error { return grpcserver.NewServer(p, log).Serve(gctx, lis) })
	g.Go(func() error {
		log.Info("metrics listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})
	if bc != nil {
		g.Go(func() error { return bc.Run(gctx) })
	}
	if cfg.App.SimulateOrders > 0 {
		g.Go(func() error {
			return simulate(gctx, p, cfg.App.SimulateOrders, cfg.App.SettleDelay, log)
		})
	}

	log.Info("tickloop running",
		zap.String("driver", cfg.Port.Driver),
		zap.String("submit_mode", cfg.Pipeline.SubmitMode),
		zap.Bool("journal", journal != nil),
		zap.Bool("outbox", outbox != nil),
	)

	err = g.Wait()
	if errors.Is(err, errSimulationDone) {
		err = nil
	}

	// ---------------- Shutdown ----------------

	p.PrintStats(os.Stdout)
	if snaps != nil {
		if serr := p.TakeSnapshot(); serr != nil {
			log.Warn("final snapshot failed", zap.Error(serr))
		}
	}
	return err
}

func metricsMux(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
