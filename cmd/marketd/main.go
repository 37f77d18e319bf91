// marketd runs the marketplace settlement engine with a durable pebble
// record store, a prometheus endpoint and an optional Kafka event
// broadcaster. The custody collaborator and currency ledger run in-process.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liquidityos/service-marketplace-go/adapters/mock"
	"github.com/liquidityos/service-marketplace-go/adapters/pebblestore"
	"github.com/liquidityos/service-marketplace-go/api"
	"github.com/liquidityos/service-marketplace-go/config"
	"github.com/liquidityos/service-marketplace-go/domain"
	"github.com/liquidityos/service-marketplace-go/jobs/broadcaster"
	"github.com/liquidityos/service-marketplace-go/metrics"
	"github.com/liquidityos/service-marketplace-go/settlement"
)

func main() {
	configPath := flag.String("config", "configs/marketd.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	custodyProgram := domain.NewAccountID()
	if cfg.CustodyProgram != "" {
		custodyProgram, err = domain.AccountIDFromBase58(cfg.CustodyProgram)
		if err != nil {
			slog.Error("Invalid custody program id", "err", err)
			os.Exit(1)
		}
	}

	store, err := pebblestore.Open(cfg.DataDir)
	if err != nil {
		slog.Error("Failed to open record store", "err", err, "dir", cfg.DataDir)
		os.Exit(1)
	}
	defer store.Close()

	custody := mock.NewMockCustody()
	ledger := mock.NewMockLedger()
	host := settlement.NewHost(custody, ledger, store, settlement.WithOutbox(store))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	engineOpts := []settlement.EngineOption{settlement.WithMetrics(m)}
	if cfg.StorageDepositLamports > 0 {
		engineOpts = append(engineOpts, settlement.WithStorageDeposit(cfg.StorageDepositLamports, domain.NewAccountID()))
	}
	engine := settlement.NewEngine(host, custodyProgram, engineOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiSrv := &http.Server{Addr: cfg.ListenAddr, Handler: api.NewServer(engine)}
	go func() {
		slog.Info("Submission API listening", "addr", cfg.ListenAddr)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server failed", "err", err)
			stop()
		}
	}()
	defer apiSrv.Shutdown(context.Background())

	if len(cfg.Kafka.Brokers) > 0 {
		b, err := broadcaster.New(store, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.PollInterval)
		if err != nil {
			slog.Error("Failed to start broadcaster", "err", err)
			os.Exit(1)
		}
		defer b.Close()
		b.Start(ctx)
	}

	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		slog.Info("Metrics listening", "addr", cfg.Metrics.ListenAddr)
	}

	slog.Info("marketd running",
		"data_dir", cfg.DataDir,
		"custody_program", custodyProgram,
	)
	<-ctx.Done()
	slog.Info("marketd shutting down")
}
