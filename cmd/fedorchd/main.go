// Command fedorchd is the controller process: it wires together the
// landscape aggregator (C2), the cleaner (C5), the algorithm executor
// (C4), the controller facade (C6), and the HTTP server that exposes it,
// then runs until signaled to stop.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fedmesh/fedmesh/pkg/algorithms"
	"github.com/fedmesh/fedmesh/pkg/api"
	"github.com/fedmesh/fedmesh/pkg/cleaner"
	"github.com/fedmesh/fedmesh/pkg/config"
	"github.com/fedmesh/fedmesh/pkg/controller"
	"github.com/fedmesh/fedmesh/pkg/events"
	"github.com/fedmesh/fedmesh/pkg/executor"
	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/log"
	"github.com/fedmesh/fedmesh/pkg/metrics"
	"github.com/fedmesh/fedmesh/pkg/registry"
	"github.com/fedmesh/fedmesh/pkg/rpc"
	"github.com/fedmesh/fedmesh/pkg/smpc"
	"github.com/fedmesh/fedmesh/pkg/storage"
	"gopkg.in/yaml.v3"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fedorchd: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("main")
	logger.Info().Str("version", Version).Str("commit", Commit).Msg("starting fedorchd")

	metrics.SetVersion(Version)

	addresses, err := loadWorkerAddresses(cfg.WorkersFile)
	if err != nil {
		return fmt.Errorf("load workers file %q: %w", cfg.WorkersFile, err)
	}
	if len(addresses) == 0 {
		logger.Fatal().Msg("no workers configured; set WORKERS_FILE to a YAML list of worker addresses")
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	reg := registry.New(addresses, cfg.LandscapeUpdateInterval, func(addr, nodeID string) (*rpc.Client, error) {
		return rpc.Dial(addr, nodeID, cfg.WorkerCallTimeout, cfg.RunUDFTimeout)
	})
	reg.Start()
	defer reg.Stop()
	metrics.RegisterComponent("registry", true, "")

	store, err := storage.NewBoltStore(cfg.CleanerDBPath)
	if err != nil {
		return fmt.Errorf("open cleaner store %q: %w", cfg.CleanerDBPath, err)
	}
	defer store.Close()

	cln := cleaner.New(store, cleanupDialer(reg, cfg), cfg.CleanerGracePeriod, cfg.CleanerSweepInterval, broker)
	cln.Start()
	defer cln.Stop()
	metrics.RegisterComponent("cleaner", true, "")

	collector := metrics.NewCollector(reg, cln)
	collector.Start()
	defer collector.Stop()

	var smpcClient executor.SMPCClient
	if cfg.SMPCEnabled {
		smpcClient = smpc.NewClient(cfg.SMPCCoordinatorURL)
	}

	udfRegistry := algorithms.NewRegistry()
	exec := executor.New(udfRegistry, broker, workerDialer(cfg), smpcClient, cfg.SMPCEnabled, cfg.RunUDFTimeout)

	catalog := algorithms.NewCatalog()
	ctrl := controller.New(reg, catalog, exec, broker, viewDialer(cfg), cfg.MinimumRowCount, cfg.ProtectLocalData)

	srv := api.NewServer(ctrl, reg, catalog)
	metrics.RegisterComponent("api", true, "")

	opsServer := newOpsServer(cfg.OpsAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	go func() {
		logger.Info().Str("addr", cfg.OpsAddr).Msg("operational endpoint listening")
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("operational endpoint stopped unexpectedly")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = opsServer.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", cfg.ListenAddr).Int("workers", len(addresses)).Msg("facade listening")
	if err := srv.Start(ctx, cfg.ListenAddr); err != nil {
		return fmt.Errorf("facade stopped: %w", err)
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

// newOpsServer exposes the component-level health checker (pkg/metrics)
// and the Prometheus registry on an address separate from the algorithm
// facade, so a process supervisor can probe /health, /ready, and /live
// without sharing a port with request traffic.
func newOpsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /health", metrics.HealthHandler())
	mux.Handle("GET /ready", metrics.ReadyHandler())
	mux.Handle("GET /live", metrics.LivenessHandler())
	mux.Handle("GET /metrics", metrics.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}

func workerDialer(cfg *config.Config) executor.DialFunc {
	return func(nodeID, addr string) (executor.WorkerClient, error) {
		return rpc.Dial(addr, nodeID, cfg.WorkerCallTimeout, cfg.RunUDFTimeout)
	}
}

func viewDialer(cfg *config.Config) controller.DialFunc {
	return func(nodeID, addr string) (controller.ViewClient, error) {
		return rpc.Dial(addr, nodeID, cfg.WorkerCallTimeout, cfg.RunUDFTimeout)
	}
}

// cleanupDialer resolves a bare node id to its address via the live
// registry snapshot, since the cleaner's sweep loop only ever has a node
// id persisted in its backlog, never an address.
func cleanupDialer(reg *registry.Aggregator, cfg *config.Config) cleaner.DialFunc {
	return func(nodeID string) (cleaner.CleanupClient, error) {
		snapshot := reg.Snapshot()
		node, ok := snapshot.Nodes[nodeID]
		if !ok {
			return nil, ferrors.New(ferrors.Unreachable, fmt.Sprintf("node %s not present in the current registry snapshot", nodeID))
		}
		return rpc.Dial(node.QueueEndpoint, nodeID, cfg.WorkerCallTimeout, cfg.RunUDFTimeout)
	}
}

type workersFile struct {
	Workers []struct {
		NodeID string `yaml:"node_id"`
		Addr   string `yaml:"addr"`
	} `yaml:"workers"`
}

// loadWorkerAddresses reads the static worker list the landscape
// aggregator polls when no discovery source is configured.
func loadWorkerAddresses(path string) ([]registry.WorkerAddress, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wf workersFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, err
	}
	addresses := make([]registry.WorkerAddress, 0, len(wf.Workers))
	for _, w := range wf.Workers {
		addresses = append(addresses, registry.WorkerAddress{NodeID: w.NodeID, Addr: w.Addr})
	}
	return addresses, nil
}
