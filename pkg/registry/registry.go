// Package registry is the Landscape Aggregator (C2): a background loop
// that polls every configured worker address, assembles a fresh
// RegistrySnapshot, and atomically swaps it in for readers. Nothing reads
// the worker fleet directly except this package; every other component
// reads the latest swapped-in snapshot.
package registry

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/log"
	"github.com/fedmesh/fedmesh/pkg/metrics"
	"github.com/fedmesh/fedmesh/pkg/rpc"
	"github.com/fedmesh/fedmesh/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WorkerAddress is one statically configured worker endpoint.
type WorkerAddress struct {
	NodeID string
	Addr   string
}

// Aggregator owns the current snapshot and the background scan loop that
// refreshes it.
type Aggregator struct {
	addresses []WorkerAddress
	interval  time.Duration
	dialFn    func(addr, nodeID string) (*rpc.Client, error)

	logger zerolog.Logger

	current atomic.Pointer[types.RegistrySnapshot]

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds an aggregator over a static worker list. dialFn defaults to
// rpc.Dial with the package's configured timeouts when nil, and is
// overridable so tests can substitute fakes without a network.
func New(addresses []WorkerAddress, interval time.Duration, dialFn func(addr, nodeID string) (*rpc.Client, error)) *Aggregator {
	a := &Aggregator{
		addresses: addresses,
		interval:  interval,
		dialFn:    dialFn,
		logger:    log.WithComponent("registry"),
	}
	empty := types.EmptySnapshot()
	a.current.Store(&empty)
	return a
}

// Snapshot returns the most recently swapped-in registry state. Callers
// never block on a scan; they read whatever was last published.
func (a *Aggregator) Snapshot() types.RegistrySnapshot {
	return *a.current.Load()
}

// Start launches the background scan loop.
func (a *Aggregator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopCh != nil {
		return
	}
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.run()
}

// Stop halts the scan loop and waits for the in-flight cycle to finish.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	stopCh := a.stopCh
	doneCh := a.doneCh
	a.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

func (a *Aggregator) run() {
	defer close(a.doneCh)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info().Dur("interval", a.interval).Msg("landscape aggregator started")
	a.scan()

	for {
		select {
		case <-ticker.C:
			a.scan()
		case <-a.stopCh:
			a.logger.Info().Msg("landscape aggregator stopped")
			return
		}
	}
}

// scan performs one full cycle: probe every address, build a fresh
// snapshot, log the diff against the previous one, and swap it in.
func (a *Aggregator) scan() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RegistryScanDuration)

	requestID := uuid.NewString()
	reqLog := a.logger.With().Str("request_id", requestID).Logger()

	next := types.EmptySnapshot()
	var responsive []nodeProbe

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, addr := range a.addresses {
		wg.Add(1)
		go func(addr WorkerAddress) {
			defer wg.Done()
			probe, err := a.probeNode(addr, requestID)
			if err != nil {
				reqLog.Warn().Str("node_id", addr.NodeID).Str("addr", addr.Addr).Err(err).
					Msg("worker did not respond to landscape scan, dropping")
				return
			}
			mu.Lock()
			responsive = append(responsive, probe)
			mu.Unlock()
		}(addr)
	}
	wg.Wait()

	for _, p := range responsive {
		next.Nodes[p.node.ID] = p.node
	}

	globalCount := 0
	for _, p := range responsive {
		if p.node.Role == types.RoleGlobal {
			globalCount++
		}
		if p.node.Role != types.RoleLocal {
			continue
		}
		a.mergeLocalInventory(&next, p, reqLog)
	}
	// A dataset advertised by more than one local node is dropped as duplicated.
	advertised := map[[2]string]int{}
	for _, p := range responsive {
		for _, dm := range p.dataModels.DataModels {
			for code := range dm.Datasets {
				advertised[[2]string{dm.DataModelKey, code}]++
			}
		}
	}
	for k, n := range advertised {
		if n > 1 {
			delete(next.DatasetLocations[k[0]], k[1])
			delete(next.DatasetLabels[k[0]], k[1])
		}
	}
	if globalCount != 1 {
		reqLog.Warn().Int("global_node_count", globalCount).
			Msg("expected exactly one responsive GLOBAL node")
	}

	prev := a.Snapshot()
	logDiff(reqLog, prev, next)
	a.current.Store(&next)
	metrics.RegistryNodeCount.Set(float64(len(next.Nodes)))
}

type nodeProbe struct {
	node       types.Node
	dataModels rpc.GetDatasetsPerDataModelResponse
}

func (a *Aggregator) probeNode(addr WorkerAddress, requestID string) (nodeProbe, error) {
	client, err := a.dial(addr.Addr, addr.NodeID)
	if err != nil {
		return nodeProbe{}, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := client.GetNodeInfo(ctx, requestID)
	if err != nil {
		return nodeProbe{}, err
	}
	node := types.Node{ID: info.NodeID, Role: info.Role, QueueEndpoint: addr.Addr, DBEndpoint: addr.Addr}

	if info.Role != types.RoleLocal {
		return nodeProbe{node: node}, nil
	}

	datasets, err := client.GetDatasetsPerDataModel(ctx, requestID)
	if err != nil {
		return nodeProbe{}, err
	}
	return nodeProbe{node: node, dataModels: datasets}, nil
}

func (a *Aggregator) dial(addr, nodeID string) (*rpc.Client, error) {
	if a.dialFn != nil {
		return a.dialFn(addr, nodeID)
	}
	return rpc.Dial(addr, nodeID, 10*time.Second, 60*time.Second)
}

// mergeLocalInventory folds one local worker's reported data models and
// datasets into the snapshot under construction, special-casing the
// "dataset" CDE's enumerations (unioned, never compared) and rejecting a
// data model whose non-dataset CDEs disagree across nodes.
func (a *Aggregator) mergeLocalInventory(next *types.RegistrySnapshot, p nodeProbe, reqLog zerolog.Logger) {
	requestID := uuid.NewString()
	for _, dm := range p.dataModels.DataModels {
		cdeResp, err := func() (rpc.GetDataModelCDEsResponse, error) {
			client, err := a.dial(p.node.QueueEndpoint, p.node.ID)
			if err != nil {
				return rpc.GetDataModelCDEsResponse{}, err
			}
			defer client.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return client.GetDataModelCDEs(ctx, requestID, dm.DataModelKey)
		}()
		if err != nil {
			reqLog.Warn().Str("node_id", p.node.ID).Str("data_model", dm.DataModelKey).Err(err).
				Msg("failed to fetch CDEs, dropping data model from this node's contribution")
			continue
		}

		if existing, ok := next.DataModels[dm.DataModelKey]; ok {
			if incompatible := diffCDEs(existing.CDEs, cdeResp.CDEs); len(incompatible) > 0 {
				reqLog.Error().Str("data_model", dm.DataModelKey).Strs("incompatible_cdes", incompatible).
					Str("node_id", p.node.ID).
					Msg("data model CDEs incompatible across nodes, excluding data model from registry")
				delete(next.DataModels, dm.DataModelKey)
				delete(next.DatasetLocations, dm.DataModelKey)
				delete(next.DatasetLabels, dm.DataModelKey)
				continue
			}
			if ds, ok := existing.CDEs[types.DatasetCDECode]; ok {
				if ds.Enumerations == nil {
					ds.Enumerations = map[string]string{}
				}
				for code, label := range cdeResp.CDEs[types.DatasetCDECode].Enumerations {
					ds.Enumerations[code] = label
				}
				existing.CDEs[types.DatasetCDECode] = ds
			}
		} else {
			name, version, _ := types.ParseDataModelKey(dm.DataModelKey)
			next.DataModels[dm.DataModelKey] = types.DataModel{Name: name, Version: version, CDEs: cdeResp.CDEs}
			next.DatasetLocations[dm.DataModelKey] = map[string]string{}
			next.DatasetLabels[dm.DataModelKey] = map[string]string{}
		}

		locations := next.DatasetLocations[dm.DataModelKey]
		labels := next.DatasetLabels[dm.DataModelKey]
		for code, label := range dm.Datasets {
			if owner, ok := locations[code]; ok {
				reqLog.Error().Str("dataset", code).Str("data_model", dm.DataModelKey).
					Str("first_owner", owner).Str("duplicate_owner", p.node.ID).
					Msg("dataset reported by more than one node, excluding it as duplicated")
				continue
			}
			locations[code] = p.node.ID
			labels[code] = label
		}
	}
}

// diffCDEs returns the codes of every CDE that differs between two sets,
// skipping the "dataset" CDE's enumerations per the special case.
func diffCDEs(a, b map[string]types.CDE) []string {
	var bad []string
	seen := map[string]bool{}
	for code, cdeA := range a {
		seen[code] = true
		cdeB, ok := b[code]
		if !ok {
			bad = append(bad, code)
			continue
		}
		compareEnums := code != types.DatasetCDECode
		if !cdeA.Equal(cdeB, compareEnums) {
			bad = append(bad, code)
		}
	}
	for code := range b {
		if !seen[code] {
			bad = append(bad, code)
		}
	}
	sort.Strings(bad)
	return bad
}

func logDiff(reqLog zerolog.Logger, prev, next types.RegistrySnapshot) {
	for id := range next.Nodes {
		if _, ok := prev.Nodes[id]; !ok {
			reqLog.Info().Str("node_id", id).Msg("node joined landscape")
		}
	}
	for id := range prev.Nodes {
		if _, ok := next.Nodes[id]; !ok {
			reqLog.Warn().Str("node_id", id).Msg("node left landscape")
		}
	}
	for key := range next.DataModels {
		if _, ok := prev.DataModels[key]; !ok {
			reqLog.Info().Str("data_model", key).Msg("data model added to landscape")
		}
	}
	for key := range prev.DataModels {
		if _, ok := next.DataModels[key]; !ok {
			reqLog.Warn().Str("data_model", key).Msg("data model removed from landscape")
		}
	}
	for key, locations := range next.DatasetLocations {
		prevLocations := prev.DatasetLocations[key]
		for code := range locations {
			if _, ok := prevLocations[code]; !ok {
				reqLog.Info().Str("data_model", key).Str("dataset", code).Msg("dataset added")
			}
		}
		for code := range prevLocations {
			if _, ok := locations[code]; !ok {
				reqLog.Warn().Str("data_model", key).Str("dataset", code).Msg("dataset removed")
			}
		}
	}
}

// ErrNoGlobalNode is returned by consumers (not this package) when a
// snapshot has no responsive GLOBAL node; kept here so both sides name the
// same sentinel message.
func ErrNoGlobalNode() error {
	return ferrors.New(ferrors.Unreachable, "no responsive GLOBAL node in landscape")
}
