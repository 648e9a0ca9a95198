// Package cleaner is C5: it maintains the context_id -> set<node_id> map
// of workers that observed an artifact for a context, and periodically
// sweeps contexts whose grace period has elapsed, issuing an idempotent
// cleanup(context_id) to each remaining node.
package cleaner

import (
	"context"
	"time"

	"github.com/fedmesh/fedmesh/pkg/events"
	"github.com/fedmesh/fedmesh/pkg/log"
	"github.com/fedmesh/fedmesh/pkg/metrics"
	"github.com/fedmesh/fedmesh/pkg/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CleanupClient is the narrow slice of rpc.Client the cleaner needs;
// declared as an interface so tests can substitute a fake without a real
// network connection.
type CleanupClient interface {
	Cleanup(ctx context.Context, requestID, contextID string) error
	Close() error
}

// DialFunc opens a cleanup-capable connection to a node; overridable in
// tests.
type DialFunc func(nodeID string) (CleanupClient, error)

// Cleaner owns the persistent backlog and the background sweep loop.
type Cleaner struct {
	store        storage.Store
	dial         DialFunc
	gracePeriod  time.Duration
	sweepPeriod  time.Duration
	broker       *events.Broker
	sub          events.Subscriber

	logger zerolog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a cleaner over a persistence store and a node dialer.
func New(store storage.Store, dial DialFunc, gracePeriod, sweepPeriod time.Duration, broker *events.Broker) *Cleaner {
	return &Cleaner{
		store:       store,
		dial:        dial,
		gracePeriod: gracePeriod,
		sweepPeriod: sweepPeriod,
		broker:      broker,
		logger:      log.WithComponent("cleaner"),
	}
}

// Start subscribes to the executor's events and launches the sweep loop.
func (c *Cleaner) Start() {
	c.sub = c.broker.Subscribe()
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.consumeEvents()
	go c.run()
}

// Stop halts both the event consumer and the sweep loop.
func (c *Cleaner) Stop() {
	close(c.stopCh)
	<-c.doneCh
	c.broker.Unsubscribe(c.sub)
}

func (c *Cleaner) consumeEvents() {
	for ev := range c.sub {
		switch ev.Type {
		case events.EventContextCreated:
			c.track(ev.ContextID, nil)
		case events.EventNodeTouched:
			c.track(ev.ContextID, []string{ev.NodeID})
		case events.EventContextReleased:
			c.release(ev.ContextID)
		}
	}
}

// track appends node ids to a context's entry, creating it if absent.
func (c *Cleaner) track(contextID string, nodeIDs []string) {
	record, found, err := c.store.Get(contextID)
	if err != nil {
		c.logger.Error().Err(err).Str("context_id", contextID).Msg("failed to read context record")
		return
	}
	if !found {
		record = storage.ContextRecord{ContextID: contextID, NodeIDs: map[string]bool{}, CreatedAt: time.Now()}
	}
	for _, id := range nodeIDs {
		record.NodeIDs[id] = true
	}
	if err := c.store.Put(record); err != nil {
		c.logger.Error().Err(err).Str("context_id", contextID).Msg("failed to persist context record")
	}
}

// release marks a context's request as finished, starting its grace
// period clock.
func (c *Cleaner) release(contextID string) {
	record, found, err := c.store.Get(contextID)
	if err != nil {
		c.logger.Error().Err(err).Str("context_id", contextID).Msg("failed to read context record on release")
		return
	}
	if !found {
		return
	}
	record.ReleasedAt = time.Now()
	if err := c.store.Put(record); err != nil {
		c.logger.Error().Err(err).Str("context_id", contextID).Msg("failed to persist released context record")
	}
}

// BacklogSize implements metrics.BacklogSizer.
func (c *Cleaner) BacklogSize() int {
	records, err := c.store.List()
	if err != nil {
		return 0
	}
	return len(records)
}

func (c *Cleaner) run() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.sweepPeriod)
	defer ticker.Stop()

	c.logger.Info().Dur("grace_period", c.gracePeriod).Dur("sweep_period", c.sweepPeriod).Msg("cleaner started")

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCh:
			c.logger.Info().Msg("cleaner stopped")
			return
		}
	}
}

// sweep visits every tracked context older than its grace period and
// issues cleanup to each pending node; a successful response removes that
// node from the entry, and an entry with an empty node set is discarded.
// Unreachable nodes stay in the map until a later sweep succeeds.
func (c *Cleaner) sweep() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CleanupSweepDuration)

	records, err := c.store.List()
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to list cleanup backlog")
		return
	}

	now := time.Now()
	for _, record := range records {
		if record.ReleasedAt.IsZero() || now.Sub(record.ReleasedAt) < c.gracePeriod {
			continue
		}
		c.sweepOne(record)
	}
	metrics.CleanupBacklogSize.Set(float64(c.BacklogSize()))
}

func (c *Cleaner) sweepOne(record storage.ContextRecord) {
	requestID := uuid.NewString()
	sweepLog := c.logger.With().Str("request_id", requestID).Str("context_id", record.ContextID).Logger()

	for nodeID := range record.NodeIDs {
		client, err := c.dial(nodeID)
		if err != nil {
			sweepLog.Warn().Str("node_id", nodeID).Err(err).Msg("could not dial node for cleanup, will retry next sweep")
			metrics.CleanupAttemptsTotal.WithLabelValues("dial_failed").Inc()
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = client.Cleanup(ctx, requestID, record.ContextID)
		cancel()
		client.Close()

		if err != nil {
			sweepLog.Warn().Str("node_id", nodeID).Err(err).Msg("cleanup call failed, node stays in backlog")
			metrics.CleanupAttemptsTotal.WithLabelValues("failed").Inc()
			continue
		}

		metrics.CleanupAttemptsTotal.WithLabelValues("succeeded").Inc()
		delete(record.NodeIDs, nodeID)
	}

	if len(record.NodeIDs) == 0 {
		if err := c.store.Delete(record.ContextID); err != nil {
			sweepLog.Error().Err(err).Msg("failed to discard drained context record")
			return
		}
		sweepLog.Info().Msg("context fully cleaned up")
		return
	}
	if err := c.store.Put(record); err != nil {
		sweepLog.Error().Err(err).Msg("failed to persist partially cleaned context record")
	}
}
