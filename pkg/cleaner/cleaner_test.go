package cleaner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fedmesh/fedmesh/pkg/events"
	"github.com/fedmesh/fedmesh/pkg/storage"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]storage.ContextRecord
}

func newMemStore() *memStore {
	return &memStore{records: map[string]storage.ContextRecord{}}
}

func (s *memStore) Put(r storage.ContextRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ContextID] = r
	return nil
}

func (s *memStore) Get(contextID string) (storage.ContextRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[contextID]
	return r, ok, nil
}

func (s *memStore) Delete(contextID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, contextID)
	return nil
}

func (s *memStore) List() ([]storage.ContextRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.ContextRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

type fakeClient struct {
	fail bool
}

func (f *fakeClient) Cleanup(ctx context.Context, requestID, contextID string) error {
	if f.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func (f *fakeClient) Close() error { return nil }

func TestCleanerTracksAndSweepsDrainedContext(t *testing.T) {
	store := newMemStore()
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	dial := func(nodeID string) (CleanupClient, error) { return &fakeClient{}, nil }
	cl := New(store, dial, 0, 10*time.Millisecond, broker)
	cl.Start()
	defer cl.Stop()

	broker.Publish(&events.Event{Type: events.EventNodeTouched, ContextID: "ctx1", NodeID: "node0"})
	broker.Publish(&events.Event{Type: events.EventContextReleased, ContextID: "ctx1"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, found, _ := store.Get("ctx1"); !found {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("context record was never drained from the backlog")
}

func TestCleanerKeepsUnreachableNodeInBacklog(t *testing.T) {
	store := newMemStore()
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	dial := func(nodeID string) (CleanupClient, error) { return &fakeClient{fail: true}, nil }
	cl := New(store, dial, 0, 10*time.Millisecond, broker)
	cl.Start()
	defer cl.Stop()

	broker.Publish(&events.Event{Type: events.EventNodeTouched, ContextID: "ctx1", NodeID: "node0"})
	broker.Publish(&events.Event{Type: events.EventContextReleased, ContextID: "ctx1"})

	time.Sleep(100 * time.Millisecond)

	record, found, err := store.Get("ctx1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected context to remain tracked while its node is unreachable")
	}
	if !record.NodeIDs["node0"] {
		t.Error("expected node0 to remain in the backlog after a failed cleanup attempt")
	}
}
