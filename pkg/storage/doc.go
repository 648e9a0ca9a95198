/*
Package storage is the cleaner's durable backlog store.

The cleaner (pkg/cleaner) tracks, for every execution context, the set of
worker node ids that observed an artifact for it. That set must survive a
controller restart — otherwise a crash between "algorithm finished" and
"every node cleaned up" would leak tables on whichever node was still
pending. BoltStore persists one ContextRecord per context id in a single
bbolt bucket, keyed by context id, so the cleaner's sweep loop can resume
exactly where it left off.

# Usage

	store, err := storage.NewBoltStore("fedmesh-cleaner.db")
	if err != nil {
		return err
	}
	defer store.Close()

	store.Put(storage.ContextRecord{
		ContextID: "ctx1",
		NodeIDs:   map[string]bool{"node0": true, "node1": true},
		CreatedAt: time.Now(),
	})
*/
package storage
