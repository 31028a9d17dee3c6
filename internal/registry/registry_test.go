package registry

import (
	"fmt"
	"sync"
	"testing"
)

type fakeConn string

func (f fakeConn) ConnID() string { return string(f) }

func TestBindAndLookup(t *testing.T) {
	reg := NewInMemory()

	if prior := reg.Bind("alice", fakeConn("c1")); prior != nil {
		t.Fatalf("expected no prior connection, got %v", prior)
	}
	conn, ok := reg.Lookup("alice")
	if !ok || conn.ConnID() != "c1" {
		t.Fatalf("expected c1 bound for alice, got %v (ok=%v)", conn, ok)
	}
	if !reg.IsOnline("alice") {
		t.Fatal("expected alice online")
	}
	if reg.IsOnline("bob") {
		t.Fatal("expected bob offline")
	}
	if reg.Count() != 1 {
		t.Fatalf("expected count 1, got %d", reg.Count())
	}
}

func TestBindSupersedesPrior(t *testing.T) {
	reg := NewInMemory()

	reg.Bind("alice", fakeConn("c1"))
	prior := reg.Bind("alice", fakeConn("c2"))
	if prior == nil || prior.ConnID() != "c1" {
		t.Fatalf("expected prior c1, got %v", prior)
	}

	conn, ok := reg.Lookup("alice")
	if !ok || conn.ConnID() != "c2" {
		t.Fatalf("expected c2 after supersession, got %v (ok=%v)", conn, ok)
	}
	if reg.Count() != 1 {
		t.Fatalf("expected single binding after supersession, got %d", reg.Count())
	}
}

func TestRebindSameConnReturnsNoPrior(t *testing.T) {
	reg := NewInMemory()

	reg.Bind("alice", fakeConn("c1"))
	if prior := reg.Bind("alice", fakeConn("c1")); prior != nil {
		t.Fatalf("rebinding the same connection must not return itself, got %v", prior)
	}
}

func TestStaleUnbindIsNoOp(t *testing.T) {
	reg := NewInMemory()

	reg.Bind("alice", fakeConn("c1"))
	reg.Bind("alice", fakeConn("c2"))

	// Late close from the superseded connection must not evict the new one.
	if reg.Unbind("alice", fakeConn("c1")) {
		t.Fatal("stale unbind must return false")
	}
	if conn, ok := reg.Lookup("alice"); !ok || conn.ConnID() != "c2" {
		t.Fatalf("expected c2 still bound, got %v (ok=%v)", conn, ok)
	}

	if !reg.Unbind("alice", fakeConn("c2")) {
		t.Fatal("current unbind must return true")
	}
	if reg.IsOnline("alice") {
		t.Fatal("expected alice offline after unbind")
	}
	if reg.Unbind("alice", fakeConn("c2")) {
		t.Fatal("repeated unbind must return false")
	}
}

func TestConcurrentBindsSingleOwner(t *testing.T) {
	reg := NewInMemory()

	const workers = 64
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		priors []string
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prior := reg.Bind("alice", fakeConn(fmt.Sprintf("c%d", i)))
			if prior == nil {
				return
			}
			mu.Lock()
			priors = append(priors, prior.ConnID())
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	winner, ok := reg.Lookup("alice")
	if !ok {
		t.Fatal("expected a winning connection")
	}
	// Every connection except the winner must have been handed back exactly
	// once as a superseded prior; no two binds may both think they own the map.
	if len(priors) != workers-1 {
		t.Fatalf("expected %d superseded connections, got %d", workers-1, len(priors))
	}
	seen := make(map[string]bool, workers)
	for _, id := range priors {
		if seen[id] {
			t.Fatalf("connection %s superseded twice", id)
		}
		seen[id] = true
	}
	if seen[winner.ConnID()] {
		t.Fatalf("winner %s also reported as superseded", winner.ConnID())
	}
}
