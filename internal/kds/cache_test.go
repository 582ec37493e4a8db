package kds

import (
	"sync"
	"testing"
)

func TestCacheGetNeverRefreshed(t *testing.T) {
	cache := NewSnapshotCache()

	snap := cache.Get(BoardPrep, "Kitchen1")
	if len(snap.Tickets) != 0 || snap.Tickets == nil {
		t.Errorf("Get() on cold station tickets = %v, want empty non-nil", snap.Tickets)
	}
	if cache.Has(BoardPrep, "Kitchen1") {
		t.Error("Has() = true for never-refreshed station")
	}
}

func TestCacheReplaceAndGet(t *testing.T) {
	cache := NewSnapshotCache()

	cache.Replace(BoardPrep, "Kitchen1", Snapshot{
		Tickets: []Ticket{{ID: 1}, {ID: 2}},
		Summary: []SummaryLine{{Name: "Dosa", Quantity: 3}},
	})

	snap := cache.Get(BoardPrep, "Kitchen1")
	if len(snap.Tickets) != 2 {
		t.Errorf("Get() tickets = %d, want 2", len(snap.Tickets))
	}
	if len(snap.Summary) != 1 {
		t.Errorf("Get() summary = %d, want 1", len(snap.Summary))
	}

	// Boards are independent keyspaces.
	if cache.Has(BoardDelivery, "Kitchen1") {
		t.Error("Has(delivery) = true after prep-only replace")
	}

	cache.Replace(BoardPrep, "Kitchen1", Snapshot{Tickets: []Ticket{{ID: 9}}})
	snap = cache.Get(BoardPrep, "Kitchen1")
	if len(snap.Tickets) != 1 || snap.Tickets[0].ID != 9 {
		t.Errorf("Get() after second replace = %v, want single ticket 9", snap.Tickets)
	}
}

// TestCacheReplaceAtomic interleaves wholesale replaces with reads and
// checks a reader never observes a half-written entry: every observed
// snapshot must be one of the two full variants.
func TestCacheReplaceAtomic(t *testing.T) {
	cache := NewSnapshotCache()

	small := Snapshot{Tickets: []Ticket{{ID: 1, BillID: "small"}, {ID: 2, BillID: "small"}}}
	large := Snapshot{Tickets: []Ticket{
		{ID: 1, BillID: "large"}, {ID: 2, BillID: "large"},
		{ID: 3, BillID: "large"}, {ID: 4, BillID: "large"}, {ID: 5, BillID: "large"},
	}}
	cache.Replace(BoardPrep, "Kitchen1", small)

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				cache.Replace(BoardPrep, "Kitchen1", large)
			} else {
				cache.Replace(BoardPrep, "Kitchen1", small)
			}
		}
	}()

	var readers sync.WaitGroup
	var mu sync.Mutex
	var torn bool
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 2000; i++ {
				snap := cache.Get(BoardPrep, "Kitchen1")
				want := "small"
				if len(snap.Tickets) == 5 {
					want = "large"
				} else if len(snap.Tickets) != 2 {
					mu.Lock()
					torn = true
					mu.Unlock()
					return
				}
				for _, tk := range snap.Tickets {
					if tk.BillID != want {
						mu.Lock()
						torn = true
						mu.Unlock()
						return
					}
				}
			}
		}()
	}

	readers.Wait()
	close(stop)
	<-writerDone

	if torn {
		t.Error("reader observed a partially-replaced snapshot")
	}
}

func TestCacheStations(t *testing.T) {
	cache := NewSnapshotCache()

	cache.Replace(BoardPrep, "Kitchen1", EmptySnapshot())
	cache.Replace(BoardDelivery, "Kitchen2", EmptySnapshot())
	cache.Replace(BoardPrep, "Kitchen1", EmptySnapshot())

	stations := cache.Stations()
	if len(stations) != 2 {
		t.Fatalf("Stations() = %v, want 2 entries", stations)
	}
	found := map[string]bool{}
	for _, s := range stations {
		found[s] = true
	}
	if !found["Kitchen1"] || !found["Kitchen2"] {
		t.Errorf("Stations() = %v, want Kitchen1 and Kitchen2", stations)
	}
}
