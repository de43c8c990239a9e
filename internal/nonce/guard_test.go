package nonce

import (
	"sync"
	"testing"
	"time"
)

func TestMemoryGuardReplay(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	defer g.Close()

	seen, err := g.CheckAndSet("key", "nonce-1")
	if err != nil || seen {
		t.Fatalf("first use: seen=%v err=%v, want false nil", seen, err)
	}
	seen, err = g.CheckAndSet("key", "nonce-1")
	if err != nil || !seen {
		t.Fatalf("replay: seen=%v err=%v, want true nil", seen, err)
	}
	// A different nonce, and the same nonce under a different key, are fresh.
	if seen, _ := g.CheckAndSet("key", "nonce-2"); seen {
		t.Error("unrelated nonce reported as seen")
	}
	if seen, _ := g.CheckAndSet("other-key", "nonce-1"); seen {
		t.Error("same nonce under another key reported as seen")
	}
}

func TestMemoryGuardTTLExpiry(t *testing.T) {
	g := NewMemoryGuard(10 * time.Millisecond)
	defer g.Close()

	if seen, _ := g.CheckAndSet("key", "n"); seen {
		t.Fatal("first use reported as seen")
	}
	time.Sleep(25 * time.Millisecond)
	if seen, _ := g.CheckAndSet("key", "n"); seen {
		t.Error("nonce still seen after TTL expiry")
	}
}

func TestMemoryGuardConcurrentCheckAndSet(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	defer g.Close()

	const workers = 32
	var wg sync.WaitGroup
	admitted := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen, err := g.CheckAndSet("key", "contested")
			if err != nil {
				t.Errorf("CheckAndSet failed: %v", err)
				return
			}
			if !seen {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)
	if n := len(admitted); n != 1 {
		t.Errorf("%d concurrent requests admitted with one nonce, want exactly 1", n)
	}
}

func TestBadgerGuardCheckAndSet(t *testing.T) {
	g, err := NewBadgerGuard("", time.Minute)
	if err != nil {
		t.Fatalf("failed to open in-memory badger guard: %v", err)
	}
	defer g.Close()

	if seen, err := g.CheckAndSet("key", "n1"); err != nil || seen {
		t.Fatalf("first use: seen=%v err=%v, want false nil", seen, err)
	}
	if seen, err := g.CheckAndSet("key", "n1"); err != nil || !seen {
		t.Fatalf("replay: seen=%v err=%v, want true nil", seen, err)
	}
	if seen, _ := g.CheckAndSet("key", "n2"); seen {
		t.Error("unrelated nonce reported as seen")
	}
}

func TestBadgerGuardConcurrentCheckAndSet(t *testing.T) {
	g, err := NewBadgerGuard("", time.Minute)
	if err != nil {
		t.Fatalf("failed to open in-memory badger guard: %v", err)
	}
	defer g.Close()

	const workers = 16
	var wg sync.WaitGroup
	admitted := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen, err := g.CheckAndSet("key", "contested")
			if err != nil {
				t.Errorf("CheckAndSet failed: %v", err)
				return
			}
			if !seen {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)
	if n := len(admitted); n != 1 {
		t.Errorf("%d concurrent requests admitted with one nonce, want exactly 1", n)
	}
}

func TestBadgerGuardTTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("TTL expiry test sleeps past badger's one-second expiry granularity")
	}
	g, err := NewBadgerGuard("", time.Second)
	if err != nil {
		t.Fatalf("failed to open in-memory badger guard: %v", err)
	}
	defer g.Close()

	if seen, _ := g.CheckAndSet("key", "n"); seen {
		t.Fatal("first use reported as seen")
	}
	time.Sleep(2 * time.Second)
	if seen, _ := g.CheckAndSet("key", "n"); seen {
		t.Error("nonce still seen after TTL expiry")
	}
}
