package bots

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
)

func TestAllocateDistinctUnderContention(t *testing.T) {
	p := NewPortAllocator(43800, 100)
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int]int)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			port, err := p.Allocate()
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			seen[port]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != 16 {
		t.Fatalf("expected 16 distinct ports, got %d", len(seen))
	}
	for port, n := range seen {
		if n != 1 {
			t.Fatalf("port %d allocated %d times", port, n)
		}
	}
}

func TestAllocateSkipsBoundPort(t *testing.T) {
	base := 43950
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", base))
	if err != nil {
		t.Skipf("cannot bind %d: %v", base, err)
	}
	defer ln.Close()

	p := NewPortAllocator(base, 10)
	port, err := p.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	if port == base {
		t.Fatalf("allocator returned a port bound by another listener")
	}
}

func TestClaimReservedPort(t *testing.T) {
	p := NewPortAllocator(44000, 10)
	if err := p.Claim(44003); err != nil {
		t.Fatal(err)
	}
	if err := p.Claim(44003); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("expected ErrResourceExhausted, got %v", err)
	}
	p.Release(44003)
	if err := p.Claim(44003); err != nil {
		t.Fatalf("claim after release should succeed: %v", err)
	}
}

func TestAllocateExhaustsWindow(t *testing.T) {
	p := NewPortAllocator(44100, 3)
	for i := 0; i < 3; i++ {
		if _, err := p.Allocate(); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := p.Allocate(); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("expected ErrResourceExhausted, got %v", err)
	}
}
