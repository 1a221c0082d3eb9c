package bots

import (
	"fmt"
	"net"
	"sync"
)

// PortAllocator hands out TCP ports from a base offset. A port is returned
// only when it is not reserved by a previous allocation and the OS accepts a
// probe bind on it. Probe-and-claim runs under one lock so concurrent
// allocations can never return the same port.
type PortAllocator struct {
	mu       sync.Mutex
	base     int
	window   int
	reserved map[int]bool
}

func NewPortAllocator(base, window int) *PortAllocator {
	if window <= 0 {
		window = 1000
	}
	return &PortAllocator{
		base:     base,
		window:   window,
		reserved: make(map[int]bool),
	}
}

// Allocate returns the lowest free port >= base, reserving it for the caller.
func (p *PortAllocator) Allocate() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for port := p.base; port < p.base+p.window; port++ {
		if p.reserved[port] {
			continue
		}
		if !probeBind(port) {
			continue
		}
		p.reserved[port] = true
		return port, nil
	}
	return 0, fmt.Errorf("scanned %d ports from %d: %w", p.window, p.base, ErrResourceExhausted)
}

// Claim reserves a specific port, verifying the OS has no listener on it.
func (p *PortAllocator) Claim(port int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reserved[port] {
		return fmt.Errorf("port %d already reserved: %w", port, ErrResourceExhausted)
	}
	if !probeBind(port) {
		return fmt.Errorf("port %d is bound by another process: %w", port, ErrResourceExhausted)
	}
	p.reserved[port] = true
	return nil
}

// Release frees a reservation. Called exactly once per successful stop.
func (p *PortAllocator) Release(port int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.reserved, port)
}

// Reserved reports whether the allocator currently holds the port.
func (p *PortAllocator) Reserved(port int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reserved[port]
}

// ProbePort reports whether a bind on the port succeeds right now. The probe
// listener is closed immediately so no listener lingers.
func ProbePort(port int) bool {
	return probeBind(port)
}

func probeBind(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
