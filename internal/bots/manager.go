// Package bots owns the per-tenant instance lifecycle: port assignment,
// provider boot, the running-instance registry and artifact cleanup.
package bots

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"

	"github.com/talkincode/botfleet/internal/domain"
	"github.com/talkincode/botfleet/internal/provider"
)

// Event topics published on the application bus.
const (
	EventBotStarted = "botfleet.bot.started"
	EventBotStopped = "botfleet.bot.stopped"
)

// Manager coordinates tenant instance starts and stops. Per-tenant keyed
// locks serialize lifecycle transitions for one tenant while different
// tenants proceed in parallel.
type Manager struct {
	provider provider.Provider
	registry *Registry
	ports    *PortAllocator
	bus      EventBus.Bus
	locks    sync.Map
}

func NewManager(p provider.Provider, ports *PortAllocator, bus EventBus.Bus) *Manager {
	return &Manager{
		provider: p,
		registry: NewRegistry(),
		ports:    ports,
		bus:      bus,
	}
}

func (m *Manager) tenantLock(tenantID string) *sync.Mutex {
	v, _ := m.locks.LoadOrStore(tenantID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Start brings up an instance for the tenant. The tenant's stored port is
// claimed when set, otherwise the allocator picks the lowest free one. Every
// acquired resource is rolled back when a later step fails.
func (m *Manager) Start(ctx context.Context, tenant *domain.BotTenant) (*RunningInstance, error) {
	lock := m.tenantLock(tenant.ID)
	lock.Lock()
	defer lock.Unlock()

	if _, ok := m.registry.Get(tenant.ID); ok {
		return nil, fmt.Errorf("tenant %s: %w", tenant.ID, ErrAlreadyRunning)
	}

	port := tenant.Port
	if port > 0 {
		if err := m.ports.Claim(port); err != nil {
			return nil, err
		}
	} else {
		var err error
		port, err = m.ports.Allocate()
		if err != nil {
			return nil, err
		}
	}

	inst, err := m.provider.Boot(ctx, provider.BootParams{
		TenantID:    tenant.ID,
		SessionName: tenant.SessionName,
		Phone:       tenant.Phone,
		Port:        port,
	})
	if err != nil {
		m.ports.Release(port)
		return nil, fmt.Errorf("boot tenant %s: %w", tenant.ID, err)
	}

	ent := &RunningInstance{
		TenantID:    tenant.ID,
		SessionName: tenant.SessionName,
		Phone:       tenant.Phone,
		Port:        port,
		StartedAt:   time.Now(),
		Handle:      inst,
	}
	if !m.registry.Insert(ent) {
		_ = inst.Close(ctx)
		m.ports.Release(port)
		return nil, fmt.Errorf("tenant %s: %w", tenant.ID, ErrAlreadyRunning)
	}

	zap.L().Info("bots: instance started",
		zap.String("namespace", "bots"),
		zap.String("tenant_id", tenant.ID),
		zap.String("session", tenant.SessionName),
		zap.Int("port", port))
	if m.bus != nil {
		m.bus.Publish(EventBotStarted, tenant.ID, port)
	}
	return ent, nil
}

// Stop tears down the tenant instance and deletes its session artifacts.
// Teardown failures are logged, not returned; the registry entry and port
// reservation are always cleared.
func (m *Manager) Stop(ctx context.Context, tenantID string) error {
	return m.stop(ctx, tenantID, true)
}

// Restart cycles the tenant instance while keeping its session artifacts on
// disk. Used after a restore so the instance reconnects with the freshly
// written credential files. A tenant with no running instance is simply
// started.
func (m *Manager) Restart(ctx context.Context, tenant *domain.BotTenant) error {
	if err := m.stop(ctx, tenant.ID, false); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	_, err := m.Start(ctx, tenant)
	return err
}

// Shutdown stops the tenant instance while keeping its session artifacts on
// disk. The backup coordinator uses it to quiesce an instance before writing
// restored credential files into its session folder.
func (m *Manager) Shutdown(ctx context.Context, tenantID string) error {
	return m.stop(ctx, tenantID, false)
}

func (m *Manager) stop(ctx context.Context, tenantID string, removeArtifacts bool) error {
	lock := m.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	ent, ok := m.registry.Remove(tenantID)
	if !ok {
		return fmt.Errorf("tenant %s: %w", tenantID, ErrNotRunning)
	}

	if err := ent.Handle.Close(ctx); err != nil {
		zap.L().Warn("bots: instance close failed",
			zap.String("namespace", "bots"),
			zap.String("tenant_id", tenantID),
			zap.Error(err))
	}
	m.ports.Release(ent.Port)

	if removeArtifacts {
		m.removeArtifacts(ent.SessionName)
	}

	zap.L().Info("bots: instance stopped",
		zap.String("namespace", "bots"),
		zap.String("tenant_id", tenantID),
		zap.Int("port", ent.Port))
	if m.bus != nil {
		m.bus.Publish(EventBotStopped, tenantID, ent.Port)
	}
	return nil
}

func (m *Manager) removeArtifacts(sessionName string) {
	layout := m.provider.Layout()
	if err := os.RemoveAll(layout.SessionPath(sessionName)); err != nil {
		zap.L().Warn("bots: session folder removal failed",
			zap.String("namespace", "bots"),
			zap.String("session", sessionName),
			zap.Error(err))
	}
	if err := os.Remove(layout.QRPath(sessionName)); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("bots: qr file removal failed",
			zap.String("namespace", "bots"),
			zap.String("session", sessionName),
			zap.Error(err))
	}
}

// CleanupSession deletes the on-disk artifacts of a stopped tenant. Refused
// while an instance is running so live credential files are never pulled out
// from under it.
func (m *Manager) CleanupSession(tenantID, sessionName string) error {
	lock := m.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	if _, ok := m.registry.Get(tenantID); ok {
		return fmt.Errorf("tenant %s: %w", tenantID, ErrAlreadyRunning)
	}
	m.removeArtifacts(sessionName)
	return nil
}

// PortAvailable reports whether the port is neither reserved by the
// allocator nor bound by another process. The probe listener is closed
// immediately.
func (m *Manager) PortAvailable(port int) bool {
	if m.ports.Reserved(port) {
		return false
	}
	return ProbePort(port)
}

// Running reports the instance port when the tenant has a live entry.
func (m *Manager) Running(tenantID string) (int, bool) {
	ent, ok := m.registry.Get(tenantID)
	if !ok {
		return 0, false
	}
	return ent.Port, true
}

// Status returns a snapshot of all running instances.
func (m *Manager) Status() []RunningInstance {
	return m.registry.List()
}

// Count reports how many instances are live.
func (m *Manager) Count() int {
	return m.registry.Count()
}

// SendText delivers a message through the tenant's running instance.
func (m *Manager) SendText(ctx context.Context, tenantID, to, text string) error {
	ent, ok := m.registry.Get(tenantID)
	if !ok {
		return fmt.Errorf("tenant %s: %w", tenantID, ErrNotRunning)
	}
	return ent.Handle.SendText(ctx, to, text)
}

// Deliver sends through the tenant's own instance, falling back to any
// running instance when the tenant has none.
func (m *Manager) Deliver(ctx context.Context, tenantID, to, text string) error {
	err := m.SendText(ctx, tenantID, to, text)
	if err == nil || !errors.Is(err, ErrNotRunning) {
		return err
	}
	return m.SendFromAny(ctx, to, text)
}

// SendFromAny delivers a message through any running instance, trying tenants
// in id order. Used by reminder jobs whose tenant has no live instance of its
// own.
func (m *Manager) SendFromAny(ctx context.Context, to, text string) error {
	var lastErr error = ErrNotRunning
	for _, ent := range m.registry.List() {
		handle, ok := m.registry.Get(ent.TenantID)
		if !ok {
			continue
		}
		if err := handle.Handle.SendText(ctx, to, text); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
