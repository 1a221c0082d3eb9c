// Package provider defines the boundary to the conversational-engine layer
// that owns the messaging wire protocol and session handshake. The lifecycle
// manager and backup coordinator only see the interfaces here; the whatsmeow
// engine in this package is the production implementation.
package provider

import (
	"context"
	"path/filepath"
)

// BootParams identifies the tenant runtime a provider must bring up.
type BootParams struct {
	TenantID    string
	SessionName string
	Phone       string
	Port        int
}

// Instance is a running bot process handle. ExportSession is also reachable
// over the instance control HTTP endpoint on its port; the in-process method
// backs that endpoint. Session writes never target a live instance, so there
// is no import counterpart.
type Instance interface {
	Port() int
	SessionName() string
	// SendText delivers a text message to a phone number or JID.
	SendText(ctx context.Context, to string, text string) error
	// ExportSession returns the opaque session folder contents.
	ExportSession(ctx context.Context) (map[string][]byte, error)
	Close(ctx context.Context) error
}

// Provider boots tenant instances. Boot either returns a serving instance
// listening on params.Port or an error with no resources left behind.
type Provider interface {
	Boot(ctx context.Context, params BootParams) (Instance, error)
	Layout() Layout
}

// Layout maps session names to on-disk artifacts. The session folder holds
// the opaque credential files; the QR side file sits next to the folder so
// folder removal and QR removal are independent best-effort steps.
type Layout struct {
	Root string
}

func (l Layout) SessionPath(sessionName string) string {
	return filepath.Join(l.Root, sessionName)
}

func (l Layout) QRPath(sessionName string) string {
	return filepath.Join(l.Root, sessionName+".qr.png")
}
