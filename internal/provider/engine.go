package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	qrcode "github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

const sessionDBFile = "session.db"

// WhatsmeowProvider boots whatsmeow-backed instances. Each instance keeps its
// credential store inside its own session folder and serves the control
// endpoint on its assigned loopback port.
type WhatsmeowProvider struct {
	layout Layout
}

func NewWhatsmeowProvider(sessionRoot string) *WhatsmeowProvider {
	return &WhatsmeowProvider{layout: Layout{Root: sessionRoot}}
}

func (p *WhatsmeowProvider) Layout() Layout { return p.layout }

// Boot creates the session folder, opens the credential store, connects the
// client and starts the control server. On a fresh session the QR login runs
// in the background while Boot returns; the QR image lands next to the
// session folder until the pairing succeeds.
func (p *WhatsmeowProvider) Boot(ctx context.Context, params BootParams) (Instance, error) {
	dir := p.layout.SessionPath(params.SessionName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session folder: %w", err)
	}

	dbPath := filepath.Join(dir, sessionDBFile)
	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL", dbPath),
		waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	device, err := firstDevice(ctx, container)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("load device: %w", err)
	}
	store.SetOSInfo("BotFleet", [3]uint32{1, 0, 0})

	client := whatsmeow.NewClient(device, waLog.Noop)
	client.EnableAutoReconnect = true
	client.InitialAutoReconnect = true

	inst := &whatsmeowInstance{
		tenantID:    params.TenantID,
		sessionName: params.SessionName,
		port:        params.Port,
		layout:      p.layout,
		container:   container,
		client:      client,
	}

	if err := inst.startControl(); err != nil {
		_ = container.Close()
		return nil, err
	}

	if client.Store.ID == nil {
		qrCtx, cancel := context.WithCancel(context.Background())
		inst.qrCancel = cancel
		go inst.loginWithQR(qrCtx)
	} else {
		if err := client.Connect(); err != nil {
			inst.shutdownControl(ctx)
			_ = container.Close()
			return nil, fmt.Errorf("connect: %w", err)
		}
	}
	return inst, nil
}

func firstDevice(ctx context.Context, container *sqlstore.Container) (*store.Device, error) {
	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	return container.NewDevice(), nil
}

type whatsmeowInstance struct {
	tenantID    string
	sessionName string
	port        int
	layout      Layout
	container   *sqlstore.Container
	client      *whatsmeow.Client
	control     *echo.Echo
	qrCancel    context.CancelFunc
}

func (w *whatsmeowInstance) Port() int           { return w.port }
func (w *whatsmeowInstance) SessionName() string { return w.sessionName }

// loginWithQR walks the pairing channel, writing each QR code to the side
// file so the operator can scan it. The file is removed once pairing
// succeeds.
func (w *whatsmeowInstance) loginWithQR(ctx context.Context) {
	qrPath := w.layout.QRPath(w.sessionName)
	qrChan, err := w.client.GetQRChannel(ctx)
	if err != nil {
		zap.L().Error("provider: qr channel unavailable",
			zap.String("namespace", "provider"),
			zap.String("tenant_id", w.tenantID),
			zap.Error(err))
		return
	}
	if err := w.client.Connect(); err != nil {
		zap.L().Error("provider: connect for pairing failed",
			zap.String("namespace", "provider"),
			zap.String("tenant_id", w.tenantID),
			zap.Error(err))
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-qrChan:
			if !ok {
				return
			}
			switch evt.Event {
			case "code":
				if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 256, qrPath); err != nil {
					zap.L().Error("provider: qr image write failed",
						zap.String("namespace", "provider"),
						zap.String("tenant_id", w.tenantID),
						zap.Error(err))
					continue
				}
				zap.L().Info("provider: qr code ready for scan",
					zap.String("namespace", "provider"),
					zap.String("tenant_id", w.tenantID),
					zap.String("path", qrPath))
			case "success":
				_ = os.Remove(qrPath)
				zap.L().Info("provider: pairing complete",
					zap.String("namespace", "provider"),
					zap.String("tenant_id", w.tenantID))
				return
			case "timeout":
				zap.L().Warn("provider: qr code expired before scan",
					zap.String("namespace", "provider"),
					zap.String("tenant_id", w.tenantID))
				return
			default:
				if evt.Error != nil {
					zap.L().Error("provider: pairing failed",
						zap.String("namespace", "provider"),
						zap.String("tenant_id", w.tenantID),
						zap.Error(evt.Error))
					return
				}
			}
		}
	}
}

func (w *whatsmeowInstance) SendText(ctx context.Context, to string, text string) error {
	jid, err := toJID(to)
	if err != nil {
		return err
	}
	_, err = w.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}
	return nil
}

func (w *whatsmeowInstance) ExportSession(ctx context.Context) (map[string][]byte, error) {
	return ReadSessionDir(w.layout.SessionPath(w.sessionName))
}

func (w *whatsmeowInstance) Close(ctx context.Context) error {
	if w.qrCancel != nil {
		w.qrCancel()
	}
	w.shutdownControl(ctx)
	w.client.Disconnect()
	return w.container.Close()
}

// toJID resolves a phone number or raw JID string to a messaging address.
func toJID(raw string) (types.JID, error) {
	if strings.ContainsRune(raw, '@') {
		jid, err := types.ParseJID(raw)
		if err != nil {
			return types.EmptyJID, fmt.Errorf("parse jid %q: %w", raw, err)
		}
		return jid, nil
	}
	digits := strings.TrimLeft(strings.TrimSpace(raw), "+")
	if digits == "" {
		return types.EmptyJID, fmt.Errorf("empty recipient address")
	}
	return types.NewJID(digits, types.DefaultUserServer), nil
}
