// Package goble implements transport.Provider on top of the
// github.com/go-ble/ble stack.
package goble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/russellvd/probefinder/internal/transport"
)

// Provider drives the go-ble stack. A single Provider owns at most one
// running scan and any number of device links.
type Provider struct {
	logger *logrus.Logger

	mu          sync.Mutex
	device      ble.Device
	scanCancel  context.CancelFunc
	connections map[string]*connection
}

type connection struct {
	client  ble.Client
	profile *ble.Profile
}

// NewProvider creates a Provider. The stack itself is brought up
// lazily by Initialize.
func NewProvider(logger *logrus.Logger) *Provider {
	if logger == nil {
		logger = logrus.New()
	}
	return &Provider{
		logger:      logger,
		connections: make(map[string]*connection),
	}
}

// Initialize creates the platform BLE device. Repeated calls are no-ops.
func (p *Provider) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device != nil {
		return nil
	}

	dev, err := newPlatformDevice()
	if err != nil {
		p.logger.WithError(err).Error("Failed to bring up BLE stack")
		return transport.WrapUnavailable("initialize", err)
	}
	ble.SetDefaultDevice(dev)
	p.device = dev

	p.logger.Debug("BLE stack initialized")
	return nil
}

// StartScan begins advertisement delivery. The underlying blocking scan
// runs on its own goroutine until StopScan cancels it.
func (p *Provider) StartScan(filter transport.ScanFilter, onAdv transport.AdvertisementHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device == nil {
		return transport.WrapUnavailable("scan", fmt.Errorf("stack not initialized"))
	}
	if p.scanCancel != nil {
		// Scan already running; the stack cannot multiplex two scans.
		return transport.WrapFailure("scan", fmt.Errorf("scan already in progress"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.scanCancel = cancel

	serviceUUID := transport.NormalizeUUID(filter.ServiceUUID)
	dev := p.device

	go func() {
		err := dev.Scan(ctx, true, func(adv ble.Advertisement) {
			if serviceUUID != "" && !advertisesService(adv, serviceUUID) {
				return
			}
			onAdv(translateAdvertisement(adv))
		})
		if err != nil && ctx.Err() == nil {
			p.logger.WithError(err).Error("BLE scan terminated unexpectedly")
		}
	}()

	p.logger.WithField("service", serviceUUID).Info("BLE scan started")
	return nil
}

// StopScan cancels the running scan, if any.
func (p *Provider) StopScan() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.scanCancel == nil {
		return nil
	}
	p.scanCancel()
	p.scanCancel = nil

	p.logger.Debug("BLE scan stopped")
	return nil
}

// Connect dials the device and discovers its full GATT profile.
func (p *Provider) Connect(ctx context.Context, id string, onDisconnected transport.DisconnectHandler) error {
	p.mu.Lock()
	if p.device == nil {
		p.mu.Unlock()
		return transport.WrapUnavailable("connect", fmt.Errorf("stack not initialized"))
	}
	if _, ok := p.connections[id]; ok {
		p.mu.Unlock()
		return transport.WrapFailure("connect", fmt.Errorf("device %s already connected", id))
	}
	p.mu.Unlock()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, transport.ConnectTimeoutDefault)
		defer cancel()
	}

	p.logger.WithField("address", id).Info("Connecting to BLE device...")

	client, err := ble.Dial(ctx, ble.NewAddr(id))
	if err != nil {
		return transport.WrapFailure("connect", err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		_ = client.CancelConnection()
		return transport.WrapFailure("connect", fmt.Errorf("profile discovery: %w", err))
	}

	p.mu.Lock()
	p.connections[id] = &connection{client: client, profile: profile}
	p.mu.Unlock()

	go func() {
		<-client.Disconnected()
		p.mu.Lock()
		_, stillTracked := p.connections[id]
		delete(p.connections, id)
		p.mu.Unlock()

		if stillTracked && onDisconnected != nil {
			p.logger.WithField("address", id).Warn("BLE link dropped")
			onDisconnected(transport.WrapFailure("connect", fmt.Errorf("link to %s dropped", id)))
		}
	}()

	p.logger.WithFields(logrus.Fields{
		"address":  id,
		"services": len(profile.Services),
	}).Info("BLE device connected")
	return nil
}

// Disconnect tears down the link. Calling it for a device that is not
// connected is a no-op.
func (p *Provider) Disconnect(id string) error {
	p.mu.Lock()
	conn, ok := p.connections[id]
	delete(p.connections, id)
	p.mu.Unlock()

	if !ok {
		return nil
	}
	if err := conn.client.CancelConnection(); err != nil {
		return transport.WrapFailure("disconnect", err)
	}

	p.logger.WithField("address", id).Info("BLE device disconnected")
	return nil
}

// ReadCharacteristic reads a characteristic value.
func (p *Provider) ReadCharacteristic(id, service, characteristic string) ([]byte, error) {
	conn, char, err := p.findCharacteristic(id, service, characteristic)
	if err != nil {
		return nil, err
	}
	data, err := conn.client.ReadCharacteristic(char)
	if err != nil {
		return nil, transport.WrapFailure("read", err)
	}
	return data, nil
}

// WriteCharacteristic writes data to a characteristic.
func (p *Provider) WriteCharacteristic(id, service, characteristic string, data []byte) error {
	conn, char, err := p.findCharacteristic(id, service, characteristic)
	if err != nil {
		return err
	}
	if err := conn.client.WriteCharacteristic(char, data, false); err != nil {
		return transport.WrapFailure("write", err)
	}
	return nil
}

// Subscribe registers for notifications from a characteristic.
func (p *Provider) Subscribe(id, service, characteristic string, onValue transport.NotificationHandler) error {
	conn, char, err := p.findCharacteristic(id, service, characteristic)
	if err != nil {
		return err
	}
	err = conn.client.Subscribe(char, false, func(data []byte) {
		onValue(data)
	})
	if err != nil {
		return transport.WrapFailure("subscribe", err)
	}
	return nil
}

// ListServices enumerates the discovered profile as a map of service
// UUID to characteristic UUIDs, all in normalized form.
func (p *Provider) ListServices(id string) (map[string][]string, error) {
	p.mu.Lock()
	conn, ok := p.connections[id]
	p.mu.Unlock()

	if !ok {
		return nil, transport.WrapFailure("list-services", fmt.Errorf("device %s not connected", id))
	}

	services := make(map[string][]string, len(conn.profile.Services))
	for _, svc := range conn.profile.Services {
		svcUUID := transport.NormalizeUUID(svc.UUID.String())
		chars := make([]string, 0, len(svc.Characteristics))
		for _, char := range svc.Characteristics {
			chars = append(chars, transport.NormalizeUUID(char.UUID.String()))
		}
		services[svcUUID] = chars
	}
	return services, nil
}

func (p *Provider) findCharacteristic(id, service, characteristic string) (*connection, *ble.Characteristic, error) {
	p.mu.Lock()
	conn, ok := p.connections[id]
	p.mu.Unlock()

	if !ok {
		return nil, nil, transport.WrapFailure("lookup", fmt.Errorf("device %s not connected", id))
	}

	svcUUID := transport.NormalizeUUID(service)
	charUUID := transport.NormalizeUUID(characteristic)

	for _, svc := range conn.profile.Services {
		if transport.NormalizeUUID(svc.UUID.String()) != svcUUID {
			continue
		}
		for _, char := range svc.Characteristics {
			if transport.NormalizeUUID(char.UUID.String()) == charUUID {
				return conn, char, nil
			}
		}
		return nil, nil, transport.WrapFailure("lookup",
			fmt.Errorf("characteristic %q not found in service %q", characteristic, service))
	}
	return nil, nil, transport.WrapFailure("lookup", fmt.Errorf("service %q not found", service))
}

func advertisesService(adv ble.Advertisement, serviceUUID string) bool {
	for _, u := range adv.Services() {
		if transport.NormalizeUUID(u.String()) == serviceUUID {
			return true
		}
	}
	return false
}

func translateAdvertisement(adv ble.Advertisement) transport.Advertisement {
	services := make([]string, 0, len(adv.Services()))
	for _, u := range adv.Services() {
		services = append(services, transport.NormalizeUUID(u.String()))
	}
	return transport.Advertisement{
		ID:               adv.Addr().String(),
		LocalName:        strings.TrimSpace(adv.LocalName()),
		RSSI:             adv.RSSI(),
		ManufacturerData: adv.ManufacturerData(),
		Services:         services,
		Connectable:      adv.Connectable(),
	}
}
