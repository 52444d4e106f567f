// Package transporttest provides a scripted in-memory Provider for
// package tests. Advertisements and notifications are injected by the
// test; characteristic reads and writes are recorded.
package transporttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/russellvd/probefinder/internal/transport"
)

// Call records one characteristic operation for assertions.
type Call struct {
	Op             string // "read", "write", "subscribe"
	DeviceID       string
	Service        string
	Characteristic string
	Data           []byte
}

// Provider is a scripted transport.Provider. The zero value is usable;
// error fields make the corresponding operation fail.
type Provider struct {
	mu sync.Mutex

	InitializeErr error
	ScanErr       error
	ConnectErr    error
	ReadErr       error
	WriteErr      error
	SubscribeErr  error

	// ReadValues maps characteristic UUID to the value returned by
	// ReadCharacteristic. Reads of unmapped UUIDs return a single zero
	// byte.
	ReadValues map[string][]byte

	// Services is returned by ListServices.
	Services map[string][]string

	initialized bool
	scanning    bool
	scanStarts  int
	onAdv       transport.AdvertisementHandler
	connected   map[string]transport.DisconnectHandler
	notifiers   map[string]transport.NotificationHandler
	calls       []Call
}

var _ transport.Provider = (*Provider)(nil)

func (p *Provider) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.InitializeErr != nil {
		return transport.WrapUnavailable("initialize", p.InitializeErr)
	}
	p.initialized = true
	return nil
}

func (p *Provider) StartScan(filter transport.ScanFilter, onAdv transport.AdvertisementHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ScanErr != nil {
		return transport.WrapFailure("scan", p.ScanErr)
	}
	p.scanning = true
	p.scanStarts++
	p.onAdv = onAdv
	return nil
}

func (p *Provider) StopScan() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scanning = false
	p.onAdv = nil
	return nil
}

func (p *Provider) Connect(_ context.Context, id string, onDisconnected transport.DisconnectHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ConnectErr != nil {
		return transport.WrapFailure("connect", p.ConnectErr)
	}
	if p.connected == nil {
		p.connected = make(map[string]transport.DisconnectHandler)
	}
	p.connected[id] = onDisconnected
	return nil
}

func (p *Provider) Disconnect(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.connected, id)
	return nil
}

func (p *Provider) ReadCharacteristic(id, service, characteristic string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Op: "read", DeviceID: id, Service: service, Characteristic: characteristic})
	if p.ReadErr != nil {
		return nil, transport.WrapFailure("read", p.ReadErr)
	}
	if v, ok := p.ReadValues[characteristic]; ok {
		return v, nil
	}
	return []byte{0x00}, nil
}

func (p *Provider) WriteCharacteristic(id, service, characteristic string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Op: "write", DeviceID: id, Service: service, Characteristic: characteristic, Data: append([]byte(nil), data...)})
	if p.WriteErr != nil {
		return transport.WrapFailure("write", p.WriteErr)
	}
	return nil
}

func (p *Provider) Subscribe(id, service, characteristic string, onValue transport.NotificationHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Op: "subscribe", DeviceID: id, Service: service, Characteristic: characteristic})
	if p.SubscribeErr != nil {
		return transport.WrapFailure("subscribe", p.SubscribeErr)
	}
	if p.notifiers == nil {
		p.notifiers = make(map[string]transport.NotificationHandler)
	}
	p.notifiers[id+"/"+characteristic] = onValue
	return nil
}

func (p *Provider) ListServices(id string) (map[string][]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.connected[id]; !ok {
		return nil, transport.WrapFailure("list-services", fmt.Errorf("device %s not connected", id))
	}
	return p.Services, nil
}

// EmitAdvertisement delivers an advertisement to the active scan
// handler. No-op when no scan is running.
func (p *Provider) EmitAdvertisement(adv transport.Advertisement) {
	p.mu.Lock()
	handler := p.onAdv
	p.mu.Unlock()
	if handler != nil {
		handler(adv)
	}
}

// EmitNotification pushes a value to a subscribed characteristic.
func (p *Provider) EmitNotification(id, characteristic string, data []byte) {
	p.mu.Lock()
	handler := p.notifiers[id+"/"+characteristic]
	p.mu.Unlock()
	if handler != nil {
		handler(data)
	}
}

// DropLink simulates a transport-level disconnect for id.
func (p *Provider) DropLink(id string, err error) {
	p.mu.Lock()
	handler := p.connected[id]
	delete(p.connected, id)
	p.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

// Scanning reports whether a scan is currently active.
func (p *Provider) Scanning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scanning
}

// ScanStarts returns how many times StartScan succeeded.
func (p *Provider) ScanStarts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scanStarts
}

// Connected reports whether id currently has a link.
func (p *Provider) Connected(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.connected[id]
	return ok
}

// Calls returns a copy of the recorded characteristic operations.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}
