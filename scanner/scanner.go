// Package scanner owns the lifecycle of one logical discovery
// operation: start, receive advertisement events, optionally auto-stop
// after a duration, stop.
package scanner

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/russellvd/probefinder/internal/probe"
	"github.com/russellvd/probefinder/internal/ringchan"
	"github.com/russellvd/probefinder/internal/transport"
	"github.com/russellvd/probefinder/registry"
)

// EventType marks whether a device was newly discovered or updated.
type EventType int

const (
	EventNew EventType = iota
	EventUpdated
)

// DeviceEvent is published for every advertisement applied to the
// registry.
type DeviceEvent struct {
	Type   EventType
	Record *registry.Record
}

// Options configures one scan session.
type Options struct {
	// ServiceUUID restricts delivery to devices advertising this
	// service. Defaults to the probe service.
	ServiceUUID string

	// Duration auto-stops the session after the given wall-clock
	// interval. Zero means scan until Stop is called.
	Duration time.Duration

	// RefreshInterval periodically re-requests the scan to refresh
	// RSSI values. Re-requests while the scan is still active are
	// no-ops, never duplicate registrations. Zero disables refresh.
	RefreshInterval time.Duration

	// OnEvent, when set, receives every device event in addition to
	// the Events channel.
	OnEvent func(DeviceEvent)
}

// DefaultOptions returns the options used by the CLI scan command.
func DefaultOptions() *Options {
	return &Options{
		ServiceUUID: probe.ServiceUUID,
		Duration:    10 * time.Second,
	}
}

const eventBufferSize = 100

// Session drives discovery through a transport.Provider and applies
// every advertisement to the shared Registry. A Session is either Idle
// or Active; Start and Stop are both safe to call in any state.
type Session struct {
	provider transport.Provider
	registry *registry.Registry
	events   *ringchan.Ring[DeviceEvent]
	logger   *logrus.Logger

	mu          sync.Mutex
	active      bool
	opts        *Options
	stopTimer   *time.Timer
	refreshStop chan struct{}
}

// NewSession creates an Idle scan session.
func NewSession(provider transport.Provider, reg *registry.Registry, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	return &Session{
		provider: provider,
		registry: reg,
		events:   ringchan.New[DeviceEvent](eventBufferSize),
		logger:   logger,
	}
}

// Start begins advertisement delivery. Starting an already Active
// session is a no-op, not an error: periodic re-invocation to refresh
// RSSI values must never produce duplicate scan registrations.
func (s *Session) Start(opts *Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		s.logger.Debug("Scan already active, start request coalesced")
		return nil
	}

	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.ServiceUUID == "" {
		opts.ServiceUUID = probe.ServiceUUID
	}

	// New session, new device list.
	s.registry.Clear()

	filter := transport.ScanFilter{ServiceUUID: opts.ServiceUUID}
	if err := s.provider.StartScan(filter, s.handleAdvertisement); err != nil {
		return err
	}
	s.active = true
	s.opts = opts

	if opts.Duration > 0 {
		s.stopTimer = time.AfterFunc(opts.Duration, func() {
			_ = s.Stop()
		})
	}
	if opts.RefreshInterval > 0 {
		s.refreshStop = make(chan struct{})
		go s.refreshLoop(opts, s.refreshStop)
	}

	s.logger.WithFields(logrus.Fields{
		"service":  opts.ServiceUUID,
		"duration": opts.Duration,
	}).Info("Scan session started")
	return nil
}

// Stop ends advertisement delivery and returns the session to Idle.
// Stopping an Idle session is a no-op so teardown paths can always
// call it.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil
	}

	if s.stopTimer != nil {
		s.stopTimer.Stop()
		s.stopTimer = nil
	}
	if s.refreshStop != nil {
		close(s.refreshStop)
		s.refreshStop = nil
	}

	err := s.provider.StopScan()
	s.active = false
	s.opts = nil

	if err != nil {
		s.logger.WithError(err).Warn("Scan session stopped with transport error")
		return err
	}
	s.logger.WithField("devices", s.registry.Len()).Info("Scan session stopped")
	return nil
}

// Active reports whether the session is currently scanning.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Events returns the device event stream. The buffer drops oldest
// events under pressure rather than blocking the transport callback.
func (s *Session) Events() <-chan DeviceEvent {
	return s.events.C()
}

// refreshLoop periodically re-requests the scan. The transport rejects
// overlapping requests, which the loop treats as the normal
// still-scanning case.
func (s *Session) refreshLoop(opts *Options, stop <-chan struct{}) {
	ticker := time.NewTicker(opts.RefreshInterval)
	defer ticker.Stop()

	filter := transport.ScanFilter{ServiceUUID: opts.ServiceUUID}
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			active := s.active
			s.mu.Unlock()
			if !active {
				return
			}
			if err := s.provider.StartScan(filter, s.handleAdvertisement); err != nil {
				s.logger.WithError(err).Debug("Scan refresh coalesced")
			}
		}
	}
}

func (s *Session) handleAdvertisement(adv transport.Advertisement) {
	_, known := s.registry.Get(adv.ID)
	s.registry.ApplyAdvertisement(adv)

	rec, ok := s.registry.Get(adv.ID)
	if !ok {
		return
	}

	event := DeviceEvent{Type: EventUpdated, Record: rec}
	if !known {
		event.Type = EventNew
	}
	s.events.Send(event)

	s.mu.Lock()
	opts := s.opts
	s.mu.Unlock()
	if opts != nil && opts.OnEvent != nil {
		opts.OnEvent(event)
	}
}
