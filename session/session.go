// Package session owns the command channel to a single probe: connect,
// subscribe to acknowledgments, read status, write commands,
// disconnect. Each Session governs exactly one device; sessions for
// different devices are fully independent.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/russellvd/probefinder/internal/groutine"
	"github.com/russellvd/probefinder/internal/probe"
	"github.com/russellvd/probefinder/internal/transport"
)

// State is the connection state of one probe.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateSubscribed
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateError reports an operation attempted outside its required
// connection state.
type StateError struct {
	Op      string
	Current State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.Current)
}

// AckHandler receives decoded acknowledgment frames.
type AckHandler func(frame *probe.AckFrame)

// ErrorHandler receives per-event errors (ack decode failures, poll
// failures) that do not terminate the session.
type ErrorHandler func(err error)

// Session drives the state machine
// Disconnected -> Connecting -> Connected -> Subscribed -> Disconnected
// for one device. A transport-level disconnect forces Disconnected from
// any state and stops the poll timer.
type Session struct {
	deviceID string
	provider transport.Provider
	logger   *logrus.Logger

	mu           sync.Mutex
	state        State
	pollStop     chan struct{}
	onDisconnect func(error)
}

// New creates a Session in StateDisconnected.
func New(provider transport.Provider, deviceID string, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	return &Session{
		deviceID: deviceID,
		provider: provider,
		logger:   logger,
	}
}

// DeviceID returns the device this session governs.
func (s *Session) DeviceID() string {
	return s.deviceID
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetDisconnectHandler registers a callback for transport-level
// disconnects. Pass nil to unregister.
func (s *Session) SetDisconnectHandler(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = fn
}

// Connect establishes the link. On failure the state returns to
// Disconnected and the transport error is surfaced unchanged.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		cur := s.state
		s.mu.Unlock()
		return &StateError{Op: "connect", Current: cur}
	}
	s.state = StateConnecting
	s.mu.Unlock()

	s.logger.WithField("device", s.deviceID).Info("Connecting to probe...")

	err := s.provider.Connect(ctx, s.deviceID, s.handleTransportDisconnect)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateDisconnected
		return err
	}
	// A transport disconnect may have already fired while unlocked.
	if s.state == StateConnecting {
		s.state = StateConnected
	}
	s.logger.WithField("device", s.deviceID).Info("Probe connected")
	return nil
}

// InteractionPoints enumerates the device's services and their
// characteristic UUIDs in stable order. Purely informational; does not
// change state.
func (s *Session) InteractionPoints() (map[string][]string, error) {
	services, err := s.provider.ListServices(s.deviceID)
	if err != nil {
		return nil, err
	}
	for _, chars := range services {
		sort.Strings(chars)
	}
	return services, nil
}

// ReadStatus reads the battery characteristic and returns the raw
// status byte without range clamping. Requires an established link.
func (s *Session) ReadStatus() (uint8, error) {
	if err := s.requireLink("read status"); err != nil {
		return 0, err
	}

	data, err := s.provider.ReadCharacteristic(s.deviceID, probe.ServiceUUID, probe.BatteryCharUUID)
	if err != nil {
		return 0, err
	}
	if len(data) < 1 {
		return 0, &probe.TooShortError{Frame: "status read", Len: 0, Min: 1}
	}
	return data[0], nil
}

// SubscribeAcks subscribes to the acknowledgment characteristic and
// moves the session to Subscribed. Every inbound notification is
// decoded and delivered to onFrame; a decode failure is reported to
// onError without tearing down the subscription. Subscribing twice is
// a no-op.
func (s *Session) SubscribeAcks(onFrame AckHandler, onError ErrorHandler) error {
	s.mu.Lock()
	switch s.state {
	case StateSubscribed:
		s.mu.Unlock()
		return nil
	case StateConnected:
	default:
		cur := s.state
		s.mu.Unlock()
		return &StateError{Op: "subscribe", Current: cur}
	}
	s.mu.Unlock()

	err := s.provider.Subscribe(s.deviceID, probe.ServiceUUID, probe.AckCharUUID, func(data []byte) {
		frame, decodeErr := probe.DecodeAck(data)
		if decodeErr != nil {
			s.logger.WithFields(logrus.Fields{
				"device": s.deviceID,
				"error":  decodeErr,
			}).Debug("Dropping undecodable acknowledgment")
			if onError != nil {
				onError(decodeErr)
			}
			return
		}
		if onFrame != nil {
			onFrame(frame)
		}
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state == StateConnected {
		s.state = StateSubscribed
	}
	s.mu.Unlock()

	s.logger.WithField("device", s.deviceID).Info("Subscribed to acknowledgments")
	return nil
}

// SendCommand writes an encoded command to the command characteristic.
// Requires an established link.
func (s *Session) SendCommand(cmd probe.Command) error {
	if err := s.requireLink("send command"); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"device":  s.deviceID,
		"command": cmd.String(),
	}).Debug("Writing command")
	return s.provider.WriteCharacteristic(s.deviceID, probe.ServiceUUID, probe.CommandCharUUID, cmd.Encode())
}

// RequestSerialNumber subscribes to acknowledgments if needed, then
// sends the request-serial command. The serial itself arrives
// asynchronously as a decoded frame via onFrame, not as this call's
// return value.
func (s *Session) RequestSerialNumber(onFrame AckHandler, onError ErrorHandler) error {
	if err := s.SubscribeAcks(onFrame, onError); err != nil {
		return err
	}
	return s.SendCommand(probe.CommandRequestSerial)
}

// StartPolling reads the status characteristic on a fixed interval
// while the link is up. A poll failure stops the poller and reports
// through onError, but does not itself change the connection state -
// repeated failures are the caller's cue to Disconnect.
func (s *Session) StartPolling(interval time.Duration, onStatus func(uint8), onError ErrorHandler) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", interval)
	}

	s.mu.Lock()
	if s.state != StateConnected && s.state != StateSubscribed {
		cur := s.state
		s.mu.Unlock()
		return &StateError{Op: "poll", Current: cur}
	}
	if s.pollStop != nil {
		s.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	s.pollStop = stop
	s.mu.Unlock()

	groutine.Go(context.Background(), "probe-status-poll-"+s.deviceID, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				status, err := s.ReadStatus()
				if err != nil {
					s.logger.WithFields(logrus.Fields{
						"device": s.deviceID,
						"error":  err,
					}).Warn("Status poll failed, stopping poller")
					s.clearPoller(stop)
					if onError != nil {
						onError(err)
					}
					return
				}
				if onStatus != nil {
					onStatus(status)
				}
			}
		}
	})
	return nil
}

// clearPoller detaches a finished poll loop, leaving a newer poller
// (if any) untouched.
func (s *Session) clearPoller(stop chan struct{}) {
	s.mu.Lock()
	if s.pollStop == stop {
		s.pollStop = nil
	}
	s.mu.Unlock()
}

// StopPolling cancels the poll timer if one is running.
func (s *Session) StopPolling() {
	s.mu.Lock()
	stop := s.pollStop
	s.pollStop = nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

// Disconnect moves to Disconnected from any state and cancels the poll
// timer. Calling it on a session that never connected returns nil and
// never panics, so teardown paths can always call it.
func (s *Session) Disconnect() error {
	s.StopPolling()

	s.mu.Lock()
	wasLinked := s.state == StateConnected || s.state == StateSubscribed || s.state == StateConnecting
	s.state = StateDisconnected
	s.mu.Unlock()

	if !wasLinked {
		return nil
	}

	err := s.provider.Disconnect(s.deviceID)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"device": s.deviceID,
			"error":  err,
		}).Warn("Disconnect completed with transport error")
		return err
	}
	s.logger.WithField("device", s.deviceID).Info("Probe disconnected")
	return nil
}

// requireLink checks for Connected or Subscribed without holding the
// lock across the subsequent transport call.
func (s *Session) requireLink(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected && s.state != StateSubscribed {
		return &StateError{Op: op, Current: s.state}
	}
	return nil
}

// handleTransportDisconnect forces Disconnected when the stack reports
// the link dropped, regardless of current state.
func (s *Session) handleTransportDisconnect(err error) {
	s.StopPolling()

	s.mu.Lock()
	s.state = StateDisconnected
	fn := s.onDisconnect
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"device": s.deviceID,
		"error":  err,
	}).Warn("Transport reported disconnect")

	if fn != nil {
		fn(err)
	}
}
