package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/russellvd/probefinder/internal/probe"
	"github.com/russellvd/probefinder/internal/transport"
	"github.com/russellvd/probefinder/internal/transport/transporttest"
	"github.com/russellvd/probefinder/session"
)

func validAckFrame() []byte {
	return []byte{
		0x00, 0x00,
		'R', 0x21,
		0x01, 0x00, 0x00, 0x00,
		0x04, 0x00,
		0x00, 0x00,
		0x00, 0x00,
		0x00, 0x00,
	}
}

type SessionTestSuite struct {
	suite.Suite

	provider *transporttest.Provider
	session  *session.Session
}

func (s *SessionTestSuite) SetupTest() {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	s.provider = &transporttest.Provider{}
	s.session = session.New(s.provider, "d1", logger)
}

func (s *SessionTestSuite) connect() {
	s.Require().NoError(s.session.Connect(context.Background()))
	s.Require().Equal(session.StateConnected, s.session.State())
}

func (s *SessionTestSuite) TestConnectTransitionsToConnected() {
	s.Equal(session.StateDisconnected, s.session.State())
	s.connect()
	s.True(s.provider.Connected("d1"))
}

func (s *SessionTestSuite) TestConnectFailureReturnsToDisconnected() {
	s.provider.ConnectErr = errors.New("peripheral refused")

	err := s.session.Connect(context.Background())
	s.Require().Error(err)
	s.Require().True(errors.Is(err, transport.ErrFailure), "transport error must surface unchanged")
	s.Equal(session.StateDisconnected, s.session.State())
}

func (s *SessionTestSuite) TestConnectWhileConnectedIsStateError() {
	s.connect()

	err := s.session.Connect(context.Background())
	var stateErr *session.StateError
	s.Require().ErrorAs(err, &stateErr)
	s.Equal(session.StateConnected, stateErr.Current)
}

func (s *SessionTestSuite) TestReadStatusRequiresLink() {
	_, err := s.session.ReadStatus()
	var stateErr *session.StateError
	s.Require().ErrorAs(err, &stateErr)
}

func (s *SessionTestSuite) TestReadStatusReturnsRawByte() {
	s.provider.ReadValues = map[string][]byte{probe.BatteryCharUUID: {0xFF}}
	s.connect()

	status, err := s.session.ReadStatus()
	s.Require().NoError(err)
	s.Equal(uint8(255), status, "status byte must pass through without range clamping")

	calls := s.provider.Calls()
	s.Require().Len(calls, 1)
	s.Equal(probe.ServiceUUID, calls[0].Service)
	s.Equal(probe.BatteryCharUUID, calls[0].Characteristic)
}

func (s *SessionTestSuite) TestSubscribeAcksDeliversDecodedFrames() {
	s.connect()

	var frames []*probe.AckFrame
	s.Require().NoError(s.session.SubscribeAcks(
		func(f *probe.AckFrame) { frames = append(frames, f) }, nil))
	s.Equal(session.StateSubscribed, s.session.State())

	s.provider.EmitNotification("d1", probe.AckCharUUID, validAckFrame())

	s.Require().Len(frames, 1)
	s.Equal(byte('R'), frames[0].CommandType)
	s.Equal(uint32(1), frames[0].CommandNumber)
}

func (s *SessionTestSuite) TestAckDecodeFailureDoesNotTearDownSubscription() {
	s.connect()

	var frames []*probe.AckFrame
	var decodeErrs []error
	s.Require().NoError(s.session.SubscribeAcks(
		func(f *probe.AckFrame) { frames = append(frames, f) },
		func(err error) { decodeErrs = append(decodeErrs, err) }))

	s.provider.EmitNotification("d1", probe.AckCharUUID, []byte{0x01, 0x02})
	s.provider.EmitNotification("d1", probe.AckCharUUID, validAckFrame())

	s.Require().Len(decodeErrs, 1)
	s.True(probe.IsTooShort(decodeErrs[0]))
	s.Require().Len(frames, 1, "a later valid frame must still be delivered")
	s.Equal(session.StateSubscribed, s.session.State())
}

func (s *SessionTestSuite) TestSubscribeTwiceIsNoOp() {
	s.connect()
	s.Require().NoError(s.session.SubscribeAcks(nil, nil))
	s.Require().NoError(s.session.SubscribeAcks(nil, nil))

	subscribes := 0
	for _, call := range s.provider.Calls() {
		if call.Op == "subscribe" {
			subscribes++
		}
	}
	s.Equal(1, subscribes)
}

func (s *SessionTestSuite) TestSendCommandWritesEncodedOpcode() {
	s.connect()
	s.Require().NoError(s.session.SendCommand(probe.CommandBeep))

	calls := s.provider.Calls()
	s.Require().Len(calls, 1)
	s.Equal("write", calls[0].Op)
	s.Equal(probe.CommandCharUUID, calls[0].Characteristic)
	s.Equal([]byte{0x06}, calls[0].Data)
}

func (s *SessionTestSuite) TestSendCommandAllowedWhileSubscribed() {
	s.connect()
	s.Require().NoError(s.session.SubscribeAcks(nil, nil))
	s.Require().NoError(s.session.SendCommand(probe.CommandBeep))
}

func (s *SessionTestSuite) TestRequestSerialNumberSubscribesThenWrites() {
	s.connect()
	s.Require().NoError(s.session.RequestSerialNumber(nil, nil))

	calls := s.provider.Calls()
	s.Require().Len(calls, 2)
	s.Equal("subscribe", calls[0].Op)
	s.Equal(probe.AckCharUUID, calls[0].Characteristic)
	s.Equal("write", calls[1].Op)
	s.Equal([]byte{0x21}, calls[1].Data)
	s.Equal(session.StateSubscribed, s.session.State())
}

func (s *SessionTestSuite) TestDisconnectNeverConnectedIsNoOp() {
	s.Require().NoError(s.session.Disconnect())
	s.Equal(session.StateDisconnected, s.session.State())
}

func (s *SessionTestSuite) TestDisconnectFromSubscribed() {
	s.connect()
	s.Require().NoError(s.session.SubscribeAcks(nil, nil))

	s.Require().NoError(s.session.Disconnect())
	s.Equal(session.StateDisconnected, s.session.State())
	s.False(s.provider.Connected("d1"))
}

func (s *SessionTestSuite) TestTransportDropForcesDisconnected() {
	s.connect()

	var reported error
	s.session.SetDisconnectHandler(func(err error) { reported = err })

	s.provider.DropLink("d1", errors.New("link lost"))

	s.Equal(session.StateDisconnected, s.session.State())
	s.Error(reported)
}

func (s *SessionTestSuite) TestPollingReportsStatusOnInterval() {
	s.provider.ReadValues = map[string][]byte{probe.BatteryCharUUID: {0x42}}
	s.connect()

	statuses := make(chan uint8, 10)
	s.Require().NoError(s.session.StartPolling(10*time.Millisecond,
		func(v uint8) { statuses <- v }, nil))
	defer s.session.StopPolling()

	select {
	case v := <-statuses:
		s.Equal(uint8(0x42), v)
	case <-time.After(time.Second):
		s.Fail("expected a poll result")
	}
}

func (s *SessionTestSuite) TestPollFailureStopsPollerWithoutStateChange() {
	s.connect()
	s.provider.ReadErr = errors.New("link dropped silently")

	pollErrs := make(chan error, 1)
	s.Require().NoError(s.session.StartPolling(10*time.Millisecond, nil,
		func(err error) { pollErrs <- err }))

	select {
	case err := <-pollErrs:
		s.True(errors.Is(err, transport.ErrFailure))
	case <-time.After(time.Second):
		s.Fail("expected the poll failure to be reported")
	}

	// The failure stops the timer; the state transition is the
	// caller's decision.
	s.Equal(session.StateConnected, s.session.State())
}

func (s *SessionTestSuite) TestPollingRequiresLink() {
	err := s.session.StartPolling(time.Second, nil, nil)
	var stateErr *session.StateError
	s.Require().ErrorAs(err, &stateErr)
}

func (s *SessionTestSuite) TestInteractionPointsAreSorted() {
	s.provider.Services = map[string][]string{
		probe.ServiceUUID: {probe.CommandCharUUID, probe.AckCharUUID, probe.BatteryCharUUID},
	}
	s.connect()

	services, err := s.session.InteractionPoints()
	s.Require().NoError(err)
	s.Equal([]string{probe.BatteryCharUUID, probe.CommandCharUUID, probe.AckCharUUID}, services[probe.ServiceUUID])
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

func TestManagerTracksIndependentSessions(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	provider := &transporttest.Provider{}
	manager := session.NewManager(provider, logger)

	a := manager.Get("d1")
	b := manager.Get("d2")
	if a == b {
		t.Fatal("sessions for different devices must be independent")
	}
	if manager.Get("d1") != a {
		t.Fatal("manager must reuse the session for a known device")
	}
	if manager.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", manager.Len())
	}

	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	manager.Shutdown()
	if a.State() != session.StateDisconnected {
		t.Fatalf("expected disconnected after shutdown, got %v", a.State())
	}
}
