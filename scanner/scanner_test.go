package scanner_test

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/russellvd/probefinder/internal/transport"
	"github.com/russellvd/probefinder/internal/transport/transporttest"
	"github.com/russellvd/probefinder/registry"
	"github.com/russellvd/probefinder/scanner"
)

type ScannerTestSuite struct {
	suite.Suite

	provider *transporttest.Provider
	registry *registry.Registry
	session  *scanner.Session
}

func (s *ScannerTestSuite) SetupTest() {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	s.provider = &transporttest.Provider{}
	s.registry = registry.New(logger)
	s.session = scanner.NewSession(s.provider, s.registry, logger)
}

func (s *ScannerTestSuite) TestStartAppliesAdvertisementsToRegistry() {
	s.Require().NoError(s.session.Start(&scanner.Options{}))

	s.provider.EmitAdvertisement(transport.Advertisement{ID: "d1", LocalName: "Probe A", RSSI: -58})
	s.provider.EmitAdvertisement(transport.Advertisement{ID: "d2", RSSI: -82})

	records := s.registry.List()
	s.Require().Len(records, 2)
	s.Equal("d1", records[0].ID)
	s.Equal("d2", records[1].ID)
}

func (s *ScannerTestSuite) TestStartClearsPreviousSessionResults() {
	s.Require().NoError(s.session.Start(&scanner.Options{}))
	s.provider.EmitAdvertisement(transport.Advertisement{ID: "stale", RSSI: -60})
	s.Require().NoError(s.session.Stop())

	s.Require().NoError(s.session.Start(&scanner.Options{}))
	s.provider.EmitAdvertisement(transport.Advertisement{ID: "fresh", RSSI: -60})

	records := s.registry.List()
	s.Require().Len(records, 1)
	s.Equal("fresh", records[0].ID)
}

func (s *ScannerTestSuite) TestStartWhileActiveIsCoalesced() {
	s.Require().NoError(s.session.Start(&scanner.Options{}))
	s.Require().NoError(s.session.Start(&scanner.Options{}), "re-start must be a no-op, not an error")

	s.Equal(1, s.provider.ScanStarts(), "an active session must never re-register with the transport")
}

func (s *ScannerTestSuite) TestStopIsIdempotent() {
	s.Require().NoError(s.session.Stop(), "stop on an idle session must not fail")

	s.Require().NoError(s.session.Start(&scanner.Options{}))
	s.Require().NoError(s.session.Stop())
	s.Require().NoError(s.session.Stop())
	s.False(s.provider.Scanning())
}

func (s *ScannerTestSuite) TestAutoStopAfterDuration() {
	s.Require().NoError(s.session.Start(&scanner.Options{Duration: 20 * time.Millisecond}))
	s.True(s.session.Active())

	s.Eventually(func() bool { return !s.session.Active() }, time.Second, 5*time.Millisecond)
	s.False(s.provider.Scanning())
}

func (s *ScannerTestSuite) TestEventsDistinguishNewFromUpdated() {
	var got []scanner.DeviceEvent
	s.Require().NoError(s.session.Start(&scanner.Options{
		OnEvent: func(ev scanner.DeviceEvent) { got = append(got, ev) },
	}))

	s.provider.EmitAdvertisement(transport.Advertisement{ID: "d1", RSSI: -58})
	s.provider.EmitAdvertisement(transport.Advertisement{ID: "d1", RSSI: -61})

	s.Require().Len(got, 2)
	s.Equal(scanner.EventNew, got[0].Type)
	s.Equal(scanner.EventUpdated, got[1].Type)
	s.Equal(-61, got[1].Record.RSSI)
}

func (s *ScannerTestSuite) TestEventsChannelReceivesDiscoveries() {
	s.Require().NoError(s.session.Start(&scanner.Options{}))
	s.provider.EmitAdvertisement(transport.Advertisement{ID: "d1", RSSI: -58})

	select {
	case ev := <-s.session.Events():
		s.Equal(scanner.EventNew, ev.Type)
		s.Equal("d1", ev.Record.ID)
	case <-time.After(time.Second):
		s.Fail("expected a device event")
	}
}

func (s *ScannerTestSuite) TestStartSurfacesTransportErrors() {
	s.provider.ScanErr = errTransport

	err := s.session.Start(&scanner.Options{})
	s.Require().Error(err)
	s.False(s.session.Active())
}

func TestScannerTestSuite(t *testing.T) {
	suite.Run(t, new(ScannerTestSuite))
}

var errTransport = &scanError{}

type scanError struct{}

func (*scanError) Error() string { return "radio rejected scan" }
