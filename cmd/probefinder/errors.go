package main

import (
	"errors"

	"github.com/russellvd/probefinder/internal/transport"
)

// formatUserError translates internal errors to user-facing messages.
func formatUserError(err error) string {
	if transport.IsUnavailable(err) {
		return "wireless stack unavailable - check that Bluetooth is powered on and permitted (" + err.Error() + ")"
	}
	if errors.Is(err, transport.ErrFailure) {
		return "device communication failed - the probe may be out of range or powered off (" + err.Error() + ")"
	}
	return err.Error()
}
