// Package transport defines the boundary to the platform's wireless
// stack. The core never sees raw stack callbacks; advertisements and
// notifications are translated into the typed shapes declared here.
package transport

import (
	"context"
	"time"
)

// Advertisement is the core's own view of one advertisement event,
// decoupled from the shape the underlying stack delivers.
type Advertisement struct {
	ID               string // opaque stable identifier assigned by the stack
	LocalName        string // advertised name, may be empty
	RSSI             int    // dB-scaled, more negative = weaker
	ManufacturerData []byte // vendor payload, nil if absent
	Services         []string
	Connectable      bool
}

// ScanFilter restricts advertisement delivery to devices advertising a
// given service.
type ScanFilter struct {
	ServiceUUID string
}

// AdvertisementHandler receives advertisement events during a scan.
type AdvertisementHandler func(adv Advertisement)

// NotificationHandler receives raw notification values from a
// subscribed characteristic.
type NotificationHandler func(data []byte)

// DisconnectHandler is invoked when the stack reports the link to a
// device was dropped, regardless of who initiated it.
type DisconnectHandler func(err error)

// Provider abstracts the platform wireless stack: four primitives
// (initialize, scan, connect/disconnect, characteristic access) and
// nothing more. Implementations must be safe for use from callbacks.
type Provider interface {
	// Initialize prepares the stack. Must be called before any other
	// operation; repeated calls are no-ops.
	Initialize() error

	// StartScan requests advertisement delivery restricted by filter.
	// Events arrive on onAdv until StopScan or a stack failure.
	StartScan(filter ScanFilter, onAdv AdvertisementHandler) error

	// StopScan ends advertisement delivery. Safe to call when no scan
	// is running.
	StopScan() error

	// Connect establishes a link and discovers the device's services.
	// onDisconnected fires once if the link later drops for any reason.
	Connect(ctx context.Context, id string, onDisconnected DisconnectHandler) error

	// Disconnect tears down the link. Safe to call when not connected.
	Disconnect(id string) error

	// ReadCharacteristic reads the current value of a characteristic.
	ReadCharacteristic(id, service, characteristic string) ([]byte, error)

	// WriteCharacteristic writes data to a characteristic.
	WriteCharacteristic(id, service, characteristic string, data []byte) error

	// Subscribe registers for notifications from a characteristic.
	Subscribe(id, service, characteristic string, onValue NotificationHandler) error

	// ListServices enumerates discovered services and their
	// characteristic UUIDs. Requires an established connection.
	ListServices(id string) (map[string][]string, error)
}

// ConnectTimeoutDefault bounds Connect when the caller's context
// carries no deadline of its own.
const ConnectTimeoutDefault = 30 * time.Second
