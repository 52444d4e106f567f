package probe

// Fixed GATT identifiers for the probe's single service. UUIDs are in
// normalized form (lowercase, no dashes, 16-bit short form where the
// Bluetooth SIG base applies).
const (
	// ServiceUUID is the probe's primary vendor service.
	ServiceUUID = "fff0"

	// BatteryCharUUID is the standard Battery Level characteristic
	// (0x2A19) the probe exposes under its vendor service.
	BatteryCharUUID = "2a19"

	// CommandCharUUID accepts single-byte command writes.
	CommandCharUUID = "fff3"

	// AckCharUUID pushes command acknowledgment frames via notify.
	AckCharUUID = "fff4"
)

// CompanyID is the vendor identifier keying the probe's manufacturer
// data field in advertisements.
const CompanyID uint16 = 0x09c1
