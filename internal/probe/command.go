package probe

import "fmt"

// Command is a single-byte opcode written to the probe's command
// characteristic.
type Command byte

const (
	// CommandBeep asks the probe to emit an audible locator beep.
	CommandBeep Command = 0x06

	// CommandRequestSerial asks the probe to report its serial number.
	// The serial arrives asynchronously as an acknowledgment frame on
	// the notify characteristic, not as a write response.
	CommandRequestSerial Command = 0x21
)

// String returns a human-readable command name for logs.
func (c Command) String() string {
	switch c {
	case CommandBeep:
		return "beep"
	case CommandRequestSerial:
		return "request-serial"
	default:
		return fmt.Sprintf("unknown (0x%02X)", byte(c))
	}
}

// Encode renders the command as the byte sequence written to the
// command characteristic. All known probe commands are single-byte
// payloads.
func (c Command) Encode() []byte {
	return []byte{byte(c)}
}
