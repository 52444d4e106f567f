package probe

import (
	"encoding/binary"
	"fmt"
)

// IdentityPayloadLength is the minimum number of bytes a probe
// manufacturer payload must carry to be decodable.
const IdentityPayloadLength = 20

// Identity represents the decoded vendor payload a probe broadcasts in
// its advertisements.
//
// Format (20 bytes, little-endian):
//   - Bytes 0-3:   Model ID
//   - Bytes 4-7:   Probe ID (keyed into the known-model table)
//   - Bytes 8-11:  Serial number (rendered as lowercase hex)
//   - Bytes 12-18: Reserved
//   - Byte  19:    Battery state of charge, 0-100 percent
type Identity struct {
	ModelID      uint32 `json:"modelId"`
	ProbeID      uint32 `json:"probeId"`
	SerialNumber string `json:"serialNumber"`
	Battery      uint8  `json:"battery"`
}

// UnknownModelName is used for probe IDs not present in the model table.
const UnknownModelName = "Unknown Probe"

// knownModels maps probe IDs to marketing names.
var knownModels = map[uint32]string{
	0x11001401: "TP-100 Classic",
	0x11001402: "TP-200 Duo",
	0x11001403: "TP-300 Pro",
}

// ModelName resolves the probe ID against the known-model table.
func (id *Identity) ModelName() string {
	if name, ok := knownModels[id.ProbeID]; ok {
		return name
	}
	return UnknownModelName
}

// String returns a short human-readable summary for logs.
func (id *Identity) String() string {
	return fmt.Sprintf("%s (serial %s, battery %d%%)", id.ModelName(), id.SerialNumber, id.Battery)
}

// DecodeIdentity decodes a probe manufacturer payload.
//
// The decoder never reads past len(data); a payload shorter than
// IdentityPayloadLength yields a *TooShortError, never a partial
// result. The battery byte is passed through unvalidated - values above
// 100 are the device's problem, not the codec's.
func DecodeIdentity(data []byte) (*Identity, error) {
	if len(data) < IdentityPayloadLength {
		return nil, &TooShortError{Frame: "manufacturer payload", Len: len(data), Min: IdentityPayloadLength}
	}

	return &Identity{
		ModelID:      binary.LittleEndian.Uint32(data[0:4]),
		ProbeID:      binary.LittleEndian.Uint32(data[4:8]),
		SerialNumber: fmt.Sprintf("%08x", binary.LittleEndian.Uint32(data[8:12])),
		Battery:      data[19],
	}, nil
}
