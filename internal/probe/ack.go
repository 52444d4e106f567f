package probe

import "encoding/binary"

// AckFrameLength is the minimum number of bytes a command
// acknowledgment notification must carry.
const AckFrameLength = 16

// AckFrame represents a decoded command acknowledgment pushed by the
// probe on the notify characteristic after a command write.
//
// Format (16 bytes minimum):
//   - Bytes 0-1:   Reserved
//   - Byte  2:     Command type (ASCII)
//   - Byte  3:     Command code
//   - Bytes 4-7:   Sequential command number, little-endian
//   - Bytes 8-9:   Data byte count, little-endian
//   - Bytes 10-11: Data checksum, little-endian
//   - Bytes 12-13: Header checksum, little-endian
//   - Bytes 14-15: Command status, little-endian
type AckFrame struct {
	CommandType    byte   `json:"commandType"`
	CommandCode    uint8  `json:"commandCode"`
	CommandNumber  uint32 `json:"commandNumber"`
	DataByteCount  uint16 `json:"dataByteCount"`
	DataChecksum   uint16 `json:"dataChecksum"`
	HeaderChecksum uint16 `json:"headerChecksum"`
	CommandStatus  uint16 `json:"commandStatus"`
}

// DecodeAck decodes a command acknowledgment frame.
//
// DataChecksum and HeaderChecksum are exposed as decoded fields only;
// the decoder does not verify them. Callers that care about integrity
// must check them against the frame body themselves.
func DecodeAck(data []byte) (*AckFrame, error) {
	if len(data) < AckFrameLength {
		return nil, &TooShortError{Frame: "acknowledgment frame", Len: len(data), Min: AckFrameLength}
	}

	return &AckFrame{
		CommandType:    data[2],
		CommandCode:    data[3],
		CommandNumber:  binary.LittleEndian.Uint32(data[4:8]),
		DataByteCount:  binary.LittleEndian.Uint16(data[8:10]),
		DataChecksum:   binary.LittleEndian.Uint16(data[10:12]),
		HeaderChecksum: binary.LittleEndian.Uint16(data[12:14]),
		CommandStatus:  binary.LittleEndian.Uint16(data[14:16]),
	}, nil
}
