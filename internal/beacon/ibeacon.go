package beacon

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"tinygo.org/x/bluetooth"
)

// Apple's Bluetooth SIG company ID. iBeacon frames are carried in its
// manufacturer specific data.
// See: https://www.bluetooth.com/specifications/assigned-numbers/
const CompanyApple uint16 = 0x004C

const (
	iBeaconType   = 0x02
	iBeaconLength = 0x15 // uuid(16) + major(2) + minor(2) + power(1)
)

// ParseIBeacon decodes the manufacturer data payload (company ID already
// stripped) of an iBeacon advertisement.
func ParseIBeacon(companyID uint16, data []byte) (Reading, bool) {
	if companyID != CompanyApple || len(data) < 2+iBeaconLength {
		return Reading{}, false
	}
	if data[0] != iBeaconType || data[1] != iBeaconLength {
		return Reading{}, false
	}

	var raw [16]byte
	copy(raw[:], data[2:18])

	return Reading{
		UUID:    bluetooth.NewUUID(raw),
		Major:   binary.BigEndian.Uint16(data[18:20]),
		Minor:   binary.BigEndian.Uint16(data[20:22]),
		TxPower: int8(data[22]),
	}, true
}

// EncodeIBeacon builds the manufacturer data payload for a reading. The mock
// scanner uses it so demo advertisements go through the same parser.
func EncodeIBeacon(rd Reading) []byte {
	b := make([]byte, 2+iBeaconLength)
	b[0] = iBeaconType
	b[1] = iBeaconLength
	// The canonical string form is big-endian, matching the wire layout.
	raw, _ := hex.DecodeString(strings.ReplaceAll(rd.UUID.String(), "-", ""))
	copy(b[2:18], raw)
	binary.BigEndian.PutUint16(b[18:20], rd.Major)
	binary.BigEndian.PutUint16(b[20:22], rd.Minor)
	b[22] = byte(rd.TxPower)
	return b
}
