package msgpack

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Timestamp is the in-memory representation of the standard
// timestamp extension (type −1): seconds since the Unix epoch plus a
// nanosecond remainder (spec §3).
type Timestamp struct {
	Seconds     int64
	Nanoseconds uint32
}

// TimestampFromTime converts a time.Time to a Timestamp.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanoseconds: uint32(t.Nanosecond())}
}

// Time converts a Timestamp to a time.Time in UTC.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanoseconds)).UTC()
}

// int34Max is the largest value representable in the packed 8-byte
// timestamp's 34-bit unsigned seconds field.
const int34Max = 1<<34 - 1

// encodeTimestampPayload chooses the narrowest of the three wire
// widths that losslessly represents ts (spec §3).
func encodeTimestampPayload(ts Timestamp) []byte {
	switch {
	case ts.Nanoseconds == 0 && ts.Seconds >= 0 && ts.Seconds <= int64(^uint32(0)):
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(ts.Seconds))
		return b
	case ts.Seconds >= 0 && ts.Seconds <= int34Max:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(ts.Seconds)|(uint64(ts.Nanoseconds)<<34))
		return b
	default:
		b := make([]byte, 12)
		binary.BigEndian.PutUint32(b[0:4], ts.Nanoseconds)
		binary.BigEndian.PutUint64(b[4:12], uint64(ts.Seconds))
		return b
	}
}

func decodeTimestampPayload(payload []byte) (Timestamp, error) {
	switch len(payload) {
	case 4:
		return Timestamp{Seconds: int64(binary.BigEndian.Uint32(payload))}, nil
	case 8:
		v := binary.BigEndian.Uint64(payload)
		return Timestamp{Seconds: int64(v & int34Max), Nanoseconds: uint32(v >> 34)}, nil
	case 12:
		ns := binary.BigEndian.Uint32(payload[0:4])
		s := int64(binary.BigEndian.Uint64(payload[4:12]))
		return Timestamp{Seconds: s, Nanoseconds: ns}, nil
	default:
		return Timestamp{}, &MalformedFormatError{Reason: fmt.Sprintf("timestamp payload has invalid length %d", len(payload))}
	}
}

func packTimestamp(v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case Timestamp:
		return encodeTimestampPayload(x), nil
	case time.Time:
		return encodeTimestampPayload(TimestampFromTime(x)), nil
	default:
		return nil, fmt.Errorf("msgpack: cannot encode %T as a timestamp", v)
	}
}

func unpackTimestamp(payload []byte) (interface{}, error) {
	ts, err := decodeTimestampPayload(payload)
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// registerBuiltinExtensions installs the factory's built-in
// registrations (spec §4.6): the standard timestamp extension, type
// −1, covering both Timestamp and time.Time on the packer side.
func registerBuiltinExtensions(packers *PackerRegistry, unpackers *UnpackerRegistry) {
	_ = packers.Register(extTypeTimestamp, Timestamp{}, packTimestamp, 0)
	_ = packers.Register(extTypeTimestamp, time.Time{}, packTimestamp, 0)
	_ = unpackers.Register(extTypeTimestamp, Timestamp{}, unpackTimestamp, 0)
}
