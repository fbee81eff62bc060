package msgpack

import "fmt"

// MalformedFormatError reports an unknown or reserved tag byte, or
// trailing bytes after a full decode.
type MalformedFormatError struct{ Reason string }

func (e *MalformedFormatError) Error() string { return "msgpack: malformed format: " + e.Reason }

// StackError reports that decoder container nesting exceeded the
// maximum depth.
type StackError struct{ Depth int }

func (e *StackError) Error() string {
	return fmt.Sprintf("msgpack: container nesting exceeds maximum depth of %d", e.Depth)
}

// TypeError reports that a typed header reader found a tag outside
// the expected family.
type TypeError struct{ Expected, Actual string }

func (e *TypeError) Error() string {
	return fmt.Sprintf("msgpack: expected %s, found %s", e.Expected, e.Actual)
}

// UnknownExtTypeError reports an unregistered extension type id when
// AllowUnknownExt is false.
type UnknownExtTypeError struct{ Type int8 }

func (e *UnknownExtTypeError) Error() string {
	return fmt.Sprintf("msgpack: unknown extension type %d", e.Type)
}

// EOFError reports that the stream source reported end-of-data before
// a value completed during a full decode.
type EOFError struct{ Reason string }

func (e *EOFError) Error() string { return "msgpack: unexpected end of stream: " + e.Reason }

// RangeError reports an integer, string, array, map, or extension
// value outside its representable wire range.
type RangeError struct{ Reason string }

func (e *RangeError) Error() string { return "msgpack: value out of range: " + e.Reason }

// EncodingError reports a UTF-8 transcoding failure on encode, or an
// invalid UTF-8 string payload on decode.
type EncodingError struct{ Reason string }

func (e *EncodingError) Error() string { return "msgpack: encoding error: " + e.Reason }

// FrozenError reports a registration attempted on a frozen factory.
type FrozenError struct{ Reason string }

func (e *FrozenError) Error() string { return "msgpack: " + e.Reason }
