// Package msgpack implements the MessagePack binary serialization
// format: a self-describing, compact interchange format where each
// value is prefixed with a one-byte tag identifying its type and, for
// variable-length values, how to read the payload length.
//
// The package is built around five pieces: the wire format itself
// (format.go), a chunked append-on-write byte buffer (buffer.go), a
// streaming decoder that can be fed bytes in arbitrarily small pieces
// (decode.go), an encoder with normative width selection (encode.go),
// and an extension registry plus a factory/pool for minting and
// recycling encoder/decoder pairs that share a registry (registry.go,
// factory.go).
//
// # Values
//
// Decoded data arrives as a Value, a tagged union covering every
// MessagePack type. Encoding accepts a Value, Go's bool, integer,
// float and string types, []byte, []Value, []MapEntry, Extension,
// Timestamp and time.Time; other slice types and Go maps are not
// encoded directly. Application types are handled via the extension
// registry.
//
// # Streaming
//
// Without an attached source, Decoder.Read never blocks waiting for
// bytes that have not been fed yet: it returns ok=false, err=nil to
// signal "need more data", which is not an error. With a source set
// via Decoder.SetSource, Read pulls from that io.Reader as needed.
// Decoder.FullDecode and UnpackFrom read from an io.Reader this way,
// translating a premature end-of-stream into EOFError.
package msgpack
