package msgpack

// Tag bytes, per the MessagePack wire format. Fix families embed their
// length or value directly in the tag; everything else is a tag byte
// followed by a big-endian length field (and, for extensions, a type
// id) and then the payload.
const (
	tagPosFixIntMin byte = 0x00
	tagPosFixIntMax byte = 0x7f

	tagFixMapMin byte = 0x80
	tagFixMapMax byte = 0x8f

	tagFixArrayMin byte = 0x90
	tagFixArrayMax byte = 0x9f

	tagFixStrMin byte = 0xa0
	tagFixStrMax byte = 0xbf

	tagNil      byte = 0xc0
	tagReserved byte = 0xc1
	tagFalse    byte = 0xc2
	tagTrue     byte = 0xc3

	tagBin8  byte = 0xc4
	tagBin16 byte = 0xc5
	tagBin32 byte = 0xc6

	tagExt8  byte = 0xc7
	tagExt16 byte = 0xc8
	tagExt32 byte = 0xc9

	tagFloat32 byte = 0xca
	tagFloat64 byte = 0xcb

	tagUint8  byte = 0xcc
	tagUint16 byte = 0xcd
	tagUint32 byte = 0xce
	tagUint64 byte = 0xcf

	tagInt8  byte = 0xd0
	tagInt16 byte = 0xd1
	tagInt32 byte = 0xd2
	tagInt64 byte = 0xd3

	tagFixext1  byte = 0xd4
	tagFixext2  byte = 0xd5
	tagFixext4  byte = 0xd6
	tagFixext8  byte = 0xd7
	tagFixext16 byte = 0xd8

	tagStr8  byte = 0xd9
	tagStr16 byte = 0xda
	tagStr32 byte = 0xdb

	tagArray16 byte = 0xdc
	tagArray32 byte = 0xdd

	tagMap16 byte = 0xde
	tagMap32 byte = 0xdf

	tagNegFixIntMin byte = 0xe0
	tagNegFixIntMax byte = 0xff
)

// extTypeTimestamp is the reserved extension type id for the standard
// timestamp extension (spec §3, §4.6).
const extTypeTimestamp int8 = -1

// maxStackDepth bounds decoder container nesting (spec §3 invariant).
const maxStackDepth = 128

// coalesceThreshold is the byte buffer's design-target segment size
// below which adjacent writes are merged in place (spec §4.2).
const coalesceThreshold = 512

// maxContainerCapHint bounds the slice capacity we eagerly allocate
// for an array/map header whose declared length came off the wire,
// so a malicious or corrupt length field can't force a huge upfront
// allocation before any element has actually been read.
const maxContainerCapHint = 1024

func fixextLength(tag byte) int {
	switch tag {
	case tagFixext1:
		return 1
	case tagFixext2:
		return 2
	case tagFixext4:
		return 4
	case tagFixext8:
		return 8
	default: // tagFixext16
		return 16
	}
}

func clampCap(n int) int {
	if n < 0 {
		return 0
	}
	if n > maxContainerCapHint {
		return maxContainerCapHint
	}
	return n
}
