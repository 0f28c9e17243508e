package rdb

import "bytes"

// decodeZipmap walks a zipmap blob (the HASH_ZIPMAP payload) and returns
// its key/value pairs in order.
//
// Entry layout: a length byte (1 byte if < 254, or 254 followed by a
// 4-byte little-endian length for longer fields), the field bytes, the
// same length encoding for the value, a "free" byte count, the value
// bytes, then that many unused padding bytes. The map ends at a 255 byte
// where a field length byte would otherwise begin.
func decodeZipmap(raw []byte) ([][2]Value, error) {
	b := newByteSource(bytes.NewReader(raw))
	// Leading byte is the entry count, informational only: zipmaps with
	// more than 253 entries still record 253 there and must be walked to
	// the terminator regardless.
	if _, err := b.readByte(); err != nil {
		return nil, newParseErr(ErrTruncatedZipmap, b.Offset(), "", err)
	}

	var pairs [][2]Value
	for {
		keyLen, atEnd, err := readZipmapLength(b)
		if err != nil {
			return nil, err
		}
		if atEnd {
			return pairs, nil
		}
		key, err := b.readBytes(keyLen)
		if err != nil {
			return nil, newParseErr(ErrTruncatedZipmap, b.Offset(), "", err)
		}

		valLen, atEnd, err := readZipmapLength(b)
		if err != nil {
			return nil, err
		}
		if atEnd {
			// A value-side terminator mid-entry means the blob is corrupt;
			// there is no valid zipmap shape that ends here.
			return nil, newParseErr(ErrTruncatedZipmap, b.Offset(), "", errZipmapTruncatedValue)
		}
		free, err := b.readByte()
		if err != nil {
			return nil, newParseErr(ErrTruncatedZipmap, b.Offset(), "", err)
		}
		val, err := b.readBytes(valLen)
		if err != nil {
			return nil, newParseErr(ErrTruncatedZipmap, b.Offset(), "", err)
		}
		if err := b.discard(int(free)); err != nil {
			return nil, newParseErr(ErrTruncatedZipmap, b.Offset(), "", err)
		}

		pairs = append(pairs, [2]Value{bytesValue(key), bytesValue(val)})
	}
}

// readZipmapLength reads one zipmap length field. Terminator byte is 255;
// a source comment in the Python original this was distilled from claims
// 253 terminates instead, but the original's own code (and this decoder)
// treats 255 as the only terminator and 254 as an escape to a 4-byte
// length.
func readZipmapLength(b *byteSource) (length int, atEnd bool, err error) {
	first, err := b.readByte()
	if err != nil {
		return 0, false, newParseErr(ErrTruncatedZipmap, b.Offset(), "", err)
	}
	switch {
	case first == 255:
		return 0, true, nil
	case first == 254:
		n, err := b.readUint32LE()
		if err != nil {
			return 0, false, newParseErr(ErrTruncatedZipmap, b.Offset(), "", err)
		}
		return int(n), false, nil
	default:
		return int(first), false, nil
	}
}

var errZipmapTruncatedValue = zipmapError("zipmap ended on a value length field")

type zipmapError string

func (e zipmapError) Error() string { return string(e) }
