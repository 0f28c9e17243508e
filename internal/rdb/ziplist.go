package rdb

import (
	"bytes"
	"errors"
)

// decodeZiplist walks a ziplist blob (the LIST_ZIPLIST/ZSET_ZIPLIST/
// HASH_ZIPLIST payload) and returns its entries in order. Callers flatten
// pairs of entries into hash fields or sorted-set member/score pairs
// themselves; a ziplist has no notion of pairing on its own.
func decodeZiplist(raw []byte) ([]Value, error) {
	b := newByteSource(bytes.NewReader(raw))
	// Header: zlbytes(4) zltail(4) zllen(2), all little-endian. Only the
	// entry count is used here; the byte offsets are redundant with the
	// entry count and the trailing 0xFF sentinel checked after the entries.
	if err := b.discard(4 + 4); err != nil {
		return nil, newParseErr(ErrBadZiplistEntry, b.Offset(), "", err)
	}
	count, err := b.readUint16LE()
	if err != nil {
		return nil, newParseErr(ErrBadZiplistEntry, b.Offset(), "", err)
	}

	entries := make([]Value, 0, count)
	for i := uint16(0); i < count; i++ {
		first, err := b.readByte()
		if err != nil {
			return nil, newParseErr(ErrBadZiplistEntry, b.Offset(), "", err)
		}
		if err := skipZiplistPrevLen(b, first); err != nil {
			return nil, err
		}
		v, err := readZiplistEntry(b)
		if err != nil {
			return nil, err
		}
		entries = append(entries, v)
	}
	end, err := b.readByte()
	if err != nil {
		return nil, newParseErr(ErrBadZiplistEnd, b.Offset(), "", err)
	}
	if end != 0xFF {
		return nil, newParseErr(ErrBadZiplistEnd, b.Offset(), "", errors.New("ziplist does not end with 0xFF"))
	}
	return entries, nil
}

// skipZiplistPrevLen consumes the "previous entry length" field that
// precedes every ziplist entry: one byte if < 254, otherwise that byte
// plus four more. prevByte is the byte already read by the caller (the
// prevlen's first byte doubles as a lookahead for this check).
func skipZiplistPrevLen(b *byteSource, prevByte byte) error {
	if prevByte < 254 {
		return nil
	}
	return b.discard(4)
}

// readZiplistEntry decodes one ziplist entry's encoding byte and payload.
// Must be called with the cursor positioned right after the entry's
// prevlen field.
func readZiplistEntry(b *byteSource) (Value, error) {
	enc, err := b.readByte()
	if err != nil {
		return Value{}, newParseErr(ErrBadZiplistEntry, b.Offset(), "", err)
	}
	switch {
	case enc>>6 == 0: // 00pppppp: 6-bit length string
		n := int(enc & 0x3F)
		raw, err := b.readBytes(n)
		if err != nil {
			return Value{}, newParseErr(ErrBadZiplistEntry, b.Offset(), "", err)
		}
		return bytesValue(raw), nil
	case enc>>6 == 1: // 01pppppp qqqqqqqq: 14-bit length string
		next, err := b.readByte()
		if err != nil {
			return Value{}, newParseErr(ErrBadZiplistEntry, b.Offset(), "", err)
		}
		n := int(enc&0x3F)<<8 | int(next)
		raw, err := b.readBytes(n)
		if err != nil {
			return Value{}, newParseErr(ErrBadZiplistEntry, b.Offset(), "", err)
		}
		return bytesValue(raw), nil
	case enc == 0x80: // 32-bit length string, big-endian
		n, err := b.readUint32BE()
		if err != nil {
			return Value{}, newParseErr(ErrBadZiplistEntry, b.Offset(), "", err)
		}
		raw, err := b.readBytes(int(n))
		if err != nil {
			return Value{}, newParseErr(ErrBadZiplistEntry, b.Offset(), "", err)
		}
		return bytesValue(raw), nil
	case enc == 0xC0: // int16
		v, err := b.readInt16LE()
		if err != nil {
			return Value{}, newParseErr(ErrBadZiplistEntry, b.Offset(), "", err)
		}
		return intValue(int64(v)), nil
	case enc == 0xD0: // int32
		v, err := b.readInt32LE()
		if err != nil {
			return Value{}, newParseErr(ErrBadZiplistEntry, b.Offset(), "", err)
		}
		return intValue(int64(v)), nil
	case enc == 0xE0: // int64
		v, err := b.readInt64LE()
		if err != nil {
			return Value{}, newParseErr(ErrBadZiplistEntry, b.Offset(), "", err)
		}
		return intValue(v), nil
	case enc == 0xF0: // 24-bit signed int
		v, err := b.readInt24LE()
		if err != nil {
			return Value{}, newParseErr(ErrBadZiplistEntry, b.Offset(), "", err)
		}
		return intValue(int64(v)), nil
	case enc == 0xFE: // 8-bit signed int
		v, err := b.readByte()
		if err != nil {
			return Value{}, newParseErr(ErrBadZiplistEntry, b.Offset(), "", err)
		}
		return intValue(int64(int8(v))), nil
	case enc >= 0xF1 && enc <= 0xFD: // 4-bit immediate integer, 0-12 biased by 1
		return intValue(int64(enc&0x0F) - 1), nil
	default:
		return Value{}, newParseErr(ErrBadZiplistEntry, b.Offset(), "", errBadZiplistEncodingByte(enc))
	}
}

func errBadZiplistEncodingByte(enc byte) error {
	return errors.New("unrecognized ziplist entry encoding byte")
}
